package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mithoo/internal/config"
	"mithoo/internal/logger"
	"mithoo/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the Mithoo HTTP server.

The server exposes:
  • POST /api/chat               conversational editing (buffered or SSE)
  • POST /api/research           grounded topic research
  • POST /api/articles/generate  article drafting and improvement
  • POST /api/humanize           humanizer pass-through
  • POST /api/messages           persist a streamed exchange
  • GET  /health, /api/status    health and status

Examples:
  # Start server on default port 8080
  mithoo serve

  # Start on custom port
  mithoo serve --port 3000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		host, _ := cmd.Flags().GetString("host")
		return runServe(cmd.Context(), port, host)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "HTTP server port (default from config: 8080)")
	serveCmd.Flags().String("host", "", "HTTP server host (default from config: 0.0.0.0)")
}

func runServe(ctx context.Context, port int, host string) error {
	log := logger.Get()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override server config from flags if provided
	serverCfg := cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	svcs, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svcs.db.Close()

	if err := svcs.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("Database connection successful", "driver", cfg.Database.Driver)

	srv := server.New(server.Services{
		DB:        svcs.db,
		Pipeline:  svcs.pipeline,
		Agent:     svcs.agent,
		Research:  svcs.research,
		Writer:    svcs.writer,
		Training:  svcs.training,
		Humanizer: svcs.humanizer,
	}, serverCfg)

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	go func() {
		log.Info(fmt.Sprintf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port))
		log.Info("Press Ctrl+C to stop")
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info("Server shutdown initiated", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed, forcing close", "error", err)
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		log.Info("Server stopped successfully")
	}

	return nil
}
