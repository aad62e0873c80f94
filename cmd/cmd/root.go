package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mithoo/internal/agent"
	"mithoo/internal/config"
	"mithoo/internal/humanize"
	"mithoo/internal/llm"
	"mithoo/internal/persistence"
	"mithoo/internal/pipeline"
	"mithoo/internal/research"
	"mithoo/internal/store"
	"mithoo/internal/training"
	"mithoo/internal/writer"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mithoo",
	Short: "Mithoo is an AI writing assistant: conversational editing, research, and drafting.",
	Long: `Mithoo helps authors draft and edit articles through conversation.

It keeps a persisted conversation per article, sends each turn to the
Gemini API with the working document as context, and classifies replies
into chat answers or proposed document edits. Research runs are grounded
in web search and their sources are cited.

Run 'mithoo serve' to expose the service over HTTP, or use the chat,
agent, research, generate, humanize, and train commands directly.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mithoo.yaml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if _, err := config.Load(cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
}

// openDatabase connects the configured persistence backend.
func openDatabase(ctx context.Context, cfg *config.Config) (persistence.Database, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return persistence.NewPostgresDB(ctx, cfg.Database.DSN)
	default:
		return store.NewStore(cfg.App.DataDir)
	}
}

// services bundles everything a command needs past the database.
type services struct {
	db        persistence.Database
	pipeline  *pipeline.Pipeline
	agent     *agent.Service
	research  *research.Service
	writer    *writer.Service
	training  *training.Service
	humanizer *humanize.Client
}

// buildServices wires the full service graph over one database handle.
func buildServices(ctx context.Context, cfg *config.Config) (*services, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	factory := llm.NewFactory(cfg.AI.Gemini.Model)
	tr := training.NewService(db.Training())

	return &services{
		db:        db,
		pipeline:  pipeline.New(db.Conversations(), db.Preferences(), tr, factory),
		agent:     agent.NewService(db.Agents(), db.Preferences(), factory),
		research:  research.NewService(db.Articles(), db.Preferences(), tr, factory),
		writer:    writer.NewService(db.Articles(), db.Preferences(), tr, factory),
		training:  tr,
		humanizer: humanize.NewClient(cfg.Humanizer.BaseURL, cfg.Humanizer.APIKey),
	}, nil
}
