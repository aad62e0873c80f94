// Package server exposes the conversation pipeline and article services
// over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"mithoo/internal/agent"
	"mithoo/internal/config"
	"mithoo/internal/humanize"
	"mithoo/internal/logger"
	"mithoo/internal/persistence"
	"mithoo/internal/pipeline"
	"mithoo/internal/research"
	"mithoo/internal/training"
	"mithoo/internal/writer"
)

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	db         persistence.Database
	pipeline   *pipeline.Pipeline
	agent      *agent.Service
	research   *research.Service
	writer     *writer.Service
	training   *training.Service
	humanizer  *humanize.Client
	config     config.Server
	log        *slog.Logger
}

// Services bundles the collaborators the server exposes.
type Services struct {
	DB        persistence.Database
	Pipeline  *pipeline.Pipeline
	Agent     *agent.Service
	Research  *research.Service
	Writer    *writer.Service
	Training  *training.Service
	Humanizer *humanize.Client
}

// New creates a new HTTP server instance
func New(svcs Services, cfg config.Server) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		db:        svcs.DB,
		pipeline:  svcs.Pipeline,
		agent:     svcs.Agent,
		research:  svcs.Research,
		writer:    svcs.Writer,
		training:  svcs.Training,
		humanizer: svcs.Humanizer,
		config:    cfg,
		log:       logger.Get(),
	}

	// Setup middleware
	s.setupMiddleware()

	// Setup routes
	s.setupRoutes()

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
		// Streaming responses stay open well past normal request times,
		// so only the read side gets a hard server-level timeout.
		ReadTimeout: 30 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	timeout := 120 * time.Second
	if d, err := time.ParseDuration(s.config.RequestTimeout); err == nil && d > 0 {
		timeout = d
	}
	s.router.Use(middleware.Timeout(timeout))

	// CORS middleware
	if s.config.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: false,
			MaxAge:           300, // Maximum value not ignored by any major browsers
		}))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Post("/chat", s.handleChat)
		r.Post("/messages", s.handleSaveMessage)
		r.Get("/conversations/{id}/messages", s.handleGetMessages)

		r.Post("/agent", s.handleAgent)
		r.Post("/research", s.handleResearch)
		r.Post("/articles/generate", s.handleGenerateArticle)
		r.Post("/humanize", s.handleHumanize)
		r.Post("/training", s.handleTraining)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
