// Package server wires the application together: it owns the router, the
// dependency graph and the server lifecycle. Handlers, services and
// repositories are assembled here and nowhere else.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tasnimbay/issuedeck/internal/auth"
	"github.com/tasnimbay/issuedeck/internal/handler"
	"github.com/tasnimbay/issuedeck/internal/middleware"
	sqliteRepo "github.com/tasnimbay/issuedeck/internal/repository/sqlite"
	"github.com/tasnimbay/issuedeck/internal/service"
	"github.com/tasnimbay/issuedeck/internal/tracker"
)

// Config holds everything the server needs from the environment.
type Config struct {
	Port               int
	DBPath             string
	TemplateDir        string
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
	WebhookSecret      string
}

// Server owns the router and the database handle; the handle is closed on
// shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database and assembles the full dependency graph:
// db → repositories → services → handlers → routes.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.CORS)

	issueRepo := sqliteRepo.NewIssueRepository(s.db)
	statusRepo := sqliteRepo.NewSyncStatusRepository(s.db)
	metricsRepo := sqliteRepo.NewMetricsRepository(s.db)
	sessionRepo := sqliteRepo.NewSessionRepository(s.db)

	client := tracker.NewClient(s.logger)
	metricsService := service.NewMetricsService(metricsRepo, s.logger)
	syncService := service.NewSyncService(issueRepo, statusRepo, metricsService, client, s.logger)
	issueService := service.NewIssueService(issueRepo, client, syncService, metricsService, s.logger)
	sessionService := service.NewSessionService(sessionRepo, s.logger)

	uiHandler, err := handler.NewUIHandler(s.config.TemplateDir, s.logger)
	if err != nil {
		return fmt.Errorf("creating UI handler: %w", err)
	}
	s.router.Get("/", uiHandler.HandleIndex)

	provider := auth.NewGitHubProvider(
		s.config.GitHubClientID,
		s.config.GitHubClientSecret,
		s.config.GitHubCallbackURL,
	)
	authHandler := handler.NewAuthHandler(provider, sessionService, s.logger)
	s.router.Get("/auth", authHandler.HandleLogin)
	s.router.Get("/auth/callback", authHandler.HandleCallback)

	if s.config.WebhookSecret == "" {
		s.logger.Warn("WEBHOOK_SECRET not set; webhook signature verification is disabled")
	}
	webhookHandler := handler.NewWebhookHandler(syncService, s.config.WebhookSecret, s.logger)
	s.router.Post("/webhook", webhookHandler.HandleWebhook)

	issueHandler := handler.NewIssueHandler(issueService, s.logger)
	syncHandler := handler.NewSyncHandler(syncService, s.logger)
	metricsHandler := handler.NewMetricsHandler(metricsService, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireSession(sessionService))

		r.Get("/issues", issueHandler.HandleList)
		r.Patch("/issues/bulk", issueHandler.HandleBulkUpdate)
		r.Get("/issues/{number}", issueHandler.HandleGet)
		r.Patch("/issues/{number}", issueHandler.HandleUpdate)
		r.Post("/sync", syncHandler.HandleSync)
		r.Get("/sync/status", syncHandler.HandleSyncStatus)
		r.Get("/metrics", metricsHandler.HandleMetrics)
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then drains in-flight
// requests for up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // a full sync runs inside one request
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
