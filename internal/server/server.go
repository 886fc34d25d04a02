// Package server is the composition root: it opens the database, builds
// the service and handler graph, mounts every route, and owns graceful
// shutdown. main.go only reads config and calls New/Start.
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

	"github.com/sakif/learnpath/internal/auth"
	"github.com/sakif/learnpath/internal/generator"
	"github.com/sakif/learnpath/internal/handler"
	"github.com/sakif/learnpath/internal/middleware"
	sqliteRepo "github.com/sakif/learnpath/internal/repository/sqlite"
	"github.com/sakif/learnpath/internal/service"
)

// Config holds everything the server needs from the environment.
//
// JWTSecret, GeminiAPIKey and the Google credentials are all optional in
// the sense that the server starts without them: missing pieces disable
// their routes with a warning instead of failing startup.
type Config struct {
	Port        int
	TemplateDir string
	StaticDir   string
	DBPath      string

	JWTSecret string

	GeminiAPIKey string
	GeminiModel  string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
}

// Server owns the router and the database handle. The handle is closed
// during shutdown so the WAL is flushed and the file lock released.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database and wires the whole dependency graph.
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

// setupRoutes mounts middleware, pages and the API.
//
// Route map:
//
//	GET    /                                                     dashboard page
//	GET    /static/*                                             assets
//	POST   /api/auth/register                                    create account + login
//	POST   /api/auth/login                                       email/password login
//	POST   /api/auth/logout                                      clear cookie
//	GET    /api/auth/me                               (auth)     current user
//	GET    /api/auth/google/login                                optional OAuth
//	GET    /api/auth/google/callback                             optional OAuth
//	GET    /api/learning-paths                        (auth)     summaries
//	POST   /api/learning-paths                        (auth)     create
//	GET    /api/learning-paths/{id}                   (auth)     full tree
//	PUT    /api/learning-paths/{id}                   (auth)     destructive replace
//	DELETE /api/learning-paths/{id}                   (auth)     cascade delete
//	PATCH  /api/learning-paths/{pathId}/modules/{moduleId}/complete (auth)
//	PATCH  /api/learning-paths/{pathId}/modules/{moduleId}/notes    (auth)
//	GET    /api/user-metrics                          (auth)     rollup + views
//	POST   /api/user-metrics/recalculate              (auth)     force recompute
//	GET    /api/user-metrics/paths                    (auth)     per-path reports
//	GET    /api/user-metrics/activity                 (auth)     activity feed
//	POST   /api/generate                              (auth)     draft curriculum
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	fileServer := http.FileServer(http.Dir(s.config.StaticDir))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	pageHandler, err := handler.NewPageHandler(s.config.TemplateDir, s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}
	s.router.Get("/", pageHandler.HandleIndex)

	if s.config.JWTSecret == "" {
		// Every API route needs a token service; without a secret the
		// API surface is just the page shell.
		s.logger.Warn("JWT_SECRET not set — API routes are disabled")
		return nil
	}

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()
	requireAuth := auth.RequireAuth(tokens)

	var google *auth.GoogleProvider
	if s.config.GoogleClientID != "" && s.config.GoogleClientSecret != "" {
		google = auth.NewGoogleProvider(
			s.config.GoogleClientID,
			s.config.GoogleClientSecret,
			s.config.GoogleCallbackURL,
		)
	} else {
		s.logger.Info("Google OAuth not configured — /api/auth/google routes not registered")
	}

	var gen *generator.Client
	if s.config.GeminiAPIKey != "" {
		gen, err = generator.New(generator.Config{
			APIKey: s.config.GeminiAPIKey,
			Model:  s.config.GeminiModel,
		}, s.logger)
		if err != nil {
			return fmt.Errorf("creating generator client: %w", err)
		}
	} else {
		s.logger.Warn("GEMINI_API_KEY not set — /api/generate is disabled")
	}

	authService := service.NewAuthService(s.db, s.db, tokens, passwords, s.logger)
	pathService := service.NewPathService(s.db, s.db, s.logger)
	metricsService := service.NewMetricsService(s.db, s.logger)

	authHandler := handler.NewAuthHandler(authService, google, s.logger)
	pathHandler := handler.NewPathHandler(pathService, s.logger)
	metricsHandler := handler.NewMetricsHandler(metricsService, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
			r.With(requireAuth).Get("/me", authHandler.HandleMe)

			if google != nil {
				r.Get("/google/login", authHandler.HandleGoogleLogin)
				r.Get("/google/callback", authHandler.HandleGoogleCallback)
			}
		})

		r.Route("/learning-paths", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", pathHandler.HandleList)
			r.Post("/", pathHandler.HandleCreate)
			r.Get("/{id}", pathHandler.HandleGet)
			r.Put("/{id}", pathHandler.HandleUpdate)
			r.Delete("/{id}", pathHandler.HandleDelete)
			r.Patch("/{pathId}/modules/{moduleId}/complete", pathHandler.HandleModuleComplete)
			r.Patch("/{pathId}/modules/{moduleId}/notes", pathHandler.HandleModuleNotes)
		})

		r.Route("/user-metrics", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", metricsHandler.HandleOverview)
			r.Post("/recalculate", metricsHandler.HandleRecalculate)
			r.Get("/paths", metricsHandler.HandlePathMetrics)
			r.Get("/activity", metricsHandler.HandleActivity)
		})

		if gen != nil {
			generateHandler := handler.NewGenerateHandler(gen, s.logger)
			r.With(requireAuth).Post("/generate", generateHandler.HandleGenerate)
		}
	})

	return nil
}

// Start runs the server until SIGINT/SIGTERM, then drains in-flight
// requests for up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		// Generation requests block on the Gemini API, which can take
		// well over a minute for a full three-level curriculum.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
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
