// Package main is the entry point. Its only jobs are reading configuration
// from the environment, building the logger, and handing both to the
// server package.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/sakif/learnpath/internal/server"
)

func main() {
	// A local .env is a convenience for development; in production the
	// variables come from the real environment and the file is absent.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded configuration from .env")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))

	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	// Template and asset directories sit at the project root, which is
	// the working directory under `go run ./cmd/server`.
	templateDir, _ := filepath.Abs("web/templates")
	staticDir, _ := filepath.Abs("web/static")

	dbPath := "data/learnpath.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(dbPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// JWT_SECRET must be a long random string, e.g.:
	//   JWT_SECRET=$(openssl rand -hex 32)
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Warn("JWT_SECRET not set — API authentication is disabled")
	}

	googleCallbackURL := os.Getenv("GOOGLE_CALLBACK_URL")
	if googleCallbackURL == "" {
		googleCallbackURL = fmt.Sprintf("http://localhost:%d/api/auth/google/callback", port)
	}

	cfg := server.Config{
		Port:        port,
		TemplateDir: templateDir,
		StaticDir:   staticDir,
		DBPath:      dbPath,

		JWTSecret: jwtSecret,

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  os.Getenv("GEMINI_MODEL"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleCallbackURL:  googleCallbackURL,
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
