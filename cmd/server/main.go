// Memelab - meme sentiment labeling study server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ashureev/memelab/internal/api"
	"github.com/ashureev/memelab/internal/config"
	"github.com/ashureev/memelab/internal/export"
	"github.com/ashureev/memelab/internal/identity"
	"github.com/ashureev/memelab/internal/live"
	"github.com/ashureev/memelab/internal/middleware"
	"github.com/ashureev/memelab/internal/session"
	"github.com/ashureev/memelab/internal/shared"
	"github.com/ashureev/memelab/internal/store"
	"github.com/ashureev/memelab/internal/trialbank"
	"github.com/ashureev/memelab/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath, shared.RetryPolicy{
		MaxAttempts: cfg.Retry.DatabaseMaxRetries,
		BaseDelay:   cfg.Retry.DatabaseRetryBaseDelay,
	})
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	bank, err := trialbank.Load(cfg.StudyCSV)
	if err != nil {
		slog.Error("Failed to load study trials", "error", err)
		os.Exit(1)
	}
	slog.Info("Study trials loaded", "path", cfg.StudyCSV, "count", bank.Len())

	// Initialize services.
	svc := api.NewService(bank, repo, cfg.DefaultTrials)
	if cfg.JournalDir != "" {
		journal, err := export.NewJournal(export.JournalConfig{Dir: cfg.JournalDir}, logger)
		if err != nil {
			slog.Error("Failed to initialize submission journal", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := journal.Close(); closeErr != nil {
				slog.Error("Failed to close submission journal", "error", closeErr)
			}
		}()
		svc.SetRecorder(journal)
		slog.Info("Submission journal enabled", "dir", cfg.JournalDir)
	}
	mgr := live.NewManager()

	// Initialize handlers.
	studyHandler := api.NewStudyHandler(svc, cfg)
	healthHandler := api.NewHealthHandler(repo, cfg)
	wsHandler := live.NewHandler(svc, svc, mgr, session.Options{
		SurveyURL: cfg.Survey.URL,
		Prefill: session.Prefill{
			UniqnameEntry:   cfg.Survey.UniqnameEntry,
			SurveyCodeEntry: cfg.Survey.SurveyCodeEntry,
		},
		Logger: logger,
	}, live.HandlerConfig{
		AllowedOrigin: cfg.FrontendURL,
		IsDev:         cfg.IsDevelopment(),
		DefaultTrials: cfg.DefaultTrials,
		SubmitTimeout: cfg.Timeout.Submit,
	})

	// Setup router.
	r := chi.NewRouter()

	// Global middleware. The heartbeat lives on /ping so /health can report
	// database status.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(identity.Middleware(cfg.DefaultTrials))

	// Public routes.
	healthHandler.RegisterHealth(r)
	studyHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/session", wsHandler.ServeHTTP)

	// Meme images and the embedded frontend (SPA catch-all).
	r.Handle("/static/images/*", web.ImagesHandler(filepath.Join(cfg.StaticDir, "images")))
	r.Handle("/*", web.Handler())

	// No WriteTimeout: websocket sessions are long-lived.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	srv.RegisterOnShutdown(mgr.CloseAll)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	live.StartSweeper(ctx, mgr, cfg.LiveTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...", "live_sessions", mgr.Count())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
