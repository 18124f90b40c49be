package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawanori/nonturn-chatdesk/internal/api"
	"github.com/sawanori/nonturn-chatdesk/internal/config"
	"github.com/sawanori/nonturn-chatdesk/internal/handlers"
	"github.com/sawanori/nonturn-chatdesk/internal/mail"
	"github.com/sawanori/nonturn-chatdesk/internal/notify"
	"github.com/sawanori/nonturn-chatdesk/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Pick the data store: PostgreSQL when configured, SQLite for local dev
	var db store.DataStore
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")

		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pgStore.Close()
		logger.Info().Msg("connected to PostgreSQL")
		db = pgStore
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, os.Getenv("SQLITE_PATH"))
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		defer sqliteStore.Close()
		logger.Info().Msg("using SQLite store")
		db = sqliteStore
	}

	// Initialize Redis store
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Outbound integrations
	notifier := notify.NewNotifier(db, notify.NewLINEClient(cfg.LINEChannelAccessToken), cfg, logger)
	mailer := mail.NewClient(cfg.ResendAPIKey, cfg.MailFrom, cfg.MailAdminTo)

	if !cfg.NotifyConfigured() {
		logger.Warn().Msg("no LINE recipients configured; admin notifications will be skipped")
	}

	// Create router
	h := handlers.NewHandler(db, redisStore, notifier, mailer, cfg, logger)
	router := api.NewRouter(logger, cfg, h, db, redisStore)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting chatdesk server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
