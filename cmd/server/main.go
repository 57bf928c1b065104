package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/examdrill/internal/cache"
	"github.com/stemsi/examdrill/internal/config"
	"github.com/stemsi/examdrill/internal/database"
	"github.com/stemsi/examdrill/internal/handler"
	"github.com/stemsi/examdrill/internal/i18n"
	"github.com/stemsi/examdrill/internal/logger"
	"github.com/stemsi/examdrill/internal/metrics"
	"github.com/stemsi/examdrill/internal/questionbank"
	"github.com/stemsi/examdrill/internal/repository"
	"github.com/stemsi/examdrill/internal/router"
	"github.com/stemsi/examdrill/internal/service"
	"github.com/stemsi/examdrill/internal/turnstile"
	"github.com/stemsi/examdrill/internal/validator"
	"github.com/stemsi/examdrill/internal/worker"
)

// sessionStore is implemented by both the PostgreSQL and SQLite repositories.
type sessionStore interface {
	service.SessionStore
	worker.ActivityStore
}

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting exam drill server")

	// ─── Initialize Validator, Locales, Metrics ────────────────────────
	validator.Setup()
	if err := i18n.Init(cfg.DefaultLang); err != nil {
		log.Fatal().Err(err).Msg("Failed to load locales")
	}
	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to the Store ──────────────────────────────────────────
	var store sessionStore
	if database.IsSQLite(cfg.DatabaseURL) {
		db, err := database.NewSQLiteDB(ctx, database.SQLitePath(cfg.DatabaseURL), log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open SQLite")
		}
		defer db.Close()

		// The embedded store always carries its own schema.
		m, err := database.NewSQLiteMigrator(db)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to init migrator")
		}
		if err := database.MigrateUp(m, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate SQLite")
		}
		store = repository.NewSQLiteExamSessionRepository(db)
	} else {
		if cfg.AutoMigrate {
			m, err := database.NewPostgresMigrator(cfg.DatabaseURL)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to init migrator")
			}
			if err := database.MigrateUp(m, log); err != nil {
				log.Fatal().Err(err).Msg("Failed to migrate PostgreSQL")
			}
			m.Close()
		}

		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		store = repository.NewExamSessionRepository(pool)
	}

	// ─── Connect to Redis (optional) ───────────────────────────────────
	var (
		sessionCache service.SessionCache
		feed         handler.SessionFeed
	)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workersDone := make(chan struct{})

	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		c := cache.NewSessionCache(rdb, cfg.SessionCacheTTL, log)
		sessionCache = c
		feed = c

		// ─── Start Background Workers ──────────────────────────────────
		activityWorker := worker.NewActivityWorker(store, rdb, log)
		go func() {
			activityWorker.Start(workerCtx)
			close(workersDone)
		}()
	} else {
		log.Warn().Msg("REDIS_URL not set: snapshot cache, live feed and activity worker disabled")
		close(workersDone)
	}

	// ─── Bot Verification ──────────────────────────────────────────────
	if cfg.TurnstileSecretKey == "" {
		log.Warn().Msg("TURNSTILE_SECRET_KEY not set: manual session loads will be rejected")
	}
	verifier := turnstile.NewClient(cfg.TurnstileSecretKey, cfg.TurnstileVerifyURL, cfg.TurnstileTimeout, log)

	// ─── Load the Question Bank ────────────────────────────────────────
	bank := &questionbank.Holder{}
	if src := cfg.QuestionBankSource(); src != "" {
		if err := bank.Refresh(ctx, questionbank.NewLoader(src, nil, log)); err != nil {
			log.Warn().Err(err).Msg("Question bank unavailable, export disabled")
		}
	}

	// ─── Initialize Services and Handlers ──────────────────────────────
	sessionService := service.NewSessionService(store, sessionCache, verifier, log)

	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(sessionService, bank, log),
		WS:      handler.NewWSHandler(feed, sessionService, log, cfg.AllowedOrigins),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for the queue to drain.
	workerCancel()
	select {
	case <-workersDone:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Activity worker did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
