package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civitest/civitest-backend/internal/config"
	"github.com/civitest/civitest-backend/internal/database"
	"github.com/civitest/civitest-backend/internal/handler"
	"github.com/civitest/civitest-backend/internal/logger"
	"github.com/civitest/civitest-backend/internal/repository"
	"github.com/civitest/civitest-backend/internal/router"
	"github.com/civitest/civitest-backend/internal/service"
	"github.com/civitest/civitest-backend/internal/timer"
	"github.com/civitest/civitest-backend/internal/validator"
	"github.com/civitest/civitest-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting CiviTest Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	summaryRepo := repository.NewSummaryRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	clock := timer.SystemClock{}
	tokenService := service.NewTokenService(cfg, rdb)
	sessionService := service.NewSessionService(sessionRepo, answerRepo, examRepo, rdb, clock, log)
	resultsService := service.NewResultsService(summaryRepo, examRepo, cfg.PassPercent, log)

	// Entitlement checks live in an external subsystem; every start is
	// allowed here. Swap this for a real client when one exists.
	var access service.AccessChecker = service.AllowAllAccess{}

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(sessionService, resultsService, access, log),
		Results: handler.NewResultsHandler(resultsService, log),
		Clock:   handler.NewClockHandler(sessionService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	sweeper := worker.NewTimeoutSweeper(sessionRepo, rdb, clock, cfg.SweepInterval, log)
	if err := sweeper.Start(workerCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start timeout sweeper")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(tokenService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
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

	// 2. Stop the sweeper and let a running pass finish.
	workerCancel()
	sweeper.Stop()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
