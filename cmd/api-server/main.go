package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/carebridge/clinic-scheduling/internal/api"
	"github.com/carebridge/clinic-scheduling/internal/config"
	"github.com/carebridge/clinic-scheduling/internal/db"
	"github.com/carebridge/clinic-scheduling/internal/observability/metrics"
	"github.com/carebridge/clinic-scheduling/internal/orchestrator"
	"github.com/carebridge/clinic-scheduling/internal/questionnaire"
	redisclient "github.com/carebridge/clinic-scheduling/internal/redis"
	"github.com/carebridge/clinic-scheduling/internal/reminder"
	"github.com/carebridge/clinic-scheduling/internal/scheduling"
	"github.com/carebridge/clinic-scheduling/pkg/logging"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("api-server starting up", "env", cfg.Env, "http_port", cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", "error", err)
		}
	}()
	logger.Info("connected to Redis")

	repo := scheduling.NewPgRepository(pgPool)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)

	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)

	alloc := scheduling.NewAllocator(repo, locker, logger)
	sched := scheduling.NewService(repo, alloc, logger, bookingMetrics)
	reminders := reminder.NewScheduler(repo, logger)

	summarizer := newSummarizer(rootCtx, cfg, logger)
	questionnaires := questionnaire.NewService(repo, summarizer, logger)

	orch := orchestrator.New(
		sched,
		reminders,
		questionnaires,
		logger,
		bookingMetrics,
		cfg.CollaboratorTimeout,
		cfg.ReminderLeadHours,
	)

	router := api.NewRouter(api.RouterConfig{
		Scheduling:     sched,
		Orchestrator:   orch,
		Questionnaires: questionnaires,
		Reminders:      reminders,
		PgPool:         pgPool,
		Redis:          rdb,
		Logger:         logger,
		JWTSecret:      cfg.JWTSecret,
		Env:            cfg.Env,
		Version:        version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
		return
	}

	logger.Info("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
}

// newSummarizer prefers Gemini when an API key is configured and falls back to
// the deterministic plain-text summary otherwise.
func newSummarizer(ctx context.Context, cfg config.Config, logger *logging.Logger) questionnaire.Summarizer {
	if cfg.GeminiAPIKey == "" {
		logger.Info("GEMINI_API_KEY not set, using plain-text questionnaire summaries")
		return questionnaire.PlainTextSummarizer{}
	}
	s, err := questionnaire.NewGeminiSummarizer(ctx, cfg.GeminiAPIKey)
	if err != nil {
		logger.Warn("gemini client init failed, using plain-text summaries", "error", err)
		return questionnaire.PlainTextSummarizer{}
	}
	return s
}
