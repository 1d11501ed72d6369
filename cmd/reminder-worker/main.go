package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/carebridge/clinic-scheduling/internal/config"
	"github.com/carebridge/clinic-scheduling/internal/db"
	"github.com/carebridge/clinic-scheduling/internal/reminder"
	"github.com/carebridge/clinic-scheduling/internal/scheduling"
	"github.com/carebridge/clinic-scheduling/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("reminder-worker starting up", "env", cfg.Env, "interval", cfg.WorkerInterval)

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

	repo := scheduling.NewPgRepository(pgPool)

	var sender reminder.Sender
	if cfg.SendGridAPIKey != "" {
		sender = reminder.NewSendGridSender(cfg.SendGridAPIKey, cfg.SendGridFrom, logger)
	} else {
		logger.Info("SENDGRID_API_KEY not set, logging reminders instead of sending")
		sender = reminder.NewLogSender(logger)
	}

	worker := reminder.NewWorker(repo, sender, logger)
	worker.Run(rootCtx, cfg.WorkerInterval)

	logger.Info("shutting down reminder-worker")
}
