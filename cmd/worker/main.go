package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/schoolhub-dev/schoolhub/internal/config"
	"github.com/schoolhub-dev/schoolhub/internal/logger"
	"github.com/schoolhub-dev/schoolhub/internal/mailer"
	"github.com/schoolhub-dev/schoolhub/internal/server"
	"github.com/schoolhub-dev/schoolhub/internal/tasks"
	"github.com/schoolhub-dev/schoolhub/internal/workers"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format, "worker")
	log := logger.GetLogger()

	log.Info().Str("version", version).Msg("Starting schoolhub Asynq worker")

	// Initialize database (reuse server's database initialization)
	srv, err := server.New(cfg, log, version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server (needed for DB)")
	}
	db := srv.GetDB()

	sender := mailer.New(cfg.Email.APIKey, cfg.Email.From, log)

	// Initialize Asynq client (used by the prune scheduler)
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: cfg.Redis.Address,
	})
	defer asynqClient.Close()

	// Initialize Asynq server
	asynqServer := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr: cfg.Redis.Address,
		},
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				tasks.QueueDefault: 7, // Inquiry notifications
				tasks.QueueLow:     3, // Newsletter welcomes and session pruning
			},
			// Logging
			Logger: &asynqLogger{log: log},
		},
	)

	// Register task handlers
	mux := asynq.NewServeMux()

	// Email tasks
	mux.HandleFunc(tasks.TypeInquiryNotification, func(ctx context.Context, t *asynq.Task) error {
		return workers.HandleInquiryNotification(ctx, t, db, sender, cfg.Email.OfficeEmail, log)
	})
	mux.HandleFunc(tasks.TypeNewsletterWelcome, func(ctx context.Context, t *asynq.Task) error {
		return workers.HandleNewsletterWelcome(ctx, t, db, sender, log)
	})

	// Maintenance tasks
	mux.HandleFunc(tasks.TypePruneSessions, func(ctx context.Context, t *asynq.Task) error {
		return workers.HandlePruneSessions(ctx, t, srv.Identity(), log)
	})

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go func() {
		if err := workers.StartPruneScheduler(schedulerCtx, asynqClient, cfg.Jobs.SessionPruneSchedule, log); err != nil {
			log.Error().Err(err).Msg("Session prune scheduler stopped")
		}
	}()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		log.Info().Msg("Starting Asynq worker server...")
		if err := asynqServer.Run(mux); err != nil {
			log.Fatal().Err(err).Msg("Asynq worker server failed")
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info().Msg("Received shutdown signal, shutting down gracefully...")

	// Shutdown Asynq server gracefully
	log.Info().Msg("Stopping Asynq worker - waiting for tasks to finish (30s timeout)...")
	stopScheduler()
	asynqServer.Shutdown()

	log.Info().Msg("Worker shutdown complete")
}

// asynqLogger is a wrapper to make zerolog compatible with Asynq's logger interface
type asynqLogger struct {
	log zerolog.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.log.Debug().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.log.Info().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.log.Warn().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.log.Error().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.log.Fatal().Msg(fmt.Sprint(args...))
}
