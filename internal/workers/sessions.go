package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/schoolhub-dev/schoolhub/internal/tasks"
)

// SessionPruner deletes dead auth sessions
type SessionPruner interface {
	PruneSessions(ctx context.Context) (int64, error)
}

// HandlePruneSessions deletes expired and revoked auth sessions
func HandlePruneSessions(ctx context.Context, t *asynq.Task, pruner SessionPruner, logger zerolog.Logger) error {
	deleted, err := pruner.PruneSessions(ctx)
	if err != nil {
		return err
	}
	logger.Info().Int64("deleted", deleted).Msg("Pruned auth sessions")
	return nil
}

// cronParser accepts the standard 5-field format: minute hour day-of-month month day-of-week
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NextRun calculates the next run time of a cron schedule, or nil if it is invalid
func NextRun(cronExpr string, from time.Time) *time.Time {
	if cronExpr == "" {
		return nil
	}
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return nil
	}
	next := schedule.Next(from)
	return &next
}

// StartPruneScheduler enqueues a prune task on the cron schedule until ctx is done.
// One run is enqueued immediately on startup.
func StartPruneScheduler(ctx context.Context, client tasks.Enqueuer, cronExpr string, logger zerolog.Logger) error {
	c := cron.New(cron.WithParser(cronParser))
	if _, err := c.AddFunc(cronExpr, func() { enqueuePrune(client, logger) }); err != nil {
		return fmt.Errorf("invalid session prune schedule %q: %w", cronExpr, err)
	}

	enqueuePrune(client, logger)
	c.Start()
	logger.Info().Str("schedule", cronExpr).Msg("Session prune scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func enqueuePrune(client tasks.Enqueuer, logger zerolog.Logger) {
	task, err := tasks.NewPruneSessionsTask()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create prune task")
		return
	}

	// Unique keeps overlapping schedules from stacking runs
	if _, err := client.Enqueue(task, asynq.Queue(tasks.QueueLow), asynq.Unique(10*time.Minute)); err != nil {
		logger.Error().Err(err).Msg("Failed to enqueue prune task")
		return
	}
	logger.Debug().Msg("Prune task enqueued")
}
