package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// IdempotencyPort prunes processed idempotency keys.
type IdempotencyPort interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// Keys older than this can no longer collide with a live retry.
const idempotencyRetention = 30 * 24 * time.Hour

// IdempotencyCleanupJob prunes stale idempotency keys so the table does
// not grow without bound.
type IdempotencyCleanupJob struct {
	Store   IdempotencyPort
	Logger  *slog.Logger
	Metrics MetricsPort
}

// Handle runs the cleanup.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	if err := j.Store.Cleanup(ctx, idempotencyRetention); err != nil {
		observe(j.Metrics, TaskTypeIdempotencyCleanup, "error")
		j.Logger.Error("idempotency cleanup failed", slog.Any("error", err))
		return err
	}
	observe(j.Metrics, TaskTypeIdempotencyCleanup, "ok")
	j.Logger.Info("idempotency cleanup completed")
	return nil
}
