package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

// WarehousePort exposes the warehouse expiry scan.
type WarehousePort interface {
	ExpiryScan(ctx context.Context) (int, error)
}

// ExpiryScanJob raises expiry alerts for warehouse products.
type ExpiryScanJob struct {
	Warehouse WarehousePort
	Logger    *slog.Logger
	Metrics   MetricsPort
}

// NewExpiryScanJob initialises the expiry scan handler.
func NewExpiryScanJob(warehousePort WarehousePort, logger *slog.Logger, metrics MetricsPort) *ExpiryScanJob {
	return &ExpiryScanJob{Warehouse: warehousePort, Logger: logger, Metrics: metrics}
}

// Handle runs the expiry scan.
func (j *ExpiryScanJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Warehouse == nil {
		return errors.New("expiry scan: handler not configured")
	}
	raised, err := j.Warehouse.ExpiryScan(ctx)
	if err != nil {
		observe(j.Metrics, TaskTypeExpiryScan, "error")
		j.Logger.Error("expiry scan failed", slog.Any("error", err))
		return err
	}
	observe(j.Metrics, TaskTypeExpiryScan, "ok")
	j.Logger.Info("expiry scan completed", slog.Int("alerts_raised", raised))
	return nil
}
