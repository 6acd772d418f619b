package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flotilla-erp/flotilla/internal/fleet"
)

type fakeFleet struct {
	unitsDue  []fleet.Unit
	operators []fleet.Operator
	lastDays  int
	err       error
}

func (f *fakeFleet) UnitsDueForMaintenance(_ context.Context, _ time.Time) ([]fleet.Unit, error) {
	return f.unitsDue, f.err
}

func (f *fakeFleet) OperatorsWithExpiringLicenses(_ context.Context, _ time.Time, days int) ([]fleet.Operator, error) {
	f.lastDays = days
	return f.operators, f.err
}

type fakeWarehouse struct {
	raised int
	err    error
}

func (f *fakeWarehouse) ExpiryScan(context.Context) (int, error) {
	return f.raised, f.err
}

type fakeMetrics struct {
	observed map[string]string
}

func (f *fakeMetrics) ObserveJob(task, outcome string) {
	if f.observed == nil {
		f.observed = map[string]string{}
	}
	f.observed[task] = outcome
}

func TestMaintenanceScanCountsOutcome(t *testing.T) {
	metrics := &fakeMetrics{}
	job := NewMaintenanceScanJob(&fakeFleet{unitsDue: []fleet.Unit{{EconomicNumber: "TC-042"}}}, nil, "", slog.Default(), metrics)

	require.NoError(t, job.Handle(context.Background(), NewMaintenanceScanTask()))
	require.Equal(t, "ok", metrics.observed[TaskTypeMaintenanceScan])
}

func TestLicenseScanDefaultsWindow(t *testing.T) {
	fleetPort := &fakeFleet{}
	job := NewLicenseScanJob(fleetPort, nil, "", slog.Default(), &fakeMetrics{})

	task, err := NewLicenseScanTask(LicenseScanPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 30, fleetPort.lastDays)
}

type fakeIdempotencyStore struct {
	olderThan time.Duration
}

func (f *fakeIdempotencyStore) Cleanup(_ context.Context, olderThan time.Duration) error {
	f.olderThan = olderThan
	return nil
}

func TestIdempotencyCleanupUsesRetention(t *testing.T) {
	metrics := &fakeMetrics{}
	store := &fakeIdempotencyStore{}
	job := &IdempotencyCleanupJob{Store: store, Logger: slog.Default(), Metrics: metrics}

	require.NoError(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
	require.Equal(t, idempotencyRetention, store.olderThan)
	require.Equal(t, "ok", metrics.observed[TaskTypeIdempotencyCleanup])
}

func TestExpiryScanPropagatesError(t *testing.T) {
	metrics := &fakeMetrics{}
	boom := errors.New("db down")
	job := NewExpiryScanJob(&fakeWarehouse{err: boom}, slog.Default(), metrics)

	err := job.Handle(context.Background(), NewExpiryScanTask())
	require.ErrorIs(t, err, boom)
	require.Equal(t, "error", metrics.observed[TaskTypeExpiryScan])
}
