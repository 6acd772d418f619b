package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/flotilla-erp/flotilla/internal/fleet"
)

// FleetPort exposes the fleet queries the scheduled scans need.
type FleetPort interface {
	UnitsDueForMaintenance(ctx context.Context, day time.Time) ([]fleet.Unit, error)
	OperatorsWithExpiringLicenses(ctx context.Context, now time.Time, days int) ([]fleet.Operator, error)
}

// MetricsPort counts processed jobs.
type MetricsPort interface {
	ObserveJob(task, outcome string)
}

func observe(metrics MetricsPort, task, outcome string) {
	if metrics != nil {
		metrics.ObserveJob(task, outcome)
	}
}

// MaintenanceScanJob notifies operations about units whose scheduled
// maintenance is due.
type MaintenanceScanJob struct {
	Fleet    FleetPort
	Client   *Client
	NotifyTo string
	Logger   *slog.Logger
	Metrics  MetricsPort
	clock    func() time.Time
}

// NewMaintenanceScanJob initialises the maintenance scan handler.
func NewMaintenanceScanJob(fleetPort FleetPort, client *Client, notifyTo string, logger *slog.Logger, metrics MetricsPort) *MaintenanceScanJob {
	return &MaintenanceScanJob{
		Fleet:    fleetPort,
		Client:   client,
		NotifyTo: notifyTo,
		Logger:   logger,
		Metrics:  metrics,
		clock:    time.Now,
	}
}

// Handle runs the maintenance scan.
func (j *MaintenanceScanJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Fleet == nil {
		return errors.New("maintenance scan: handler not configured")
	}
	now := j.clock()
	units, err := j.Fleet.UnitsDueForMaintenance(ctx, now)
	if err != nil {
		observe(j.Metrics, TaskTypeMaintenanceScan, "error")
		j.Logger.Error("maintenance scan failed", slog.Any("error", err))
		return err
	}
	if len(units) > 0 && j.Client != nil && j.NotifyTo != "" {
		var b strings.Builder
		b.WriteString("Unidades con mantenimiento vencido o por vencer:\n\n")
		for _, unit := range units {
			b.WriteString(fmt.Sprintf("- %s (%s %s), odómetro %.0f km", unit.EconomicNumber, unit.Brand, unit.Model, unit.OdometerKM))
			if unit.NextMaintenance != nil {
				b.WriteString(fmt.Sprintf(", programado %s", unit.NextMaintenance.Format("2006-01-02")))
			}
			b.WriteString("\n")
		}
		if _, err := j.Client.EnqueueSendEmail(ctx, SendEmailPayload{
			To:      j.NotifyTo,
			Subject: fmt.Sprintf("Mantenimientos pendientes: %d unidades", len(units)),
			Body:    b.String(),
		}); err != nil {
			j.Logger.Warn("enqueue maintenance notification", slog.Any("error", err))
		}
	}
	observe(j.Metrics, TaskTypeMaintenanceScan, "ok")
	j.Logger.Info("maintenance scan completed", slog.Int("units_due", len(units)))
	return nil
}

// LicenseScanJob notifies about operator licenses close to expiry.
type LicenseScanJob struct {
	Fleet    FleetPort
	Client   *Client
	NotifyTo string
	Logger   *slog.Logger
	Metrics  MetricsPort
	clock    func() time.Time
}

// NewLicenseScanJob initialises the license scan handler.
func NewLicenseScanJob(fleetPort FleetPort, client *Client, notifyTo string, logger *slog.Logger, metrics MetricsPort) *LicenseScanJob {
	return &LicenseScanJob{
		Fleet:    fleetPort,
		Client:   client,
		NotifyTo: notifyTo,
		Logger:   logger,
		Metrics:  metrics,
		clock:    time.Now,
	}
}

// Handle runs the license scan.
func (j *LicenseScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Fleet == nil {
		return errors.New("license scan: handler not configured")
	}
	var payload LicenseScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.WindowDays <= 0 {
		payload.WindowDays = 30
	}
	now := j.clock()
	operators, err := j.Fleet.OperatorsWithExpiringLicenses(ctx, now, payload.WindowDays)
	if err != nil {
		observe(j.Metrics, TaskTypeLicenseScan, "error")
		j.Logger.Error("license scan failed", slog.Any("error", err))
		return err
	}
	if len(operators) > 0 && j.Client != nil && j.NotifyTo != "" {
		var b strings.Builder
		b.WriteString(fmt.Sprintf("Licencias que vencen en los próximos %d días:\n\n", payload.WindowDays))
		for _, op := range operators {
			b.WriteString(fmt.Sprintf("- %s (%s), licencia %s", op.FullName, op.EmployeeNumber, op.LicenseNumber))
			if op.LicenseExpiry != nil {
				b.WriteString(fmt.Sprintf(", vence %s", op.LicenseExpiry.Format("2006-01-02")))
			}
			b.WriteString("\n")
		}
		if _, err := j.Client.EnqueueSendEmail(ctx, SendEmailPayload{
			To:      j.NotifyTo,
			Subject: fmt.Sprintf("Licencias por vencer: %d operadores", len(operators)),
			Body:    b.String(),
		}); err != nil {
			j.Logger.Warn("enqueue license notification", slog.Any("error", err))
		}
	}
	observe(j.Metrics, TaskTypeLicenseScan, "ok")
	j.Logger.Info("license scan completed", slog.Int("expiring", len(operators)), slog.Int("window_days", payload.WindowDays))
	return nil
}
