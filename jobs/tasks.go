package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskTypeSendEmail sends a transactional notification email.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeMaintenanceScan flags units whose scheduled maintenance is due.
	TaskTypeMaintenanceScan = "fleet:maintenance_scan"
	// TaskTypeLicenseScan flags operators whose license is about to expire.
	TaskTypeLicenseScan = "fleet:license_scan"
	// TaskTypeExpiryScan raises alerts for products close to their expiry date.
	TaskTypeExpiryScan = "warehouse:expiry_scan"
	// TaskTypeIdempotencyCleanup prunes stale idempotency keys.
	TaskTypeIdempotencyCleanup = "shared:idempotency_cleanup"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// LicenseScanPayload configures the expiring-license window.
type LicenseScanPayload struct {
	WindowDays int `json:"window_days"`
}

// NewMaintenanceScanTask constructs the maintenance scan task.
func NewMaintenanceScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeMaintenanceScan, nil)
}

// NewLicenseScanTask constructs the license scan task.
func NewLicenseScanTask(payload LicenseScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLicenseScan, data), nil
}

// NewExpiryScanTask constructs the warehouse expiry scan task.
func NewExpiryScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeExpiryScan, nil)
}

// NewIdempotencyCleanupTask constructs the key-pruning task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeIdempotencyCleanup, nil)
}
