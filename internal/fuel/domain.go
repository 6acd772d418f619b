// Package fuel runs the six-step fuel-load wizard and keeps the
// fuel-load history with its automatic alerts.
package fuel

import (
	"errors"
	"time"
)

// Level is the tank level read from the dashboard before loading.
type Level string

const (
	LevelEmpty         Level = "VACIO"
	LevelQuarter       Level = "CUARTO"
	LevelHalf          Level = "MEDIO"
	LevelThreeQuarters Level = "TRES_CUARTOS"
)

// PadlockState describes the tank padlock found before loading.
type PadlockState string

const (
	PadlockNormal   PadlockState = "NORMAL"
	PadlockTampered PadlockState = "ALTERADO"
	PadlockBroken   PadlockState = "VIOLADO"
	PadlockMissing  PadlockState = "SIN_CANDADO"
)

// LoadStatus is the lifecycle of a fuel load.
type LoadStatus string

const (
	LoadStatusStarted    LoadStatus = "INICIADO"
	LoadStatusInProgress LoadStatus = "EN_PROCESO"
	LoadStatusCompleted  LoadStatus = "COMPLETADO"
	LoadStatusCancelled  LoadStatus = "CANCELADO"
)

// AlertType classifies automatic fuel alerts.
type AlertType string

const (
	AlertPadlockTampered AlertType = "CANDADO_ALTERADO"
	AlertPadlockBroken   AlertType = "CANDADO_VIOLADO"
	AlertPadlockMissing  AlertType = "SIN_CANDADO"
	AlertExcessFuel      AlertType = "EXCESO_COMBUSTIBLE"
)

// PadlockPhoto is one photo of the new padlock, e.g. per tank.
type PadlockPhoto struct {
	Photo       string `json:"photo"`
	Description string `json:"description"`
}

// Load is a finished fuel load.
type Load struct {
	ID               int64        `json:"id"`
	UnitID           int64        `json:"unit_id"`
	DispatcherID     int64        `json:"dispatcher_id"`
	Status           LoadStatus   `json:"status"`
	Litres           float64      `json:"litres"`
	OdometerKM       float64      `json:"odometer_km"`
	InitialLevel     Level        `json:"initial_level"`
	PadlockBefore    PadlockState `json:"padlock_before"`
	PadlockNotes     string       `json:"padlock_notes"`
	StartedAt        time.Time    `json:"started_at"`
	FinishedAt       *time.Time   `json:"finished_at,omitempty"`
	LoadMinutes      int          `json:"load_minutes"`
	UnitPhoto        string       `json:"unit_photo"`
	DashboardPhoto   string       `json:"dashboard_photo"`
	PadlockOldPhoto  string       `json:"padlock_old_photo"`
	NewPadlockPhotos []PadlockPhoto `json:"new_padlock_photos"`
	TicketPhoto      string       `json:"ticket_photo"`
	Notes            string       `json:"notes"`
	CreatedAt        time.Time    `json:"created_at"`
}

// Alert is an automatic fuel alert raised at load completion.
type Alert struct {
	ID         int64      `json:"id"`
	LoadID     int64      `json:"load_id"`
	Type       AlertType  `json:"type"`
	Message    string     `json:"message"`
	RaisedAt   time.Time  `json:"raised_at"`
	Resolved   bool       `json:"resolved"`
	ResolvedBy *int64     `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Draft is the wizard state kept in Redis until the load finalizes.
// Step records the highest step already captured.
type Draft struct {
	ID            string       `json:"id"`
	UnitID        int64        `json:"unit_id"`
	DispatcherID  int64        `json:"dispatcher_id"`
	Step          int          `json:"step"`
	StartedAt     time.Time    `json:"started_at"`
	UnitPhoto     string       `json:"unit_photo"`
	OdometerKM    float64      `json:"odometer_km"`
	InitialLevel  Level        `json:"initial_level"`
	DashboardPhoto string      `json:"dashboard_photo"`
	PadlockBefore PadlockState `json:"padlock_before"`
	PadlockNotes  string       `json:"padlock_notes"`
	PadlockOldPhoto string     `json:"padlock_old_photo"`
	Litres        float64      `json:"litres"`
	NewPadlockPhotos []PadlockPhoto `json:"new_padlock_photos"`
	TicketPhoto   string       `json:"ticket_photo"`
	Notes         string       `json:"notes"`
}

// TotalSteps is the number of wizard steps before finalize.
const TotalSteps = 6

// Step payloads. Each step only captures its own fields; the service
// enforces strict step ordering.

type StepUnit struct {
	UnitID       int64  `json:"unit_id" validate:"required"`
	DispatcherID int64  `json:"dispatcher_id" validate:"required"`
	UnitPhoto    string `json:"unit_photo" validate:"required"`
}

type StepDashboard struct {
	OdometerKM     float64 `json:"odometer_km" validate:"gt=0"`
	InitialLevel   Level   `json:"initial_level" validate:"required,oneof=VACIO CUARTO MEDIO TRES_CUARTOS"`
	DashboardPhoto string  `json:"dashboard_photo" validate:"required"`
}

type StepOldPadlock struct {
	PadlockBefore   PadlockState `json:"padlock_before" validate:"required,oneof=NORMAL ALTERADO VIOLADO SIN_CANDADO"`
	PadlockNotes    string       `json:"padlock_notes"`
	PadlockOldPhoto string       `json:"padlock_old_photo" validate:"required"`
}

type StepLitres struct {
	Litres float64 `json:"litres" validate:"gt=0"`
}

type StepNewPadlock struct {
	Photos []PadlockPhoto `json:"photos" validate:"required,min=1,dive"`
}

type StepTicket struct {
	TicketPhoto string `json:"ticket_photo"`
	Notes       string `json:"notes"`
}

// Filter narrows load listings.
type Filter struct {
	UnitID       int64
	DispatcherID int64
	Status       LoadStatus
	Limit        int
	Offset       int
}

// Sentinel errors for the fuel module.
var (
	ErrDraftNotFound    = errors.New("fuel: draft not found or expired")
	ErrWrongStep        = errors.New("fuel: wizard steps must be completed in order")
	ErrDraftIncomplete  = errors.New("fuel: wizard has pending steps")
	ErrLoadNotFound     = errors.New("fuel: load not found")
	ErrAlertNotFound    = errors.New("fuel: alert not found")
	ErrAlertResolved    = errors.New("fuel: alert already resolved")
)

// PadlockAlertType maps a padlock state to the alert it raises, if any.
func PadlockAlertType(state PadlockState) (AlertType, bool) {
	switch state {
	case PadlockTampered:
		return AlertPadlockTampered, true
	case PadlockBroken:
		return AlertPadlockBroken, true
	case PadlockMissing:
		return AlertPadlockMissing, true
	}
	return "", false
}
