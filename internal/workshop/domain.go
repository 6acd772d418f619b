// Package workshop manages maintenance work orders: the status state
// machine, required parts, and completion side effects on the unit.
package workshop

import (
	"errors"
	"time"
)

// Status is the work-order lifecycle state.
type Status string

const (
	StatusPending       Status = "PENDIENTE"
	StatusInDiagnosis   Status = "EN_DIAGNOSTICO"
	StatusAwaitingParts Status = "ESPERANDO_PIEZAS"
	StatusInRepair      Status = "EN_REPARACION"
	StatusInTesting     Status = "EN_PRUEBAS"
	StatusCompleted     Status = "COMPLETADA"
	StatusCancelled     Status = "CANCELADA"
)

// Priority of a work order.
type Priority string

const (
	PriorityLow      Priority = "BAJA"
	PriorityMedium   Priority = "MEDIA"
	PriorityHigh     Priority = "ALTA"
	PriorityCritical Priority = "CRITICA"
)

// PartStatus is the lifecycle of a required part, advancing
// independently of the parent order.
type PartStatus string

const (
	PartPending   PartStatus = "PENDIENTE"
	PartRequested PartStatus = "SOLICITADA"
	PartBuying    PartStatus = "EN_COMPRA"
	PartReceived  PartStatus = "RECIBIDA"
	PartInstalled PartStatus = "INSTALADA"
	PartCancelled PartStatus = "CANCELADA"
)

// FolioPrefix for work orders.
const FolioPrefix = "OT"

// transitions lists every allowed status change. Terminal states have
// no outgoing edges and are immutable.
var transitions = map[Status][]Status{
	StatusPending:       {StatusInDiagnosis, StatusCancelled},
	StatusInDiagnosis:   {StatusAwaitingParts, StatusInRepair, StatusCancelled},
	StatusAwaitingParts: {StatusInRepair, StatusCancelled},
	StatusInRepair:      {StatusInTesting, StatusCancelled},
	StatusInTesting:     {StatusCompleted, StatusInRepair, StatusCancelled},
}

// CanTransition reports whether from -> to is an allowed status change.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further changes.
func IsTerminal(status Status) bool {
	return status == StatusCompleted || status == StatusCancelled
}

// MaintenanceType is a catalog entry carrying the suggested interval
// until the next service of its kind.
type MaintenanceType struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	SuggestedDays int    `json:"suggested_days"`
}

// WorkOrder is a maintenance order (OT).
type WorkOrder struct {
	ID                int64      `json:"id"`
	Folio             string     `json:"folio"`
	UnitID            int64      `json:"unit_id"`
	ReportedByID      *int64     `json:"reported_by_id,omitempty"`
	MaintenanceTypeID *int64     `json:"maintenance_type_id,omitempty"`
	Problem           string     `json:"problem"`
	Symptoms          string     `json:"symptoms"`
	Diagnosis         string     `json:"diagnosis"`
	WorkPerformed     string     `json:"work_performed"`
	Priority          Priority   `json:"priority"`
	Status            Status     `json:"status"`
	OdometerIn        float64    `json:"odometer_in"`
	OdometerOut       *float64   `json:"odometer_out,omitempty"`
	LaborCostEstimate float64    `json:"labor_cost_estimate"`
	LaborCostActual   float64    `json:"labor_cost_actual"`
	ScheduledFor      *time.Time `json:"scheduled_for,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	DiagnosedAt       *time.Time `json:"diagnosed_at,omitempty"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	Parts []RequiredPart `json:"parts,omitempty"`
}

// RequiredPart belongs to a work order and tracks one catalog product
// through request, purchase, receipt and installation.
type RequiredPart struct {
	ID                int64      `json:"id"`
	WorkOrderID       int64      `json:"work_order_id"`
	ProductID         int64      `json:"product_id"`
	Quantity          float64    `json:"quantity"`
	UsageNotes        string     `json:"usage_notes"`
	Status            PartStatus `json:"status"`
	EstimatedUnitCost float64    `json:"estimated_unit_cost"`
	ActualUnitCost    *float64   `json:"actual_unit_cost,omitempty"`
	RequisitionItemID *int64     `json:"requisition_item_id,omitempty"`
	RequestedAt       *time.Time `json:"requested_at,omitempty"`
	ReceivedAt        *time.Time `json:"received_at,omitempty"`
	InstalledAt       *time.Time `json:"installed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// SubtotalEstimate returns quantity times estimated unit cost.
func (p RequiredPart) SubtotalEstimate() float64 {
	return p.Quantity * p.EstimatedUnitCost
}

// SubtotalActual returns quantity times actual unit cost, zero until
// the part is received with a real cost.
func (p RequiredPart) SubtotalActual() float64 {
	if p.ActualUnitCost == nil {
		return 0
	}
	return p.Quantity * *p.ActualUnitCost
}

// Outstanding reports whether the part still blocks repair.
func (p RequiredPart) Outstanding() bool {
	switch p.Status {
	case PartPending, PartRequested, PartBuying:
		return true
	}
	return false
}

// PartsCostEstimate sums the estimated part subtotals.
func (o WorkOrder) PartsCostEstimate() float64 {
	var total float64
	for _, p := range o.Parts {
		total += p.SubtotalEstimate()
	}
	return total
}

// PartsCostActual sums the actual part subtotals.
func (o WorkOrder) PartsCostActual() float64 {
	var total float64
	for _, p := range o.Parts {
		total += p.SubtotalActual()
	}
	return total
}

// TotalCostEstimate is labor estimate plus estimated parts.
func (o WorkOrder) TotalCostEstimate() float64 {
	return o.LaborCostEstimate + o.PartsCostEstimate()
}

// TotalCostActual is actual labor plus actual parts.
func (o WorkOrder) TotalCostActual() float64 {
	return o.LaborCostActual + o.PartsCostActual()
}

// HasOutstandingParts reports whether any part still blocks repair.
func (o WorkOrder) HasOutstandingParts() bool {
	for _, p := range o.Parts {
		if p.Outstanding() {
			return true
		}
	}
	return false
}

// StatusLog is one entry in the order's status trail.
type StatusLog struct {
	ID          int64     `json:"id"`
	WorkOrderID int64     `json:"work_order_id"`
	FromStatus  Status    `json:"from_status"`
	ToStatus    Status    `json:"to_status"`
	Comment     string    `json:"comment"`
	ActorID     int64     `json:"actor_id"`
	At          time.Time `json:"at"`
}

// HistoryEntry is the denormalized maintenance-history row written
// exactly once when an order completes.
type HistoryEntry struct {
	ID          int64     `json:"id"`
	UnitID      int64     `json:"unit_id"`
	WorkOrderID int64     `json:"work_order_id"`
	Folio       string    `json:"folio"`
	ServicedAt  time.Time `json:"serviced_at"`
	OdometerKM  float64   `json:"odometer_km"`
	TotalCost   float64   `json:"total_cost"`
	Description string    `json:"description"`
}

// MonthlyReport summarizes workshop activity for one calendar month.
type MonthlyReport struct {
	Year            int     `json:"year"`
	Month           int     `json:"month"`
	OrdersOpened    int     `json:"orders_opened"`
	OrdersCompleted int     `json:"orders_completed"`
	OrdersCancelled int     `json:"orders_cancelled"`
	TotalLaborCost  float64 `json:"total_labor_cost"`
	TotalCost       float64 `json:"total_cost"`
	AvgDaysInShop   float64 `json:"avg_days_in_shop"`
}

// UnitCost ranks a unit by accumulated maintenance spend.
type UnitCost struct {
	UnitID    int64   `json:"unit_id"`
	Services  int     `json:"services"`
	TotalCost float64 `json:"total_cost"`
}

// CreateOrderInput carries intake fields.
type CreateOrderInput struct {
	UnitID            int64      `json:"unit_id" validate:"required"`
	ReportedByID      *int64     `json:"reported_by_id"`
	MaintenanceTypeID *int64     `json:"maintenance_type_id"`
	Problem           string     `json:"problem" validate:"required"`
	Symptoms          string     `json:"symptoms"`
	Priority          Priority   `json:"priority" validate:"omitempty,oneof=BAJA MEDIA ALTA CRITICA"`
	OdometerIn        float64    `json:"odometer_in" validate:"gt=0"`
	LaborCostEstimate float64    `json:"labor_cost_estimate" validate:"gte=0"`
	ScheduledFor      *time.Time `json:"scheduled_for"`
	ActorID           int64      `json:"-"`
}

// AddPartInput carries fields for one required part.
type AddPartInput struct {
	ProductID         int64   `json:"product_id" validate:"required"`
	Quantity          float64 `json:"quantity" validate:"gt=0"`
	UsageNotes        string  `json:"usage_notes"`
	EstimatedUnitCost float64 `json:"estimated_unit_cost" validate:"gte=0"`
	ActorID           int64   `json:"-"`
}

// CompleteOrderInput carries completion fields.
type CompleteOrderInput struct {
	WorkPerformed   string   `json:"work_performed" validate:"required"`
	LaborCostActual float64  `json:"labor_cost_actual" validate:"gte=0"`
	OdometerOut     *float64 `json:"odometer_out"`
	ActorID         int64    `json:"-"`
}

// PartReceipt is one received line pushed back from procurement.
type PartReceipt struct {
	PartID         int64
	ActualUnitCost *float64
}

// Filter narrows work-order listings.
type Filter struct {
	UnitID   int64
	Status   Status
	Priority Priority
	Limit    int
	Offset   int
}

// Sentinel errors for the workshop module.
var (
	ErrOrderNotFound     = errors.New("workshop: work order not found")
	ErrPartNotFound      = errors.New("workshop: required part not found")
	ErrTypeNotFound      = errors.New("workshop: maintenance type not found")
	ErrOrderTerminal     = errors.New("workshop: work order is in a terminal state")
	ErrInvalidTransition = errors.New("workshop: status transition not allowed")
	ErrNoPendingParts    = errors.New("workshop: no pending parts to request")
	ErrPartNotReceived   = errors.New("workshop: part has not been received")
	ErrOdometerOutTooLow = errors.New("workshop: exit odometer below intake odometer")
)
