package fleet

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/flotilla-erp/flotilla/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	CreateUnit(ctx context.Context, input CreateUnitInput) (Unit, error)
	UpdateUnit(ctx context.Context, id int64, input UpdateUnitInput) (Unit, error)
	GetUnit(ctx context.Context, id int64) (Unit, error)
	ListUnits(ctx context.Context, filter UnitFilter) ([]Unit, error)
	AdvanceOdometer(ctx context.Context, unitID int64, reading float64, source string) (float64, error)
	ListOdometerLog(ctx context.Context, unitID int64, limit int) ([]OdometerEntry, error)
	SetUnitStatus(ctx context.Context, unitID int64, status UnitStatus) (Unit, error)
	SetNextMaintenance(ctx context.Context, unitID int64, date time.Time) error
	ListUnitsDueForMaintenance(ctx context.Context, day time.Time) ([]Unit, error)
	CreateOperator(ctx context.Context, input CreateOperatorInput) (Operator, error)
	GetOperator(ctx context.Context, id int64) (Operator, error)
	ListOperators(ctx context.Context, filter OperatorFilter) ([]Operator, error)
	SetOperatorStatus(ctx context.Context, id int64, status OperatorStatus) (Operator, error)
	AssignUnit(ctx context.Context, operatorID int64, unitID *int64) (Operator, error)
	ListOperatorsWithExpiringLicenses(ctx context.Context, day time.Time) ([]Operator, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates fleet operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateUnit registers a new unit; it starts available.
func (s *Service) CreateUnit(ctx context.Context, input CreateUnitInput) (Unit, error) {
	unit, err := s.repo.CreateUnit(ctx, input)
	if err != nil {
		return Unit{}, err
	}
	s.recordAudit(ctx, input.ActorID, "fleet.unit.create", "unit", unit.ID, fmt.Sprintf("unidad %s registrada", unit.EconomicNumber))
	return unit, nil
}

// UpdateUnit applies partial updates to a unit.
func (s *Service) UpdateUnit(ctx context.Context, id int64, input UpdateUnitInput) (Unit, error) {
	unit, err := s.repo.UpdateUnit(ctx, id, input)
	if err != nil {
		return Unit{}, err
	}
	s.recordAudit(ctx, input.ActorID, "fleet.unit.update", "unit", unit.ID, fmt.Sprintf("unidad %s actualizada", unit.EconomicNumber))
	return unit, nil
}

// GetUnit fetches a unit by id.
func (s *Service) GetUnit(ctx context.Context, id int64) (Unit, error) {
	return s.repo.GetUnit(ctx, id)
}

// ListUnits lists units matching the filter.
func (s *Service) ListUnits(ctx context.Context, filter UnitFilter) ([]Unit, error) {
	return s.repo.ListUnits(ctx, filter)
}

// AdvanceOdometer is the single write path for unit odometers. Readings
// below the stored value leave it untouched and return the stored value;
// every reading lands in the odometer log either way.
func (s *Service) AdvanceOdometer(ctx context.Context, unitID int64, reading float64, source string) (float64, error) {
	if reading < 0 {
		return 0, ErrOdometerBackwards
	}
	if source == "" {
		source = OdometerSourceManual
	}
	return s.repo.AdvanceOdometer(ctx, unitID, reading, source)
}

// OdometerLog returns the newest readings reported for a unit.
func (s *Service) OdometerLog(ctx context.Context, unitID int64, limit int) ([]OdometerEntry, error) {
	if _, err := s.repo.GetUnit(ctx, unitID); err != nil {
		return nil, err
	}
	return s.repo.ListOdometerLog(ctx, unitID, limit)
}

// ChangeUnitStatus transitions a unit between operational states.
func (s *Service) ChangeUnitStatus(ctx context.Context, unitID int64, status UnitStatus, actorID int64) (Unit, error) {
	switch status {
	case UnitStatusAvailable, UnitStatusOnTrip, UnitStatusInWorkshop, UnitStatusOutOfService:
	default:
		return Unit{}, ErrInvalidUnitStatus
	}
	current, err := s.repo.GetUnit(ctx, unitID)
	if err != nil {
		return Unit{}, err
	}
	if current.Status == status {
		return current, nil
	}
	unit, err := s.repo.SetUnitStatus(ctx, unitID, status)
	if err != nil {
		return Unit{}, err
	}
	s.recordAudit(ctx, actorID, "fleet.unit.status", "unit", unitID, fmt.Sprintf("unidad %s: %s -> %s", unit.EconomicNumber, current.Status, status))
	return unit, nil
}

// ScheduleMaintenance sets the next maintenance date for a unit.
func (s *Service) ScheduleMaintenance(ctx context.Context, unitID int64, date time.Time, actorID int64) error {
	if err := s.repo.SetNextMaintenance(ctx, unitID, date); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "fleet.unit.maintenance", "unit", unitID, "proximo mantenimiento "+date.Format("2006-01-02"))
	return nil
}

// UnitsDueForMaintenance returns active units due on or before the given day.
func (s *Service) UnitsDueForMaintenance(ctx context.Context, day time.Time) ([]Unit, error) {
	return s.repo.ListUnitsDueForMaintenance(ctx, day)
}

// CreateOperator registers a new operator; it starts active.
func (s *Service) CreateOperator(ctx context.Context, input CreateOperatorInput) (Operator, error) {
	op, err := s.repo.CreateOperator(ctx, input)
	if err != nil {
		return Operator{}, err
	}
	s.recordAudit(ctx, input.ActorID, "fleet.operator.create", "operator", op.ID, fmt.Sprintf("operador %s registrado", op.FullName))
	return op, nil
}

// GetOperator fetches an operator by id.
func (s *Service) GetOperator(ctx context.Context, id int64) (Operator, error) {
	return s.repo.GetOperator(ctx, id)
}

// ListOperators lists operators matching the filter.
func (s *Service) ListOperators(ctx context.Context, filter OperatorFilter) ([]Operator, error) {
	return s.repo.ListOperators(ctx, filter)
}

// ChangeOperatorStatus moves an operator between ACTIVO, SUSPENDIDO and BAJA.
func (s *Service) ChangeOperatorStatus(ctx context.Context, id int64, status OperatorStatus, actorID int64) (Operator, error) {
	switch status {
	case OperatorStatusActive, OperatorStatusSuspended, OperatorStatusInactive:
	default:
		return Operator{}, fmt.Errorf("fleet: unknown operator status %q", status)
	}
	op, err := s.repo.SetOperatorStatus(ctx, id, status)
	if err != nil {
		return Operator{}, err
	}
	s.recordAudit(ctx, actorID, "fleet.operator.status", "operator", id, string(status))
	return op, nil
}

// AssignUnit links an operator to a unit, or clears the link when unitID is nil.
func (s *Service) AssignUnit(ctx context.Context, operatorID int64, unitID *int64, actorID int64) (Operator, error) {
	op, err := s.repo.GetOperator(ctx, operatorID)
	if err != nil {
		return Operator{}, err
	}
	if op.Status != OperatorStatusActive {
		return Operator{}, ErrOperatorSuspended
	}
	if unitID != nil {
		unit, err := s.repo.GetUnit(ctx, *unitID)
		if err != nil {
			return Operator{}, err
		}
		if !unit.Active {
			return Operator{}, ErrUnitInactive
		}
	}
	op, err = s.repo.AssignUnit(ctx, operatorID, unitID)
	if err != nil {
		return Operator{}, err
	}
	s.recordAudit(ctx, actorID, "fleet.operator.assign", "operator", operatorID, "asignacion de unidad actualizada")
	return op, nil
}

// OperatorsWithExpiringLicenses lists active operators whose license expires
// within the given number of days.
func (s *Service) OperatorsWithExpiringLicenses(ctx context.Context, now time.Time, days int) ([]Operator, error) {
	return s.repo.ListOperatorsWithExpiringLicenses(ctx, now.AddDate(0, 0, days))
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity string, entityID int64, detail string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     map[string]any{"detail": detail},
	})
}
