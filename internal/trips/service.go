package trips

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/flotilla-erp/flotilla/internal/fleet"
	"github.com/flotilla-erp/flotilla/internal/maps"
	"github.com/flotilla-erp/flotilla/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, trip Trip) (Trip, error)
	Get(ctx context.Context, id int64) (Trip, error)
	Complete(ctx context.Context, id int64, input CompleteTripInput, metrics Metrics) (Trip, error)
	Cancel(ctx context.Context, id int64, reason string) (Trip, error)
	HasTripInProgress(ctx context.Context, unitID, operatorID int64) (bool, bool, error)
	List(ctx context.Context, filter Filter) ([]Trip, error)
	UnitStats(ctx context.Context, unitID int64) (UnitStats, error)
}

// FleetPort exposes the fleet operations trips depend on.
type FleetPort interface {
	GetUnit(ctx context.Context, id int64) (fleet.Unit, error)
	GetOperator(ctx context.Context, id int64) (fleet.Operator, error)
	AdvanceOdometer(ctx context.Context, unitID int64, reading float64, source string) (float64, error)
	ChangeUnitStatus(ctx context.Context, unitID int64, status fleet.UnitStatus, actorID int64) (fleet.Unit, error)
}

// DistancePort resolves route distances by postal code pair.
type DistancePort interface {
	Configured() bool
	DistanceByPostalCode(ctx context.Context, originCP, destCP string) (maps.Distance, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the trip ledger.
type Service struct {
	repo     RepositoryPort
	fleet    FleetPort
	distance DistancePort
	audit    AuditPort
	logger   *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, fleetPort FleetPort, distance DistancePort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, fleet: fleetPort, distance: distance, audit: audit, logger: logger}
}

// Start opens a trip. The unit must be available, the operator active,
// and neither may already have a trip in progress.
func (s *Service) Start(ctx context.Context, input StartTripInput) (Trip, error) {
	unit, err := s.fleet.GetUnit(ctx, input.UnitID)
	if err != nil {
		return Trip{}, err
	}
	if !unit.Active || unit.Status != fleet.UnitStatusAvailable {
		return Trip{}, ErrUnitBusy
	}
	operator, err := s.fleet.GetOperator(ctx, input.OperatorID)
	if err != nil {
		return Trip{}, err
	}
	if operator.Status != fleet.OperatorStatusActive {
		return Trip{}, fleet.ErrOperatorSuspended
	}
	unitBusy, operatorBusy, err := s.repo.HasTripInProgress(ctx, input.UnitID, input.OperatorID)
	if err != nil {
		return Trip{}, err
	}
	if unitBusy {
		return Trip{}, ErrUnitBusy
	}
	if operatorBusy {
		return Trip{}, ErrOperatorBusy
	}

	trip := Trip{
		UnitID:        input.UnitID,
		OperatorID:    input.OperatorID,
		Origin:        input.Origin,
		OriginCP:      input.OriginCP,
		Destination:   input.Destination,
		DestinationCP: input.DestinationCP,
		Status:        StatusInProgress,
		DepartedAt:    input.DepartedAt,
		OdometerOut:   input.OdometerOut,
		DieselLitres:  input.DieselLitres,
		Notes:         input.Notes,
	}

	// The route lookup is advisory; a failed lookup never blocks departure.
	if s.distance != nil && s.distance.Configured() && input.OriginCP != "" && input.DestinationCP != "" {
		if dist, err := s.distance.DistanceByPostalCode(ctx, input.OriginCP, input.DestinationCP); err == nil {
			trip.RouteKM = &dist.KM
			trip.RouteMinutes = &dist.DurationMin
		} else {
			s.logger.Warn("route lookup failed", slog.String("origin_cp", input.OriginCP), slog.String("dest_cp", input.DestinationCP), slog.Any("error", err))
		}
	}

	created, err := s.repo.Insert(ctx, trip)
	if err != nil {
		return Trip{}, err
	}
	if _, err := s.fleet.AdvanceOdometer(ctx, input.UnitID, input.OdometerOut, "trip"); err != nil {
		return Trip{}, err
	}
	if _, err := s.fleet.ChangeUnitStatus(ctx, input.UnitID, fleet.UnitStatusOnTrip, input.ActorID); err != nil {
		return Trip{}, err
	}
	s.recordAudit(ctx, input.ActorID, "trips.start", created.ID, "viaje iniciado "+created.Origin+" -> "+created.Destination)
	return created, nil
}

// Complete closes a trip, derives its metrics and releases the unit.
func (s *Service) Complete(ctx context.Context, id int64, input CompleteTripInput) (Trip, error) {
	trip, err := s.repo.Get(ctx, id)
	if err != nil {
		return Trip{}, err
	}
	if trip.Status != StatusInProgress {
		return Trip{}, ErrTripNotInProgress
	}
	if !input.ArrivedAt.After(trip.DepartedAt) {
		return Trip{}, ErrArrivalBeforeOut
	}
	if input.OdometerIn < trip.OdometerOut {
		return Trip{}, ErrOdometerRegressed
	}
	litres := input.DieselLitres
	if litres <= 0 {
		litres = trip.DieselLitres
	}
	metrics := ComputeMetrics(trip.DepartedAt, input.ArrivedAt, trip.OdometerOut, input.OdometerIn, litres)

	completed, err := s.repo.Complete(ctx, id, input, metrics)
	if err != nil {
		return Trip{}, err
	}
	if _, err := s.fleet.AdvanceOdometer(ctx, trip.UnitID, input.OdometerIn, "trip"); err != nil {
		return Trip{}, err
	}
	if _, err := s.fleet.ChangeUnitStatus(ctx, trip.UnitID, fleet.UnitStatusAvailable, input.ActorID); err != nil {
		return Trip{}, err
	}
	if metrics.LowEfficiency {
		s.logger.Warn("low fuel economy on trip",
			slog.Int64("trip_id", id),
			slog.Int64("unit_id", trip.UnitID),
			slog.Float64("km_per_litre", metrics.FuelEconomy))
	}
	s.recordAudit(ctx, input.ActorID, "trips.complete", id, "viaje completado")
	return completed, nil
}

// Cancel aborts an in-progress trip and releases the unit.
func (s *Service) Cancel(ctx context.Context, id int64, reason string, actorID int64) (Trip, error) {
	trip, err := s.repo.Get(ctx, id)
	if err != nil {
		return Trip{}, err
	}
	if trip.Status != StatusInProgress {
		return Trip{}, ErrTripNotInProgress
	}
	cancelled, err := s.repo.Cancel(ctx, id, reason)
	if err != nil {
		return Trip{}, err
	}
	if _, err := s.fleet.ChangeUnitStatus(ctx, trip.UnitID, fleet.UnitStatusAvailable, actorID); err != nil {
		return Trip{}, err
	}
	s.recordAudit(ctx, actorID, "trips.cancel", id, "viaje cancelado: "+reason)
	return cancelled, nil
}

// Get fetches a trip by id.
func (s *Service) Get(ctx context.Context, id int64) (Trip, error) {
	return s.repo.Get(ctx, id)
}

// UnitPerformance reports the unit's average real fuel economy over its
// completed trips against the expected figure on the unit record.
func (s *Service) UnitPerformance(ctx context.Context, unitID int64) (UnitStats, error) {
	unit, err := s.fleet.GetUnit(ctx, unitID)
	if err != nil {
		return UnitStats{}, err
	}
	stats, err := s.repo.UnitStats(ctx, unitID)
	if err != nil {
		return UnitStats{}, err
	}
	stats.ExpectedKMPerL = unit.ExpectedKMPerL
	if unit.ExpectedKMPerL > 0 && stats.AvgFuelEconomy > 0 {
		stats.EfficiencyRatio = stats.AvgFuelEconomy / unit.ExpectedKMPerL
	}
	return stats, nil
}

// List returns trips matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]Trip, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, tripID int64, detail string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "trip",
		EntityID: strconv.FormatInt(tripID, 10),
		Meta:     map[string]any{"detail": detail},
	})
}
