package fuel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/flotilla-erp/flotilla/internal/fleet"
	"github.com/flotilla-erp/flotilla/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	InsertCompleted(ctx context.Context, load Load) (Load, error)
	Get(ctx context.Context, id int64) (Load, error)
	List(ctx context.Context, filter Filter) ([]Load, error)
	InsertAlert(ctx context.Context, alert Alert) (Alert, error)
	ListAlerts(ctx context.Context, onlyOpen bool, limit int) ([]Alert, error)
	ResolveAlert(ctx context.Context, id, resolvedBy int64, at time.Time) (Alert, error)
}

// DraftPort abstracts the wizard draft store.
type DraftPort interface {
	Create(ctx context.Context, draft Draft) (Draft, error)
	Get(ctx context.Context, id string) (Draft, error)
	Update(ctx context.Context, draft Draft) error
	Delete(ctx context.Context, id string) error
}

// FleetPort exposes the fleet operations fuel depends on.
type FleetPort interface {
	GetUnit(ctx context.Context, id int64) (fleet.Unit, error)
	AdvanceOdometer(ctx context.Context, unitID int64, reading float64, source string) (float64, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards one-shot operations against replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service runs the fuel-load wizard.
type Service struct {
	repo   RepositoryPort
	drafts DraftPort
	fleet  FleetPort
	audit  AuditPort
	idemp  IdempotencyPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, drafts DraftPort, fleetPort FleetPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, drafts: drafts, fleet: fleetPort, audit: audit, logger: logger, now: time.Now}
}

// SetIdempotency attaches the replay guard used by Finalize. Without it a
// draft is still one-shot in the happy path, because the draft is deleted,
// but a crash between the insert and the delete could double-write a load.
func (s *Service) SetIdempotency(store IdempotencyPort) {
	s.idemp = store
}

// StartWizard opens a new draft at step 1 with the unit identification.
func (s *Service) StartWizard(ctx context.Context, input StepUnit) (Draft, error) {
	unit, err := s.fleet.GetUnit(ctx, input.UnitID)
	if err != nil {
		return Draft{}, err
	}
	if !unit.Active {
		return Draft{}, fleet.ErrUnitInactive
	}
	draft := Draft{
		UnitID:       input.UnitID,
		DispatcherID: input.DispatcherID,
		Step:         1,
		StartedAt:    s.now(),
		UnitPhoto:    input.UnitPhoto,
	}
	return s.drafts.Create(ctx, draft)
}

// GetDraft returns the wizard state so a capture can resume.
func (s *Service) GetDraft(ctx context.Context, id string) (Draft, error) {
	return s.drafts.Get(ctx, id)
}

// SubmitDashboard records step 2: odometer and tank level.
func (s *Service) SubmitDashboard(ctx context.Context, draftID string, input StepDashboard) (Draft, error) {
	return s.advance(ctx, draftID, 2, func(d *Draft) {
		d.OdometerKM = input.OdometerKM
		d.InitialLevel = input.InitialLevel
		d.DashboardPhoto = input.DashboardPhoto
	})
}

// SubmitOldPadlock records step 3: the padlock found on the tank.
func (s *Service) SubmitOldPadlock(ctx context.Context, draftID string, input StepOldPadlock) (Draft, error) {
	return s.advance(ctx, draftID, 3, func(d *Draft) {
		d.PadlockBefore = input.PadlockBefore
		d.PadlockNotes = input.PadlockNotes
		d.PadlockOldPhoto = input.PadlockOldPhoto
	})
}

// SubmitLitres records step 4: litres dispensed.
func (s *Service) SubmitLitres(ctx context.Context, draftID string, input StepLitres) (Draft, error) {
	return s.advance(ctx, draftID, 4, func(d *Draft) {
		d.Litres = input.Litres
	})
}

// SubmitNewPadlock records step 5: photos of the new padlock per tank.
func (s *Service) SubmitNewPadlock(ctx context.Context, draftID string, input StepNewPadlock) (Draft, error) {
	return s.advance(ctx, draftID, 5, func(d *Draft) {
		d.NewPadlockPhotos = input.Photos
	})
}

// SubmitTicket records step 6: ticket photo and free notes.
func (s *Service) SubmitTicket(ctx context.Context, draftID string, input StepTicket) (Draft, error) {
	return s.advance(ctx, draftID, 6, func(d *Draft) {
		d.TicketPhoto = input.TicketPhoto
		d.Notes = input.Notes
	})
}

// advance applies one wizard step. A step may be re-submitted, but
// never skipped ahead.
func (s *Service) advance(ctx context.Context, draftID string, step int, apply func(*Draft)) (Draft, error) {
	draft, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return Draft{}, err
	}
	if draft.Step < step-1 {
		return Draft{}, ErrWrongStep
	}
	apply(&draft)
	if draft.Step < step {
		draft.Step = step
	}
	if err := s.drafts.Update(ctx, draft); err != nil {
		return Draft{}, err
	}
	return draft, nil
}

// Finalize turns a fully captured draft into a completed load, pushes
// the unit odometer forward and raises the automatic alerts.
func (s *Service) Finalize(ctx context.Context, draftID string, actorID int64) (Load, []Alert, error) {
	draft, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return Load{}, nil, err
	}
	if draft.Step < TotalSteps {
		return Load{}, nil, ErrDraftIncomplete
	}
	unit, err := s.fleet.GetUnit(ctx, draft.UnitID)
	if err != nil {
		return Load{}, nil, err
	}

	finishedAt := s.now()
	load := Load{
		UnitID:           draft.UnitID,
		DispatcherID:     draft.DispatcherID,
		Status:           LoadStatusCompleted,
		Litres:           draft.Litres,
		OdometerKM:       draft.OdometerKM,
		InitialLevel:     draft.InitialLevel,
		PadlockBefore:    draft.PadlockBefore,
		PadlockNotes:     draft.PadlockNotes,
		StartedAt:        draft.StartedAt,
		FinishedAt:       &finishedAt,
		LoadMinutes:      int(finishedAt.Sub(draft.StartedAt).Minutes()),
		UnitPhoto:        draft.UnitPhoto,
		DashboardPhoto:   draft.DashboardPhoto,
		PadlockOldPhoto:  draft.PadlockOldPhoto,
		NewPadlockPhotos: draft.NewPadlockPhotos,
		TicketPhoto:      draft.TicketPhoto,
		Notes:            draft.Notes,
	}
	idempKey := "fuel_load:" + draftID
	if s.idemp != nil {
		if err := s.idemp.CheckAndInsert(ctx, idempKey, "fuel"); err != nil {
			return Load{}, nil, err
		}
	}
	created, err := s.repo.InsertCompleted(ctx, load)
	if err != nil {
		if s.idemp != nil {
			_ = s.idemp.Delete(ctx, idempKey)
		}
		return Load{}, nil, err
	}
	if _, err := s.fleet.AdvanceOdometer(ctx, draft.UnitID, draft.OdometerKM, "fuel_load"); err != nil {
		return Load{}, nil, err
	}

	alerts := s.raiseAlerts(ctx, created, unit)

	if err := s.drafts.Delete(ctx, draftID); err != nil {
		s.logger.Warn("delete fuel draft", slog.String("draft_id", draftID), slog.Any("error", err))
	}
	s.recordAudit(ctx, actorID, "fuel.load.complete", created.ID,
		fmt.Sprintf("carga de %.2f L en unidad %s", created.Litres, unit.EconomicNumber))
	return created, alerts, nil
}

// Abandon discards an in-progress draft.
func (s *Service) Abandon(ctx context.Context, draftID string) error {
	if _, err := s.drafts.Get(ctx, draftID); err != nil {
		return err
	}
	return s.drafts.Delete(ctx, draftID)
}

func (s *Service) raiseAlerts(ctx context.Context, load Load, unit fleet.Unit) []Alert {
	alerts := []Alert{}
	if alertType, ok := PadlockAlertType(load.PadlockBefore); ok {
		msg := fmt.Sprintf("Unidad %s: candado registrado como %s en la carga del %s",
			unit.EconomicNumber, load.PadlockBefore, load.StartedAt.Format("02/01/2006 15:04"))
		alert, err := s.repo.InsertAlert(ctx, Alert{LoadID: load.ID, Type: alertType, Message: msg})
		if err != nil {
			s.logger.Error("raise padlock alert", slog.Int64("load_id", load.ID), slog.Any("error", err))
		} else {
			alerts = append(alerts, alert)
		}
	}
	if unit.FuelCapacityL > 0 && load.Litres > unit.FuelCapacityL {
		msg := fmt.Sprintf("Unidad %s: se cargaron %.2f L pero la capacidad del tanque es %.2f L (exceso: %.2f L)",
			unit.EconomicNumber, load.Litres, unit.FuelCapacityL, load.Litres-unit.FuelCapacityL)
		alert, err := s.repo.InsertAlert(ctx, Alert{LoadID: load.ID, Type: AlertExcessFuel, Message: msg})
		if err != nil {
			s.logger.Error("raise excess alert", slog.Int64("load_id", load.ID), slog.Any("error", err))
		} else {
			alerts = append(alerts, alert)
		}
	}
	return alerts
}

// Get fetches a load by id.
func (s *Service) Get(ctx context.Context, id int64) (Load, error) {
	return s.repo.Get(ctx, id)
}

// List returns loads matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]Load, error) {
	return s.repo.List(ctx, filter)
}

// ListAlerts returns fuel alerts, optionally only open ones.
func (s *Service) ListAlerts(ctx context.Context, onlyOpen bool, limit int) ([]Alert, error) {
	return s.repo.ListAlerts(ctx, onlyOpen, limit)
}

// ResolveAlert marks an alert as handled.
func (s *Service) ResolveAlert(ctx context.Context, id, resolvedBy int64) (Alert, error) {
	alert, err := s.repo.ResolveAlert(ctx, id, resolvedBy, s.now())
	if err != nil {
		return Alert{}, err
	}
	s.recordAudit(ctx, resolvedBy, "fuel.alert.resolve", id, string(alert.Type))
	return alert, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, detail string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "fuel",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     map[string]any{"detail": detail},
	})
}
