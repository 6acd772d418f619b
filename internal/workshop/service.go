package workshop

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/flotilla-erp/flotilla/internal/fleet"
	"github.com/flotilla-erp/flotilla/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	InsertOrder(ctx context.Context, order WorkOrder) (WorkOrder, error)
	GetOrder(ctx context.Context, id int64) (WorkOrder, error)
	GetOrderByFolio(ctx context.Context, folio string) (WorkOrder, error)
	ListOrders(ctx context.Context, filter Filter) ([]WorkOrder, error)
	InsertPart(ctx context.Context, part RequiredPart) (RequiredPart, error)
	GetPart(ctx context.Context, id int64) (RequiredPart, error)
	ListParts(ctx context.Context, orderID int64) ([]RequiredPart, error)
	FindPartsByRequisitionItems(ctx context.Context, itemIDs []int64) ([]RequiredPart, error)
	ListMaintenanceTypes(ctx context.Context) ([]MaintenanceType, error)
	GetMaintenanceType(ctx context.Context, id int64) (MaintenanceType, error)
	ListHistory(ctx context.Context, unitID int64, limit int) ([]HistoryEntry, error)
	ListStatusLogs(ctx context.Context, orderID int64) ([]StatusLog, error)
	MonthlyReport(ctx context.Context, from, to time.Time) (MonthlyReport, error)
	ListOpenOrders(ctx context.Context) ([]WorkOrder, error)
	TopCostlyUnits(ctx context.Context, limit int) ([]UnitCost, error)
	MaxFolioForDay(ctx context.Context, dayPrefix string) (string, error)
}

// FolioPort issues day-scoped folios.
type FolioPort interface {
	Next(ctx context.Context, prefix string) (string, error)
}

// FleetPort exposes the fleet operations the workshop depends on.
type FleetPort interface {
	GetUnit(ctx context.Context, id int64) (fleet.Unit, error)
	AdvanceOdometer(ctx context.Context, unitID int64, reading float64, source string) (float64, error)
	ChangeUnitStatus(ctx context.Context, unitID int64, status fleet.UnitStatus, actorID int64) (fleet.Unit, error)
	ScheduleMaintenance(ctx context.Context, unitID int64, date time.Time, actorID int64) error
}

// RequisitionLine is one part sent to procurement.
type RequisitionLine struct {
	PartID            int64
	ProductID         int64
	Quantity          float64
	EstimatedUnitCost float64
	UsageNotes        string
}

// RequisitionRef links generated requisition items back to parts.
type RequisitionRef struct {
	RequisitionID int64
	Folio         string
	Items         map[int64]int64 // part id -> requisition item id
}

// ProcurementPort creates purchase requisitions from workshop parts.
type ProcurementPort interface {
	CreateRequisitionFromWorkOrder(ctx context.Context, workOrderID int64, workOrderFolio string, lines []RequisitionLine, actorID int64) (RequisitionRef, error)
}

// ReceivedItem is one receipt line pushed back from procurement,
// keyed by the requisition item it fulfilled.
type ReceivedItem struct {
	RequisitionItemID int64
	UnitCost          *float64
}

// NotifierPort sends operational notifications, typically by mail.
type NotifierPort interface {
	Notify(ctx context.Context, subject, body string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates work orders.
type Service struct {
	repo        RepositoryPort
	folios      FolioPort
	fleet       FleetPort
	procurement ProcurementPort
	notifier    NotifierPort
	audit       AuditPort
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service. Procurement and notifier may be nil.
func NewService(repo RepositoryPort, folios FolioPort, fleetPort FleetPort, procurement ProcurementPort, notifier NotifierPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		folios:      folios,
		fleet:       fleetPort,
		procurement: procurement,
		notifier:    notifier,
		audit:       audit,
		logger:      logger,
		now:         time.Now,
	}
}

// SetProcurement wires the procurement port after construction. The
// workshop and procurement services reference each other, so one side
// is attached during wiring.
func (s *Service) SetProcurement(port ProcurementPort) {
	s.procurement = port
}

// Create opens a new work order: issues the folio, moves the unit into
// the workshop and pushes its odometer to the intake reading.
func (s *Service) Create(ctx context.Context, input CreateOrderInput) (WorkOrder, error) {
	unit, err := s.fleet.GetUnit(ctx, input.UnitID)
	if err != nil {
		return WorkOrder{}, err
	}
	if !unit.Active {
		return WorkOrder{}, fleet.ErrUnitInactive
	}
	if input.MaintenanceTypeID != nil {
		if _, err := s.repo.GetMaintenanceType(ctx, *input.MaintenanceTypeID); err != nil {
			return WorkOrder{}, err
		}
	}
	priority := input.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	folio, err := s.nextFolio(ctx)
	if err != nil {
		return WorkOrder{}, err
	}
	order := WorkOrder{
		Folio:             folio,
		UnitID:            input.UnitID,
		ReportedByID:      input.ReportedByID,
		MaintenanceTypeID: input.MaintenanceTypeID,
		Problem:           input.Problem,
		Symptoms:          input.Symptoms,
		Priority:          priority,
		Status:            StatusPending,
		OdometerIn:        input.OdometerIn,
		LaborCostEstimate: input.LaborCostEstimate,
		ScheduledFor:      input.ScheduledFor,
	}
	created, err := s.repo.InsertOrder(ctx, order)
	if err != nil {
		return WorkOrder{}, err
	}

	if _, err := s.fleet.AdvanceOdometer(ctx, input.UnitID, input.OdometerIn, "work_order"); err != nil {
		return WorkOrder{}, err
	}
	if _, err := s.fleet.ChangeUnitStatus(ctx, input.UnitID, fleet.UnitStatusInWorkshop, input.ActorID); err != nil {
		return WorkOrder{}, err
	}

	s.notify(ctx, "Nueva orden de trabajo: "+created.Folio,
		fmt.Sprintf("Unidad %s, prioridad %s: %s", unit.EconomicNumber, created.Priority, created.Problem))
	s.recordAudit(ctx, input.ActorID, "workshop.order.create", created.ID, created.Folio)
	return created, nil
}

// nextFolio issues the next OT folio, falling back to a max+1 read
// when the counter is unavailable.
func (s *Service) nextFolio(ctx context.Context) (string, error) {
	folio, err := s.folios.Next(ctx, FolioPrefix)
	if err == nil {
		return folio, nil
	}
	s.logger.Warn("folio counter unavailable, using max+1 fallback", slog.Any("error", err))
	day := s.now().Format("20060102")
	maxExisting, repoErr := s.repo.MaxFolioForDay(ctx, FolioPrefix+"-"+day)
	if repoErr != nil {
		return "", repoErr
	}
	return shared.NextFolioAfter(FolioPrefix, day, maxExisting), nil
}

// StartDiagnosis moves a pending order into diagnosis.
func (s *Service) StartDiagnosis(ctx context.Context, orderID, actorID int64) (WorkOrder, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if IsTerminal(order.Status) {
			return ErrOrderTerminal
		}
		if !CanTransition(order.Status, StatusInDiagnosis) {
			return ErrInvalidTransition
		}
		if err := tx.SetStatus(ctx, orderID, StatusInDiagnosis); err != nil {
			return err
		}
		if err := tx.SetStarted(ctx, orderID, s.now()); err != nil {
			return err
		}
		return tx.InsertStatusLog(ctx, StatusLog{WorkOrderID: orderID, FromStatus: order.Status, ToStatus: StatusInDiagnosis, ActorID: actorID, At: s.now()})
	})
	if err != nil {
		return WorkOrder{}, err
	}
	s.recordAudit(ctx, actorID, "workshop.order.diagnose", orderID, "diagnostico iniciado")
	return s.repo.GetOrder(ctx, orderID)
}

// CompleteDiagnosis records the diagnosis. With outstanding parts the
// order waits for them, otherwise repair starts immediately.
func (s *Service) CompleteDiagnosis(ctx context.Context, orderID int64, diagnosis string, actorID int64) (WorkOrder, error) {
	if strings.TrimSpace(diagnosis) == "" {
		return WorkOrder{}, fmt.Errorf("workshop: diagnosis is required")
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != StatusInDiagnosis {
			if IsTerminal(order.Status) {
				return ErrOrderTerminal
			}
			return ErrInvalidTransition
		}
		if err := tx.SetDiagnosis(ctx, orderID, diagnosis, s.now()); err != nil {
			return err
		}
		next := StatusInRepair
		if order.HasOutstandingParts() {
			next = StatusAwaitingParts
		}
		if err := tx.SetStatus(ctx, orderID, next); err != nil {
			return err
		}
		return tx.InsertStatusLog(ctx, StatusLog{WorkOrderID: orderID, FromStatus: order.Status, ToStatus: next, Comment: "diagnostico registrado", ActorID: actorID, At: s.now()})
	})
	if err != nil {
		return WorkOrder{}, err
	}
	return s.repo.GetOrder(ctx, orderID)
}

// AddPart registers a required part on a non-terminal order.
func (s *Service) AddPart(ctx context.Context, orderID int64, input AddPartInput) (RequiredPart, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return RequiredPart{}, err
	}
	if IsTerminal(order.Status) {
		return RequiredPart{}, ErrOrderTerminal
	}
	part := RequiredPart{
		WorkOrderID:       orderID,
		ProductID:         input.ProductID,
		Quantity:          input.Quantity,
		UsageNotes:        input.UsageNotes,
		Status:            PartPending,
		EstimatedUnitCost: input.EstimatedUnitCost,
	}
	created, err := s.repo.InsertPart(ctx, part)
	if err != nil {
		return RequiredPart{}, err
	}
	s.recordAudit(ctx, input.ActorID, "workshop.part.add", created.ID, fmt.Sprintf("pieza %d x%.2f en %s", input.ProductID, input.Quantity, order.Folio))
	return created, nil
}

// GenerateRequisition sends every pending part to procurement, links
// the resulting requisition items back and parks the order waiting
// for parts.
func (s *Service) GenerateRequisition(ctx context.Context, orderID, actorID int64) (RequisitionRef, error) {
	if s.procurement == nil {
		return RequisitionRef{}, fmt.Errorf("workshop: procurement not wired")
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return RequisitionRef{}, err
	}
	if IsTerminal(order.Status) {
		return RequisitionRef{}, ErrOrderTerminal
	}
	lines := []RequisitionLine{}
	for _, part := range order.Parts {
		if part.Status != PartPending {
			continue
		}
		lines = append(lines, RequisitionLine{
			PartID:            part.ID,
			ProductID:         part.ProductID,
			Quantity:          part.Quantity,
			EstimatedUnitCost: part.EstimatedUnitCost,
			UsageNotes:        part.UsageNotes,
		})
	}
	if len(lines) == 0 {
		return RequisitionRef{}, ErrNoPendingParts
	}

	ref, err := s.procurement.CreateRequisitionFromWorkOrder(ctx, order.ID, order.Folio, lines, actorID)
	if err != nil {
		return RequisitionRef{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		now := s.now()
		for partID, itemID := range ref.Items {
			if err := tx.MarkPartRequested(ctx, partID, itemID, now); err != nil {
				return err
			}
		}
		current, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status != StatusAwaitingParts && CanTransition(current.Status, StatusAwaitingParts) {
			if err := tx.SetStatus(ctx, orderID, StatusAwaitingParts); err != nil {
				return err
			}
			return tx.InsertStatusLog(ctx, StatusLog{WorkOrderID: orderID, FromStatus: current.Status, ToStatus: StatusAwaitingParts, Comment: "requisicion " + ref.Folio, ActorID: actorID, At: now})
		}
		return nil
	})
	if err != nil {
		return RequisitionRef{}, err
	}
	s.recordAudit(ctx, actorID, "workshop.order.requisition", orderID, ref.Folio)
	return ref, nil
}

// MarkPartsInPurchase advances linked parts when a purchase order is
// issued for their requisition items.
func (s *Service) MarkPartsInPurchase(ctx context.Context, requisitionItemIDs []int64) error {
	if len(requisitionItemIDs) == 0 {
		return nil
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, itemID := range requisitionItemIDs {
			if err := tx.MarkPartBuying(ctx, itemID); err != nil {
				return err
			}
		}
		return nil
	})
}

// PartsReceivedByRequisitionItems marks parts as received with their
// real cost and resumes repair once no part is outstanding. Called by
// procurement when a warehouse receipt posts.
func (s *Service) PartsReceivedByRequisitionItems(ctx context.Context, received []ReceivedItem, actorID int64) error {
	if len(received) == 0 {
		return nil
	}
	itemIDs := make([]int64, 0, len(received))
	costs := make(map[int64]*float64, len(received))
	for _, item := range received {
		itemIDs = append(itemIDs, item.RequisitionItemID)
		costs[item.RequisitionItemID] = item.UnitCost
	}
	parts, err := s.repo.FindPartsByRequisitionItems(ctx, itemIDs)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return nil
	}

	orderIDs := map[int64]bool{}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		now := s.now()
		for _, part := range parts {
			var cost *float64
			if part.RequisitionItemID != nil {
				cost = costs[*part.RequisitionItemID]
			}
			if err := tx.MarkPartReceived(ctx, part.ID, cost, now); err != nil {
				return err
			}
			orderIDs[part.WorkOrderID] = true
		}
		for orderID := range orderIDs {
			order, err := tx.GetOrderForUpdate(ctx, orderID)
			if err != nil {
				return err
			}
			if order.Status == StatusAwaitingParts && !order.HasOutstandingParts() {
				if err := tx.SetStatus(ctx, orderID, StatusInRepair); err != nil {
					return err
				}
				if err := tx.InsertStatusLog(ctx, StatusLog{WorkOrderID: orderID, FromStatus: StatusAwaitingParts, ToStatus: StatusInRepair, Comment: "todas las piezas recibidas", ActorID: actorID, At: now}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for orderID := range orderIDs {
		s.recordAudit(ctx, actorID, "workshop.parts.received", orderID, "piezas recibidas de almacen")
	}
	return nil
}

// InstallPart marks a received part as installed.
func (s *Service) InstallPart(ctx context.Context, orderID, partID, actorID int64) error {
	part, err := s.repo.GetPart(ctx, partID)
	if err != nil {
		return err
	}
	if part.WorkOrderID != orderID {
		return ErrPartNotFound
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.MarkPartInstalled(ctx, partID, s.now())
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "workshop.part.install", partID, "pieza instalada")
	return nil
}

// ChangeStatus applies an explicit staff transition. Completion has
// side effects and must go through Complete.
func (s *Service) ChangeStatus(ctx context.Context, orderID int64, to Status, comment string, actorID int64) (WorkOrder, error) {
	if to == StatusCompleted {
		return WorkOrder{}, ErrInvalidTransition
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if IsTerminal(order.Status) {
			return ErrOrderTerminal
		}
		if !CanTransition(order.Status, to) {
			return ErrInvalidTransition
		}
		if err := tx.SetStatus(ctx, orderID, to); err != nil {
			return err
		}
		return tx.InsertStatusLog(ctx, StatusLog{WorkOrderID: orderID, FromStatus: order.Status, ToStatus: to, Comment: comment, ActorID: actorID, At: s.now()})
	})
	if err != nil {
		return WorkOrder{}, err
	}
	return s.repo.GetOrder(ctx, orderID)
}

// Complete closes the order exactly once: it writes the maintenance
// history row, pushes the unit odometer to the exit reading, schedules
// the next service and releases the unit. A completed order never
// re-fires these side effects.
func (s *Service) Complete(ctx context.Context, orderID int64, input CompleteOrderInput) (WorkOrder, error) {
	var completed WorkOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if IsTerminal(order.Status) {
			return ErrOrderTerminal
		}
		if order.Status != StatusInRepair && order.Status != StatusInTesting {
			return ErrInvalidTransition
		}
		if input.OdometerOut != nil && *input.OdometerOut < order.OdometerIn {
			return ErrOdometerOutTooLow
		}
		if input.OdometerOut == nil {
			unit, err := s.fleet.GetUnit(ctx, order.UnitID)
			if err != nil {
				return err
			}
			reading := unit.OdometerKM
			if reading < order.OdometerIn {
				reading = order.OdometerIn
			}
			input.OdometerOut = &reading
		}

		finishedAt := s.now()
		if err := tx.SetCompletion(ctx, orderID, input, finishedAt); err != nil {
			return err
		}

		order.WorkPerformed = input.WorkPerformed
		order.LaborCostActual = input.LaborCostActual
		odometer := order.OdometerIn
		if input.OdometerOut != nil {
			odometer = *input.OdometerOut
		}
		entry := HistoryEntry{
			UnitID:      order.UnitID,
			WorkOrderID: order.ID,
			Folio:       order.Folio,
			ServicedAt:  finishedAt,
			OdometerKM:  odometer,
			TotalCost:   order.TotalCostActual(),
			Description: input.WorkPerformed,
		}
		if err := tx.InsertHistory(ctx, entry); err != nil {
			return err
		}
		if err := tx.InsertStatusLog(ctx, StatusLog{WorkOrderID: orderID, FromStatus: order.Status, ToStatus: StatusCompleted, Comment: "orden completada", ActorID: input.ActorID, At: finishedAt}); err != nil {
			return err
		}
		completed = order
		completed.Status = StatusCompleted
		completed.FinishedAt = &finishedAt
		return nil
	})
	if err != nil {
		return WorkOrder{}, err
	}

	if input.OdometerOut != nil {
		if _, err := s.fleet.AdvanceOdometer(ctx, completed.UnitID, *input.OdometerOut, "work_order"); err != nil {
			return WorkOrder{}, err
		}
	}
	if completed.MaintenanceTypeID != nil {
		if mt, err := s.repo.GetMaintenanceType(ctx, *completed.MaintenanceTypeID); err == nil && mt.SuggestedDays > 0 {
			next := s.now().AddDate(0, 0, mt.SuggestedDays)
			if err := s.fleet.ScheduleMaintenance(ctx, completed.UnitID, next, input.ActorID); err != nil {
				s.logger.Warn("schedule next maintenance", slog.Int64("unit_id", completed.UnitID), slog.Any("error", err))
			}
		}
	}
	if _, err := s.fleet.ChangeUnitStatus(ctx, completed.UnitID, fleet.UnitStatusAvailable, input.ActorID); err != nil {
		return WorkOrder{}, err
	}

	s.notify(ctx, "Orden de trabajo completada: "+completed.Folio,
		fmt.Sprintf("Trabajo realizado: %s. Costo total: $%.2f", input.WorkPerformed, completed.TotalCostActual()))
	s.recordAudit(ctx, input.ActorID, "workshop.order.complete", orderID, completed.Folio)
	return s.repo.GetOrder(ctx, orderID)
}

// Cancel aborts a non-terminal order and releases the unit.
func (s *Service) Cancel(ctx context.Context, orderID int64, reason string, actorID int64) (WorkOrder, error) {
	var unitID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if IsTerminal(order.Status) {
			return ErrOrderTerminal
		}
		unitID = order.UnitID
		if err := tx.SetStatus(ctx, orderID, StatusCancelled); err != nil {
			return err
		}
		return tx.InsertStatusLog(ctx, StatusLog{WorkOrderID: orderID, FromStatus: order.Status, ToStatus: StatusCancelled, Comment: reason, ActorID: actorID, At: s.now()})
	})
	if err != nil {
		return WorkOrder{}, err
	}
	if _, err := s.fleet.ChangeUnitStatus(ctx, unitID, fleet.UnitStatusAvailable, actorID); err != nil {
		return WorkOrder{}, err
	}
	s.recordAudit(ctx, actorID, "workshop.order.cancel", orderID, reason)
	return s.repo.GetOrder(ctx, orderID)
}

// Get fetches a work order with its parts.
func (s *Service) Get(ctx context.Context, id int64) (WorkOrder, error) {
	return s.repo.GetOrder(ctx, id)
}

// GetByFolio fetches a work order by folio.
func (s *Service) GetByFolio(ctx context.Context, folio string) (WorkOrder, error) {
	return s.repo.GetOrderByFolio(ctx, folio)
}

// List returns work orders matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]WorkOrder, error) {
	return s.repo.ListOrders(ctx, filter)
}

// MonthlyReport summarizes order activity for the given month.
func (s *Service) MonthlyReport(ctx context.Context, year int, month time.Month) (MonthlyReport, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return s.repo.MonthlyReport(ctx, from, from.AddDate(0, 1, 0))
}

// UnitsInWorkshop returns orders that have not reached a terminal state.
func (s *Service) UnitsInWorkshop(ctx context.Context) ([]WorkOrder, error) {
	return s.repo.ListOpenOrders(ctx)
}

// TopCostlyUnits ranks units by accumulated maintenance spend.
func (s *Service) TopCostlyUnits(ctx context.Context, limit int) ([]UnitCost, error) {
	return s.repo.TopCostlyUnits(ctx, limit)
}

// History returns maintenance history, optionally scoped to a unit.
func (s *Service) History(ctx context.Context, unitID int64, limit int) ([]HistoryEntry, error) {
	return s.repo.ListHistory(ctx, unitID, limit)
}

// StatusLogs returns the status trail for an order.
func (s *Service) StatusLogs(ctx context.Context, orderID int64) ([]StatusLog, error) {
	return s.repo.ListStatusLogs(ctx, orderID)
}

// MaintenanceTypes returns the service-type catalog.
func (s *Service) MaintenanceTypes(ctx context.Context) ([]MaintenanceType, error) {
	return s.repo.ListMaintenanceTypes(ctx)
}

func (s *Service) notify(ctx context.Context, subject, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, subject, body); err != nil {
		s.logger.Warn("workshop notification failed", slog.String("subject", subject), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, detail string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "work_order",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     map[string]any{"detail": detail},
	})
}
