package workshop

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flotilla-erp/flotilla/internal/fleet"
	"github.com/flotilla-erp/flotilla/internal/shared"
)

type memoryRepo struct {
	orders  map[int64]*WorkOrder
	parts   map[int64]*RequiredPart
	types   map[int64]MaintenanceType
	history []HistoryEntry
	logs    []StatusLog
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders: map[int64]*WorkOrder{},
		parts:  map[int64]*RequiredPart{},
		types: map[int64]MaintenanceType{
			1: {ID: 1, Name: "Servicio mayor", SuggestedDays: 90},
		},
		nextID: 1,
	}
}

func (m *memoryRepo) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memoryRepo) withParts(order WorkOrder) WorkOrder {
	order.Parts = nil
	for _, part := range m.parts {
		if part.WorkOrderID == order.ID {
			order.Parts = append(order.Parts, *part)
		}
	}
	return order
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: m})
}

func (m *memoryRepo) InsertOrder(ctx context.Context, order WorkOrder) (WorkOrder, error) {
	for _, existing := range m.orders {
		if existing.Folio == order.Folio {
			return WorkOrder{}, shared.ErrDuplicateFolio
		}
	}
	order.ID = m.id()
	order.CreatedAt = time.Now()
	m.orders[order.ID] = &order
	return order, nil
}

func (m *memoryRepo) GetOrder(ctx context.Context, id int64) (WorkOrder, error) {
	order, ok := m.orders[id]
	if !ok {
		return WorkOrder{}, ErrOrderNotFound
	}
	return m.withParts(*order), nil
}

func (m *memoryRepo) GetOrderByFolio(ctx context.Context, folio string) (WorkOrder, error) {
	for _, order := range m.orders {
		if order.Folio == folio {
			return m.withParts(*order), nil
		}
	}
	return WorkOrder{}, ErrOrderNotFound
}

func (m *memoryRepo) ListOrders(ctx context.Context, filter Filter) ([]WorkOrder, error) {
	out := []WorkOrder{}
	for _, order := range m.orders {
		if filter.UnitID != 0 && order.UnitID != filter.UnitID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		out = append(out, m.withParts(*order))
	}
	return out, nil
}

func (m *memoryRepo) InsertPart(ctx context.Context, part RequiredPart) (RequiredPart, error) {
	part.ID = m.id()
	part.CreatedAt = time.Now()
	m.parts[part.ID] = &part
	return part, nil
}

func (m *memoryRepo) GetPart(ctx context.Context, id int64) (RequiredPart, error) {
	part, ok := m.parts[id]
	if !ok {
		return RequiredPart{}, ErrPartNotFound
	}
	return *part, nil
}

func (m *memoryRepo) ListParts(ctx context.Context, orderID int64) ([]RequiredPart, error) {
	out := []RequiredPart{}
	for _, part := range m.parts {
		if part.WorkOrderID == orderID {
			out = append(out, *part)
		}
	}
	return out, nil
}

func (m *memoryRepo) FindPartsByRequisitionItems(ctx context.Context, itemIDs []int64) ([]RequiredPart, error) {
	out := []RequiredPart{}
	for _, part := range m.parts {
		if part.RequisitionItemID == nil {
			continue
		}
		if part.Status != PartRequested && part.Status != PartBuying {
			continue
		}
		for _, itemID := range itemIDs {
			if *part.RequisitionItemID == itemID {
				out = append(out, *part)
			}
		}
	}
	return out, nil
}

func (m *memoryRepo) ListMaintenanceTypes(ctx context.Context) ([]MaintenanceType, error) {
	out := []MaintenanceType{}
	for _, mt := range m.types {
		out = append(out, mt)
	}
	return out, nil
}

func (m *memoryRepo) GetMaintenanceType(ctx context.Context, id int64) (MaintenanceType, error) {
	mt, ok := m.types[id]
	if !ok {
		return MaintenanceType{}, ErrTypeNotFound
	}
	return mt, nil
}

func (m *memoryRepo) MonthlyReport(_ context.Context, from, to time.Time) (MonthlyReport, error) {
	report := MonthlyReport{Year: from.Year(), Month: int(from.Month())}
	for _, order := range m.orders {
		if !order.CreatedAt.Before(from) && order.CreatedAt.Before(to) {
			report.OrdersOpened++
		}
		if order.FinishedAt == nil || order.FinishedAt.Before(from) || !order.FinishedAt.Before(to) {
			continue
		}
		switch order.Status {
		case StatusCompleted:
			report.OrdersCompleted++
			report.TotalLaborCost += order.LaborCostActual
		case StatusCancelled:
			report.OrdersCancelled++
		}
	}
	for _, entry := range m.history {
		if !entry.ServicedAt.Before(from) && entry.ServicedAt.Before(to) {
			report.TotalCost += entry.TotalCost
		}
	}
	return report, nil
}

func (m *memoryRepo) ListOpenOrders(_ context.Context) ([]WorkOrder, error) {
	open := []WorkOrder{}
	for _, order := range m.orders {
		if !IsTerminal(order.Status) {
			open = append(open, m.withParts(*order))
		}
	}
	return open, nil
}

func (m *memoryRepo) TopCostlyUnits(_ context.Context, limit int) ([]UnitCost, error) {
	byUnit := map[int64]*UnitCost{}
	for _, entry := range m.history {
		c, ok := byUnit[entry.UnitID]
		if !ok {
			c = &UnitCost{UnitID: entry.UnitID}
			byUnit[entry.UnitID] = c
		}
		c.Services++
		c.TotalCost += entry.TotalCost
	}
	costs := []UnitCost{}
	for _, c := range byUnit {
		costs = append(costs, *c)
	}
	sort.Slice(costs, func(i, j int) bool { return costs[i].TotalCost > costs[j].TotalCost })
	if limit > 0 && len(costs) > limit {
		costs = costs[:limit]
	}
	return costs, nil
}

func (m *memoryRepo) ListHistory(ctx context.Context, unitID int64, limit int) ([]HistoryEntry, error) {
	out := []HistoryEntry{}
	for _, entry := range m.history {
		if unitID != 0 && entry.UnitID != unitID {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (m *memoryRepo) ListStatusLogs(ctx context.Context, orderID int64) ([]StatusLog, error) {
	out := []StatusLog{}
	for _, log := range m.logs {
		if log.WorkOrderID == orderID {
			out = append(out, log)
		}
	}
	return out, nil
}

func (m *memoryRepo) MaxFolioForDay(ctx context.Context, dayPrefix string) (string, error) {
	max := ""
	for _, order := range m.orders {
		if len(order.Folio) >= len(dayPrefix) && order.Folio[:len(dayPrefix)] == dayPrefix && order.Folio > max {
			max = order.Folio
		}
	}
	return max, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) GetOrderForUpdate(ctx context.Context, id int64) (WorkOrder, error) {
	return t.repo.GetOrder(ctx, id)
}

func (t *memoryTx) SetStatus(ctx context.Context, id int64, status Status) error {
	order, ok := t.repo.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	order.Status = status
	return nil
}

func (t *memoryTx) SetDiagnosis(ctx context.Context, id int64, diagnosis string, at time.Time) error {
	order, ok := t.repo.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	order.Diagnosis = diagnosis
	return nil
}

func (t *memoryTx) SetStarted(ctx context.Context, id int64, at time.Time) error {
	order, ok := t.repo.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if order.StartedAt == nil {
		order.StartedAt = &at
	}
	return nil
}

func (t *memoryTx) SetCompletion(ctx context.Context, id int64, input CompleteOrderInput, finishedAt time.Time) error {
	order, ok := t.repo.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	order.Status = StatusCompleted
	order.WorkPerformed = input.WorkPerformed
	order.LaborCostActual = input.LaborCostActual
	order.OdometerOut = input.OdometerOut
	order.FinishedAt = &finishedAt
	return nil
}

func (t *memoryTx) InsertHistory(ctx context.Context, entry HistoryEntry) error {
	entry.ID = t.repo.id()
	t.repo.history = append(t.repo.history, entry)
	return nil
}

func (t *memoryTx) MarkPartRequested(ctx context.Context, partID, requisitionItemID int64, at time.Time) error {
	part, ok := t.repo.parts[partID]
	if !ok || part.Status != PartPending {
		return ErrPartNotFound
	}
	part.Status = PartRequested
	part.RequisitionItemID = &requisitionItemID
	part.RequestedAt = &at
	return nil
}

func (t *memoryTx) MarkPartBuying(ctx context.Context, requisitionItemID int64) error {
	for _, part := range t.repo.parts {
		if part.RequisitionItemID != nil && *part.RequisitionItemID == requisitionItemID && part.Status == PartRequested {
			part.Status = PartBuying
		}
	}
	return nil
}

func (t *memoryTx) MarkPartReceived(ctx context.Context, partID int64, actualUnitCost *float64, at time.Time) error {
	part, ok := t.repo.parts[partID]
	if !ok {
		return ErrPartNotFound
	}
	if part.Status != PartRequested && part.Status != PartBuying {
		return nil
	}
	part.Status = PartReceived
	if actualUnitCost != nil {
		part.ActualUnitCost = actualUnitCost
	}
	part.ReceivedAt = &at
	return nil
}

func (t *memoryTx) MarkPartInstalled(ctx context.Context, partID int64, at time.Time) error {
	part, ok := t.repo.parts[partID]
	if !ok {
		return ErrPartNotFound
	}
	if part.Status != PartReceived {
		return ErrPartNotReceived
	}
	part.Status = PartInstalled
	part.InstalledAt = &at
	return nil
}

func (t *memoryTx) InsertStatusLog(ctx context.Context, log StatusLog) error {
	log.ID = t.repo.id()
	t.repo.logs = append(t.repo.logs, log)
	return nil
}

type fakeFleet struct {
	units       map[int64]*fleet.Unit
	maintenance map[int64]time.Time
}

func newFakeFleet() *fakeFleet {
	return &fakeFleet{
		units: map[int64]*fleet.Unit{
			1: {ID: 1, EconomicNumber: "TC-042", Status: fleet.UnitStatusAvailable, OdometerKM: 118000, Active: true},
		},
		maintenance: map[int64]time.Time{},
	}
}

func (f *fakeFleet) GetUnit(ctx context.Context, id int64) (fleet.Unit, error) {
	unit, ok := f.units[id]
	if !ok {
		return fleet.Unit{}, fleet.ErrUnitNotFound
	}
	return *unit, nil
}

func (f *fakeFleet) AdvanceOdometer(ctx context.Context, unitID int64, reading float64, _ string) (float64, error) {
	unit, ok := f.units[unitID]
	if !ok {
		return 0, fleet.ErrUnitNotFound
	}
	if reading > unit.OdometerKM {
		unit.OdometerKM = reading
	}
	return unit.OdometerKM, nil
}

func (f *fakeFleet) ChangeUnitStatus(ctx context.Context, unitID int64, status fleet.UnitStatus, actorID int64) (fleet.Unit, error) {
	unit, ok := f.units[unitID]
	if !ok {
		return fleet.Unit{}, fleet.ErrUnitNotFound
	}
	unit.Status = status
	return *unit, nil
}

func (f *fakeFleet) ScheduleMaintenance(ctx context.Context, unitID int64, date time.Time, actorID int64) error {
	f.maintenance[unitID] = date
	return nil
}

type fakeFolios struct {
	seq int64
}

func (f *fakeFolios) Next(ctx context.Context, prefix string) (string, error) {
	f.seq++
	return shared.FormatFolio(prefix, time.Now().Format("20060102"), f.seq), nil
}

type fakeProcurement struct {
	nextItemID int64
	calls      int
}

func (f *fakeProcurement) CreateRequisitionFromWorkOrder(ctx context.Context, workOrderID int64, workOrderFolio string, lines []RequisitionLine, actorID int64) (RequisitionRef, error) {
	f.calls++
	ref := RequisitionRef{RequisitionID: 100, Folio: "REQ-20250101-001", Items: map[int64]int64{}}
	for _, line := range lines {
		f.nextItemID++
		ref.Items[line.PartID] = f.nextItemID
	}
	return ref, nil
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *fakeFleet, *fakeProcurement) {
	t.Helper()
	repo := newMemoryRepo()
	fleetPort := newFakeFleet()
	procurement := &fakeProcurement{}
	svc := NewService(repo, &fakeFolios{}, fleetPort, procurement, nil, nil, slog.Default())
	return svc, repo, fleetPort, procurement
}

func createOrder(t *testing.T, svc *Service, maintenanceType *int64) WorkOrder {
	t.Helper()
	order, err := svc.Create(context.Background(), CreateOrderInput{
		UnitID:            1,
		MaintenanceTypeID: maintenanceType,
		Problem:           "El motor pierde potencia en pendientes",
		OdometerIn:        118500,
		LaborCostEstimate: 5000,
		ActorID:           7,
	})
	require.NoError(t, err)
	return order
}

func toRepair(t *testing.T, svc *Service, orderID int64) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.StartDiagnosis(ctx, orderID, 7)
	require.NoError(t, err)
	_, err = svc.CompleteDiagnosis(ctx, orderID, "Inyectores obstruidos", 7)
	require.NoError(t, err)
}

func TestCreateOrderIssuesFolioAndParksUnit(t *testing.T) {
	svc, _, fleetPort, _ := newTestService(t)

	order := createOrder(t, svc, nil)

	day := time.Now().Format("20060102")
	require.Equal(t, fmt.Sprintf("OT-%s-001", day), order.Folio)
	require.Equal(t, StatusPending, order.Status)
	require.Equal(t, PriorityMedium, order.Priority)
	require.Equal(t, fleet.UnitStatusInWorkshop, fleetPort.units[1].Status)
	require.Equal(t, 118500.0, fleetPort.units[1].OdometerKM)
}

func TestCompleteDiagnosisWaitsForPendingParts(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	order := createOrder(t, svc, nil)
	_, err := svc.StartDiagnosis(ctx, order.ID, 7)
	require.NoError(t, err)
	_, err = svc.AddPart(ctx, order.ID, AddPartInput{ProductID: 11, Quantity: 6, EstimatedUnitCost: 850, ActorID: 7})
	require.NoError(t, err)

	updated, err := svc.CompleteDiagnosis(ctx, order.ID, "Inyectores obstruidos", 7)
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingParts, updated.Status)
}

func TestCompleteDiagnosisWithoutPartsStartsRepair(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	order := createOrder(t, svc, nil)
	toRepair(t, svc, order.ID)

	got, err := svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInRepair, got.Status)
}

func TestPartsReceivedResumeRepairWithRealCosts(t *testing.T) {
	svc, _, _, procurement := newTestService(t)
	ctx := context.Background()

	order := createOrder(t, svc, nil)
	_, err := svc.StartDiagnosis(ctx, order.ID, 7)
	require.NoError(t, err)
	part, err := svc.AddPart(ctx, order.ID, AddPartInput{ProductID: 11, Quantity: 6, EstimatedUnitCost: 850, ActorID: 7})
	require.NoError(t, err)
	_, err = svc.CompleteDiagnosis(ctx, order.ID, "Inyectores obstruidos", 7)
	require.NoError(t, err)

	ref, err := svc.GenerateRequisition(ctx, order.ID, 7)
	require.NoError(t, err)
	require.Equal(t, 1, procurement.calls)
	itemID, ok := ref.Items[part.ID]
	require.True(t, ok)

	got, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingParts, got.Status)
	require.Equal(t, PartRequested, got.Parts[0].Status)

	realCost := 910.0
	err = svc.PartsReceivedByRequisitionItems(ctx, []ReceivedItem{{RequisitionItemID: itemID, UnitCost: &realCost}}, 7)
	require.NoError(t, err)

	got, err = svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInRepair, got.Status)
	require.Equal(t, PartReceived, got.Parts[0].Status)
	require.NotNil(t, got.Parts[0].ActualUnitCost)
	require.Equal(t, 910.0, *got.Parts[0].ActualUnitCost)
	require.Equal(t, 6*910.0, got.PartsCostActual())
}

func TestRepeatReceiptLeavesInstalledPartAlone(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	order := createOrder(t, svc, nil)
	_, err := svc.StartDiagnosis(ctx, order.ID, 7)
	require.NoError(t, err)
	part, err := svc.AddPart(ctx, order.ID, AddPartInput{ProductID: 11, Quantity: 2, EstimatedUnitCost: 450, ActorID: 7})
	require.NoError(t, err)
	_, err = svc.CompleteDiagnosis(ctx, order.ID, "Balatas gastadas", 7)
	require.NoError(t, err)

	ref, err := svc.GenerateRequisition(ctx, order.ID, 7)
	require.NoError(t, err)
	itemID := ref.Items[part.ID]

	firstCost := 480.0
	err = svc.PartsReceivedByRequisitionItems(ctx, []ReceivedItem{{RequisitionItemID: itemID, UnitCost: &firstCost}}, 7)
	require.NoError(t, err)
	err = svc.InstallPart(ctx, order.ID, part.ID, 7)
	require.NoError(t, err)

	// A later receipt against the same requisition item must not demote
	// the installed part.
	secondCost := 500.0
	err = svc.PartsReceivedByRequisitionItems(ctx, []ReceivedItem{{RequisitionItemID: itemID, UnitCost: &secondCost}}, 7)
	require.NoError(t, err)

	got, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, PartInstalled, got.Parts[0].Status)
	require.Equal(t, 480.0, *got.Parts[0].ActualUnitCost)
}

func TestGenerateRequisitionRequiresPendingParts(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	order := createOrder(t, svc, nil)
	_, err := svc.GenerateRequisition(context.Background(), order.ID, 7)
	require.ErrorIs(t, err, ErrNoPendingParts)
}

func TestChangeStatusValidatesTransitions(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	order := createOrder(t, svc, nil)

	_, err := svc.ChangeStatus(ctx, order.ID, StatusInRepair, "", 7)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.ChangeStatus(ctx, order.ID, StatusCompleted, "", 7)
	require.ErrorIs(t, err, ErrInvalidTransition)

	updated, err := svc.ChangeStatus(ctx, order.ID, StatusInDiagnosis, "recibida en taller", 7)
	require.NoError(t, err)
	require.Equal(t, StatusInDiagnosis, updated.Status)
}

func TestCompleteRunsSideEffectsExactlyOnce(t *testing.T) {
	svc, repo, fleetPort, _ := newTestService(t)
	ctx := context.Background()

	maintenanceType := int64(1)
	order := createOrder(t, svc, &maintenanceType)
	toRepair(t, svc, order.ID)

	odometerOut := 118650.0
	completed, err := svc.Complete(ctx, order.ID, CompleteOrderInput{
		WorkPerformed:   "Limpieza y calibracion de inyectores",
		LaborCostActual: 4200,
		OdometerOut:     &odometerOut,
		ActorID:         7,
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)

	require.Len(t, repo.history, 1)
	require.Equal(t, 118650.0, repo.history[0].OdometerKM)
	require.Equal(t, 4200.0, repo.history[0].TotalCost)
	require.Equal(t, 118650.0, fleetPort.units[1].OdometerKM)
	require.Equal(t, fleet.UnitStatusAvailable, fleetPort.units[1].Status)

	next, ok := fleetPort.maintenance[1]
	require.True(t, ok)
	require.WithinDuration(t, time.Now().AddDate(0, 0, 90), next, time.Minute)

	_, err = svc.Complete(ctx, order.ID, CompleteOrderInput{WorkPerformed: "repetida", ActorID: 7})
	require.ErrorIs(t, err, ErrOrderTerminal)
	require.Len(t, repo.history, 1)
}

func TestCompleteRejectsOdometerBelowIntake(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	order := createOrder(t, svc, nil)
	toRepair(t, svc, order.ID)

	tooLow := 118000.0
	_, err := svc.Complete(context.Background(), order.ID, CompleteOrderInput{
		WorkPerformed: "Ajuste general",
		OdometerOut:   &tooLow,
		ActorID:       7,
	})
	require.ErrorIs(t, err, ErrOdometerOutTooLow)
}

func TestCompleteDefaultsOdometerToUnitReading(t *testing.T) {
	svc, repo, fleetPort, _ := newTestService(t)
	ctx := context.Background()

	order := createOrder(t, svc, nil)
	toRepair(t, svc, order.ID)

	// The unit racked up kilometers after intake, for example on a tow
	// to the external workshop.
	fleetPort.units[1].OdometerKM = 118900

	completed, err := svc.Complete(ctx, order.ID, CompleteOrderInput{
		WorkPerformed:   "Cambio de marcha",
		LaborCostActual: 1800,
		ActorID:         7,
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)
	require.NotNil(t, completed.OdometerOut)
	require.Equal(t, 118900.0, *completed.OdometerOut)

	require.Len(t, repo.history, 1)
	require.Equal(t, 118900.0, repo.history[0].OdometerKM)
	require.Equal(t, 118900.0, fleetPort.units[1].OdometerKM)
}

func TestCancelReleasesUnit(t *testing.T) {
	svc, _, fleetPort, _ := newTestService(t)

	order := createOrder(t, svc, nil)
	cancelled, err := svc.Cancel(context.Background(), order.ID, "unidad vendida", 7)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Equal(t, fleet.UnitStatusAvailable, fleetPort.units[1].Status)
}

func TestInstallPartRequiresReceipt(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	order := createOrder(t, svc, nil)
	_, err := svc.StartDiagnosis(ctx, order.ID, 7)
	require.NoError(t, err)
	part, err := svc.AddPart(ctx, order.ID, AddPartInput{ProductID: 11, Quantity: 1, EstimatedUnitCost: 300, ActorID: 7})
	require.NoError(t, err)

	err = svc.InstallPart(ctx, order.ID, part.ID, 7)
	require.ErrorIs(t, err, ErrPartNotReceived)
}

func TestReportsAggregateOrdersAndSpend(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	march := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	finished := march.AddDate(0, 0, 4)
	repo.orders[100] = &WorkOrder{
		ID: 100, UnitID: 1, Status: StatusCompleted, LaborCostActual: 1500,
		CreatedAt: march, FinishedAt: &finished,
	}
	repo.orders[101] = &WorkOrder{ID: 101, UnitID: 2, Status: StatusInRepair, CreatedAt: march.AddDate(0, 0, 10)}
	repo.history = append(repo.history,
		HistoryEntry{UnitID: 1, ServicedAt: finished, TotalCost: 4200},
		HistoryEntry{UnitID: 2, ServicedAt: march.AddDate(0, -1, 0), TotalCost: 900},
	)

	report, err := svc.MonthlyReport(ctx, 2024, time.March)
	require.NoError(t, err)
	require.Equal(t, 2, report.OrdersOpened)
	require.Equal(t, 1, report.OrdersCompleted)
	require.InDelta(t, 1500.0, report.TotalLaborCost, 0.001)
	require.InDelta(t, 4200.0, report.TotalCost, 0.001)

	open, err := svc.UnitsInWorkshop(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, int64(101), open[0].ID)

	top, err := svc.TopCostlyUnits(ctx, 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, int64(1), top[0].UnitID)
	require.InDelta(t, 4200.0, top[0].TotalCost, 0.001)
}
