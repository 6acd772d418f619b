package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flotilla-erp/flotilla/internal/shared"
)

type memoryRepo struct {
	products   map[int64]*Product
	entries    map[int64]*Entry
	requests   map[int64]*ExitRequest
	exits      []Exit
	quickExits []QuickExit
	movements  []Movement
	alerts     []*StockAlert
	nextID     int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products: map[int64]*Product{},
		entries:  map[int64]*Entry{},
		requests: map[int64]*ExitRequest{},
		nextID:   1,
	}
}

func (m *memoryRepo) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

// WithTx restores the mutated state on error so a failed delivery rolls
// back like the real transaction does.
func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	products := make(map[int64]Product, len(m.products))
	for id, p := range m.products {
		products[id] = *p
	}
	requests := make(map[int64]ExitRequest, len(m.requests))
	for id, r := range m.requests {
		cp := *r
		cp.Items = append([]ExitRequestItem(nil), r.Items...)
		requests[id] = cp
	}
	entries := make(map[int64]Entry, len(m.entries))
	for id, e := range m.entries {
		cp := *e
		cp.Items = append([]EntryItem(nil), e.Items...)
		entries[id] = cp
	}
	exits, quick, movements, alerts := len(m.exits), len(m.quickExits), len(m.movements), len(m.alerts)

	err := fn(ctx, &memoryTx{repo: m})
	if err != nil {
		m.products = map[int64]*Product{}
		for id, p := range products {
			v := p
			m.products[id] = &v
		}
		m.requests = map[int64]*ExitRequest{}
		for id, r := range requests {
			v := r
			m.requests[id] = &v
		}
		m.entries = map[int64]*Entry{}
		for id, e := range entries {
			v := e
			m.entries[id] = &v
		}
		m.exits = m.exits[:exits]
		m.quickExits = m.quickExits[:quick]
		m.movements = m.movements[:movements]
		m.alerts = m.alerts[:alerts]
	}
	return err
}

func (m *memoryRepo) CreateProduct(_ context.Context, input CreateProductInput) (Product, error) {
	for _, p := range m.products {
		if p.SKU == input.SKU {
			return Product{}, ErrDuplicateSKU
		}
	}
	product := Product{
		ID: m.id(), SKU: input.SKU, Barcode: input.Barcode, Category: input.Category,
		Subcategory: input.Subcategory, Description: input.Description, Location: input.Location,
		Quantity: input.Quantity, Unit: input.Unit, StockMin: input.StockMin, StockMax: input.StockMax,
		UnitCost: input.UnitCost, HasExpiry: input.HasExpiry, ExpiryDate: input.ExpiryDate,
		SupplierID: input.SupplierID, ReorderDays: input.ReorderDays, Notes: input.Notes,
		Consumable: input.Consumable, Active: true,
	}
	m.products[product.ID] = &product
	return product, nil
}

func (m *memoryRepo) UpdateProduct(_ context.Context, id int64, input UpdateProductInput) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	if input.StockMin != nil {
		p.StockMin = *input.StockMin
	}
	if input.Active != nil {
		p.Active = *input.Active
	}
	if input.Consumable != nil {
		p.Consumable = *input.Consumable
	}
	return *p, nil
}

func (m *memoryRepo) GetProduct(_ context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return *p, nil
}

func (m *memoryRepo) GetProductBySKU(_ context.Context, sku string) (Product, error) {
	for _, p := range m.products {
		if p.SKU == sku {
			return *p, nil
		}
	}
	return Product{}, ErrProductNotFound
}

func (m *memoryRepo) ListProducts(_ context.Context, _ ProductFilter) ([]Product, error) {
	out := []Product{}
	for _, p := range m.products {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memoryRepo) ListProductsWithExpiry(_ context.Context, until time.Time) ([]Product, error) {
	out := []Product{}
	for _, p := range m.products {
		if p.Active && p.HasExpiry && p.ExpiryDate != nil && !p.ExpiryDate.After(until) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memoryRepo) GetEntry(_ context.Context, id int64) (Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return *e, nil
}

func (m *memoryRepo) ListEntries(_ context.Context, _ EntryType, _, _ int) ([]Entry, error) {
	out := []Entry{}
	for _, e := range m.entries {
		out = append(out, *e)
	}
	return out, nil
}

func (m *memoryRepo) InsertRequest(_ context.Context, request ExitRequest) (ExitRequest, error) {
	request.ID = m.id()
	request.CreatedAt = time.Now()
	for i := range request.Items {
		request.Items[i].ID = m.id()
		request.Items[i].RequestID = request.ID
	}
	copy := request
	m.requests[request.ID] = &copy
	return request, nil
}

func (m *memoryRepo) GetRequest(_ context.Context, id int64) (ExitRequest, error) {
	q, ok := m.requests[id]
	if !ok {
		return ExitRequest{}, ErrRequestNotFound
	}
	return *q, nil
}

func (m *memoryRepo) ListRequests(_ context.Context, _ RequestFilter) ([]ExitRequest, error) {
	out := []ExitRequest{}
	for _, q := range m.requests {
		out = append(out, *q)
	}
	return out, nil
}

func (m *memoryRepo) SetAuthorization(_ context.Context, id int64, status RequestStatus, authorizerID int64, comments string, at time.Time) error {
	q, ok := m.requests[id]
	if !ok {
		return ErrRequestNotFound
	}
	q.Status = status
	q.AuthorizerID = &authorizerID
	q.AuthorizationLog = comments
	q.AuthorizedAt = &at
	return nil
}

func (m *memoryRepo) SetRequestStatus(_ context.Context, id int64, status RequestStatus) error {
	q, ok := m.requests[id]
	if !ok {
		return ErrRequestNotFound
	}
	q.Status = status
	return nil
}

func (m *memoryRepo) ListExits(_ context.Context, requestID int64) ([]Exit, error) {
	out := []Exit{}
	for _, e := range m.exits {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListQuickExits(_ context.Context, _ int64, _, _ int) ([]QuickExit, error) {
	return m.quickExits, nil
}

func (m *memoryRepo) ListMovements(_ context.Context, productID int64, _, _ int) ([]Movement, error) {
	out := []Movement{}
	for _, mv := range m.movements {
		if productID == 0 || mv.ProductID == productID {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (m *memoryRepo) OpenAlert(_ context.Context, productID int64, alertType AlertType, message string) (bool, error) {
	for _, a := range m.alerts {
		if a.ProductID == productID && a.Type == alertType && !a.Resolved {
			return false, nil
		}
	}
	m.alerts = append(m.alerts, &StockAlert{
		ID: m.id(), ProductID: productID, Type: alertType, Message: message, CreatedAt: time.Now(),
	})
	return true, nil
}

func (m *memoryRepo) ResolveAlertsForProduct(_ context.Context, productID int64, types []AlertType, at time.Time) error {
	for _, a := range m.alerts {
		if a.ProductID != productID || a.Resolved {
			continue
		}
		for _, t := range types {
			if a.Type == t {
				a.Resolved = true
				a.ResolvedAt = &at
			}
		}
	}
	return nil
}

func (m *memoryRepo) ResolveAlert(_ context.Context, id, actorID int64, at time.Time) (StockAlert, error) {
	for _, a := range m.alerts {
		if a.ID != id {
			continue
		}
		if a.Resolved {
			return StockAlert{}, ErrAlertResolved
		}
		a.Resolved = true
		a.ResolvedByID = &actorID
		a.ResolvedAt = &at
		return *a, nil
	}
	return StockAlert{}, ErrAlertNotFound
}

func (m *memoryRepo) ListAlerts(_ context.Context, onlyOpen bool, alertType AlertType, _, _ int) ([]StockAlert, error) {
	out := []StockAlert{}
	for _, a := range m.alerts {
		if onlyOpen && a.Resolved {
			continue
		}
		if alertType != "" && a.Type != alertType {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *memoryRepo) CountOpenAlertsByType(_ context.Context) (map[AlertType]int, error) {
	counts := map[AlertType]int{}
	for _, a := range m.alerts {
		if !a.Resolved {
			counts[a.Type]++
		}
	}
	return counts, nil
}

func (m *memoryRepo) MaxFolioForDay(_ context.Context, _ string) (string, error) {
	return "", nil
}

func (m *memoryRepo) openAlerts(productID int64) []StockAlert {
	out := []StockAlert{}
	for _, a := range m.alerts {
		if a.ProductID == productID && !a.Resolved {
			out = append(out, *a)
		}
	}
	return out
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) GetProductForUpdate(ctx context.Context, id int64) (Product, error) {
	return t.repo.GetProduct(ctx, id)
}

func (t *memoryTx) SetProductQuantity(_ context.Context, id int64, quantity float64) error {
	p, ok := t.repo.products[id]
	if !ok {
		return ErrProductNotFound
	}
	p.Quantity = quantity
	return nil
}

func (t *memoryTx) InsertMovement(_ context.Context, movement Movement) error {
	movement.ID = t.repo.id()
	t.repo.movements = append(t.repo.movements, movement)
	return nil
}

func (t *memoryTx) InsertEntry(_ context.Context, entry Entry) (Entry, error) {
	entry.ID = t.repo.id()
	for i := range entry.Items {
		entry.Items[i].ID = t.repo.id()
		entry.Items[i].EntryID = entry.ID
	}
	copy := entry
	t.repo.entries[entry.ID] = &copy
	return entry, nil
}

func (t *memoryTx) InsertExit(_ context.Context, exit Exit) (Exit, error) {
	exit.ID = t.repo.id()
	for i := range exit.Items {
		exit.Items[i].ID = t.repo.id()
		exit.Items[i].ExitID = exit.ID
	}
	t.repo.exits = append(t.repo.exits, exit)
	return exit, nil
}

func (t *memoryTx) AddDeliveredQty(_ context.Context, requestItemID int64, quantity float64) error {
	for _, q := range t.repo.requests {
		for i := range q.Items {
			if q.Items[i].ID == requestItemID {
				q.Items[i].QtyDelivered += quantity
				return nil
			}
		}
	}
	return ErrItemNotFound
}

func (t *memoryTx) GetRequestForUpdate(ctx context.Context, id int64) (ExitRequest, error) {
	return t.repo.GetRequest(ctx, id)
}

func (t *memoryTx) SetRequestStatus(ctx context.Context, id int64, status RequestStatus) error {
	return t.repo.SetRequestStatus(ctx, id, status)
}

func (t *memoryTx) InsertQuickExit(_ context.Context, exit QuickExit) (QuickExit, error) {
	exit.ID = t.repo.id()
	t.repo.quickExits = append(t.repo.quickExits, exit)
	return exit, nil
}

type fakeFolios struct {
	seqs map[string]int64
}

func (f *fakeFolios) Next(_ context.Context, prefix string) (string, error) {
	if f.seqs == nil {
		f.seqs = map[string]int64{}
	}
	f.seqs[prefix]++
	return shared.FormatFolio(prefix, time.Now().Format("20060102"), f.seqs[prefix]), nil
}

type fakeAudit struct {
	logs []shared.AuditLog
}

func (f *fakeAudit) Record(_ context.Context, log shared.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

type fakeGauge struct {
	values map[string]int
}

func (f *fakeGauge) SetActiveStockAlerts(alertType string, count int) {
	if f.values == nil {
		f.values = map[string]int{}
	}
	f.values[alertType] = count
}

func newTestService(repo *memoryRepo) (*Service, *fakeGauge) {
	gauge := &fakeGauge{}
	svc := NewService(repo, &fakeFolios{}, &fakeAudit{}, gauge, 30, slog.Default())
	return svc, gauge
}

func seedProduct(t *testing.T, svc *Service, sku string, quantity, stockMin float64, consumable bool) Product {
	t.Helper()
	product, err := svc.CreateProduct(context.Background(), CreateProductInput{
		SKU:         sku,
		Category:    "FILTROS",
		Description: "Filtro de aceite " + sku,
		Location:    "A-01",
		Quantity:    quantity,
		Unit:        "PZA",
		StockMin:    stockMin,
		UnitCost:    180,
		Consumable:  consumable,
	})
	require.NoError(t, err)
	return product
}

func TestRegisterEntryAddsStockAndLedger(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()
	product := seedProduct(t, svc, "FLT-001", 10, 4, false)

	entry, err := svc.RegisterEntry(ctx, CreateEntryInput{
		Type:    EntryInvoice,
		ActorID: 7,
		Items:   []EntryItemInput{{ProductID: product.ID, Quantity: 15, UnitCost: 175}},
	})
	require.NoError(t, err)
	require.Contains(t, entry.Folio, "ENT-")

	updated, err := svc.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 25.0, updated.Quantity)

	movements, err := svc.ListMovements(ctx, product.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.Equal(t, MovementEntry, movements[0].Type)
	require.Equal(t, 10.0, movements[0].QtyBefore)
	require.Equal(t, 25.0, movements[0].QtyAfter)
	require.Equal(t, int64(7), movements[0].ActorID)
}

func TestDeliverChecksStockAndTracksProgress(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()
	product := seedProduct(t, svc, "FLT-002", 8, 0, false)

	request, err := svc.CreateExitRequest(ctx, CreateExitRequestInput{
		Type:          RequestGeneral,
		RequesterID:   3,
		Justification: "Mantenimiento preventivo",
		Items:         []ExitRequestItemInput{{ProductID: product.ID, QtyRequested: 6}},
	})
	require.NoError(t, err)
	require.Equal(t, RequestPending, request.Status)

	// Not yet authorized.
	_, err = svc.Deliver(ctx, request.ID, DeliverInput{
		DeliveredToID: 3, ActorID: 5,
		Items: []DeliverItemInput{{RequestItemID: request.Items[0].ID, Quantity: 2}},
	})
	require.ErrorIs(t, err, ErrRequestNotOpen)

	_, err = svc.AuthorizeRequest(ctx, request.ID, 9, "procede")
	require.NoError(t, err)

	// Over-delivery of a line is rejected.
	_, err = svc.Deliver(ctx, request.ID, DeliverInput{
		DeliveredToID: 3, ActorID: 5,
		Items: []DeliverItemInput{{RequestItemID: request.Items[0].ID, Quantity: 7}},
	})
	require.ErrorIs(t, err, ErrQuantityExceeds)

	// Partial delivery leaves the request open.
	exit, err := svc.Deliver(ctx, request.ID, DeliverInput{
		DeliveredToID: 3, ActorID: 5,
		Items: []DeliverItemInput{{RequestItemID: request.Items[0].ID, Quantity: 4}},
	})
	require.NoError(t, err)
	require.Contains(t, exit.Folio, "SAL-")

	after, err := svc.GetRequest(ctx, request.ID)
	require.NoError(t, err)
	require.Equal(t, RequestAuthorized, after.Status)
	require.Equal(t, 4.0, after.Items[0].QtyDelivered)

	// Completing the line closes the request.
	_, err = svc.Deliver(ctx, request.ID, DeliverInput{
		DeliveredToID: 3, ActorID: 5,
		Items: []DeliverItemInput{{RequestItemID: request.Items[0].ID, Quantity: 2}},
	})
	require.NoError(t, err)

	closed, err := svc.GetRequest(ctx, request.ID)
	require.NoError(t, err)
	require.Equal(t, RequestDelivered, closed.Status)

	stock, err := svc.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 2.0, stock.Quantity)
}

func TestDeliverRejectsInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()
	product := seedProduct(t, svc, "FLT-003", 2, 0, false)

	request, err := svc.CreateExitRequest(ctx, CreateExitRequestInput{
		Type:          RequestWorkOrder,
		RequesterID:   3,
		Justification: "Orden de trabajo",
		Items:         []ExitRequestItemInput{{ProductID: product.ID, QtyRequested: 5}},
	})
	require.NoError(t, err)
	// Work-order requests are born authorized.
	require.Equal(t, RequestAuthorized, request.Status)

	_, err = svc.Deliver(ctx, request.ID, DeliverInput{
		DeliveredToID: 3, ActorID: 5,
		Items: []DeliverItemInput{{RequestItemID: request.Items[0].ID, Quantity: 5}},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	stock, err := svc.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 2.0, stock.Quantity)
}

func TestDeliverRejectsCombinedLinesOverStock(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()
	product := seedProduct(t, svc, "FLT-010", 10, 0, false)

	request, err := svc.CreateExitRequest(ctx, CreateExitRequestInput{
		Type:          RequestWorkOrder,
		RequesterID:   3,
		Justification: "Orden de trabajo",
		Items: []ExitRequestItemInput{
			{ProductID: product.ID, QtyRequested: 6},
			{ProductID: product.ID, QtyRequested: 6},
		},
	})
	require.NoError(t, err)

	// Each line fits on its own; together they exceed the 10 on hand.
	_, err = svc.Deliver(ctx, request.ID, DeliverInput{
		DeliveredToID: 3, ActorID: 5,
		Items: []DeliverItemInput{
			{RequestItemID: request.Items[0].ID, Quantity: 6},
			{RequestItemID: request.Items[1].ID, Quantity: 6},
		},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	stock, err := svc.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 10.0, stock.Quantity)
}

func TestStockAlertPriorityAndDedupe(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()
	product := seedProduct(t, svc, "FLT-004", 10, 4, true)

	takeStock := func(quantity float64) {
		t.Helper()
		_, err := svc.QuickConsumableExit(ctx, QuickExitInput{
			ProductID: product.ID, Quantity: quantity, RequesterName: "Juan Pérez", ActorID: 5,
		})
		require.NoError(t, err)
	}

	// Crossing the minimum raises one low-stock alert.
	takeStock(6)
	alerts := repo.openAlerts(product.ID)
	require.Len(t, alerts, 1)
	require.Equal(t, AlertStockMin, alerts[0].Type)

	// Dropping further does not duplicate it.
	takeStock(2)
	require.Len(t, repo.openAlerts(product.ID), 1)

	// Reaching zero adds the out-of-stock alert.
	takeStock(2)
	alerts = repo.openAlerts(product.ID)
	types := map[AlertType]bool{}
	for _, a := range alerts {
		types[a.Type] = true
	}
	require.True(t, types[AlertStockOut])

	// Restocking above the minimum auto-resolves the quantity alerts.
	_, err := svc.RegisterEntry(ctx, CreateEntryInput{
		Type:    EntryInvoice,
		ActorID: 7,
		Items:   []EntryItemInput{{ProductID: product.ID, Quantity: 20, UnitCost: 180}},
	})
	require.NoError(t, err)
	require.Empty(t, repo.openAlerts(product.ID))
}

func TestQuickExitRequiresActiveConsumable(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()
	tool := seedProduct(t, svc, "HER-001", 3, 0, false)

	_, err := svc.QuickConsumableExit(ctx, QuickExitInput{
		ProductID: tool.ID, Quantity: 1, RequesterName: "Juan Pérez", ActorID: 5,
	})
	require.ErrorIs(t, err, ErrNotConsumable)

	inactive := false
	consumable := seedProduct(t, svc, "CON-001", 3, 0, true)
	_, err = svc.UpdateProduct(ctx, consumable.ID, UpdateProductInput{Active: &inactive})
	require.NoError(t, err)

	_, err = svc.QuickConsumableExit(ctx, QuickExitInput{
		ProductID: consumable.ID, Quantity: 1, RequesterName: "Juan Pérez", ActorID: 5,
	})
	require.ErrorIs(t, err, ErrProductInactive)
}

func TestRejectRequestRequiresComments(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()
	product := seedProduct(t, svc, "FLT-005", 5, 0, false)

	request, err := svc.CreateExitRequest(ctx, CreateExitRequestInput{
		Type:          RequestGeneral,
		RequesterID:   3,
		Justification: "Stock de cabina",
		Items:         []ExitRequestItemInput{{ProductID: product.ID, QtyRequested: 1}},
	})
	require.NoError(t, err)

	_, err = svc.RejectRequest(ctx, request.ID, 9, "")
	require.ErrorIs(t, err, ErrCommentsRequired)

	rejected, err := svc.RejectRequest(ctx, request.ID, 9, "sin presupuesto")
	require.NoError(t, err)
	require.Equal(t, RequestRejected, rejected.Status)

	// A resolved request takes no further decisions.
	_, err = svc.AuthorizeRequest(ctx, request.ID, 9, "cambio de opinión")
	require.ErrorIs(t, err, ErrRequestNotPending)
}

func TestAdjustStockRecordsDelta(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()
	product := seedProduct(t, svc, "FLT-006", 12, 0, false)

	adjusted, err := svc.AdjustStock(ctx, product.ID, AdjustStockInput{
		NewQuantity: 9, Reason: "Conteo físico", ActorID: 5,
	})
	require.NoError(t, err)
	require.Equal(t, 9.0, adjusted.Quantity)

	movements, err := svc.ListMovements(ctx, product.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.Equal(t, MovementAdjustment, movements[0].Type)
	require.Equal(t, -3.0, movements[0].Quantity)
	require.Equal(t, "Conteo físico", movements[0].Observations)
}

func TestExpiryScanRaisesAlertsOnce(t *testing.T) {
	repo := newMemoryRepo()
	svc, gauge := newTestService(repo)
	ctx := context.Background()

	expired := time.Now().AddDate(0, 0, -2)
	soon := time.Now().AddDate(0, 0, 10)
	far := time.Now().AddDate(0, 0, 120)
	for i, expiry := range []time.Time{expired, soon, far} {
		date := expiry
		_, err := svc.CreateProduct(ctx, CreateProductInput{
			SKU:         fmt.Sprintf("REF-%03d", i+1),
			Category:    "REFRIGERANTES",
			Description: "Anticongelante",
			Location:    "B-02",
			Quantity:    10,
			Unit:        "LT",
			UnitCost:    95,
			HasExpiry:   true,
			ExpiryDate:  &date,
		})
		require.NoError(t, err)
	}

	raised, err := svc.ExpiryScan(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, raised)

	alerts, err := svc.ListAlerts(ctx, true, "", 0, 0)
	require.NoError(t, err)
	types := map[AlertType]int{}
	for _, a := range alerts {
		types[a.Type]++
	}
	require.Equal(t, 1, types[AlertExpired])
	require.Equal(t, 1, types[AlertExpiring])
	require.Equal(t, 1, gauge.values[string(AlertExpired)])

	// A second scan does not duplicate open alerts.
	raised, err = svc.ExpiryScan(ctx)
	require.NoError(t, err)
	require.Zero(t, raised)
}
