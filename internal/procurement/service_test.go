package procurement

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flotilla-erp/flotilla/internal/shared"
)

type memoryRepo struct {
	suppliers    map[int64]*Supplier
	requisitions map[int64]*Requisition
	orders       map[int64]*PurchaseOrder
	receipts     []Receipt
	nextID       int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		suppliers:    map[int64]*Supplier{},
		requisitions: map[int64]*Requisition{},
		orders:       map[int64]*PurchaseOrder{},
		nextID:       1,
	}
}

func (m *memoryRepo) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: m})
}

func (m *memoryRepo) CreateSupplier(ctx context.Context, input CreateSupplierInput) (Supplier, error) {
	for _, existing := range m.suppliers {
		if existing.RFC == input.RFC {
			return Supplier{}, ErrDuplicateSupplier
		}
	}
	supplier := Supplier{ID: m.id(), Name: input.Name, RFC: input.RFC, Address: input.Address, Phone: input.Phone, Email: input.Email, Contact: input.Contact, Active: true, CreatedAt: time.Now()}
	m.suppliers[supplier.ID] = &supplier
	return supplier, nil
}

func (m *memoryRepo) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	supplier, ok := m.suppliers[id]
	if !ok {
		return Supplier{}, ErrSupplierNotFound
	}
	return *supplier, nil
}

func (m *memoryRepo) ListSuppliers(ctx context.Context, activeOnly bool) ([]Supplier, error) {
	out := []Supplier{}
	for _, supplier := range m.suppliers {
		if activeOnly && !supplier.Active {
			continue
		}
		out = append(out, *supplier)
	}
	return out, nil
}

func (m *memoryRepo) SetSupplierActive(ctx context.Context, id int64, active bool) error {
	supplier, ok := m.suppliers[id]
	if !ok {
		return ErrSupplierNotFound
	}
	supplier.Active = active
	return nil
}

func (m *memoryRepo) InsertRequisition(ctx context.Context, req Requisition) (Requisition, error) {
	req.ID = m.id()
	req.CreatedAt = time.Now()
	for i := range req.Items {
		req.Items[i].ID = m.id()
		req.Items[i].RequisitionID = req.ID
	}
	m.requisitions[req.ID] = &req
	return req, nil
}

func (m *memoryRepo) GetRequisition(ctx context.Context, id int64) (Requisition, error) {
	req, ok := m.requisitions[id]
	if !ok {
		return Requisition{}, ErrRequisitionNotFound
	}
	return *req, nil
}

func (m *memoryRepo) ListRequisitions(ctx context.Context, filter RequisitionFilter) ([]Requisition, error) {
	out := []Requisition{}
	for _, req := range m.requisitions {
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		out = append(out, *req)
	}
	return out, nil
}

func (m *memoryRepo) SetApproval(ctx context.Context, id int64, status RequisitionStatus, approverID int64, comments string, at time.Time) error {
	req, ok := m.requisitions[id]
	if !ok {
		return ErrRequisitionNotFound
	}
	req.Status = status
	req.ApproverID = &approverID
	req.ApprovalComments = comments
	req.ApprovedAt = &at
	return nil
}

func (m *memoryRepo) SetRequisitionStatus(ctx context.Context, id int64, status RequisitionStatus) error {
	req, ok := m.requisitions[id]
	if !ok {
		return ErrRequisitionNotFound
	}
	req.Status = status
	return nil
}

func (m *memoryRepo) InsertOrder(ctx context.Context, order PurchaseOrder) (PurchaseOrder, error) {
	order.ID = m.id()
	order.CreatedAt = time.Now()
	for i := range order.Items {
		order.Items[i].ID = m.id()
		order.Items[i].OrderID = order.ID
	}
	m.orders[order.ID] = &order
	return order, nil
}

func (m *memoryRepo) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	order, ok := m.orders[id]
	if !ok {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	return *order, nil
}

func (m *memoryRepo) ListOrders(ctx context.Context, filter OrderFilter) ([]PurchaseOrder, error) {
	out := []PurchaseOrder{}
	for _, order := range m.orders {
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		out = append(out, *order)
	}
	return out, nil
}

func (m *memoryRepo) OpenOrdersForRequisition(ctx context.Context, requisitionID int64) (int, error) {
	count := 0
	for _, order := range m.orders {
		if order.RequisitionID == requisitionID && !IsTerminalOrder(order.Status) {
			count++
		}
	}
	return count, nil
}

func (m *memoryRepo) SetInvoice(ctx context.Context, id int64, number string, date *time.Time, amount *float64) error {
	order, ok := m.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	order.InvoiceNumber = number
	order.InvoiceDate = date
	order.InvoiceAmount = amount
	return nil
}

func (m *memoryRepo) ListReceipts(ctx context.Context, orderID int64) ([]Receipt, error) {
	out := []Receipt{}
	for _, receipt := range m.receipts {
		if receipt.OrderID == orderID {
			out = append(out, receipt)
		}
	}
	return out, nil
}

func (m *memoryRepo) MaxFolioForDay(ctx context.Context, dayPrefix string) (string, error) {
	return "", nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	return t.repo.GetOrder(ctx, id)
}

func (t *memoryTx) SetOrderStatus(ctx context.Context, id int64, status OrderStatus) error {
	order, ok := t.repo.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	order.Status = status
	return nil
}

func (t *memoryTx) SetRequisitionStatus(ctx context.Context, id int64, status RequisitionStatus) error {
	return t.repo.SetRequisitionStatus(ctx, id, status)
}

func (t *memoryTx) InsertReceipt(ctx context.Context, receipt Receipt) (Receipt, error) {
	receipt.ID = t.repo.id()
	for i := range receipt.Items {
		receipt.Items[i].ID = t.repo.id()
		receipt.Items[i].ReceiptID = receipt.ID
	}
	t.repo.receipts = append(t.repo.receipts, receipt)
	return receipt, nil
}

func (t *memoryTx) AddOrderItemReceivedQty(_ context.Context, orderItemID int64, qty float64) error {
	for _, order := range t.repo.orders {
		for i := range order.Items {
			if order.Items[i].ID == orderItemID {
				order.Items[i].QtyReceived += qty
				return nil
			}
		}
	}
	return ErrItemNotFound
}

type fakeFolios struct {
	seqs map[string]int64
}

func (f *fakeFolios) Next(ctx context.Context, prefix string) (string, error) {
	if f.seqs == nil {
		f.seqs = map[string]int64{}
	}
	f.seqs[prefix]++
	return shared.FormatFolio(prefix, time.Now().Format("20060102"), f.seqs[prefix]), nil
}

type fakeWorkshop struct {
	inPurchase []int64
	received   []ReceivedLine
}

func (f *fakeWorkshop) MarkPartsInPurchase(ctx context.Context, requisitionItemIDs []int64) error {
	f.inPurchase = append(f.inPurchase, requisitionItemIDs...)
	return nil
}

func (f *fakeWorkshop) PartsReceived(ctx context.Context, lines []ReceivedLine, actorID int64) error {
	f.received = append(f.received, lines...)
	return nil
}

type fakeWarehouse struct {
	entries []PurchaseEntry
}

func (f *fakeWarehouse) RegisterPurchaseEntry(ctx context.Context, entry PurchaseEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *fakeWorkshop, *fakeWarehouse) {
	t.Helper()
	repo := newMemoryRepo()
	workshop := &fakeWorkshop{}
	warehouse := &fakeWarehouse{}
	svc := NewService(repo, &fakeFolios{}, workshop, warehouse, nil, slog.Default())
	return svc, repo, workshop, warehouse
}

func seedSupplier(t *testing.T, svc *Service) Supplier {
	t.Helper()
	supplier, err := svc.CreateSupplier(context.Background(), CreateSupplierInput{
		Name: "Refacciones del Norte", RFC: "RNO910101AB1", Contact: "Laura Mendez",
	})
	require.NoError(t, err)
	return supplier
}

func TestRequisitionApprovalFlow(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	req, err := svc.CreateRequisition(ctx, CreateRequisitionInput{
		RequesterID:   3,
		Justification: "Stock de filtros agotado",
		Items:         []RequisitionItemInput{{ProductID: 20, Quantity: 12, EstimatedUnitCost: 150}},
	})
	require.NoError(t, err)
	require.Equal(t, RequisitionPending, req.Status)
	require.Contains(t, req.Folio, "REQ-")
	require.Len(t, req.Items, 1)

	approved, err := svc.Approve(ctx, req.ID, 9, "procede")
	require.NoError(t, err)
	require.Equal(t, RequisitionApproved, approved.Status)
	require.NotNil(t, approved.ApproverID)
	require.Equal(t, int64(9), *approved.ApproverID)

	_, err = svc.Approve(ctx, req.ID, 9, "otra vez")
	require.ErrorIs(t, err, ErrNotApprovable)
}

func TestRejectRequiresComments(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	req, err := svc.CreateRequisition(ctx, CreateRequisitionInput{
		RequesterID:   3,
		Justification: "Llantas de refaccion",
		Items:         []RequisitionItemInput{{ProductID: 21, Quantity: 4}},
	})
	require.NoError(t, err)

	_, err = svc.Reject(ctx, req.ID, 9, "")
	require.ErrorIs(t, err, ErrCommentsRequired)

	rejected, err := svc.Reject(ctx, req.ID, 9, "presupuesto agotado este mes")
	require.NoError(t, err)
	require.Equal(t, RequisitionRejected, rejected.Status)
}

func TestCreateOrderRequiresApprovedRequisition(t *testing.T) {
	svc, _, workshop, _ := newTestService(t)
	ctx := context.Background()
	supplier := seedSupplier(t, svc)

	req, linkage, err := svc.CreateRequisitionFromWorkOrder(ctx, 55, "OT-20250810-002", []WorkOrderLine{
		{PartID: 7, ProductID: 20, Quantity: 6, EstimatedUnitCost: 850},
	}, 3)
	require.NoError(t, err)
	require.Len(t, linkage, 1)

	_, err = svc.CreateOrder(ctx, CreateOrderInput{
		RequisitionID: req.ID,
		SupplierID:    supplier.ID,
		Items:         []OrderItemInput{{RequisitionItemID: req.Items[0].ID, Quantity: 6, UnitPrice: 910}},
		ActorID:       9,
	})
	require.ErrorIs(t, err, ErrNotApproved)

	_, err = svc.Approve(ctx, req.ID, 9, "")
	require.NoError(t, err)

	order, err := svc.CreateOrder(ctx, CreateOrderInput{
		RequisitionID: req.ID,
		SupplierID:    supplier.ID,
		Items:         []OrderItemInput{{RequisitionItemID: req.Items[0].ID, Quantity: 6, UnitPrice: 910}},
		ActorID:       9,
	})
	require.NoError(t, err)
	require.Contains(t, order.Folio, "OC-")
	require.Equal(t, OrderPending, order.Status)
	require.Equal(t, 6*910.0, order.Total())

	updated, err := svc.GetRequisition(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, RequisitionBuying, updated.Status)
	require.Equal(t, []int64{req.Items[0].ID}, workshop.inPurchase)
}

func TestReceivePostsStockAndCosts(t *testing.T) {
	svc, _, workshop, warehouse := newTestService(t)
	ctx := context.Background()
	supplier := seedSupplier(t, svc)

	req, _, err := svc.CreateRequisitionFromWorkOrder(ctx, 55, "OT-20250810-002", []WorkOrderLine{
		{PartID: 7, ProductID: 20, Quantity: 6, EstimatedUnitCost: 850},
	}, 3)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, req.ID, 9, "")
	require.NoError(t, err)

	order, err := svc.CreateOrder(ctx, CreateOrderInput{
		RequisitionID: req.ID,
		SupplierID:    supplier.ID,
		Items:         []OrderItemInput{{RequisitionItemID: req.Items[0].ID, Quantity: 6, UnitPrice: 910}},
		ActorID:       9,
	})
	require.NoError(t, err)

	_, err = svc.AdvanceOrder(ctx, order.ID, OrderSent, 9)
	require.NoError(t, err)
	_, err = svc.AdvanceOrder(ctx, order.ID, OrderConfirmed, 9)
	require.NoError(t, err)

	_, err = svc.Receive(ctx, order.ID, ReceiveOrderInput{
		Location: "Rack B-3",
		Items:    []ReceiptItemInput{{OrderItemID: order.Items[0].ID, QtyReceived: 6, QtyAccepted: 5, QtyRejected: 2}},
		ActorID:  4,
	})
	require.ErrorIs(t, err, ErrReceiptQuantities)

	receipt, err := svc.Receive(ctx, order.ID, ReceiveOrderInput{
		Location: "Rack B-3",
		Items:    []ReceiptItemInput{{OrderItemID: order.Items[0].ID, QtyReceived: 6, QtyAccepted: 5, QtyRejected: 1, RejectReason: "una pieza dañada"}},
		ActorID:  4,
	})
	require.NoError(t, err)
	require.Len(t, receipt.Items, 1)

	got, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, OrderReceived, got.Status)

	require.Len(t, warehouse.entries, 1)
	require.Equal(t, order.Folio, warehouse.entries[0].OrderFolio)
	require.Len(t, warehouse.entries[0].Lines, 1)
	require.Equal(t, 5.0, warehouse.entries[0].Lines[0].Quantity)
	require.Equal(t, 910.0, warehouse.entries[0].Lines[0].UnitCost)

	require.Len(t, workshop.received, 1)
	require.Equal(t, req.Items[0].ID, workshop.received[0].RequisitionItemID)
	require.Equal(t, 910.0, *workshop.received[0].UnitCost)

	updated, err := svc.GetRequisition(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, RequisitionCompleted, updated.Status)

	_, err = svc.Receive(ctx, order.ID, ReceiveOrderInput{
		Location: "Rack B-3",
		Items:    []ReceiptItemInput{{OrderItemID: order.Items[0].ID, QtyReceived: 1, QtyAccepted: 1}},
		ActorID:  4,
	})
	require.ErrorIs(t, err, ErrOrderTerminal)
}

func TestPartialReceiptLeavesOrderOpen(t *testing.T) {
	svc, _, _, warehouse := newTestService(t)
	ctx := context.Background()
	supplier := seedSupplier(t, svc)

	req, err := svc.CreateRequisition(ctx, CreateRequisitionInput{
		RequesterID:   3,
		Justification: "Llantas y filtros",
		Items: []RequisitionItemInput{
			{ProductID: 20, Quantity: 4, EstimatedUnitCost: 2100},
			{ProductID: 21, Quantity: 2, EstimatedUnitCost: 450},
		},
	})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, req.ID, 9, "")
	require.NoError(t, err)

	order, err := svc.CreateOrder(ctx, CreateOrderInput{
		RequisitionID: req.ID,
		SupplierID:    supplier.ID,
		Items: []OrderItemInput{
			{RequisitionItemID: req.Items[0].ID, Quantity: 4, UnitPrice: 2150},
			{RequisitionItemID: req.Items[1].ID, Quantity: 2, UnitPrice: 470},
		},
		ActorID: 9,
	})
	require.NoError(t, err)
	_, err = svc.AdvanceOrder(ctx, order.ID, OrderSent, 9)
	require.NoError(t, err)
	_, err = svc.AdvanceOrder(ctx, order.ID, OrderConfirmed, 9)
	require.NoError(t, err)

	// First delivery covers only the tyres.
	_, err = svc.Receive(ctx, order.ID, ReceiveOrderInput{
		Location: "Rack A-1",
		Items:    []ReceiptItemInput{{OrderItemID: order.Items[0].ID, QtyReceived: 4, QtyAccepted: 4}},
		ActorID:  4,
	})
	require.NoError(t, err)

	open, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, OrderConfirmed, open.Status)
	require.Equal(t, 4.0, open.Items[0].QtyReceived)

	reqAfter, err := svc.GetRequisition(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, RequisitionBuying, reqAfter.Status)

	// Receiving more than the outstanding amount is rejected.
	_, err = svc.Receive(ctx, order.ID, ReceiveOrderInput{
		Location: "Rack A-1",
		Items:    []ReceiptItemInput{{OrderItemID: order.Items[0].ID, QtyReceived: 1, QtyAccepted: 1}},
		ActorID:  4,
	})
	require.ErrorIs(t, err, ErrReceiptExceedsOrder)

	// The filters arrive later and close the order.
	_, err = svc.Receive(ctx, order.ID, ReceiveOrderInput{
		Location: "Rack A-1",
		Items:    []ReceiptItemInput{{OrderItemID: order.Items[1].ID, QtyReceived: 2, QtyAccepted: 2}},
		ActorID:  4,
	})
	require.NoError(t, err)

	closed, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, OrderReceived, closed.Status)

	done, err := svc.GetRequisition(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, RequisitionCompleted, done.Status)

	require.Len(t, warehouse.entries, 2)
}

func TestAdvanceOrderRejectsReceiveShortcut(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	supplier := seedSupplier(t, svc)

	req, err := svc.CreateRequisition(ctx, CreateRequisitionInput{
		RequesterID:   3,
		Justification: "Herramienta de taller",
		Items:         []RequisitionItemInput{{ProductID: 30, Quantity: 1, EstimatedUnitCost: 2500}},
	})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, req.ID, 9, "")
	require.NoError(t, err)
	order, err := svc.CreateOrder(ctx, CreateOrderInput{
		RequisitionID: req.ID,
		SupplierID:    supplier.ID,
		Items:         []OrderItemInput{{RequisitionItemID: req.Items[0].ID, Quantity: 1, UnitPrice: 2450}},
		ActorID:       9,
	})
	require.NoError(t, err)

	_, err = svc.AdvanceOrder(ctx, order.ID, OrderReceived, 9)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.AdvanceOrder(ctx, order.ID, OrderConfirmed, 9)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestInactiveSupplierRejected(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	supplier := seedSupplier(t, svc)
	require.NoError(t, svc.SetSupplierActive(ctx, supplier.ID, false, 9))

	req, err := svc.CreateRequisition(ctx, CreateRequisitionInput{
		RequesterID:   3,
		Justification: "Aceite de motor",
		Items:         []RequisitionItemInput{{ProductID: 31, Quantity: 20, EstimatedUnitCost: 180}},
	})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, req.ID, 9, "")
	require.NoError(t, err)

	_, err = svc.CreateOrder(ctx, CreateOrderInput{
		RequisitionID: req.ID,
		SupplierID:    supplier.ID,
		Items:         []OrderItemInput{{RequisitionItemID: req.Items[0].ID, Quantity: 20, UnitPrice: 175}},
		ActorID:       9,
	})
	require.ErrorIs(t, err, ErrSupplierInactive)
}
