package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/flotilla-erp/flotilla/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateSupplier(ctx context.Context, input CreateSupplierInput) (Supplier, error)
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	ListSuppliers(ctx context.Context, activeOnly bool) ([]Supplier, error)
	SetSupplierActive(ctx context.Context, id int64, active bool) error
	InsertRequisition(ctx context.Context, req Requisition) (Requisition, error)
	GetRequisition(ctx context.Context, id int64) (Requisition, error)
	ListRequisitions(ctx context.Context, filter RequisitionFilter) ([]Requisition, error)
	SetApproval(ctx context.Context, id int64, status RequisitionStatus, approverID int64, comments string, at time.Time) error
	SetRequisitionStatus(ctx context.Context, id int64, status RequisitionStatus) error
	InsertOrder(ctx context.Context, order PurchaseOrder) (PurchaseOrder, error)
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]PurchaseOrder, error)
	OpenOrdersForRequisition(ctx context.Context, requisitionID int64) (int, error)
	SetInvoice(ctx context.Context, id int64, number string, date *time.Time, amount *float64) error
	ListReceipts(ctx context.Context, orderID int64) ([]Receipt, error)
	MaxFolioForDay(ctx context.Context, dayPrefix string) (string, error)
}

// FolioPort issues day-scoped folios.
type FolioPort interface {
	Next(ctx context.Context, prefix string) (string, error)
}

// WorkOrderLine is one workshop part requested through procurement.
type WorkOrderLine struct {
	PartID            int64
	ProductID         int64
	Quantity          float64
	EstimatedUnitCost float64
	Notes             string
}

// ReceivedLine carries one received requisition item and its real
// unit cost back to the workshop.
type ReceivedLine struct {
	RequisitionItemID int64
	UnitCost          *float64
}

// WorkshopPort pushes purchase progress back to workshop parts.
type WorkshopPort interface {
	MarkPartsInPurchase(ctx context.Context, requisitionItemIDs []int64) error
	PartsReceived(ctx context.Context, lines []ReceivedLine, actorID int64) error
}

// EntryLine is one accepted product entering stock.
type EntryLine struct {
	ProductID int64
	Quantity  float64
	UnitCost  float64
}

// PurchaseEntry is a stock entry posted to the warehouse when a
// purchase order is received.
type PurchaseEntry struct {
	OrderFolio   string
	SupplierID   int64
	Location     string
	Remission    string
	ReceivedByID int64
	Lines        []EntryLine
}

// WarehousePort posts received goods into stock.
type WarehousePort interface {
	RegisterPurchaseEntry(ctx context.Context, entry PurchaseEntry) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the requisition, purchase-order and receipt chain.
type Service struct {
	repo      RepositoryPort
	folios    FolioPort
	workshop  WorkshopPort
	warehouse WarehousePort
	audit     AuditPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds Service. Workshop and warehouse ports may be nil.
func NewService(repo RepositoryPort, folios FolioPort, workshop WorkshopPort, warehouse WarehousePort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		folios:    folios,
		workshop:  workshop,
		warehouse: warehouse,
		audit:     audit,
		logger:    logger,
		now:       time.Now,
	}
}

// SetWorkshop wires the workshop port after construction. The two
// services reference each other, so one side is attached during wiring.
func (s *Service) SetWorkshop(port WorkshopPort) {
	s.workshop = port
}

// SetWarehouse wires the warehouse port after construction.
func (s *Service) SetWarehouse(port WarehousePort) {
	s.warehouse = port
}

// CreateSupplier registers a supplier.
func (s *Service) CreateSupplier(ctx context.Context, input CreateSupplierInput) (Supplier, error) {
	supplier, err := s.repo.CreateSupplier(ctx, input)
	if err != nil {
		return Supplier{}, err
	}
	s.recordAudit(ctx, 0, "procurement.supplier.create", "supplier", supplier.ID, supplier.RFC)
	return supplier, nil
}

// GetSupplier loads one supplier.
func (s *Service) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

// ListSuppliers returns suppliers, optionally only active ones.
func (s *Service) ListSuppliers(ctx context.Context, activeOnly bool) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx, activeOnly)
}

// SetSupplierActive toggles a supplier.
func (s *Service) SetSupplierActive(ctx context.Context, id int64, active bool, actorID int64) error {
	if err := s.repo.SetSupplierActive(ctx, id, active); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "procurement.supplier.toggle", "supplier", id, strconv.FormatBool(active))
	return nil
}

// CreateRequisition opens a purchase request pending approval.
func (s *Service) CreateRequisition(ctx context.Context, input CreateRequisitionInput) (Requisition, error) {
	folio, err := s.nextFolio(ctx, FolioPrefixRequisition)
	if err != nil {
		return Requisition{}, err
	}
	req := Requisition{
		Folio:         folio,
		RequesterID:   input.RequesterID,
		RequiredBy:    input.RequiredBy,
		Justification: input.Justification,
		Status:        RequisitionPending,
	}
	for _, item := range input.Items {
		req.Items = append(req.Items, RequisitionItem{
			ProductID:         item.ProductID,
			Quantity:          item.Quantity,
			Notes:             item.Notes,
			EstimatedUnitCost: item.EstimatedUnitCost,
		})
	}
	created, err := s.repo.InsertRequisition(ctx, req)
	if err != nil {
		return Requisition{}, err
	}
	s.recordAudit(ctx, input.RequesterID, "procurement.requisition.create", "requisition", created.ID, created.Folio)
	return created, nil
}

// CreateRequisitionFromWorkOrder opens a requisition for workshop
// parts and returns the part-to-item linkage.
func (s *Service) CreateRequisitionFromWorkOrder(ctx context.Context, workOrderID int64, workOrderFolio string, lines []WorkOrderLine, actorID int64) (Requisition, map[int64]int64, error) {
	folio, err := s.nextFolio(ctx, FolioPrefixRequisition)
	if err != nil {
		return Requisition{}, nil, err
	}
	req := Requisition{
		Folio:          folio,
		RequesterID:    actorID,
		WorkOrderID:    &workOrderID,
		WorkOrderFolio: workOrderFolio,
		Justification:  fmt.Sprintf("Piezas para orden de trabajo %s", workOrderFolio),
		Status:         RequisitionPending,
	}
	for _, line := range lines {
		req.Items = append(req.Items, RequisitionItem{
			ProductID:         line.ProductID,
			Quantity:          line.Quantity,
			Notes:             line.Notes,
			EstimatedUnitCost: line.EstimatedUnitCost,
		})
	}
	created, err := s.repo.InsertRequisition(ctx, req)
	if err != nil {
		return Requisition{}, nil, err
	}
	// Items come back in insertion order, matching the request lines.
	linkage := make(map[int64]int64, len(lines))
	for i, line := range lines {
		linkage[line.PartID] = created.Items[i].ID
	}
	s.recordAudit(ctx, actorID, "procurement.requisition.create", "requisition", created.ID, created.Folio+" para "+workOrderFolio)
	return created, linkage, nil
}

// Approve accepts a pending requisition.
func (s *Service) Approve(ctx context.Context, id, approverID int64, comments string) (Requisition, error) {
	return s.resolveApproval(ctx, id, approverID, RequisitionApproved, comments)
}

// Reject turns down a pending requisition. Comments are mandatory so
// the requester knows why.
func (s *Service) Reject(ctx context.Context, id, approverID int64, comments string) (Requisition, error) {
	if comments == "" {
		return Requisition{}, ErrCommentsRequired
	}
	return s.resolveApproval(ctx, id, approverID, RequisitionRejected, comments)
}

func (s *Service) resolveApproval(ctx context.Context, id, approverID int64, status RequisitionStatus, comments string) (Requisition, error) {
	req, err := s.repo.GetRequisition(ctx, id)
	if err != nil {
		return Requisition{}, err
	}
	if req.Status != RequisitionPending {
		return Requisition{}, ErrNotApprovable
	}
	if err := s.repo.SetApproval(ctx, id, status, approverID, comments, s.now()); err != nil {
		return Requisition{}, err
	}
	s.recordAudit(ctx, approverID, "procurement.requisition."+string(status), "requisition", id, req.Folio)
	return s.repo.GetRequisition(ctx, id)
}

// CancelRequisition aborts a requisition that has not entered purchasing.
func (s *Service) CancelRequisition(ctx context.Context, id, actorID int64) (Requisition, error) {
	req, err := s.repo.GetRequisition(ctx, id)
	if err != nil {
		return Requisition{}, err
	}
	if req.Status != RequisitionPending && req.Status != RequisitionApproved {
		return Requisition{}, ErrInvalidTransition
	}
	if err := s.repo.SetRequisitionStatus(ctx, id, RequisitionCancelled); err != nil {
		return Requisition{}, err
	}
	s.recordAudit(ctx, actorID, "procurement.requisition.cancel", "requisition", id, req.Folio)
	return s.repo.GetRequisition(ctx, id)
}

// GetRequisition loads a requisition with its items.
func (s *Service) GetRequisition(ctx context.Context, id int64) (Requisition, error) {
	return s.repo.GetRequisition(ctx, id)
}

// ListRequisitions returns requisitions matching the filter.
func (s *Service) ListRequisitions(ctx context.Context, filter RequisitionFilter) ([]Requisition, error) {
	return s.repo.ListRequisitions(ctx, filter)
}

// CreateOrder places a purchase order for an approved requisition and
// moves the requisition into purchasing.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (PurchaseOrder, error) {
	req, err := s.repo.GetRequisition(ctx, input.RequisitionID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if req.Status != RequisitionApproved && req.Status != RequisitionBuying {
		return PurchaseOrder{}, ErrNotApproved
	}
	supplier, err := s.repo.GetSupplier(ctx, input.SupplierID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !supplier.Active {
		return PurchaseOrder{}, ErrSupplierInactive
	}

	products := make(map[int64]int64, len(req.Items))
	for _, item := range req.Items {
		products[item.ID] = item.ProductID
	}
	order := PurchaseOrder{
		RequisitionID:     input.RequisitionID,
		SupplierID:        input.SupplierID,
		CreatedByID:       input.ActorID,
		Status:            OrderPending,
		EstimatedDelivery: input.EstimatedDelivery,
		Notes:             input.Notes,
	}
	itemIDs := make([]int64, 0, len(input.Items))
	for _, item := range input.Items {
		productID, ok := products[item.RequisitionItemID]
		if !ok {
			return PurchaseOrder{}, ErrItemNotFound
		}
		order.Items = append(order.Items, OrderItem{
			RequisitionItemID: item.RequisitionItemID,
			ProductID:         productID,
			Quantity:          item.Quantity,
			UnitPrice:         item.UnitPrice,
		})
		itemIDs = append(itemIDs, item.RequisitionItemID)
	}

	order.Folio, err = s.nextFolio(ctx, FolioPrefixOrder)
	if err != nil {
		return PurchaseOrder{}, err
	}
	created, err := s.repo.InsertOrder(ctx, order)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if req.Status != RequisitionBuying {
		if err := s.repo.SetRequisitionStatus(ctx, req.ID, RequisitionBuying); err != nil {
			return PurchaseOrder{}, err
		}
	}
	if s.workshop != nil && req.WorkOrderID != nil {
		if err := s.workshop.MarkPartsInPurchase(ctx, itemIDs); err != nil {
			s.logger.Warn("mark workshop parts in purchase", slog.String("folio", created.Folio), slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, input.ActorID, "procurement.order.create", "purchase_order", created.ID, created.Folio)
	return created, nil
}

// AdvanceOrder applies a supplier-side transition. Receiving goes
// through Receive, which posts stock and costs.
func (s *Service) AdvanceOrder(ctx context.Context, id int64, to OrderStatus, actorID int64) (PurchaseOrder, error) {
	if to == OrderReceived {
		return PurchaseOrder{}, ErrInvalidTransition
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if IsTerminalOrder(order.Status) {
			return ErrOrderTerminal
		}
		if !CanTransitionOrder(order.Status, to) {
			return ErrInvalidTransition
		}
		return tx.SetOrderStatus(ctx, id, to)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actorID, "procurement.order."+string(to), "purchase_order", id, "")
	return s.repo.GetOrder(ctx, id)
}

// AttachInvoice stores supplier invoice data on an order.
func (s *Service) AttachInvoice(ctx context.Context, id int64, number string, date *time.Time, amount *float64, actorID int64) (PurchaseOrder, error) {
	if err := s.repo.SetInvoice(ctx, id, number, date, amount); err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actorID, "procurement.order.invoice", "purchase_order", id, number)
	return s.repo.GetOrder(ctx, id)
}

// Receive posts a warehouse receipt for an order: enters accepted
// quantities into stock and pushes real costs back to workshop parts.
// The order only moves to RECIBIDA once cumulative receipts cover every
// item; a partial receipt leaves it open for the remainder. The
// requisition completes when its last order closes.
func (s *Service) Receive(ctx context.Context, orderID int64, input ReceiveOrderInput) (Receipt, error) {
	var (
		receipt       Receipt
		order         PurchaseOrder
		fullyReceived bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if IsTerminalOrder(order.Status) {
			return ErrOrderTerminal
		}
		if !CanTransitionOrder(order.Status, OrderReceived) {
			return ErrInvalidTransition
		}

		orderItems := make(map[int64]OrderItem, len(order.Items))
		for _, item := range order.Items {
			orderItems[item.ID] = item
		}
		receipt = Receipt{
			OrderID:      orderID,
			ReceivedByID: input.ActorID,
			Location:     input.Location,
			Remission:    input.Remission,
			Observations: input.Observations,
			ReceivedAt:   s.now(),
		}
		for _, line := range input.Items {
			item, ok := orderItems[line.OrderItemID]
			if !ok {
				return ErrItemNotFound
			}
			if line.QtyAccepted+line.QtyRejected != line.QtyReceived {
				return ErrReceiptQuantities
			}
			if line.QtyReceived > item.Outstanding() {
				return fmt.Errorf("%w: item %d", ErrReceiptExceedsOrder, line.OrderItemID)
			}
			item.QtyReceived += line.QtyReceived
			orderItems[line.OrderItemID] = item
			receipt.Items = append(receipt.Items, ReceiptItem{
				OrderItemID:  line.OrderItemID,
				QtyReceived:  line.QtyReceived,
				QtyAccepted:  line.QtyAccepted,
				QtyRejected:  line.QtyRejected,
				RejectReason: line.RejectReason,
			})
		}
		receipt, err = tx.InsertReceipt(ctx, receipt)
		if err != nil {
			return err
		}
		for _, item := range receipt.Items {
			if err := tx.AddOrderItemReceivedQty(ctx, item.OrderItemID, item.QtyReceived); err != nil {
				return err
			}
		}
		fullyReceived = true
		for _, item := range orderItems {
			if item.Outstanding() > 0 {
				fullyReceived = false
				break
			}
		}
		if fullyReceived {
			return tx.SetOrderStatus(ctx, orderID, OrderReceived)
		}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	s.postReceipt(ctx, order, receipt, input.ActorID)

	if fullyReceived {
		open, err := s.repo.OpenOrdersForRequisition(ctx, order.RequisitionID)
		if err == nil && open == 0 {
			if err := s.repo.SetRequisitionStatus(ctx, order.RequisitionID, RequisitionCompleted); err != nil {
				s.logger.Warn("complete requisition", slog.Int64("requisition_id", order.RequisitionID), slog.Any("error", err))
			}
		}
	}
	s.recordAudit(ctx, input.ActorID, "procurement.order.receive", "purchase_order", orderID, order.Folio)
	return receipt, nil
}

// postReceipt propagates a posted receipt to the warehouse and the
// workshop. Failures are logged, the receipt itself already committed.
func (s *Service) postReceipt(ctx context.Context, order PurchaseOrder, receipt Receipt, actorID int64) {
	orderItems := make(map[int64]OrderItem, len(order.Items))
	for _, item := range order.Items {
		orderItems[item.ID] = item
	}

	if s.warehouse != nil {
		entry := PurchaseEntry{
			OrderFolio:   order.Folio,
			SupplierID:   order.SupplierID,
			Location:     receipt.Location,
			Remission:    receipt.Remission,
			ReceivedByID: receipt.ReceivedByID,
		}
		for _, line := range receipt.Items {
			if line.QtyAccepted <= 0 {
				continue
			}
			item := orderItems[line.OrderItemID]
			entry.Lines = append(entry.Lines, EntryLine{ProductID: item.ProductID, Quantity: line.QtyAccepted, UnitCost: item.UnitPrice})
		}
		if len(entry.Lines) > 0 {
			if err := s.warehouse.RegisterPurchaseEntry(ctx, entry); err != nil {
				s.logger.Error("register warehouse entry", slog.String("folio", order.Folio), slog.Any("error", err))
			}
		}
	}

	if s.workshop != nil {
		lines := make([]ReceivedLine, 0, len(receipt.Items))
		for _, line := range receipt.Items {
			if line.QtyAccepted <= 0 {
				continue
			}
			item := orderItems[line.OrderItemID]
			price := item.UnitPrice
			lines = append(lines, ReceivedLine{RequisitionItemID: item.RequisitionItemID, UnitCost: &price})
		}
		if len(lines) > 0 {
			if err := s.workshop.PartsReceived(ctx, lines, actorID); err != nil {
				s.logger.Error("propagate received parts", slog.String("folio", order.Folio), slog.Any("error", err))
			}
		}
	}
}

// CancelOrder aborts a non-terminal purchase order.
func (s *Service) CancelOrder(ctx context.Context, id, actorID int64, reason string) (PurchaseOrder, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if IsTerminalOrder(order.Status) {
			return ErrOrderTerminal
		}
		return tx.SetOrderStatus(ctx, id, OrderCancelled)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actorID, "procurement.order.cancel", "purchase_order", id, reason)
	return s.repo.GetOrder(ctx, id)
}

// GetOrder loads a purchase order with its items.
func (s *Service) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders returns purchase orders matching the filter.
func (s *Service) ListOrders(ctx context.Context, filter OrderFilter) ([]PurchaseOrder, error) {
	return s.repo.ListOrders(ctx, filter)
}

// ListReceipts returns the receipts posted for an order.
func (s *Service) ListReceipts(ctx context.Context, orderID int64) ([]Receipt, error) {
	return s.repo.ListReceipts(ctx, orderID)
}

func (s *Service) nextFolio(ctx context.Context, prefix string) (string, error) {
	folio, err := s.folios.Next(ctx, prefix)
	if err == nil {
		return folio, nil
	}
	s.logger.Warn("folio counter unavailable, using max+1 fallback", slog.String("prefix", prefix), slog.Any("error", err))
	day := s.now().Format("20060102")
	maxExisting, repoErr := s.repo.MaxFolioForDay(ctx, prefix+"-"+day)
	if repoErr != nil {
		return "", repoErr
	}
	return shared.NextFolioAfter(prefix, day, maxExisting), nil
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
