package procurement

import (
	"errors"
	"time"
)

// RequisitionStatus enumerates requisition states.
type RequisitionStatus string

// Requisition lifecycle.
const (
	RequisitionPending   RequisitionStatus = "PENDIENTE"
	RequisitionApproved  RequisitionStatus = "APROBADA"
	RequisitionRejected  RequisitionStatus = "RECHAZADA"
	RequisitionBuying    RequisitionStatus = "EN_COMPRA"
	RequisitionCompleted RequisitionStatus = "COMPLETADA"
	RequisitionCancelled RequisitionStatus = "CANCELADA"
)

// OrderStatus enumerates purchase-order states.
type OrderStatus string

// Purchase-order lifecycle.
const (
	OrderPending   OrderStatus = "PENDIENTE"
	OrderSent      OrderStatus = "ENVIADA"
	OrderConfirmed OrderStatus = "CONFIRMADA"
	OrderInTransit OrderStatus = "EN_TRANSITO"
	OrderReceived  OrderStatus = "RECIBIDA"
	OrderCancelled OrderStatus = "CANCELADA"
)

// Folio prefixes for procurement documents.
const (
	FolioPrefixRequisition = "REQ"
	FolioPrefixOrder       = "OC"
)

// orderTransitions is the allowed purchase-order state machine.
// Receiving goes through ReceiveOrder, which posts stock and costs.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderSent, OrderCancelled},
	OrderSent:      {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderInTransit, OrderReceived, OrderCancelled},
	OrderInTransit: {OrderReceived, OrderCancelled},
}

// CanTransitionOrder reports whether an order may move between states.
func CanTransitionOrder(from, to OrderStatus) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminalOrder reports whether an order state accepts no further changes.
func IsTerminalOrder(status OrderStatus) bool {
	return status == OrderReceived || status == OrderCancelled
}

// IsTerminalRequisition reports whether a requisition state is final.
func IsTerminalRequisition(status RequisitionStatus) bool {
	return status == RequisitionRejected || status == RequisitionCompleted || status == RequisitionCancelled
}

// Supplier is a registered vendor.
type Supplier struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	RFC       string    `json:"rfc"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Contact   string    `json:"contact"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Requisition is a purchase request awaiting approval.
type Requisition struct {
	ID               int64             `json:"id"`
	Folio            string            `json:"folio"`
	RequesterID      int64             `json:"requester_id"`
	WorkOrderID      *int64            `json:"work_order_id,omitempty"`
	WorkOrderFolio   string            `json:"work_order_folio,omitempty"`
	RequiredBy       *time.Time        `json:"required_by,omitempty"`
	Justification    string            `json:"justification"`
	Status           RequisitionStatus `json:"status"`
	ApproverID       *int64            `json:"approver_id,omitempty"`
	ApprovedAt       *time.Time        `json:"approved_at,omitempty"`
	ApprovalComments string            `json:"approval_comments"`
	CreatedAt        time.Time         `json:"created_at"`
	Items            []RequisitionItem `json:"items,omitempty"`
}

// RequisitionItem is one requested product.
type RequisitionItem struct {
	ID                int64   `json:"id"`
	RequisitionID     int64   `json:"requisition_id"`
	ProductID         int64   `json:"product_id"`
	Quantity          float64 `json:"quantity"`
	Notes             string  `json:"notes"`
	EstimatedUnitCost float64 `json:"estimated_unit_cost"`
}

// PurchaseOrder is an order placed with a supplier for an approved
// requisition.
type PurchaseOrder struct {
	ID                int64       `json:"id"`
	Folio             string      `json:"folio"`
	RequisitionID     int64       `json:"requisition_id"`
	SupplierID        int64       `json:"supplier_id"`
	CreatedByID       int64       `json:"created_by_id"`
	Status            OrderStatus `json:"status"`
	EstimatedDelivery *time.Time  `json:"estimated_delivery,omitempty"`
	InvoiceNumber     string      `json:"invoice_number"`
	InvoiceDate       *time.Time  `json:"invoice_date,omitempty"`
	InvoiceAmount     *float64    `json:"invoice_amount,omitempty"`
	Notes             string      `json:"notes"`
	CreatedAt         time.Time   `json:"created_at"`
	Items             []OrderItem `json:"items,omitempty"`
}

// Total sums the order item subtotals.
func (o PurchaseOrder) Total() float64 {
	total := 0.0
	for _, item := range o.Items {
		total += item.Subtotal()
	}
	return total
}

// OrderItem is one purchased line, tied back to the requisition item
// it fulfils. QtyReceived accumulates across receipts until it covers
// Quantity.
type OrderItem struct {
	ID                int64   `json:"id"`
	OrderID           int64   `json:"order_id"`
	RequisitionItemID int64   `json:"requisition_item_id"`
	ProductID         int64   `json:"product_id"`
	Quantity          float64 `json:"quantity"`
	UnitPrice         float64 `json:"unit_price"`
	QtyReceived       float64 `json:"qty_received"`
}

// Outstanding returns how much of the line remains to be received.
func (i OrderItem) Outstanding() float64 {
	return i.Quantity - i.QtyReceived
}

// Subtotal returns quantity times unit price.
func (i OrderItem) Subtotal() float64 {
	return i.Quantity * i.UnitPrice
}

// Receipt records a purchase order arriving at the warehouse.
type Receipt struct {
	ID           int64         `json:"id"`
	OrderID      int64         `json:"order_id"`
	ReceivedByID int64         `json:"received_by_id"`
	Location     string        `json:"location"`
	Remission    string        `json:"remission"`
	Observations string        `json:"observations"`
	ReceivedAt   time.Time     `json:"received_at"`
	Items        []ReceiptItem `json:"items,omitempty"`
}

// ReceiptItem is one received line. Accepted quantity enters stock,
// rejected quantity does not.
type ReceiptItem struct {
	ID           int64   `json:"id"`
	ReceiptID    int64   `json:"receipt_id"`
	OrderItemID  int64   `json:"order_item_id"`
	QtyReceived  float64 `json:"qty_received"`
	QtyAccepted  float64 `json:"qty_accepted"`
	QtyRejected  float64 `json:"qty_rejected"`
	RejectReason string  `json:"reject_reason"`
}

// CreateSupplierInput carries supplier registration fields.
type CreateSupplierInput struct {
	Name    string `json:"name" validate:"required"`
	RFC     string `json:"rfc" validate:"required,min=12,max=13"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email" validate:"omitempty,email"`
	Contact string `json:"contact"`
}

// RequisitionItemInput is one requested line.
type RequisitionItemInput struct {
	ProductID         int64   `json:"product_id" validate:"required"`
	Quantity          float64 `json:"quantity" validate:"gt=0"`
	Notes             string  `json:"notes"`
	EstimatedUnitCost float64 `json:"estimated_unit_cost" validate:"gte=0"`
}

// CreateRequisitionInput carries requisition fields.
type CreateRequisitionInput struct {
	RequesterID   int64                  `json:"requester_id" validate:"required"`
	RequiredBy    *time.Time             `json:"required_by"`
	Justification string                 `json:"justification" validate:"required"`
	Items         []RequisitionItemInput `json:"items" validate:"required,min=1,dive"`
}

// OrderItemInput selects a requisition item and prices it.
type OrderItemInput struct {
	RequisitionItemID int64   `json:"requisition_item_id" validate:"required"`
	Quantity          float64 `json:"quantity" validate:"gt=0"`
	UnitPrice         float64 `json:"unit_price" validate:"gte=0"`
}

// CreateOrderInput carries purchase-order fields.
type CreateOrderInput struct {
	RequisitionID     int64            `json:"requisition_id" validate:"required"`
	SupplierID        int64            `json:"supplier_id" validate:"required"`
	EstimatedDelivery *time.Time       `json:"estimated_delivery"`
	Notes             string           `json:"notes"`
	Items             []OrderItemInput `json:"items" validate:"required,min=1,dive"`
	ActorID           int64            `json:"-"`
}

// ReceiptItemInput is one received line.
type ReceiptItemInput struct {
	OrderItemID  int64   `json:"order_item_id" validate:"required"`
	QtyReceived  float64 `json:"qty_received" validate:"gt=0"`
	QtyAccepted  float64 `json:"qty_accepted" validate:"gte=0"`
	QtyRejected  float64 `json:"qty_rejected" validate:"gte=0"`
	RejectReason string  `json:"reject_reason"`
}

// ReceiveOrderInput carries warehouse receipt fields.
type ReceiveOrderInput struct {
	Location     string             `json:"location" validate:"required"`
	Remission    string             `json:"remission"`
	Observations string             `json:"observations"`
	Items        []ReceiptItemInput `json:"items" validate:"required,min=1,dive"`
	ActorID      int64              `json:"-"`
}

// RequisitionFilter narrows requisition listings.
type RequisitionFilter struct {
	Status      RequisitionStatus
	RequesterID int64
	WorkOrderID int64
	Limit       int
	Offset      int
}

// OrderFilter narrows purchase-order listings.
type OrderFilter struct {
	Status        OrderStatus
	SupplierID    int64
	RequisitionID int64
	Limit         int
	Offset        int
}

// Sentinel errors for the procurement module.
var (
	ErrSupplierNotFound    = errors.New("procurement: supplier not found")
	ErrDuplicateSupplier   = errors.New("procurement: supplier RFC already registered")
	ErrSupplierInactive    = errors.New("procurement: supplier is inactive")
	ErrRequisitionNotFound = errors.New("procurement: requisition not found")
	ErrOrderNotFound       = errors.New("procurement: purchase order not found")
	ErrItemNotFound        = errors.New("procurement: item not found")
	ErrNotApprovable       = errors.New("procurement: requisition is not pending approval")
	ErrNotApproved         = errors.New("procurement: requisition is not approved for purchase")
	ErrOrderTerminal       = errors.New("procurement: purchase order is in a terminal state")
	ErrInvalidTransition   = errors.New("procurement: status transition not allowed")
	ErrReceiptQuantities   = errors.New("procurement: accepted plus rejected must equal received")
	ErrReceiptExceedsOrder = errors.New("procurement: received quantity exceeds the outstanding ordered amount")
	ErrCommentsRequired    = errors.New("procurement: rejection requires comments")
)
