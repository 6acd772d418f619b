package warehouse

import (
	"errors"
	"time"
)

// EntryType classifies how goods entered the warehouse.
type EntryType string

// Entry types.
const (
	EntryInvoice          EntryType = "FACTURA"
	EntryWorkshopRepaired EntryType = "TALLER_REPARADO"
	EntryWorkshopRecycled EntryType = "TALLER_RECICLADO"
	EntryAdjustment       EntryType = "AJUSTE"
)

// RequestType classifies exit requests.
type RequestType string

// Exit-request types. Work-order requests skip the authorization
// queue, the work order itself is the authorization.
const (
	RequestWorkOrder RequestType = "ORDEN_TRABAJO"
	RequestGeneral   RequestType = "SOLICITUD_GENERAL"
)

// RequestStatus enumerates exit-request states.
type RequestStatus string

// Exit-request lifecycle.
const (
	RequestPending    RequestStatus = "PENDIENTE"
	RequestAuthorized RequestStatus = "AUTORIZADA"
	RequestRejected   RequestStatus = "RECHAZADA"
	RequestDelivered  RequestStatus = "ENTREGADA"
	RequestCancelled  RequestStatus = "CANCELADA"
)

// MovementType classifies ledger movements.
type MovementType string

// Movement types.
const (
	MovementEntry      MovementType = "ENTRADA"
	MovementExit       MovementType = "SALIDA"
	MovementAdjustment MovementType = "AJUSTE"
	MovementTransfer   MovementType = "TRASLADO"
)

// AlertType enumerates automatic stock alerts.
type AlertType string

// Stock alert types. Out-of-stock takes priority over minimum stock.
const (
	AlertStockMin AlertType = "STOCK_MINIMO"
	AlertStockOut AlertType = "STOCK_AGOTADO"
	AlertExpiring AlertType = "PROXIMO_CADUCAR"
	AlertExpired  AlertType = "CADUCADO"
)

// Folio prefixes for warehouse documents.
const (
	FolioPrefixEntry    = "ENT"
	FolioPrefixRequest  = "SOL"
	FolioPrefixExit     = "SAL"
	FolioPrefixQuickOut = "CON"
)

// Product is one catalogued warehouse item with its live stock level.
type Product struct {
	ID          int64      `json:"id"`
	SKU         string     `json:"sku"`
	Barcode     *string    `json:"barcode,omitempty"`
	Category    string     `json:"category"`
	Subcategory string     `json:"subcategory"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	Quantity    float64    `json:"quantity"`
	Unit        string     `json:"unit"`
	StockMin    float64    `json:"stock_min"`
	StockMax    float64    `json:"stock_max"`
	UnitCost    float64    `json:"unit_cost"`
	HasExpiry   bool       `json:"has_expiry"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	SupplierID  *int64     `json:"supplier_id,omitempty"`
	ReorderDays int        `json:"reorder_days"`
	Notes       string     `json:"notes"`
	Consumable  bool       `json:"consumable"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TotalCost values the stock on hand.
func (p Product) TotalCost() float64 {
	return p.Quantity * p.UnitCost
}

// StockOut reports whether the product ran out.
func (p Product) StockOut() bool {
	return p.Quantity <= 0
}

// StockLow reports whether stock sits at or below the minimum.
func (p Product) StockLow() bool {
	return p.StockMin > 0 && p.Quantity <= p.StockMin
}

// StockExceeded reports whether stock overshoots the configured maximum.
func (p Product) StockExceeded() bool {
	return p.StockMax > 0 && p.Quantity > p.StockMax
}

// Expired reports whether the product passed its expiry date.
func (p Product) Expired(now time.Time) bool {
	if !p.HasExpiry || p.ExpiryDate == nil {
		return false
	}
	return p.ExpiryDate.Before(now.Truncate(24 * time.Hour))
}

// ExpiringSoon reports whether the product expires within the window.
func (p Product) ExpiringSoon(now time.Time, days int) bool {
	if !p.HasExpiry || p.ExpiryDate == nil || p.Expired(now) {
		return false
	}
	return !p.ExpiryDate.After(now.AddDate(0, 0, days))
}

// Entry is a folio-numbered goods entry.
type Entry struct {
	ID            int64       `json:"id"`
	Folio         string      `json:"folio"`
	Type          EntryType   `json:"type"`
	OrderFolio    string      `json:"order_folio,omitempty"`
	WorkOrderID   *int64      `json:"work_order_id,omitempty"`
	ReceivedByID  int64       `json:"received_by_id"`
	InvoiceNumber string      `json:"invoice_number"`
	ShippingCost  float64     `json:"shipping_cost"`
	ExtraCost     float64     `json:"extra_cost"`
	Observations  string      `json:"observations"`
	EnteredAt     time.Time   `json:"entered_at"`
	Items         []EntryItem `json:"items,omitempty"`
}

// ProductsCost sums the entry line costs.
func (e Entry) ProductsCost() float64 {
	total := 0.0
	for _, item := range e.Items {
		total += item.Quantity * item.UnitCost
	}
	return total
}

// TotalCost includes shipping and extra charges.
func (e Entry) TotalCost() float64 {
	return e.ProductsCost() + e.ShippingCost + e.ExtraCost
}

// EntryItem is one product line inside an entry.
type EntryItem struct {
	ID           int64      `json:"id"`
	EntryID      int64      `json:"entry_id"`
	ProductID    int64      `json:"product_id"`
	Quantity     float64    `json:"quantity"`
	UnitCost     float64    `json:"unit_cost"`
	Batch        string     `json:"batch"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	Location     string     `json:"location"`
	Observations string     `json:"observations"`
}

// ExitRequest is a folio-numbered request to take products out.
type ExitRequest struct {
	ID               int64             `json:"id"`
	Folio            string            `json:"folio"`
	Type             RequestType       `json:"type"`
	WorkOrderID      *int64            `json:"work_order_id,omitempty"`
	RequesterID      int64             `json:"requester_id"`
	Status           RequestStatus     `json:"status"`
	Justification    string            `json:"justification"`
	AuthorizerID     *int64            `json:"authorizer_id,omitempty"`
	AuthorizedAt     *time.Time        `json:"authorized_at,omitempty"`
	AuthorizationLog string            `json:"authorization_log"`
	CreatedAt        time.Time         `json:"created_at"`
	Items            []ExitRequestItem `json:"items,omitempty"`
}

// FullyDelivered reports whether every line reached its requested amount.
func (r ExitRequest) FullyDelivered() bool {
	if len(r.Items) == 0 {
		return false
	}
	for _, item := range r.Items {
		if !item.Complete() {
			return false
		}
	}
	return true
}

// ExitRequestItem is one requested line with running delivery progress.
type ExitRequestItem struct {
	ID           int64   `json:"id"`
	RequestID    int64   `json:"request_id"`
	ProductID    int64   `json:"product_id"`
	QtyRequested float64 `json:"qty_requested"`
	QtyDelivered float64 `json:"qty_delivered"`
	Notes        string  `json:"notes"`
}

// Pending returns the quantity still owed.
func (i ExitRequestItem) Pending() float64 {
	return i.QtyRequested - i.QtyDelivered
}

// Complete reports whether the line was delivered in full.
func (i ExitRequestItem) Complete() bool {
	return i.QtyDelivered >= i.QtyRequested
}

// Exit is an effective, folio-numbered delivery against a request.
type Exit struct {
	ID            int64      `json:"id"`
	Folio         string     `json:"folio"`
	RequestID     int64      `json:"request_id"`
	DeliveredToID int64      `json:"delivered_to_id"`
	DeliveredByID int64      `json:"delivered_by_id"`
	Observations  string     `json:"observations"`
	ExitedAt      time.Time  `json:"exited_at"`
	Items         []ExitItem `json:"items,omitempty"`
}

// ExitItem is one delivered line.
type ExitItem struct {
	ID            int64   `json:"id"`
	ExitID        int64   `json:"exit_id"`
	RequestItemID int64   `json:"request_item_id"`
	ProductID     int64   `json:"product_id"`
	QtyDelivered  float64 `json:"qty_delivered"`
	Batch         string  `json:"batch"`
	FromLocation  string  `json:"from_location"`
}

// QuickExit is a consumable handed out without the authorization flow.
type QuickExit struct {
	ID            int64     `json:"id"`
	Folio         string    `json:"folio"`
	ProductID     int64     `json:"product_id"`
	Quantity      float64   `json:"quantity"`
	DeliveredByID int64     `json:"delivered_by_id"`
	RequesterName string    `json:"requester_name"`
	Reason        string    `json:"reason"`
	ExitedAt      time.Time `json:"exited_at"`
}

// Movement is one row of the immutable stock ledger. Quantity is
// signed, before/after snapshot the stock around the move.
type Movement struct {
	ID           int64        `json:"id"`
	Type         MovementType `json:"type"`
	ProductID    int64        `json:"product_id"`
	Quantity     float64      `json:"quantity"`
	QtyBefore    float64      `json:"qty_before"`
	QtyAfter     float64      `json:"qty_after"`
	EntryID      *int64       `json:"entry_id,omitempty"`
	ExitID       *int64       `json:"exit_id,omitempty"`
	ActorID      int64        `json:"actor_id"`
	Observations string       `json:"observations"`
	At           time.Time    `json:"at"`
}

// StockAlert is an automatic inventory alert. At most one open alert
// exists per product and type.
type StockAlert struct {
	ID           int64      `json:"id"`
	ProductID    int64      `json:"product_id"`
	Type         AlertType  `json:"type"`
	Message      string     `json:"message"`
	Resolved     bool       `json:"resolved"`
	ResolvedByID *int64     `json:"resolved_by_id,omitempty"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CreateProductInput carries catalogue fields.
type CreateProductInput struct {
	SKU         string     `json:"sku" validate:"required"`
	Barcode     *string    `json:"barcode"`
	Category    string     `json:"category" validate:"required"`
	Subcategory string     `json:"subcategory"`
	Description string     `json:"description" validate:"required"`
	Location    string     `json:"location" validate:"required"`
	Quantity    float64    `json:"quantity" validate:"gte=0"`
	Unit        string     `json:"unit" validate:"required"`
	StockMin    float64    `json:"stock_min" validate:"gte=0"`
	StockMax    float64    `json:"stock_max" validate:"gte=0"`
	UnitCost    float64    `json:"unit_cost" validate:"gte=0"`
	HasExpiry   bool       `json:"has_expiry"`
	ExpiryDate  *time.Time `json:"expiry_date"`
	SupplierID  *int64     `json:"supplier_id"`
	ReorderDays int        `json:"reorder_days" validate:"gte=0"`
	Notes       string     `json:"notes"`
	Consumable  bool       `json:"consumable"`
}

// UpdateProductInput carries partial catalogue updates. Stock levels
// change only through entries, exits and adjustments.
type UpdateProductInput struct {
	Category    *string    `json:"category"`
	Subcategory *string    `json:"subcategory"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	Unit        *string    `json:"unit"`
	StockMin    *float64   `json:"stock_min" validate:"omitempty,gte=0"`
	StockMax    *float64   `json:"stock_max" validate:"omitempty,gte=0"`
	UnitCost    *float64   `json:"unit_cost" validate:"omitempty,gte=0"`
	HasExpiry   *bool      `json:"has_expiry"`
	ExpiryDate  *time.Time `json:"expiry_date"`
	SupplierID  *int64     `json:"supplier_id"`
	ReorderDays *int       `json:"reorder_days" validate:"omitempty,gte=0"`
	Notes       *string    `json:"notes"`
	Consumable  *bool      `json:"consumable"`
	Active      *bool      `json:"active"`
}

// EntryItemInput is one incoming product line.
type EntryItemInput struct {
	ProductID    int64      `json:"product_id" validate:"required"`
	Quantity     float64    `json:"quantity" validate:"gt=0"`
	UnitCost     float64    `json:"unit_cost" validate:"gte=0"`
	Batch        string     `json:"batch"`
	ExpiryDate   *time.Time `json:"expiry_date"`
	Location     string     `json:"location"`
	Observations string     `json:"observations"`
}

// CreateEntryInput carries goods-entry fields.
type CreateEntryInput struct {
	Type          EntryType        `json:"type" validate:"required,oneof=FACTURA TALLER_REPARADO TALLER_RECICLADO AJUSTE"`
	OrderFolio    string           `json:"order_folio"`
	WorkOrderID   *int64           `json:"work_order_id"`
	InvoiceNumber string           `json:"invoice_number"`
	ShippingCost  float64          `json:"shipping_cost" validate:"gte=0"`
	ExtraCost     float64          `json:"extra_cost" validate:"gte=0"`
	Observations  string           `json:"observations"`
	Items         []EntryItemInput `json:"items" validate:"required,min=1,dive"`
	ActorID       int64            `json:"actor_id"`
}

// ExitRequestItemInput is one requested line.
type ExitRequestItemInput struct {
	ProductID    int64   `json:"product_id" validate:"required"`
	QtyRequested float64 `json:"qty_requested" validate:"gt=0"`
	Notes        string  `json:"notes"`
}

// CreateExitRequestInput carries exit-request fields.
type CreateExitRequestInput struct {
	Type          RequestType            `json:"type" validate:"required,oneof=ORDEN_TRABAJO SOLICITUD_GENERAL"`
	WorkOrderID   *int64                 `json:"work_order_id"`
	RequesterID   int64                  `json:"requester_id" validate:"required"`
	Justification string                 `json:"justification" validate:"required"`
	Items         []ExitRequestItemInput `json:"items" validate:"required,min=1,dive"`
}

// DeliverItemInput is one delivered line.
type DeliverItemInput struct {
	RequestItemID int64   `json:"request_item_id" validate:"required"`
	Quantity      float64 `json:"quantity" validate:"gt=0"`
	Batch         string  `json:"batch"`
	FromLocation  string  `json:"from_location"`
}

// DeliverInput carries delivery fields for an authorized request.
type DeliverInput struct {
	DeliveredToID int64              `json:"delivered_to_id" validate:"required"`
	Observations  string             `json:"observations"`
	Items         []DeliverItemInput `json:"items" validate:"required,min=1,dive"`
	ActorID       int64              `json:"actor_id"`
}

// QuickExitInput carries consumable hand-out fields.
type QuickExitInput struct {
	ProductID     int64   `json:"product_id" validate:"required"`
	Quantity      float64 `json:"quantity" validate:"gt=0"`
	RequesterName string  `json:"requester_name" validate:"required"`
	Reason        string  `json:"reason"`
	ActorID       int64   `json:"actor_id"`
}

// AdjustStockInput carries a manual inventory correction.
type AdjustStockInput struct {
	NewQuantity float64 `json:"new_quantity" validate:"gte=0"`
	Reason      string  `json:"reason" validate:"required"`
	ActorID     int64   `json:"actor_id"`
}

// ProductFilter narrows catalogue listings.
type ProductFilter struct {
	Category   string
	Search     string
	Consumable *bool
	ActiveOnly bool
	LowStock   bool
	Limit      int
	Offset     int
}

// RequestFilter narrows exit-request listings.
type RequestFilter struct {
	Status      RequestStatus
	Type        RequestType
	WorkOrderID int64
	Limit       int
	Offset      int
}

// Sentinel errors for the warehouse module.
var (
	ErrProductNotFound   = errors.New("warehouse: product not found")
	ErrDuplicateSKU      = errors.New("warehouse: SKU already registered")
	ErrProductInactive   = errors.New("warehouse: product is inactive")
	ErrInsufficientStock = errors.New("warehouse: insufficient stock")
	ErrEntryNotFound     = errors.New("warehouse: entry not found")
	ErrRequestNotFound   = errors.New("warehouse: exit request not found")
	ErrExitNotFound      = errors.New("warehouse: exit not found")
	ErrItemNotFound      = errors.New("warehouse: item not found")
	ErrRequestNotPending = errors.New("warehouse: request is not pending authorization")
	ErrRequestNotOpen    = errors.New("warehouse: request does not accept deliveries")
	ErrQuantityExceeds   = errors.New("warehouse: delivery exceeds requested quantity")
	ErrNotConsumable     = errors.New("warehouse: product is not a consumable")
	ErrCommentsRequired  = errors.New("warehouse: rejection requires comments")
	ErrAlertNotFound     = errors.New("warehouse: alert not found")
	ErrAlertResolved     = errors.New("warehouse: alert already resolved")
)
