package procurement

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flotilla-erp/flotilla/internal/shared"
)

// Repository persists procurement data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	SetOrderStatus(ctx context.Context, id int64, status OrderStatus) error
	SetRequisitionStatus(ctx context.Context, id int64, status RequisitionStatus) error
	InsertReceipt(ctx context.Context, receipt Receipt) (Receipt, error)
	AddOrderItemReceivedQty(ctx context.Context, orderItemID int64, qty float64) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("procurement repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const supplierColumns = `id, name, rfc, address, phone, email, contact, active, created_at`

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.RFC, &s.Address, &s.Phone, &s.Email, &s.Contact, &s.Active, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrSupplierNotFound
	}
	return s, err
}

const requisitionColumns = `id, folio, requester_id, work_order_id, work_order_folio, required_by, justification, status, approver_id, approved_at, approval_comments, created_at`

func scanRequisition(row pgx.Row) (Requisition, error) {
	var q Requisition
	err := row.Scan(&q.ID, &q.Folio, &q.RequesterID, &q.WorkOrderID, &q.WorkOrderFolio, &q.RequiredBy, &q.Justification, &q.Status, &q.ApproverID, &q.ApprovedAt, &q.ApprovalComments, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Requisition{}, ErrRequisitionNotFound
	}
	return q, err
}

const orderColumns = `id, folio, requisition_id, supplier_id, created_by_id, status, estimated_delivery, invoice_number, invoice_date, invoice_amount, notes, created_at`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var o PurchaseOrder
	err := row.Scan(&o.ID, &o.Folio, &o.RequisitionID, &o.SupplierID, &o.CreatedByID, &o.Status, &o.EstimatedDelivery, &o.InvoiceNumber, &o.InvoiceDate, &o.InvoiceAmount, &o.Notes, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	return o, err
}

// CreateSupplier registers a supplier. RFC is unique.
func (r *Repository) CreateSupplier(ctx context.Context, input CreateSupplierInput) (Supplier, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO suppliers (name, rfc, address, phone, email, contact, active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,TRUE,NOW())
RETURNING `+supplierColumns,
		input.Name, input.RFC, input.Address, input.Phone, input.Email, input.Contact)
	supplier, err := scanSupplier(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Supplier{}, ErrDuplicateSupplier
		}
		return Supplier{}, err
	}
	return supplier, nil
}

// GetSupplier loads one supplier.
func (r *Repository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	return scanSupplier(r.pool.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id=$1`, id))
}

// ListSuppliers returns suppliers, optionally only active ones.
func (r *Repository) ListSuppliers(ctx context.Context, activeOnly bool) ([]Supplier, error) {
	query := `SELECT ` + supplierColumns + ` FROM suppliers`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	suppliers := []Supplier{}
	for rows.Next() {
		supplier, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		suppliers = append(suppliers, supplier)
	}
	return suppliers, rows.Err()
}

// SetSupplierActive toggles a supplier.
func (r *Repository) SetSupplierActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE suppliers SET active=$2 WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSupplierNotFound
	}
	return nil
}

// InsertRequisition stores a requisition with its items atomically.
func (r *Repository) InsertRequisition(ctx context.Context, req Requisition) (Requisition, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Requisition{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `INSERT INTO requisitions (folio, requester_id, work_order_id, work_order_folio, required_by, justification, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
RETURNING `+requisitionColumns,
		req.Folio, req.RequesterID, req.WorkOrderID, req.WorkOrderFolio, req.RequiredBy, req.Justification, string(req.Status))
	created, err := scanRequisition(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Requisition{}, shared.ErrDuplicateFolio
		}
		return Requisition{}, err
	}
	for _, item := range req.Items {
		var itemID int64
		err := tx.QueryRow(ctx, `INSERT INTO requisition_items (requisition_id, product_id, quantity, notes, estimated_unit_cost)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
			created.ID, item.ProductID, item.Quantity, item.Notes, item.EstimatedUnitCost).Scan(&itemID)
		if err != nil {
			return Requisition{}, err
		}
		item.ID = itemID
		item.RequisitionID = created.ID
		created.Items = append(created.Items, item)
	}
	if err := tx.Commit(ctx); err != nil {
		return Requisition{}, err
	}
	return created, nil
}

// GetRequisition loads a requisition with its items.
func (r *Repository) GetRequisition(ctx context.Context, id int64) (Requisition, error) {
	req, err := scanRequisition(r.pool.QueryRow(ctx, `SELECT `+requisitionColumns+` FROM requisitions WHERE id=$1`, id))
	if err != nil {
		return Requisition{}, err
	}
	req.Items, err = r.listRequisitionItems(ctx, id)
	return req, err
}

func (r *Repository) listRequisitionItems(ctx context.Context, requisitionID int64) ([]RequisitionItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, requisition_id, product_id, quantity, notes, estimated_unit_cost
FROM requisition_items WHERE requisition_id=$1 ORDER BY id`, requisitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []RequisitionItem{}
	for rows.Next() {
		var item RequisitionItem
		if err := rows.Scan(&item.ID, &item.RequisitionID, &item.ProductID, &item.Quantity, &item.Notes, &item.EstimatedUnitCost); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListRequisitions returns requisitions matching the filter, newest first.
func (r *Repository) ListRequisitions(ctx context.Context, filter RequisitionFilter) ([]Requisition, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+requisitionColumns+` FROM requisitions
WHERE ($1 = '' OR status = $1)
  AND ($2 = 0 OR requester_id = $2)
  AND ($3 = 0 OR work_order_id = $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5`,
		string(filter.Status), filter.RequesterID, filter.WorkOrderID, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	reqs := []Requisition{}
	for rows.Next() {
		req, err := scanRequisition(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// SetApproval records the approval or rejection outcome.
func (r *Repository) SetApproval(ctx context.Context, id int64, status RequisitionStatus, approverID int64, comments string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE requisitions SET status=$2, approver_id=$3, approval_comments=$4, approved_at=$5 WHERE id=$1`,
		id, string(status), approverID, comments, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequisitionNotFound
	}
	return nil
}

// SetRequisitionStatus updates only the requisition state.
func (r *Repository) SetRequisitionStatus(ctx context.Context, id int64, status RequisitionStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE requisitions SET status=$2 WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequisitionNotFound
	}
	return nil
}

// InsertOrder stores a purchase order with its items atomically.
func (r *Repository) InsertOrder(ctx context.Context, order PurchaseOrder) (PurchaseOrder, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `INSERT INTO purchase_orders (folio, requisition_id, supplier_id, created_by_id, status, estimated_delivery, notes, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
RETURNING `+orderColumns,
		order.Folio, order.RequisitionID, order.SupplierID, order.CreatedByID, string(order.Status), order.EstimatedDelivery, order.Notes)
	created, err := scanOrder(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return PurchaseOrder{}, shared.ErrDuplicateFolio
		}
		return PurchaseOrder{}, err
	}
	for _, item := range order.Items {
		var itemID int64
		err := tx.QueryRow(ctx, `INSERT INTO purchase_order_items (order_id, requisition_item_id, product_id, quantity, unit_price)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
			created.ID, item.RequisitionItemID, item.ProductID, item.Quantity, item.UnitPrice).Scan(&itemID)
		if err != nil {
			return PurchaseOrder{}, err
		}
		item.ID = itemID
		item.OrderID = created.ID
		created.Items = append(created.Items, item)
	}
	if err := tx.Commit(ctx); err != nil {
		return PurchaseOrder{}, err
	}
	return created, nil
}

// GetOrder loads a purchase order with its items.
func (r *Repository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1`, id))
	if err != nil {
		return PurchaseOrder{}, err
	}
	order.Items, err = r.listOrderItems(ctx, id)
	return order, err
}

func (r *Repository) listOrderItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, requisition_item_id, product_id, quantity, unit_price, qty_received
FROM purchase_order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.RequisitionItemID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.QtyReceived); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListOrders returns purchase orders matching the filter, newest first.
func (r *Repository) ListOrders(ctx context.Context, filter OrderFilter) ([]PurchaseOrder, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM purchase_orders
WHERE ($1 = '' OR status = $1)
  AND ($2 = 0 OR supplier_id = $2)
  AND ($3 = 0 OR requisition_id = $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5`,
		string(filter.Status), filter.SupplierID, filter.RequisitionID, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	orders := []PurchaseOrder{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// OpenOrdersForRequisition counts purchase orders not yet received or
// cancelled for a requisition.
func (r *Repository) OpenOrdersForRequisition(ctx context.Context, requisitionID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders
WHERE requisition_id=$1 AND status NOT IN ('RECIBIDA','CANCELADA')`, requisitionID).Scan(&count)
	return count, err
}

// SetInvoice attaches invoice data to an order.
func (r *Repository) SetInvoice(ctx context.Context, id int64, number string, date *time.Time, amount *float64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE purchase_orders SET invoice_number=$2, invoice_date=$3, invoice_amount=$4 WHERE id=$1`,
		id, number, date, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ListReceipts returns the receipts posted for an order.
func (r *Repository) ListReceipts(ctx context.Context, orderID int64) ([]Receipt, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, received_by_id, location, remission, observations, received_at
FROM receipts WHERE order_id=$1 ORDER BY received_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	receipts := []Receipt{}
	for rows.Next() {
		var rc Receipt
		if err := rows.Scan(&rc.ID, &rc.OrderID, &rc.ReceivedByID, &rc.Location, &rc.Remission, &rc.Observations, &rc.ReceivedAt); err != nil {
			return nil, err
		}
		receipts = append(receipts, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range receipts {
		items, err := r.listReceiptItems(ctx, receipts[i].ID)
		if err != nil {
			return nil, err
		}
		receipts[i].Items = items
	}
	return receipts, nil
}

func (r *Repository) listReceiptItems(ctx context.Context, receiptID int64) ([]ReceiptItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, receipt_id, order_item_id, qty_received, qty_accepted, qty_rejected, reject_reason
FROM receipt_items WHERE receipt_id=$1 ORDER BY id`, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ReceiptItem{}
	for rows.Next() {
		var item ReceiptItem
		if err := rows.Scan(&item.ID, &item.ReceiptID, &item.OrderItemID, &item.QtyReceived, &item.QtyAccepted, &item.QtyRejected, &item.RejectReason); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MaxFolioForDay returns the highest folio with the given prefix,
// used as a fallback when the folio counter is unavailable.
func (r *Repository) MaxFolioForDay(ctx context.Context, dayPrefix string) (string, error) {
	var folio *string
	query := `SELECT MAX(folio) FROM requisitions WHERE folio LIKE $1 || '%'`
	if len(dayPrefix) >= 2 && dayPrefix[:2] == FolioPrefixOrder {
		query = `SELECT MAX(folio) FROM purchase_orders WHERE folio LIKE $1 || '%'`
	}
	if err := r.pool.QueryRow(ctx, query, dayPrefix).Scan(&folio); err != nil {
		return "", err
	}
	if folio == nil {
		return "", nil
	}
	return *folio, nil
}

func (t *txRepository) GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	order, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return PurchaseOrder{}, err
	}
	rows, err := t.tx.Query(ctx, `SELECT id, order_id, requisition_item_id, product_id, quantity, unit_price, qty_received
FROM purchase_order_items WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.RequisitionItemID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.QtyReceived); err != nil {
			return PurchaseOrder{}, err
		}
		order.Items = append(order.Items, item)
	}
	return order, rows.Err()
}

func (t *txRepository) SetOrderStatus(ctx context.Context, id int64, status OrderStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET status=$2 WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *txRepository) SetRequisitionStatus(ctx context.Context, id int64, status RequisitionStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE requisitions SET status=$2 WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequisitionNotFound
	}
	return nil
}

func (t *txRepository) InsertReceipt(ctx context.Context, receipt Receipt) (Receipt, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO receipts (order_id, received_by_id, location, remission, observations, received_at)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id`,
		receipt.OrderID, receipt.ReceivedByID, receipt.Location, receipt.Remission, receipt.Observations, receipt.ReceivedAt)
	if err := row.Scan(&receipt.ID); err != nil {
		return Receipt{}, err
	}
	for i := range receipt.Items {
		receipt.Items[i].ReceiptID = receipt.ID
		err := t.tx.QueryRow(ctx, `INSERT INTO receipt_items (receipt_id, order_item_id, qty_received, qty_accepted, qty_rejected, reject_reason)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			receipt.ID, receipt.Items[i].OrderItemID, receipt.Items[i].QtyReceived, receipt.Items[i].QtyAccepted, receipt.Items[i].QtyRejected, receipt.Items[i].RejectReason).Scan(&receipt.Items[i].ID)
		if err != nil {
			return Receipt{}, err
		}
	}
	return receipt, nil
}

func (t *txRepository) AddOrderItemReceivedQty(ctx context.Context, orderItemID int64, qty float64) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_order_items SET qty_received = qty_received + $2 WHERE id=$1`, orderItemID, qty)
	return err
}
