package warehouse

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flotilla-erp/flotilla/internal/shared"
)

// Repository persists warehouse data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, id int64) (Product, error)
	SetProductQuantity(ctx context.Context, id int64, quantity float64) error
	InsertMovement(ctx context.Context, movement Movement) error
	InsertEntry(ctx context.Context, entry Entry) (Entry, error)
	InsertExit(ctx context.Context, exit Exit) (Exit, error)
	AddDeliveredQty(ctx context.Context, requestItemID int64, quantity float64) error
	GetRequestForUpdate(ctx context.Context, id int64) (ExitRequest, error)
	SetRequestStatus(ctx context.Context, id int64, status RequestStatus) error
	InsertQuickExit(ctx context.Context, exit QuickExit) (QuickExit, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("warehouse repository not initialised")
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

const productColumns = `id, sku, barcode, category, subcategory, description, location, quantity, unit, stock_min, stock_max, unit_cost, has_expiry, expiry_date, supplier_id, reorder_days, notes, consumable, active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Barcode, &p.Category, &p.Subcategory, &p.Description, &p.Location, &p.Quantity, &p.Unit, &p.StockMin, &p.StockMax, &p.UnitCost, &p.HasExpiry, &p.ExpiryDate, &p.SupplierID, &p.ReorderDays, &p.Notes, &p.Consumable, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

const requestColumns = `id, folio, type, work_order_id, requester_id, status, justification, authorizer_id, authorized_at, authorization_log, created_at`

func scanRequest(row pgx.Row) (ExitRequest, error) {
	var q ExitRequest
	err := row.Scan(&q.ID, &q.Folio, &q.Type, &q.WorkOrderID, &q.RequesterID, &q.Status, &q.Justification, &q.AuthorizerID, &q.AuthorizedAt, &q.AuthorizationLog, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ExitRequest{}, ErrRequestNotFound
	}
	return q, err
}

const alertColumns = `id, product_id, alert_type, message, resolved, resolved_by_id, resolved_at, created_at`

func scanAlert(row pgx.Row) (StockAlert, error) {
	var a StockAlert
	err := row.Scan(&a.ID, &a.ProductID, &a.Type, &a.Message, &a.Resolved, &a.ResolvedByID, &a.ResolvedAt, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockAlert{}, ErrAlertNotFound
	}
	return a, err
}

// CreateProduct registers a catalogue item. SKU and barcode are unique.
func (r *Repository) CreateProduct(ctx context.Context, input CreateProductInput) (Product, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO products (sku, barcode, category, subcategory, description, location, quantity, unit, stock_min, stock_max, unit_cost, has_expiry, expiry_date, supplier_id, reorder_days, notes, consumable, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,TRUE,NOW(),NOW())
RETURNING `+productColumns,
		input.SKU, input.Barcode, input.Category, input.Subcategory, input.Description, input.Location, input.Quantity, input.Unit, input.StockMin, input.StockMax, input.UnitCost, input.HasExpiry, input.ExpiryDate, input.SupplierID, input.ReorderDays, input.Notes, input.Consumable)
	product, err := scanProduct(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Product{}, ErrDuplicateSKU
		}
		return Product{}, err
	}
	return product, nil
}

// UpdateProduct applies a partial catalogue update.
func (r *Repository) UpdateProduct(ctx context.Context, id int64, input UpdateProductInput) (Product, error) {
	row := r.pool.QueryRow(ctx, `UPDATE products SET
	category     = COALESCE($2, category),
	subcategory  = COALESCE($3, subcategory),
	description  = COALESCE($4, description),
	location     = COALESCE($5, location),
	unit         = COALESCE($6, unit),
	stock_min    = COALESCE($7, stock_min),
	stock_max    = COALESCE($8, stock_max),
	unit_cost    = COALESCE($9, unit_cost),
	has_expiry   = COALESCE($10, has_expiry),
	expiry_date  = COALESCE($11, expiry_date),
	supplier_id  = COALESCE($12, supplier_id),
	reorder_days = COALESCE($13, reorder_days),
	notes        = COALESCE($14, notes),
	consumable   = COALESCE($15, consumable),
	active       = COALESCE($16, active),
	updated_at   = NOW()
WHERE id=$1
RETURNING `+productColumns,
		id, input.Category, input.Subcategory, input.Description, input.Location, input.Unit, input.StockMin, input.StockMax, input.UnitCost, input.HasExpiry, input.ExpiryDate, input.SupplierID, input.ReorderDays, input.Notes, input.Consumable, input.Active)
	return scanProduct(row)
}

// GetProduct loads one product.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
}

// GetProductBySKU loads one product by SKU.
func (r *Repository) GetProductBySKU(ctx context.Context, sku string) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE sku=$1`, sku))
}

// ListProducts returns catalogue items matching the filter.
func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products
WHERE ($1 = '' OR category = $1)
  AND ($2 = '' OR sku ILIKE '%' || $2 || '%' OR description ILIKE '%' || $2 || '%' OR barcode = $2)
  AND ($3::boolean IS NULL OR consumable = $3)
  AND (NOT $4 OR active)
  AND (NOT $5 OR (stock_min > 0 AND quantity <= stock_min))
ORDER BY category, subcategory, description
LIMIT $6 OFFSET $7`,
		filter.Category, filter.Search, filter.Consumable, filter.ActiveOnly, filter.LowStock, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// ListProductsWithExpiry returns active expiring products up to a
// cutoff date, soonest first.
func (r *Repository) ListProductsWithExpiry(ctx context.Context, until time.Time) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products
WHERE active AND has_expiry AND expiry_date IS NOT NULL AND expiry_date <= $1
ORDER BY expiry_date`, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// GetEntry loads an entry with its items.
func (r *Repository) GetEntry(ctx context.Context, id int64) (Entry, error) {
	var e Entry
	err := r.pool.QueryRow(ctx, `SELECT id, folio, type, order_folio, work_order_id, received_by_id, invoice_number, shipping_cost, extra_cost, observations, entered_at
FROM entries WHERE id=$1`, id).Scan(&e.ID, &e.Folio, &e.Type, &e.OrderFolio, &e.WorkOrderID, &e.ReceivedByID, &e.InvoiceNumber, &e.ShippingCost, &e.ExtraCost, &e.Observations, &e.EnteredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, entry_id, product_id, quantity, unit_cost, batch, expiry_date, location, observations
FROM entry_items WHERE entry_id=$1 ORDER BY id`, id)
	if err != nil {
		return Entry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item EntryItem
		if err := rows.Scan(&item.ID, &item.EntryID, &item.ProductID, &item.Quantity, &item.UnitCost, &item.Batch, &item.ExpiryDate, &item.Location, &item.Observations); err != nil {
			return Entry{}, err
		}
		e.Items = append(e.Items, item)
	}
	return e, rows.Err()
}

// ListEntries returns entries newest first.
func (r *Repository) ListEntries(ctx context.Context, entryType EntryType, limit, offset int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, folio, type, order_folio, work_order_id, received_by_id, invoice_number, shipping_cost, extra_cost, observations, entered_at
FROM entries
WHERE ($1 = '' OR type = $1)
ORDER BY entered_at DESC
LIMIT $2 OFFSET $3`, string(entryType), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Folio, &e.Type, &e.OrderFolio, &e.WorkOrderID, &e.ReceivedByID, &e.InvoiceNumber, &e.ShippingCost, &e.ExtraCost, &e.Observations, &e.EnteredAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetRequest loads an exit request with its items.
func (r *Repository) GetRequest(ctx context.Context, id int64) (ExitRequest, error) {
	request, err := scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM exit_requests WHERE id=$1`, id))
	if err != nil {
		return ExitRequest{}, err
	}
	request.Items, err = r.listRequestItems(ctx, id)
	return request, err
}

func (r *Repository) listRequestItems(ctx context.Context, requestID int64) ([]ExitRequestItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, request_id, product_id, qty_requested, qty_delivered, notes
FROM exit_request_items WHERE request_id=$1 ORDER BY id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ExitRequestItem{}
	for rows.Next() {
		var item ExitRequestItem
		if err := rows.Scan(&item.ID, &item.RequestID, &item.ProductID, &item.QtyRequested, &item.QtyDelivered, &item.Notes); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// InsertRequest stores an exit request with its items atomically.
func (r *Repository) InsertRequest(ctx context.Context, request ExitRequest) (ExitRequest, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ExitRequest{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `INSERT INTO exit_requests (folio, type, work_order_id, requester_id, status, justification, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())
RETURNING `+requestColumns,
		request.Folio, string(request.Type), request.WorkOrderID, request.RequesterID, string(request.Status), request.Justification)
	created, err := scanRequest(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ExitRequest{}, shared.ErrDuplicateFolio
		}
		return ExitRequest{}, err
	}
	for _, item := range request.Items {
		var itemID int64
		err := tx.QueryRow(ctx, `INSERT INTO exit_request_items (request_id, product_id, qty_requested, qty_delivered, notes)
VALUES ($1,$2,$3,0,$4) RETURNING id`,
			created.ID, item.ProductID, item.QtyRequested, item.Notes).Scan(&itemID)
		if err != nil {
			return ExitRequest{}, err
		}
		item.ID = itemID
		item.RequestID = created.ID
		created.Items = append(created.Items, item)
	}
	if err := tx.Commit(ctx); err != nil {
		return ExitRequest{}, err
	}
	return created, nil
}

// ListRequests returns exit requests matching the filter, newest first.
func (r *Repository) ListRequests(ctx context.Context, filter RequestFilter) ([]ExitRequest, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM exit_requests
WHERE ($1 = '' OR status = $1)
  AND ($2 = '' OR type = $2)
  AND ($3 = 0 OR work_order_id = $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5`,
		string(filter.Status), string(filter.Type), filter.WorkOrderID, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	requests := []ExitRequest{}
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

// SetAuthorization records the authorization or rejection outcome.
func (r *Repository) SetAuthorization(ctx context.Context, id int64, status RequestStatus, authorizerID int64, comments string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE exit_requests SET status=$2, authorizer_id=$3, authorization_log=$4, authorized_at=$5 WHERE id=$1`,
		id, string(status), authorizerID, comments, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// SetRequestStatus updates only the request state.
func (r *Repository) SetRequestStatus(ctx context.Context, id int64, status RequestStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE exit_requests SET status=$2 WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// ListExits returns the deliveries for a request.
func (r *Repository) ListExits(ctx context.Context, requestID int64) ([]Exit, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, folio, request_id, delivered_to_id, delivered_by_id, observations, exited_at
FROM exits WHERE request_id=$1 ORDER BY exited_at`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	exits := []Exit{}
	for rows.Next() {
		var e Exit
		if err := rows.Scan(&e.ID, &e.Folio, &e.RequestID, &e.DeliveredToID, &e.DeliveredByID, &e.Observations, &e.ExitedAt); err != nil {
			return nil, err
		}
		exits = append(exits, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range exits {
		items, err := r.listExitItems(ctx, exits[i].ID)
		if err != nil {
			return nil, err
		}
		exits[i].Items = items
	}
	return exits, nil
}

func (r *Repository) listExitItems(ctx context.Context, exitID int64) ([]ExitItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, exit_id, request_item_id, product_id, qty_delivered, batch, from_location
FROM exit_items WHERE exit_id=$1 ORDER BY id`, exitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ExitItem{}
	for rows.Next() {
		var item ExitItem
		if err := rows.Scan(&item.ID, &item.ExitID, &item.RequestItemID, &item.ProductID, &item.QtyDelivered, &item.Batch, &item.FromLocation); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListQuickExits returns consumable hand-outs, newest first.
func (r *Repository) ListQuickExits(ctx context.Context, productID int64, limit, offset int) ([]QuickExit, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, folio, product_id, quantity, delivered_by_id, requester_name, reason, exited_at
FROM quick_exits
WHERE ($1 = 0 OR product_id = $1)
ORDER BY exited_at DESC
LIMIT $2 OFFSET $3`, productID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	exits := []QuickExit{}
	for rows.Next() {
		var q QuickExit
		if err := rows.Scan(&q.ID, &q.Folio, &q.ProductID, &q.Quantity, &q.DeliveredByID, &q.RequesterName, &q.Reason, &q.ExitedAt); err != nil {
			return nil, err
		}
		exits = append(exits, q)
	}
	return exits, rows.Err()
}

// ListMovements returns the stock ledger for a product, newest first.
func (r *Repository) ListMovements(ctx context.Context, productID int64, limit, offset int) ([]Movement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, type, product_id, quantity, qty_before, qty_after, entry_id, exit_id, actor_id, observations, at
FROM movements
WHERE ($1 = 0 OR product_id = $1)
ORDER BY at DESC
LIMIT $2 OFFSET $3`, productID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.Type, &m.ProductID, &m.Quantity, &m.QtyBefore, &m.QtyAfter, &m.EntryID, &m.ExitID, &m.ActorID, &m.Observations, &m.At); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// OpenAlert creates an alert unless an unresolved one of the same
// type already exists for the product. Returns true when created.
func (r *Repository) OpenAlert(ctx context.Context, productID int64, alertType AlertType, message string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `INSERT INTO stock_alerts (product_id, alert_type, message, resolved, created_at)
SELECT $1, $2, $3, FALSE, NOW()
WHERE NOT EXISTS (
	SELECT 1 FROM stock_alerts WHERE product_id=$1 AND alert_type=$2 AND NOT resolved
)`, productID, string(alertType), message)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ResolveAlertsForProduct closes open alerts of the given types.
func (r *Repository) ResolveAlertsForProduct(ctx context.Context, productID int64, types []AlertType, at time.Time) error {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	_, err := r.pool.Exec(ctx, `UPDATE stock_alerts SET resolved=TRUE, resolved_at=$3
WHERE product_id=$1 AND alert_type = ANY($2) AND NOT resolved`, productID, names, at)
	return err
}

// ResolveAlert closes one alert by hand.
func (r *Repository) ResolveAlert(ctx context.Context, id, actorID int64, at time.Time) (StockAlert, error) {
	row := r.pool.QueryRow(ctx, `UPDATE stock_alerts SET resolved=TRUE, resolved_by_id=$2, resolved_at=$3
WHERE id=$1 AND NOT resolved
RETURNING `+alertColumns, id, actorID, at)
	alert, err := scanAlert(row)
	if errors.Is(err, ErrAlertNotFound) {
		var exists bool
		if checkErr := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_alerts WHERE id=$1)`, id).Scan(&exists); checkErr != nil {
			return StockAlert{}, checkErr
		}
		if exists {
			return StockAlert{}, ErrAlertResolved
		}
		return StockAlert{}, ErrAlertNotFound
	}
	return alert, err
}

// ListAlerts returns alerts, open ones first by default.
func (r *Repository) ListAlerts(ctx context.Context, onlyOpen bool, alertType AlertType, limit, offset int) ([]StockAlert, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+alertColumns+` FROM stock_alerts
WHERE (NOT $1 OR NOT resolved)
  AND ($2 = '' OR alert_type = $2)
ORDER BY resolved, created_at DESC
LIMIT $3 OFFSET $4`, onlyOpen, string(alertType), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	alerts := []StockAlert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// CountOpenAlertsByType returns open alert counts per type, used to
// refresh the metrics gauge.
func (r *Repository) CountOpenAlertsByType(ctx context.Context) (map[AlertType]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT alert_type, COUNT(*) FROM stock_alerts WHERE NOT resolved GROUP BY alert_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[AlertType]int{}
	for rows.Next() {
		var alertType string
		var count int
		if err := rows.Scan(&alertType, &count); err != nil {
			return nil, err
		}
		counts[AlertType(alertType)] = count
	}
	return counts, rows.Err()
}

// MaxFolioForDay returns the highest folio with the given prefix.
func (r *Repository) MaxFolioForDay(ctx context.Context, dayPrefix string) (string, error) {
	table := "entries"
	switch {
	case len(dayPrefix) >= 3 && dayPrefix[:3] == FolioPrefixRequest:
		table = "exit_requests"
	case len(dayPrefix) >= 3 && dayPrefix[:3] == FolioPrefixExit:
		table = "exits"
	case len(dayPrefix) >= 3 && dayPrefix[:3] == FolioPrefixQuickOut:
		table = "quick_exits"
	}
	var folio *string
	if err := r.pool.QueryRow(ctx, `SELECT MAX(folio) FROM `+table+` WHERE folio LIKE $1 || '%'`, dayPrefix).Scan(&folio); err != nil {
		return "", err
	}
	if folio == nil {
		return "", nil
	}
	return *folio, nil
}

func (t *txRepository) GetProductForUpdate(ctx context.Context, id int64) (Product, error) {
	return scanProduct(t.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id))
}

func (t *txRepository) SetProductQuantity(ctx context.Context, id int64, quantity float64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE products SET quantity=$2, updated_at=NOW() WHERE id=$1`, id, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (t *txRepository) InsertMovement(ctx context.Context, movement Movement) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO movements (type, product_id, quantity, qty_before, qty_after, entry_id, exit_id, actor_id, observations, at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		string(movement.Type), movement.ProductID, movement.Quantity, movement.QtyBefore, movement.QtyAfter, movement.EntryID, movement.ExitID, movement.ActorID, movement.Observations, movement.At)
	return err
}

func (t *txRepository) InsertEntry(ctx context.Context, entry Entry) (Entry, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO entries (folio, type, order_folio, work_order_id, received_by_id, invoice_number, shipping_cost, extra_cost, observations, entered_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING id`,
		entry.Folio, string(entry.Type), entry.OrderFolio, entry.WorkOrderID, entry.ReceivedByID, entry.InvoiceNumber, entry.ShippingCost, entry.ExtraCost, entry.Observations, entry.EnteredAt)
	if err := row.Scan(&entry.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Entry{}, shared.ErrDuplicateFolio
		}
		return Entry{}, err
	}
	for i := range entry.Items {
		entry.Items[i].EntryID = entry.ID
		err := t.tx.QueryRow(ctx, `INSERT INTO entry_items (entry_id, product_id, quantity, unit_cost, batch, expiry_date, location, observations)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
			entry.ID, entry.Items[i].ProductID, entry.Items[i].Quantity, entry.Items[i].UnitCost, entry.Items[i].Batch, entry.Items[i].ExpiryDate, entry.Items[i].Location, entry.Items[i].Observations).Scan(&entry.Items[i].ID)
		if err != nil {
			return Entry{}, err
		}
	}
	return entry, nil
}

func (t *txRepository) InsertExit(ctx context.Context, exit Exit) (Exit, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO exits (folio, request_id, delivered_to_id, delivered_by_id, observations, exited_at)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id`,
		exit.Folio, exit.RequestID, exit.DeliveredToID, exit.DeliveredByID, exit.Observations, exit.ExitedAt)
	if err := row.Scan(&exit.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Exit{}, shared.ErrDuplicateFolio
		}
		return Exit{}, err
	}
	for i := range exit.Items {
		exit.Items[i].ExitID = exit.ID
		err := t.tx.QueryRow(ctx, `INSERT INTO exit_items (exit_id, request_item_id, product_id, qty_delivered, batch, from_location)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			exit.ID, exit.Items[i].RequestItemID, exit.Items[i].ProductID, exit.Items[i].QtyDelivered, exit.Items[i].Batch, exit.Items[i].FromLocation).Scan(&exit.Items[i].ID)
		if err != nil {
			return Exit{}, err
		}
	}
	return exit, nil
}

func (t *txRepository) AddDeliveredQty(ctx context.Context, requestItemID int64, quantity float64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE exit_request_items SET qty_delivered = qty_delivered + $2 WHERE id=$1`, requestItemID, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (t *txRepository) GetRequestForUpdate(ctx context.Context, id int64) (ExitRequest, error) {
	request, err := scanRequest(t.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM exit_requests WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return ExitRequest{}, err
	}
	rows, err := t.tx.Query(ctx, `SELECT id, request_id, product_id, qty_requested, qty_delivered, notes
FROM exit_request_items WHERE request_id=$1 ORDER BY id`, id)
	if err != nil {
		return ExitRequest{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item ExitRequestItem
		if err := rows.Scan(&item.ID, &item.RequestID, &item.ProductID, &item.QtyRequested, &item.QtyDelivered, &item.Notes); err != nil {
			return ExitRequest{}, err
		}
		request.Items = append(request.Items, item)
	}
	return request, rows.Err()
}

func (t *txRepository) SetRequestStatus(ctx context.Context, id int64, status RequestStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE exit_requests SET status=$2 WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (t *txRepository) InsertQuickExit(ctx context.Context, exit QuickExit) (QuickExit, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO quick_exits (folio, product_id, quantity, delivered_by_id, requester_name, reason, exited_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id`,
		exit.Folio, exit.ProductID, exit.Quantity, exit.DeliveredByID, exit.RequesterName, exit.Reason, exit.ExitedAt)
	if err := row.Scan(&exit.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return QuickExit{}, shared.ErrDuplicateFolio
		}
		return QuickExit{}, err
	}
	return exit, nil
}
