package workshop

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flotilla-erp/flotilla/internal/shared"
)

// Repository persists workshop data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetOrderForUpdate(ctx context.Context, id int64) (WorkOrder, error)
	SetStatus(ctx context.Context, id int64, status Status) error
	SetDiagnosis(ctx context.Context, id int64, diagnosis string, at time.Time) error
	SetStarted(ctx context.Context, id int64, at time.Time) error
	SetCompletion(ctx context.Context, id int64, input CompleteOrderInput, finishedAt time.Time) error
	InsertHistory(ctx context.Context, entry HistoryEntry) error
	MarkPartRequested(ctx context.Context, partID, requisitionItemID int64, at time.Time) error
	MarkPartBuying(ctx context.Context, requisitionItemID int64) error
	MarkPartReceived(ctx context.Context, partID int64, actualUnitCost *float64, at time.Time) error
	MarkPartInstalled(ctx context.Context, partID int64, at time.Time) error
	InsertStatusLog(ctx context.Context, log StatusLog) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("workshop repository not initialised")
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

const orderColumns = `id, folio, unit_id, reported_by_id, maintenance_type_id, problem, symptoms, diagnosis, work_performed, priority, status, odometer_in, odometer_out, labor_cost_estimate, labor_cost_actual, scheduled_for, started_at, diagnosed_at, finished_at, created_at, updated_at`

func scanOrder(row pgx.Row) (WorkOrder, error) {
	var o WorkOrder
	err := row.Scan(&o.ID, &o.Folio, &o.UnitID, &o.ReportedByID, &o.MaintenanceTypeID, &o.Problem, &o.Symptoms, &o.Diagnosis, &o.WorkPerformed, &o.Priority, &o.Status, &o.OdometerIn, &o.OdometerOut, &o.LaborCostEstimate, &o.LaborCostActual, &o.ScheduledFor, &o.StartedAt, &o.DiagnosedAt, &o.FinishedAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return WorkOrder{}, ErrOrderNotFound
	}
	return o, err
}

const partColumns = `id, work_order_id, product_id, quantity, usage_notes, status, estimated_unit_cost, actual_unit_cost, requisition_item_id, requested_at, received_at, installed_at, created_at`

func scanPart(row pgx.Row) (RequiredPart, error) {
	var p RequiredPart
	err := row.Scan(&p.ID, &p.WorkOrderID, &p.ProductID, &p.Quantity, &p.UsageNotes, &p.Status, &p.EstimatedUnitCost, &p.ActualUnitCost, &p.RequisitionItemID, &p.RequestedAt, &p.ReceivedAt, &p.InstalledAt, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RequiredPart{}, ErrPartNotFound
	}
	return p, err
}

// InsertOrder stores a new work order with its generated folio.
func (r *Repository) InsertOrder(ctx context.Context, order WorkOrder) (WorkOrder, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO work_orders (folio, unit_id, reported_by_id, maintenance_type_id, problem, symptoms, priority, status, odometer_in, labor_cost_estimate, scheduled_for, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW(),NOW())
RETURNING `+orderColumns,
		order.Folio, order.UnitID, order.ReportedByID, order.MaintenanceTypeID, order.Problem, order.Symptoms, string(order.Priority), string(order.Status), order.OdometerIn, order.LaborCostEstimate, order.ScheduledFor)
	created, err := scanOrder(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return WorkOrder{}, shared.ErrDuplicateFolio
		}
		return WorkOrder{}, err
	}
	return created, nil
}

// GetOrder loads a work order with its parts.
func (r *Repository) GetOrder(ctx context.Context, id int64) (WorkOrder, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM work_orders WHERE id=$1`, id))
	if err != nil {
		return WorkOrder{}, err
	}
	parts, err := r.ListParts(ctx, id)
	if err != nil {
		return WorkOrder{}, err
	}
	order.Parts = parts
	return order, nil
}

// GetOrderByFolio loads a work order with its parts by folio.
func (r *Repository) GetOrderByFolio(ctx context.Context, folio string) (WorkOrder, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM work_orders WHERE folio=$1`, folio))
	if err != nil {
		return WorkOrder{}, err
	}
	parts, err := r.ListParts(ctx, order.ID)
	if err != nil {
		return WorkOrder{}, err
	}
	order.Parts = parts
	return order, nil
}

func (r *Repository) ListOrders(ctx context.Context, filter Filter) ([]WorkOrder, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM work_orders
WHERE ($1 = 0 OR unit_id = $1)
  AND ($2 = '' OR status = $2)
  AND ($3 = '' OR priority = $3)
ORDER BY created_at DESC, id DESC
LIMIT $4 OFFSET $5`,
		filter.UnitID, string(filter.Status), string(filter.Priority), limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	orders := []WorkOrder{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (r *Repository) InsertPart(ctx context.Context, part RequiredPart) (RequiredPart, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO work_order_parts (work_order_id, product_id, quantity, usage_notes, status, estimated_unit_cost, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())
RETURNING `+partColumns,
		part.WorkOrderID, part.ProductID, part.Quantity, part.UsageNotes, string(part.Status), part.EstimatedUnitCost)
	return scanPart(row)
}

func (r *Repository) GetPart(ctx context.Context, id int64) (RequiredPart, error) {
	return scanPart(r.pool.QueryRow(ctx, `SELECT `+partColumns+` FROM work_order_parts WHERE id=$1`, id))
}

func (r *Repository) ListParts(ctx context.Context, orderID int64) ([]RequiredPart, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+partColumns+` FROM work_order_parts WHERE work_order_id=$1 ORDER BY status, created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	parts := []RequiredPart{}
	for rows.Next() {
		part, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, rows.Err()
}

// FindPartsByRequisitionItems maps requisition item ids back to parts
// still waiting on a receipt. Parts already received, installed or
// cancelled are left alone so a later receipt against the same
// requisition item cannot demote them.
func (r *Repository) FindPartsByRequisitionItems(ctx context.Context, itemIDs []int64) ([]RequiredPart, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+partColumns+` FROM work_order_parts
WHERE requisition_item_id = ANY($1) AND status = ANY($2)`,
		itemIDs, []string{string(PartRequested), string(PartBuying)})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	parts := []RequiredPart{}
	for rows.Next() {
		part, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, rows.Err()
}

func (r *Repository) ListMaintenanceTypes(ctx context.Context) ([]MaintenanceType, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, suggested_days FROM maintenance_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	types := []MaintenanceType{}
	for rows.Next() {
		var t MaintenanceType
		if err := rows.Scan(&t.ID, &t.Name, &t.SuggestedDays); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (r *Repository) GetMaintenanceType(ctx context.Context, id int64) (MaintenanceType, error) {
	var t MaintenanceType
	err := r.pool.QueryRow(ctx, `SELECT id, name, suggested_days FROM maintenance_types WHERE id=$1`, id).Scan(&t.ID, &t.Name, &t.SuggestedDays)
	if errors.Is(err, pgx.ErrNoRows) {
		return MaintenanceType{}, ErrTypeNotFound
	}
	return t, err
}

func (r *Repository) ListHistory(ctx context.Context, unitID int64, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, unit_id, work_order_id, folio, serviced_at, odometer_km, total_cost, description
FROM maintenance_history WHERE ($1 = 0 OR unit_id = $1) ORDER BY serviced_at DESC LIMIT $2`, unitID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.UnitID, &e.WorkOrderID, &e.Folio, &e.ServicedAt, &e.OdometerKM, &e.TotalCost, &e.Description); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *Repository) ListStatusLogs(ctx context.Context, orderID int64) ([]StatusLog, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, work_order_id, from_status, to_status, comment, actor_id, at
FROM work_order_status_logs WHERE work_order_id=$1 ORDER BY at ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	logs := []StatusLog{}
	for rows.Next() {
		var l StatusLog
		if err := rows.Scan(&l.ID, &l.WorkOrderID, &l.FromStatus, &l.ToStatus, &l.Comment, &l.ActorID, &l.At); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// MaxFolioForDay returns the highest folio already issued for the day
// prefix, used as the fallback when the counter is unavailable.
func (r *Repository) MaxFolioForDay(ctx context.Context, dayPrefix string) (string, error) {
	var folio *string
	err := r.pool.QueryRow(ctx, `SELECT MAX(folio) FROM work_orders WHERE folio LIKE $1 || '%'`, dayPrefix).Scan(&folio)
	if err != nil {
		return "", err
	}
	if folio == nil {
		return "", nil
	}
	return *folio, nil
}

func (r *txRepository) GetOrderForUpdate(ctx context.Context, id int64) (WorkOrder, error) {
	order, err := scanOrder(r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM work_orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return WorkOrder{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT `+partColumns+` FROM work_order_parts WHERE work_order_id=$1 ORDER BY status, created_at`, id)
	if err != nil {
		return WorkOrder{}, err
	}
	defer rows.Close()
	for rows.Next() {
		part, err := scanPart(rows)
		if err != nil {
			return WorkOrder{}, err
		}
		order.Parts = append(order.Parts, part)
	}
	return order, rows.Err()
}

func (r *txRepository) SetStatus(ctx context.Context, id int64, status Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE work_orders SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	return err
}

func (r *txRepository) SetDiagnosis(ctx context.Context, id int64, diagnosis string, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE work_orders SET diagnosis=$2, diagnosed_at=$3, updated_at=NOW() WHERE id=$1`, id, diagnosis, at)
	return err
}

func (r *txRepository) SetStarted(ctx context.Context, id int64, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE work_orders SET started_at=COALESCE(started_at, $2), updated_at=NOW() WHERE id=$1`, id, at)
	return err
}

func (r *txRepository) SetCompletion(ctx context.Context, id int64, input CompleteOrderInput, finishedAt time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE work_orders SET
status=$2, work_performed=$3, labor_cost_actual=$4, odometer_out=COALESCE($5, odometer_out), finished_at=$6, updated_at=NOW()
WHERE id=$1`, id, string(StatusCompleted), input.WorkPerformed, input.LaborCostActual, input.OdometerOut, finishedAt)
	return err
}

func (r *txRepository) InsertHistory(ctx context.Context, entry HistoryEntry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO maintenance_history (unit_id, work_order_id, folio, serviced_at, odometer_km, total_cost, description)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, entry.UnitID, entry.WorkOrderID, entry.Folio, entry.ServicedAt, entry.OdometerKM, entry.TotalCost, entry.Description)
	return err
}

func (r *txRepository) MarkPartRequested(ctx context.Context, partID, requisitionItemID int64, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE work_order_parts SET status=$2, requisition_item_id=$3, requested_at=$4
WHERE id=$1 AND status=$5`, partID, string(PartRequested), requisitionItemID, at, string(PartPending))
	return err
}

func (r *txRepository) MarkPartBuying(ctx context.Context, requisitionItemID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE work_order_parts SET status=$2 WHERE requisition_item_id=$1 AND status=$3`,
		requisitionItemID, string(PartBuying), string(PartRequested))
	return err
}

func (r *txRepository) MarkPartReceived(ctx context.Context, partID int64, actualUnitCost *float64, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE work_order_parts SET status=$2, actual_unit_cost=COALESCE($3, actual_unit_cost), received_at=$4
WHERE id=$1 AND status = ANY($5)`, partID, string(PartReceived), actualUnitCost, at,
		[]string{string(PartRequested), string(PartBuying)})
	return err
}

func (r *txRepository) MarkPartInstalled(ctx context.Context, partID int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE work_order_parts SET status=$2, installed_at=$3 WHERE id=$1 AND status=$4`,
		partID, string(PartInstalled), at, string(PartReceived))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPartNotReceived
	}
	return nil
}

func (r *txRepository) InsertStatusLog(ctx context.Context, log StatusLog) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO work_order_status_logs (work_order_id, from_status, to_status, comment, actor_id, at)
VALUES ($1,$2,$3,$4,$5,$6)`, log.WorkOrderID, string(log.FromStatus), string(log.ToStatus), log.Comment, log.ActorID, log.At)
	return err
}

// MonthlyReport aggregates order activity for the month starting at from.
func (r *Repository) MonthlyReport(ctx context.Context, from, to time.Time) (MonthlyReport, error) {
	report := MonthlyReport{Year: from.Year(), Month: int(from.Month())}
	err := r.pool.QueryRow(ctx, `SELECT
	COUNT(*) FILTER (WHERE created_at >= $1 AND created_at < $2),
	COUNT(*) FILTER (WHERE status = $3 AND finished_at >= $1 AND finished_at < $2),
	COUNT(*) FILTER (WHERE status = $4 AND finished_at >= $1 AND finished_at < $2),
	COALESCE(SUM(labor_cost_actual) FILTER (WHERE status = $3 AND finished_at >= $1 AND finished_at < $2), 0),
	COALESCE(AVG(EXTRACT(EPOCH FROM finished_at - created_at) / 86400) FILTER (WHERE status = $3 AND finished_at >= $1 AND finished_at < $2), 0)
FROM work_orders`, from, to, string(StatusCompleted), string(StatusCancelled)).
		Scan(&report.OrdersOpened, &report.OrdersCompleted, &report.OrdersCancelled, &report.TotalLaborCost, &report.AvgDaysInShop)
	if err != nil {
		return MonthlyReport{}, err
	}
	err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total_cost), 0) FROM maintenance_history
WHERE serviced_at >= $1 AND serviced_at < $2`, from, to).Scan(&report.TotalCost)
	if err != nil {
		return MonthlyReport{}, err
	}
	return report, nil
}

// ListOpenOrders returns orders that have not reached a terminal state.
func (r *Repository) ListOpenOrders(ctx context.Context) ([]WorkOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM work_orders
WHERE status NOT IN ($1, $2) ORDER BY created_at ASC`, string(StatusCompleted), string(StatusCancelled))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	orders := []WorkOrder{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// TopCostlyUnits ranks units by accumulated maintenance spend.
func (r *Repository) TopCostlyUnits(ctx context.Context, limit int) ([]UnitCost, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx, `SELECT unit_id, COUNT(*), SUM(total_cost)
FROM maintenance_history GROUP BY unit_id ORDER BY SUM(total_cost) DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	costs := []UnitCost{}
	for rows.Next() {
		var c UnitCost
		if err := rows.Scan(&c.UnitID, &c.Services, &c.TotalCost); err != nil {
			return nil, err
		}
		costs = append(costs, c)
	}
	return costs, rows.Err()
}
