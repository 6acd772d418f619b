package fuel

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists fuel loads and alerts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const loadColumns = `id, unit_id, dispatcher_id, status, litres, odometer_km, initial_level, padlock_before, padlock_notes, started_at, finished_at, load_minutes, unit_photo, dashboard_photo, padlock_old_photo, new_padlock_photos, ticket_photo, notes, created_at`

func scanLoad(row pgx.Row) (Load, error) {
	var l Load
	var photosJSON []byte
	err := row.Scan(&l.ID, &l.UnitID, &l.DispatcherID, &l.Status, &l.Litres, &l.OdometerKM, &l.InitialLevel, &l.PadlockBefore, &l.PadlockNotes, &l.StartedAt, &l.FinishedAt, &l.LoadMinutes, &l.UnitPhoto, &l.DashboardPhoto, &l.PadlockOldPhoto, &photosJSON, &l.TicketPhoto, &l.Notes, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Load{}, ErrLoadNotFound
	}
	if err != nil {
		return Load{}, err
	}
	if len(photosJSON) > 0 {
		if err := json.Unmarshal(photosJSON, &l.NewPadlockPhotos); err != nil {
			return Load{}, err
		}
	}
	return l, nil
}

// InsertCompleted stores a finished load in a single write.
func (r *Repository) InsertCompleted(ctx context.Context, load Load) (Load, error) {
	photosJSON, err := json.Marshal(load.NewPadlockPhotos)
	if err != nil {
		return Load{}, err
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO fuel_loads (unit_id, dispatcher_id, status, litres, odometer_km, initial_level, padlock_before, padlock_notes, started_at, finished_at, load_minutes, unit_photo, dashboard_photo, padlock_old_photo, new_padlock_photos, ticket_photo, notes, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,NOW())
RETURNING `+loadColumns,
		load.UnitID, load.DispatcherID, string(load.Status), load.Litres, load.OdometerKM, string(load.InitialLevel), string(load.PadlockBefore), load.PadlockNotes, load.StartedAt, load.FinishedAt, load.LoadMinutes, load.UnitPhoto, load.DashboardPhoto, load.PadlockOldPhoto, photosJSON, load.TicketPhoto, load.Notes)
	return scanLoad(row)
}

func (r *Repository) Get(ctx context.Context, id int64) (Load, error) {
	return scanLoad(r.pool.QueryRow(ctx, `SELECT `+loadColumns+` FROM fuel_loads WHERE id=$1`, id))
}

func (r *Repository) List(ctx context.Context, filter Filter) ([]Load, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+loadColumns+` FROM fuel_loads
WHERE ($1 = 0 OR unit_id = $1)
  AND ($2 = 0 OR dispatcher_id = $2)
  AND ($3 = '' OR status = $3)
ORDER BY started_at DESC, id DESC
LIMIT $4 OFFSET $5`,
		filter.UnitID, filter.DispatcherID, string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	loads := []Load{}
	for rows.Next() {
		load, err := scanLoad(rows)
		if err != nil {
			return nil, err
		}
		loads = append(loads, load)
	}
	return loads, rows.Err()
}

const alertColumns = `id, load_id, alert_type, message, raised_at, resolved, resolved_by, resolved_at`

func scanAlert(row pgx.Row) (Alert, error) {
	var a Alert
	err := row.Scan(&a.ID, &a.LoadID, &a.Type, &a.Message, &a.RaisedAt, &a.Resolved, &a.ResolvedBy, &a.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Alert{}, ErrAlertNotFound
	}
	return a, err
}

// InsertAlert raises an alert once per load and type; a repeat insert
// of the same pair is a no-op returning the existing row.
func (r *Repository) InsertAlert(ctx context.Context, alert Alert) (Alert, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO fuel_alerts (load_id, alert_type, message, raised_at, resolved)
VALUES ($1,$2,$3,NOW(),FALSE)
ON CONFLICT (load_id, alert_type) DO UPDATE SET load_id=EXCLUDED.load_id
RETURNING `+alertColumns,
		alert.LoadID, string(alert.Type), alert.Message)
	return scanAlert(row)
}

func (r *Repository) GetAlert(ctx context.Context, id int64) (Alert, error) {
	return scanAlert(r.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM fuel_alerts WHERE id=$1`, id))
}

func (r *Repository) ListAlerts(ctx context.Context, onlyOpen bool, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+alertColumns+` FROM fuel_alerts
WHERE (NOT $1 OR NOT resolved)
ORDER BY raised_at DESC
LIMIT $2`, onlyOpen, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	alerts := []Alert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

func (r *Repository) ResolveAlert(ctx context.Context, id, resolvedBy int64, at time.Time) (Alert, error) {
	row := r.pool.QueryRow(ctx, `UPDATE fuel_alerts SET resolved=TRUE, resolved_by=$2, resolved_at=$3
WHERE id=$1 AND NOT resolved RETURNING `+alertColumns, id, resolvedBy, at)
	alert, err := scanAlert(row)
	if errors.Is(err, ErrAlertNotFound) {
		// Distinguish missing from already resolved.
		if _, getErr := r.GetAlert(ctx, id); getErr == nil {
			return Alert{}, ErrAlertResolved
		}
		return Alert{}, ErrAlertNotFound
	}
	return alert, err
}
