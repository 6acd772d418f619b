package trips

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists trips in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const tripColumns = `id, unit_id, operator_id, origin, origin_cp, destination, destination_cp, status, departed_at, arrived_at, odometer_out, odometer_in, diesel_litres, route_km, route_minutes, km_travelled, fuel_economy, travel_hours, average_speed, low_efficiency, notes, created_at, updated_at`

func scanTrip(row pgx.Row) (Trip, error) {
	var t Trip
	err := row.Scan(&t.ID, &t.UnitID, &t.OperatorID, &t.Origin, &t.OriginCP, &t.Destination, &t.DestinationCP, &t.Status, &t.DepartedAt, &t.ArrivedAt, &t.OdometerOut, &t.OdometerIn, &t.DieselLitres, &t.RouteKM, &t.RouteMinutes, &t.KMTravelled, &t.FuelEconomy, &t.TravelHours, &t.AverageSpeed, &t.LowEfficiency, &t.Notes, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Trip{}, ErrTripNotFound
	}
	return t, err
}

func (r *Repository) Insert(ctx context.Context, trip Trip) (Trip, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO trips (unit_id, operator_id, origin, origin_cp, destination, destination_cp, status, departed_at, odometer_out, diesel_litres, route_km, route_minutes, notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW(),NOW())
RETURNING `+tripColumns,
		trip.UnitID, trip.OperatorID, trip.Origin, trip.OriginCP, trip.Destination, trip.DestinationCP, string(trip.Status), trip.DepartedAt, trip.OdometerOut, trip.DieselLitres, trip.RouteKM, trip.RouteMinutes, trip.Notes)
	return scanTrip(row)
}

func (r *Repository) Get(ctx context.Context, id int64) (Trip, error) {
	return scanTrip(r.pool.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id=$1`, id))
}

// Complete closes the trip and stores the derived metrics in one statement.
func (r *Repository) Complete(ctx context.Context, id int64, input CompleteTripInput, metrics Metrics) (Trip, error) {
	row := r.pool.QueryRow(ctx, `UPDATE trips SET
status=$2, arrived_at=$3, odometer_in=$4, diesel_litres=$5,
km_travelled=$6, fuel_economy=$7, travel_hours=$8, average_speed=$9, low_efficiency=$10,
notes=CASE WHEN $11 <> '' THEN $11 ELSE notes END, updated_at=NOW()
WHERE id=$1
RETURNING `+tripColumns,
		id, string(StatusCompleted), input.ArrivedAt, input.OdometerIn, input.DieselLitres,
		metrics.KMTravelled, metrics.FuelEconomy, metrics.TravelHours, metrics.AverageSpeed, metrics.LowEfficiency,
		input.Notes)
	return scanTrip(row)
}

func (r *Repository) Cancel(ctx context.Context, id int64, reason string) (Trip, error) {
	row := r.pool.QueryRow(ctx, `UPDATE trips SET status=$2, notes=CASE WHEN $3 <> '' THEN notes || ' | ' || $3 ELSE notes END, updated_at=NOW()
WHERE id=$1 RETURNING `+tripColumns, id, string(StatusCancelled), reason)
	return scanTrip(row)
}

// HasTripInProgress reports whether the unit or operator has an open trip.
func (r *Repository) HasTripInProgress(ctx context.Context, unitID, operatorID int64) (bool, bool, error) {
	var unitBusy, operatorBusy bool
	err := r.pool.QueryRow(ctx, `SELECT
EXISTS (SELECT 1 FROM trips WHERE unit_id=$1 AND status=$3),
EXISTS (SELECT 1 FROM trips WHERE operator_id=$2 AND status=$3)`,
		unitID, operatorID, string(StatusInProgress)).Scan(&unitBusy, &operatorBusy)
	return unitBusy, operatorBusy, err
}

func (r *Repository) List(ctx context.Context, filter Filter) ([]Trip, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+tripColumns+` FROM trips
WHERE ($1 = 0 OR unit_id = $1)
  AND ($2 = 0 OR operator_id = $2)
  AND ($3 = '' OR status = $3)
  AND departed_at BETWEEN COALESCE($4, '-infinity') AND COALESCE($5, 'infinity')
ORDER BY departed_at DESC, id DESC
LIMIT $6 OFFSET $7`,
		filter.UnitID, filter.OperatorID, string(filter.Status), filter.From, filter.To, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	trips := []Trip{}
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

// UnitStats aggregates the unit's completed trips. Average economy is
// total kilometres over total litres, not the mean of per-trip figures.
func (r *Repository) UnitStats(ctx context.Context, unitID int64) (UnitStats, error) {
	stats := UnitStats{UnitID: unitID}
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(km_travelled),0), COALESCE(SUM(diesel_litres),0)
FROM trips WHERE unit_id=$1 AND status=$2`, unitID, string(StatusCompleted)).
		Scan(&stats.CompletedTrips, &stats.TotalKM, &stats.TotalLitres)
	if err != nil {
		return UnitStats{}, err
	}
	if stats.TotalLitres > 0 {
		stats.AvgFuelEconomy = stats.TotalKM / stats.TotalLitres
	}
	return stats, nil
}
