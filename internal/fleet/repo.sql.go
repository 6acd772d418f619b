package fleet

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists fleet data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const unitColumns = `id, economic_number, plates, brand, model, year, serial_number, unit_type, status, odometer_km, fuel_capacity_l, expected_km_per_l, next_maintenance, active, created_at, updated_at`

const qualifiedUnitColumns = `u.id, u.economic_number, u.plates, u.brand, u.model, u.year, u.serial_number, u.unit_type, u.status, u.odometer_km, u.fuel_capacity_l, u.expected_km_per_l, u.next_maintenance, u.active, u.created_at, u.updated_at`

// A unit is due for service after this many kilometres without one.
const maintenanceIntervalKM = 10000

func scanUnit(row pgx.Row) (Unit, error) {
	var u Unit
	err := row.Scan(&u.ID, &u.EconomicNumber, &u.Plates, &u.Brand, &u.Model, &u.Year, &u.SerialNumber, &u.Type, &u.Status, &u.OdometerKM, &u.FuelCapacityL, &u.ExpectedKMPerL, &u.NextMaintenance, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Unit{}, ErrUnitNotFound
	}
	return u, err
}

func (r *Repository) CreateUnit(ctx context.Context, input CreateUnitInput) (Unit, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO units (economic_number, plates, brand, model, year, serial_number, unit_type, status, odometer_km, fuel_capacity_l, expected_km_per_l, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,TRUE,NOW(),NOW())
RETURNING `+unitColumns,
		input.EconomicNumber, input.Plates, input.Brand, input.Model, input.Year, input.SerialNumber, string(input.Type), string(UnitStatusAvailable), input.OdometerKM, input.FuelCapacityL, input.ExpectedKMPerL)
	unit, err := scanUnit(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Unit{}, ErrDuplicateUnit
		}
		return Unit{}, err
	}
	return unit, nil
}

func (r *Repository) UpdateUnit(ctx context.Context, id int64, input UpdateUnitInput) (Unit, error) {
	row := r.pool.QueryRow(ctx, `UPDATE units SET
plates=COALESCE(NULLIF($2,''), plates),
brand=COALESCE(NULLIF($3,''), brand),
model=COALESCE(NULLIF($4,''), model),
year=CASE WHEN $5 > 0 THEN $5 ELSE year END,
serial_number=COALESCE(NULLIF($6,''), serial_number),
unit_type=COALESCE(NULLIF($7,''), unit_type),
fuel_capacity_l=CASE WHEN $8 > 0 THEN $8 ELSE fuel_capacity_l END,
expected_km_per_l=CASE WHEN $9 > 0 THEN $9 ELSE expected_km_per_l END,
active=COALESCE($10, active),
updated_at=NOW()
WHERE id=$1
RETURNING `+unitColumns,
		id, input.Plates, input.Brand, input.Model, input.Year, input.SerialNumber, string(input.Type), input.FuelCapacityL, input.ExpectedKMPerL, input.Active)
	return scanUnit(row)
}

func (r *Repository) GetUnit(ctx context.Context, id int64) (Unit, error) {
	return scanUnit(r.pool.QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE id=$1`, id))
}

func (r *Repository) GetUnitByEconomicNumber(ctx context.Context, number string) (Unit, error) {
	return scanUnit(r.pool.QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE economic_number=$1`, number))
}

func (r *Repository) ListUnits(ctx context.Context, filter UnitFilter) ([]Unit, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+unitColumns+` FROM units
WHERE ($1 = '' OR status = $1)
  AND ($2 = '' OR unit_type = $2)
  AND ($3 = '' OR economic_number ILIKE '%'||$3||'%' OR plates ILIKE '%'||$3||'%')
ORDER BY economic_number ASC
LIMIT $4 OFFSET $5`, string(filter.Status), string(filter.Type), filter.Search, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	units := []Unit{}
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

// AdvanceOdometer moves the unit odometer forward, never backwards.
// Every reported reading lands in odometer_log; readings at or below the
// stored value are logged with applied=false and leave the unit untouched.
// The returned value is the odometer after the write.
func (r *Repository) AdvanceOdometer(ctx context.Context, unitID int64, reading float64, source string) (float64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current float64
	err = tx.QueryRow(ctx, `SELECT odometer_km FROM units WHERE id=$1 FOR UPDATE`, unitID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUnitNotFound
	}
	if err != nil {
		return 0, err
	}
	applied := reading > current
	if applied {
		if _, err := tx.Exec(ctx, `UPDATE units SET odometer_km=$2, updated_at=NOW() WHERE id=$1`, unitID, reading); err != nil {
			return 0, err
		}
		current = reading
	}
	if _, err := tx.Exec(ctx, `INSERT INTO odometer_log (unit_id, reading, applied, source, recorded_at)
VALUES ($1,$2,$3,$4,NOW())`, unitID, reading, applied, source); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return current, nil
}

// ListOdometerLog returns the newest readings reported for a unit.
func (r *Repository) ListOdometerLog(ctx context.Context, unitID int64, limit int) ([]OdometerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, unit_id, reading, applied, source, recorded_at
FROM odometer_log WHERE unit_id=$1 ORDER BY recorded_at DESC, id DESC LIMIT $2`, unitID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []OdometerEntry{}
	for rows.Next() {
		var e OdometerEntry
		if err := rows.Scan(&e.ID, &e.UnitID, &e.Reading, &e.Applied, &e.Source, &e.RecordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *Repository) SetUnitStatus(ctx context.Context, unitID int64, status UnitStatus) (Unit, error) {
	row := r.pool.QueryRow(ctx, `UPDATE units SET status=$2, updated_at=NOW() WHERE id=$1 RETURNING `+unitColumns, unitID, string(status))
	return scanUnit(row)
}

func (r *Repository) SetNextMaintenance(ctx context.Context, unitID int64, date time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE units SET next_maintenance=$2, updated_at=NOW() WHERE id=$1`, unitID, date)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUnitNotFound
	}
	return nil
}

// ListUnitsDueForMaintenance returns active units whose next maintenance
// date falls on or before the given day, or that have run maintenanceIntervalKM
// or more since their last recorded service.
func (r *Repository) ListUnitsDueForMaintenance(ctx context.Context, day time.Time) ([]Unit, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+qualifiedUnitColumns+` FROM units u
LEFT JOIN LATERAL (
	SELECT odometer_km FROM maintenance_history
	WHERE unit_id = u.id ORDER BY serviced_at DESC LIMIT 1
) last_service ON TRUE
WHERE u.active AND (
	(u.next_maintenance IS NOT NULL AND u.next_maintenance <= $1)
	OR (last_service.odometer_km IS NOT NULL AND u.odometer_km - last_service.odometer_km >= $2)
)
ORDER BY u.next_maintenance ASC NULLS LAST`, day, maintenanceIntervalKM)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	units := []Unit{}
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

const operatorColumns = `id, employee_number, full_name, license_number, license_type, license_expiry, phone, status, assigned_unit_id, created_at, updated_at`

func scanOperator(row pgx.Row) (Operator, error) {
	var o Operator
	err := row.Scan(&o.ID, &o.EmployeeNumber, &o.FullName, &o.LicenseNumber, &o.LicenseType, &o.LicenseExpiry, &o.Phone, &o.Status, &o.AssignedUnitID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Operator{}, ErrOperatorNotFound
	}
	return o, err
}

func (r *Repository) CreateOperator(ctx context.Context, input CreateOperatorInput) (Operator, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO operators (employee_number, full_name, license_number, license_type, license_expiry, phone, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
RETURNING `+operatorColumns,
		input.EmployeeNumber, input.FullName, input.LicenseNumber, input.LicenseType, input.LicenseExpiry, input.Phone, string(OperatorStatusActive))
	op, err := scanOperator(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Operator{}, ErrDuplicateOperator
		}
		return Operator{}, err
	}
	return op, nil
}

func (r *Repository) GetOperator(ctx context.Context, id int64) (Operator, error) {
	return scanOperator(r.pool.QueryRow(ctx, `SELECT `+operatorColumns+` FROM operators WHERE id=$1`, id))
}

func (r *Repository) ListOperators(ctx context.Context, filter OperatorFilter) ([]Operator, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+operatorColumns+` FROM operators
WHERE ($1 = '' OR status = $1)
  AND ($2 = '' OR full_name ILIKE '%'||$2||'%' OR employee_number ILIKE '%'||$2||'%')
ORDER BY full_name ASC
LIMIT $3 OFFSET $4`, string(filter.Status), filter.Search, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	operators := []Operator{}
	for rows.Next() {
		op, err := scanOperator(rows)
		if err != nil {
			return nil, err
		}
		operators = append(operators, op)
	}
	return operators, rows.Err()
}

func (r *Repository) SetOperatorStatus(ctx context.Context, id int64, status OperatorStatus) (Operator, error) {
	row := r.pool.QueryRow(ctx, `UPDATE operators SET status=$2, updated_at=NOW() WHERE id=$1 RETURNING `+operatorColumns, id, string(status))
	return scanOperator(row)
}

func (r *Repository) AssignUnit(ctx context.Context, operatorID int64, unitID *int64) (Operator, error) {
	row := r.pool.QueryRow(ctx, `UPDATE operators SET assigned_unit_id=$2, updated_at=NOW() WHERE id=$1 RETURNING `+operatorColumns, operatorID, unitID)
	return scanOperator(row)
}

// ListOperatorsWithExpiringLicenses returns active operators whose license
// expires on or before the given day.
func (r *Repository) ListOperatorsWithExpiringLicenses(ctx context.Context, day time.Time) ([]Operator, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+operatorColumns+` FROM operators
WHERE status=$1 AND license_expiry IS NOT NULL AND license_expiry <= $2
ORDER BY license_expiry ASC`, string(OperatorStatusActive), day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	operators := []Operator{}
	for rows.Next() {
		op, err := scanOperator(rows)
		if err != nil {
			return nil, err
		}
		operators = append(operators, op)
	}
	return operators, rows.Err()
}
