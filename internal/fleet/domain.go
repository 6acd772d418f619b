// Package fleet manages transport units and their operators.
package fleet

import (
	"errors"
	"time"
)

// UnitType classifies a transport unit.
type UnitType string

const (
	UnitTypeTracto     UnitType = "TRACTO"
	UnitTypeCaja       UnitType = "CAJA"
	UnitTypeCamioneta  UnitType = "CAMIONETA"
	UnitTypeUtilitario UnitType = "UTILITARIO"
)

// UnitStatus tracks the operational state of a unit.
type UnitStatus string

const (
	UnitStatusAvailable    UnitStatus = "DISPONIBLE"
	UnitStatusOnTrip       UnitStatus = "EN_VIAJE"
	UnitStatusInWorkshop   UnitStatus = "EN_TALLER"
	UnitStatusOutOfService UnitStatus = "FUERA_SERVICIO"
)

// OperatorStatus tracks employment state of an operator.
type OperatorStatus string

const (
	OperatorStatusActive    OperatorStatus = "ACTIVO"
	OperatorStatusSuspended OperatorStatus = "SUSPENDIDO"
	OperatorStatusInactive  OperatorStatus = "BAJA"
)

// Unit is a vehicle in the fleet. OdometerKM only ever moves forward.
type Unit struct {
	ID              int64      `json:"id"`
	EconomicNumber  string     `json:"economic_number"`
	Plates          string     `json:"plates"`
	Brand           string     `json:"brand"`
	Model           string     `json:"model"`
	Year            int        `json:"year"`
	SerialNumber    string     `json:"serial_number"`
	Type            UnitType   `json:"type"`
	Status          UnitStatus `json:"status"`
	OdometerKM      float64    `json:"odometer_km"`
	FuelCapacityL   float64    `json:"fuel_capacity_l"`
	ExpectedKMPerL  float64    `json:"expected_km_per_l"`
	NextMaintenance *time.Time `json:"next_maintenance,omitempty"`
	Active          bool       `json:"active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Operator is a driver employed by the company.
type Operator struct {
	ID             int64          `json:"id"`
	EmployeeNumber string         `json:"employee_number"`
	FullName       string         `json:"full_name"`
	LicenseNumber  string         `json:"license_number"`
	LicenseType    string         `json:"license_type"`
	LicenseExpiry  *time.Time     `json:"license_expiry,omitempty"`
	Phone          string         `json:"phone"`
	Status         OperatorStatus `json:"status"`
	AssignedUnitID *int64         `json:"assigned_unit_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// UnitFilter narrows unit listings.
type UnitFilter struct {
	Status UnitStatus
	Type   UnitType
	Search string
	Limit  int
	Offset int
}

// OperatorFilter narrows operator listings.
type OperatorFilter struct {
	Status OperatorStatus
	Search string
	Limit  int
	Offset int
}

// CreateUnitInput carries fields for registering a unit.
type CreateUnitInput struct {
	EconomicNumber string   `json:"economic_number" validate:"required"`
	Plates         string   `json:"plates" validate:"required"`
	Brand          string   `json:"brand"`
	Model          string   `json:"model"`
	Year           int      `json:"year" validate:"omitempty,gte=1990,lte=2100"`
	SerialNumber   string   `json:"serial_number"`
	Type           UnitType `json:"type" validate:"required,oneof=TRACTO CAJA CAMIONETA UTILITARIO"`
	OdometerKM     float64  `json:"odometer_km" validate:"gte=0"`
	FuelCapacityL  float64  `json:"fuel_capacity_l" validate:"gte=0"`
	ExpectedKMPerL float64  `json:"expected_km_per_l" validate:"gte=0"`
	ActorID        int64    `json:"-"`
}

// UpdateUnitInput carries mutable unit fields.
type UpdateUnitInput struct {
	Plates         string   `json:"plates"`
	Brand          string   `json:"brand"`
	Model          string   `json:"model"`
	Year           int      `json:"year"`
	SerialNumber   string   `json:"serial_number"`
	Type           UnitType `json:"type"`
	FuelCapacityL  float64  `json:"fuel_capacity_l"`
	ExpectedKMPerL float64  `json:"expected_km_per_l"`
	Active         *bool    `json:"active"`
	ActorID        int64    `json:"-"`
}

// Sources accepted by AdvanceOdometer.
const (
	OdometerSourceManual    = "manual"
	OdometerSourceTrip      = "trip"
	OdometerSourceFuelLoad  = "fuel_load"
	OdometerSourceWorkOrder = "work_order"
)

// OdometerEntry records one reported odometer reading. Applied is false
// when the reading was at or below the stored value and left it unchanged.
type OdometerEntry struct {
	ID         int64     `json:"id"`
	UnitID     int64     `json:"unit_id"`
	Reading    float64   `json:"reading"`
	Applied    bool      `json:"applied"`
	Source     string    `json:"source"`
	RecordedAt time.Time `json:"recorded_at"`
}

// CreateOperatorInput carries fields for registering an operator.
type CreateOperatorInput struct {
	EmployeeNumber string     `json:"employee_number" validate:"required"`
	FullName       string     `json:"full_name" validate:"required"`
	LicenseNumber  string     `json:"license_number" validate:"required"`
	LicenseType    string     `json:"license_type"`
	LicenseExpiry  *time.Time `json:"license_expiry"`
	Phone          string     `json:"phone"`
	ActorID        int64      `json:"-"`
}

// Sentinel errors for the fleet module.
var (
	ErrUnitNotFound       = errors.New("fleet: unit not found")
	ErrOperatorNotFound   = errors.New("fleet: operator not found")
	ErrDuplicateUnit      = errors.New("fleet: economic number already registered")
	ErrDuplicateOperator  = errors.New("fleet: employee number already registered")
	ErrUnitInactive       = errors.New("fleet: unit is inactive")
	ErrInvalidUnitStatus  = errors.New("fleet: invalid unit status")
	ErrOdometerBackwards  = errors.New("fleet: odometer reading below current value")
	ErrOperatorSuspended  = errors.New("fleet: operator is not active")
	ErrUnitAlreadyInState = errors.New("fleet: unit already in requested status")
)

// LicenseExpiresSoon reports whether the operator license expires within days.
func (o Operator) LicenseExpiresSoon(now time.Time, days int) bool {
	if o.LicenseExpiry == nil {
		return false
	}
	limit := now.AddDate(0, 0, days)
	return !o.LicenseExpiry.After(limit)
}
