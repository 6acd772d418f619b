// Package trips keeps the trip ledger (bitacoras) and derives
// distance and fuel-economy metrics from odometer and date deltas.
package trips

import (
	"errors"
	"time"
)

// Status tracks the lifecycle of a trip.
type Status string

const (
	StatusInProgress Status = "EN_CURSO"
	StatusCompleted  Status = "COMPLETADA"
	StatusCancelled  Status = "CANCELADA"
)

// Low fuel economy threshold in km per litre.
const lowEfficiencyKMPerLitre = 2.5

// Trip is a single bitacora entry.
type Trip struct {
	ID             int64      `json:"id"`
	UnitID         int64      `json:"unit_id"`
	OperatorID     int64      `json:"operator_id"`
	Origin         string     `json:"origin"`
	OriginCP       string     `json:"origin_cp"`
	Destination    string     `json:"destination"`
	DestinationCP  string     `json:"destination_cp"`
	Status         Status     `json:"status"`
	DepartedAt     time.Time  `json:"departed_at"`
	ArrivedAt      *time.Time `json:"arrived_at,omitempty"`
	OdometerOut    float64    `json:"odometer_out"`
	OdometerIn     *float64   `json:"odometer_in,omitempty"`
	DieselLitres   float64    `json:"diesel_litres"`
	RouteKM        *float64   `json:"route_km,omitempty"`
	RouteMinutes   *float64   `json:"route_minutes,omitempty"`
	KMTravelled    float64    `json:"km_travelled"`
	FuelEconomy    float64    `json:"fuel_economy"`
	TravelHours    float64    `json:"travel_hours"`
	AverageSpeed   float64    `json:"average_speed"`
	LowEfficiency  bool       `json:"low_efficiency"`
	Notes          string     `json:"notes"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Metrics are the figures derived when a trip completes.
type Metrics struct {
	KMTravelled   float64 `json:"km_travelled"`
	FuelEconomy   float64 `json:"fuel_economy"`
	TravelHours   float64 `json:"travel_hours"`
	AverageSpeed  float64 `json:"average_speed"`
	LowEfficiency bool    `json:"low_efficiency"`
}

// UnitStats aggregates completed trips for one unit. EfficiencyRatio
// compares average real economy against the expected figure on the
// unit record (1.0 means on target).
type UnitStats struct {
	UnitID          int64   `json:"unit_id"`
	CompletedTrips  int     `json:"completed_trips"`
	TotalKM         float64 `json:"total_km"`
	TotalLitres     float64 `json:"total_litres"`
	AvgFuelEconomy  float64 `json:"avg_fuel_economy"`
	ExpectedKMPerL  float64 `json:"expected_km_per_l"`
	EfficiencyRatio float64 `json:"efficiency_ratio"`
}

// StartTripInput carries fields for opening a trip.
type StartTripInput struct {
	UnitID        int64     `json:"unit_id" validate:"required"`
	OperatorID    int64     `json:"operator_id" validate:"required"`
	Origin        string    `json:"origin" validate:"required"`
	OriginCP      string    `json:"origin_cp"`
	Destination   string    `json:"destination" validate:"required"`
	DestinationCP string    `json:"destination_cp"`
	DepartedAt    time.Time `json:"departed_at" validate:"required"`
	OdometerOut   float64   `json:"odometer_out" validate:"gt=0"`
	DieselLitres  float64   `json:"diesel_litres" validate:"gte=0"`
	Notes         string    `json:"notes"`
	ActorID       int64     `json:"-"`
}

// CompleteTripInput carries fields for closing a trip.
type CompleteTripInput struct {
	ArrivedAt    time.Time `json:"arrived_at" validate:"required"`
	OdometerIn   float64   `json:"odometer_in" validate:"gt=0"`
	DieselLitres float64   `json:"diesel_litres" validate:"gte=0"`
	Notes        string    `json:"notes"`
	ActorID      int64     `json:"-"`
}

// Filter narrows trip listings.
type Filter struct {
	UnitID     int64
	OperatorID int64
	Status     Status
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// Sentinel errors for the trips module.
var (
	ErrTripNotFound      = errors.New("trips: trip not found")
	ErrTripNotInProgress = errors.New("trips: trip is not in progress")
	ErrArrivalBeforeOut  = errors.New("trips: arrival must be after departure")
	ErrOdometerRegressed = errors.New("trips: arrival odometer below departure odometer")
	ErrUnitBusy          = errors.New("trips: unit is not available")
	ErrOperatorBusy      = errors.New("trips: operator already has a trip in progress")
)

// ComputeMetrics derives trip figures from odometer and date deltas.
// A trip of 300 km over 6 hours on 100 litres yields 3.0 km/l,
// 6.0 h and 50.0 km/h.
func ComputeMetrics(departedAt, arrivedAt time.Time, odometerOut, odometerIn, litres float64) Metrics {
	m := Metrics{}
	m.KMTravelled = odometerIn - odometerOut
	if m.KMTravelled < 0 {
		m.KMTravelled = 0
	}
	if litres > 0 {
		m.FuelEconomy = m.KMTravelled / litres
		m.LowEfficiency = m.FuelEconomy < lowEfficiencyKMPerLitre
	}
	hours := arrivedAt.Sub(departedAt).Hours()
	if hours > 0 {
		m.TravelHours = hours
		m.AverageSpeed = m.KMTravelled / hours
	}
	return m
}
