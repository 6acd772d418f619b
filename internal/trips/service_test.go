package trips

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flotilla-erp/flotilla/internal/fleet"
	"github.com/flotilla-erp/flotilla/internal/maps"
)

type memoryRepo struct {
	trips  map[int64]Trip
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{trips: make(map[int64]Trip)}
}

func (r *memoryRepo) Insert(_ context.Context, trip Trip) (Trip, error) {
	r.nextID++
	trip.ID = r.nextID
	r.trips[trip.ID] = trip
	return trip, nil
}

func (r *memoryRepo) UnitStats(_ context.Context, unitID int64) (UnitStats, error) {
	stats := UnitStats{UnitID: unitID}
	for _, trip := range r.trips {
		if trip.UnitID != unitID || trip.Status != StatusCompleted {
			continue
		}
		stats.CompletedTrips++
		stats.TotalKM += trip.KMTravelled
		stats.TotalLitres += trip.DieselLitres
	}
	if stats.TotalLitres > 0 {
		stats.AvgFuelEconomy = stats.TotalKM / stats.TotalLitres
	}
	return stats, nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Trip, error) {
	trip, ok := r.trips[id]
	if !ok {
		return Trip{}, ErrTripNotFound
	}
	return trip, nil
}

func (r *memoryRepo) Complete(_ context.Context, id int64, input CompleteTripInput, metrics Metrics) (Trip, error) {
	trip, ok := r.trips[id]
	if !ok {
		return Trip{}, ErrTripNotFound
	}
	trip.Status = StatusCompleted
	trip.ArrivedAt = &input.ArrivedAt
	trip.OdometerIn = &input.OdometerIn
	trip.KMTravelled = metrics.KMTravelled
	trip.FuelEconomy = metrics.FuelEconomy
	trip.TravelHours = metrics.TravelHours
	trip.AverageSpeed = metrics.AverageSpeed
	trip.LowEfficiency = metrics.LowEfficiency
	r.trips[id] = trip
	return trip, nil
}

func (r *memoryRepo) Cancel(_ context.Context, id int64, _ string) (Trip, error) {
	trip, ok := r.trips[id]
	if !ok {
		return Trip{}, ErrTripNotFound
	}
	trip.Status = StatusCancelled
	r.trips[id] = trip
	return trip, nil
}

func (r *memoryRepo) HasTripInProgress(_ context.Context, unitID, operatorID int64) (bool, bool, error) {
	var unitBusy, operatorBusy bool
	for _, t := range r.trips {
		if t.Status != StatusInProgress {
			continue
		}
		if t.UnitID == unitID {
			unitBusy = true
		}
		if t.OperatorID == operatorID {
			operatorBusy = true
		}
	}
	return unitBusy, operatorBusy, nil
}

func (r *memoryRepo) List(_ context.Context, _ Filter) ([]Trip, error) {
	out := []Trip{}
	for _, t := range r.trips {
		out = append(out, t)
	}
	return out, nil
}

type fakeFleet struct {
	units     map[int64]fleet.Unit
	operators map[int64]fleet.Operator
}

func newFakeFleet() *fakeFleet {
	return &fakeFleet{units: make(map[int64]fleet.Unit), operators: make(map[int64]fleet.Operator)}
}

func (f *fakeFleet) GetUnit(_ context.Context, id int64) (fleet.Unit, error) {
	unit, ok := f.units[id]
	if !ok {
		return fleet.Unit{}, fleet.ErrUnitNotFound
	}
	return unit, nil
}

func (f *fakeFleet) GetOperator(_ context.Context, id int64) (fleet.Operator, error) {
	op, ok := f.operators[id]
	if !ok {
		return fleet.Operator{}, fleet.ErrOperatorNotFound
	}
	return op, nil
}

func (f *fakeFleet) AdvanceOdometer(_ context.Context, unitID int64, reading float64, _ string) (float64, error) {
	unit, ok := f.units[unitID]
	if !ok {
		return 0, fleet.ErrUnitNotFound
	}
	if reading > unit.OdometerKM {
		unit.OdometerKM = reading
		f.units[unitID] = unit
	}
	return unit.OdometerKM, nil
}

func (f *fakeFleet) ChangeUnitStatus(_ context.Context, unitID int64, status fleet.UnitStatus, _ int64) (fleet.Unit, error) {
	unit, ok := f.units[unitID]
	if !ok {
		return fleet.Unit{}, fleet.ErrUnitNotFound
	}
	unit.Status = status
	f.units[unitID] = unit
	return unit, nil
}

type fakeDistance struct {
	dist maps.Distance
	err  error
}

func (f fakeDistance) Configured() bool { return true }

func (f fakeDistance) DistanceByPostalCode(_ context.Context, _, _ string) (maps.Distance, error) {
	return f.dist, f.err
}

func seed(f *fakeFleet) {
	f.units[1] = fleet.Unit{ID: 1, EconomicNumber: "T-101", Status: fleet.UnitStatusAvailable, OdometerKM: 1000, Active: true}
	f.operators[1] = fleet.Operator{ID: 1, EmployeeNumber: "EMP-01", Status: fleet.OperatorStatusActive}
}

func TestCompleteTripDerivesMetrics(t *testing.T) {
	repo := newMemoryRepo()
	fleetPort := newFakeFleet()
	seed(fleetPort)
	svc := NewService(repo, fleetPort, nil, nil, nil)
	ctx := context.Background()

	departed := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	trip, err := svc.Start(ctx, StartTripInput{
		UnitID: 1, OperatorID: 1, Origin: "Monterrey", Destination: "Guadalajara",
		DepartedAt: departed, OdometerOut: 1000, DieselLitres: 100,
	})
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, trip.Status)
	require.Equal(t, fleet.UnitStatusOnTrip, fleetPort.units[1].Status)

	arrived := time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC)
	completed, err := svc.Complete(ctx, trip.ID, CompleteTripInput{ArrivedAt: arrived, OdometerIn: 1300})
	require.NoError(t, err)
	require.InDelta(t, 300.0, completed.KMTravelled, 0.001)
	require.InDelta(t, 3.0, completed.FuelEconomy, 0.001)
	require.InDelta(t, 6.0, completed.TravelHours, 0.001)
	require.InDelta(t, 50.0, completed.AverageSpeed, 0.001)
	require.False(t, completed.LowEfficiency)
	require.Equal(t, fleet.UnitStatusAvailable, fleetPort.units[1].Status)
	require.InDelta(t, 1300.0, fleetPort.units[1].OdometerKM, 0.001)
}

func TestCompleteTripFlagsLowEfficiency(t *testing.T) {
	repo := newMemoryRepo()
	fleetPort := newFakeFleet()
	seed(fleetPort)
	svc := NewService(repo, fleetPort, nil, nil, nil)
	ctx := context.Background()

	departed := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	trip, err := svc.Start(ctx, StartTripInput{
		UnitID: 1, OperatorID: 1, Origin: "Monterrey", Destination: "Saltillo",
		DepartedAt: departed, OdometerOut: 1000, DieselLitres: 100,
	})
	require.NoError(t, err)

	completed, err := svc.Complete(ctx, trip.ID, CompleteTripInput{ArrivedAt: departed.Add(2 * time.Hour), OdometerIn: 1100})
	require.NoError(t, err)
	require.InDelta(t, 1.0, completed.FuelEconomy, 0.001)
	require.True(t, completed.LowEfficiency)
}

func TestCompleteTripRejectsBadOrdering(t *testing.T) {
	repo := newMemoryRepo()
	fleetPort := newFakeFleet()
	seed(fleetPort)
	svc := NewService(repo, fleetPort, nil, nil, nil)
	ctx := context.Background()

	departed := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	trip, err := svc.Start(ctx, StartTripInput{
		UnitID: 1, OperatorID: 1, Origin: "A", Destination: "B",
		DepartedAt: departed, OdometerOut: 1000,
	})
	require.NoError(t, err)

	_, err = svc.Complete(ctx, trip.ID, CompleteTripInput{ArrivedAt: departed.Add(-time.Hour), OdometerIn: 1100})
	require.ErrorIs(t, err, ErrArrivalBeforeOut)

	_, err = svc.Complete(ctx, trip.ID, CompleteTripInput{ArrivedAt: departed.Add(time.Hour), OdometerIn: 900})
	require.ErrorIs(t, err, ErrOdometerRegressed)
}

func TestStartTripRejectsBusyUnit(t *testing.T) {
	repo := newMemoryRepo()
	fleetPort := newFakeFleet()
	seed(fleetPort)
	fleetPort.units[2] = fleet.Unit{ID: 2, EconomicNumber: "T-102", Status: fleet.UnitStatusAvailable, Active: true}
	fleetPort.operators[2] = fleet.Operator{ID: 2, EmployeeNumber: "EMP-02", Status: fleet.OperatorStatusActive}
	svc := NewService(repo, fleetPort, nil, nil, nil)
	ctx := context.Background()

	departed := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	_, err := svc.Start(ctx, StartTripInput{UnitID: 1, OperatorID: 1, Origin: "A", Destination: "B", DepartedAt: departed, OdometerOut: 1000})
	require.NoError(t, err)

	// Unit 1 is now EN_VIAJE.
	_, err = svc.Start(ctx, StartTripInput{UnitID: 1, OperatorID: 2, Origin: "A", Destination: "B", DepartedAt: departed, OdometerOut: 1000})
	require.ErrorIs(t, err, ErrUnitBusy)

	// Operator 1 still has an open trip even though unit 2 is free.
	_, err = svc.Start(ctx, StartTripInput{UnitID: 2, OperatorID: 1, Origin: "A", Destination: "B", DepartedAt: departed, OdometerOut: 500})
	require.ErrorIs(t, err, ErrOperatorBusy)
}

func TestStartTripStoresAdvisoryRoute(t *testing.T) {
	repo := newMemoryRepo()
	fleetPort := newFakeFleet()
	seed(fleetPort)
	distance := fakeDistance{dist: maps.Distance{KM: 789.5, DurationMin: 480}}
	svc := NewService(repo, fleetPort, distance, nil, nil)
	ctx := context.Background()

	trip, err := svc.Start(ctx, StartTripInput{
		UnitID: 1, OperatorID: 1, Origin: "Monterrey", OriginCP: "64000",
		Destination: "Guadalajara", DestinationCP: "44100",
		DepartedAt: time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC), OdometerOut: 1000,
	})
	require.NoError(t, err)
	require.NotNil(t, trip.RouteKM)
	require.InDelta(t, 789.5, *trip.RouteKM, 0.001)
}

func TestCancelReleasesUnit(t *testing.T) {
	repo := newMemoryRepo()
	fleetPort := newFakeFleet()
	seed(fleetPort)
	svc := NewService(repo, fleetPort, nil, nil, nil)
	ctx := context.Background()

	trip, err := svc.Start(ctx, StartTripInput{UnitID: 1, OperatorID: 1, Origin: "A", Destination: "B", DepartedAt: time.Now(), OdometerOut: 1000})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, trip.ID, "clima", 1)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Equal(t, fleet.UnitStatusAvailable, fleetPort.units[1].Status)

	_, err = svc.Cancel(ctx, trip.ID, "clima", 1)
	require.ErrorIs(t, err, ErrTripNotInProgress)
}

func TestUnitPerformanceComparesAgainstExpected(t *testing.T) {
	repo := newMemoryRepo()
	fleetPort := newFakeFleet()
	seed(fleetPort)
	unit := fleetPort.units[1]
	unit.ExpectedKMPerL = 3.0
	fleetPort.units[1] = unit
	svc := NewService(repo, fleetPort, nil, nil, nil)
	ctx := context.Background()

	departed := time.Date(2024, 2, 5, 8, 0, 0, 0, time.UTC)
	trip, err := svc.Start(ctx, StartTripInput{
		UnitID: 1, OperatorID: 1, Origin: "Monterrey", Destination: "Saltillo",
		DepartedAt: departed, OdometerOut: 1000, DieselLitres: 100,
	})
	require.NoError(t, err)
	_, err = svc.Complete(ctx, trip.ID, CompleteTripInput{ArrivedAt: departed.Add(5 * time.Hour), OdometerIn: 1270})
	require.NoError(t, err)

	stats, err := svc.UnitPerformance(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, stats.CompletedTrips)
	require.InDelta(t, 270.0, stats.TotalKM, 0.001)
	require.InDelta(t, 2.7, stats.AvgFuelEconomy, 0.001)
	require.InDelta(t, 0.9, stats.EfficiencyRatio, 0.001)

	_, err = svc.UnitPerformance(ctx, 99)
	require.ErrorIs(t, err, fleet.ErrUnitNotFound)
}
