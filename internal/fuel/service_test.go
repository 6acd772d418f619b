package fuel

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/flotilla-erp/flotilla/internal/fleet"
	"github.com/flotilla-erp/flotilla/internal/shared"
)

type memoryRepo struct {
	loads  map[int64]Load
	alerts map[int64]Alert
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{loads: make(map[int64]Load), alerts: make(map[int64]Alert)}
}

func (r *memoryRepo) InsertCompleted(_ context.Context, load Load) (Load, error) {
	r.nextID++
	load.ID = r.nextID
	r.loads[load.ID] = load
	return load, nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Load, error) {
	load, ok := r.loads[id]
	if !ok {
		return Load{}, ErrLoadNotFound
	}
	return load, nil
}

func (r *memoryRepo) List(_ context.Context, _ Filter) ([]Load, error) {
	out := []Load{}
	for _, l := range r.loads {
		out = append(out, l)
	}
	return out, nil
}

func (r *memoryRepo) InsertAlert(_ context.Context, alert Alert) (Alert, error) {
	for _, a := range r.alerts {
		if a.LoadID == alert.LoadID && a.Type == alert.Type {
			return a, nil
		}
	}
	r.nextID++
	alert.ID = r.nextID
	alert.RaisedAt = time.Now()
	r.alerts[alert.ID] = alert
	return alert, nil
}

func (r *memoryRepo) ListAlerts(_ context.Context, onlyOpen bool, _ int) ([]Alert, error) {
	out := []Alert{}
	for _, a := range r.alerts {
		if onlyOpen && a.Resolved {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *memoryRepo) ResolveAlert(_ context.Context, id, resolvedBy int64, at time.Time) (Alert, error) {
	alert, ok := r.alerts[id]
	if !ok {
		return Alert{}, ErrAlertNotFound
	}
	if alert.Resolved {
		return Alert{}, ErrAlertResolved
	}
	alert.Resolved = true
	alert.ResolvedBy = &resolvedBy
	alert.ResolvedAt = &at
	r.alerts[id] = alert
	return alert, nil
}

type fakeFleet struct {
	units map[int64]fleet.Unit
}

func (f *fakeFleet) GetUnit(_ context.Context, id int64) (fleet.Unit, error) {
	unit, ok := f.units[id]
	if !ok {
		return fleet.Unit{}, fleet.ErrUnitNotFound
	}
	return unit, nil
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

func newTestService(t *testing.T) (*Service, *memoryRepo, *fakeFleet) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemoryRepo()
	fleetPort := &fakeFleet{units: map[int64]fleet.Unit{
		1: {ID: 1, EconomicNumber: "T-101", OdometerKM: 120000, FuelCapacityL: 400, Active: true},
	}}
	svc := NewService(repo, NewDraftStore(client, time.Hour), fleetPort, nil, nil)
	return svc, repo, fleetPort
}

func runWizard(t *testing.T, svc *Service, litres float64, padlock PadlockState) Draft {
	t.Helper()
	ctx := context.Background()

	draft, err := svc.StartWizard(ctx, StepUnit{UnitID: 1, DispatcherID: 7, UnitPhoto: "unit.jpg"})
	require.NoError(t, err)

	draft, err = svc.SubmitDashboard(ctx, draft.ID, StepDashboard{OdometerKM: 120450, InitialLevel: LevelQuarter, DashboardPhoto: "dash.jpg"})
	require.NoError(t, err)
	draft, err = svc.SubmitOldPadlock(ctx, draft.ID, StepOldPadlock{PadlockBefore: padlock, PadlockOldPhoto: "old.jpg"})
	require.NoError(t, err)
	draft, err = svc.SubmitLitres(ctx, draft.ID, StepLitres{Litres: litres})
	require.NoError(t, err)
	draft, err = svc.SubmitNewPadlock(ctx, draft.ID, StepNewPadlock{Photos: []PadlockPhoto{{Photo: "new1.jpg", Description: "Tanque 1"}}})
	require.NoError(t, err)
	draft, err = svc.SubmitTicket(ctx, draft.ID, StepTicket{TicketPhoto: "ticket.jpg", Notes: "carga normal"})
	require.NoError(t, err)
	return draft
}

func TestWizardHappyPath(t *testing.T) {
	svc, _, fleetPort := newTestService(t)
	ctx := context.Background()

	start := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	draft := runWizard(t, svc, 350, PadlockNormal)
	require.Equal(t, TotalSteps, draft.Step)

	svc.now = func() time.Time { return start.Add(18 * time.Minute) }
	load, alerts, err := svc.Finalize(ctx, draft.ID, 7)
	require.NoError(t, err)
	require.Equal(t, LoadStatusCompleted, load.Status)
	require.Equal(t, 18, load.LoadMinutes)
	require.Empty(t, alerts)
	require.InDelta(t, 120450.0, fleetPort.units[1].OdometerKM, 0.001)

	// The draft is gone once the load exists.
	_, err = svc.GetDraft(ctx, draft.ID)
	require.ErrorIs(t, err, ErrDraftNotFound)
}

func TestWizardRejectsSkippedSteps(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	draft, err := svc.StartWizard(ctx, StepUnit{UnitID: 1, DispatcherID: 7, UnitPhoto: "unit.jpg"})
	require.NoError(t, err)

	_, err = svc.SubmitLitres(ctx, draft.ID, StepLitres{Litres: 200})
	require.ErrorIs(t, err, ErrWrongStep)

	_, _, err = svc.Finalize(ctx, draft.ID, 7)
	require.ErrorIs(t, err, ErrDraftIncomplete)
}

func TestFinalizeRaisesPadlockAndExcessAlerts(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	// 450 L into a 400 L tank with a broken padlock.
	draft := runWizard(t, svc, 450, PadlockBroken)

	_, alerts, err := svc.Finalize(ctx, draft.ID, 7)
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	types := map[AlertType]bool{}
	for _, a := range alerts {
		types[a.Type] = true
	}
	require.True(t, types[AlertPadlockBroken])
	require.True(t, types[AlertExcessFuel])
	require.Len(t, repo.alerts, 2)
}

func TestResolveAlertOnlyOnce(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	draft := runWizard(t, svc, 200, PadlockMissing)
	_, alerts, err := svc.Finalize(ctx, draft.ID, 7)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	resolved, err := svc.ResolveAlert(ctx, alerts[0].ID, 3)
	require.NoError(t, err)
	require.True(t, resolved.Resolved)
	require.NotNil(t, resolved.ResolvedBy)

	_, err = svc.ResolveAlert(ctx, alerts[0].ID, 3)
	require.ErrorIs(t, err, ErrAlertResolved)
}

func TestDraftReSubmitSameStepAllowed(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	draft, err := svc.StartWizard(ctx, StepUnit{UnitID: 1, DispatcherID: 7, UnitPhoto: "unit.jpg"})
	require.NoError(t, err)

	draft, err = svc.SubmitDashboard(ctx, draft.ID, StepDashboard{OdometerKM: 120100, InitialLevel: LevelEmpty, DashboardPhoto: "d1.jpg"})
	require.NoError(t, err)

	// Correcting the reading before moving on keeps the wizard at step 2.
	draft, err = svc.SubmitDashboard(ctx, draft.ID, StepDashboard{OdometerKM: 120150, InitialLevel: LevelEmpty, DashboardPhoto: "d2.jpg"})
	require.NoError(t, err)
	require.Equal(t, 2, draft.Step)
	require.InDelta(t, 120150.0, draft.OdometerKM, 0.001)
}

type fakeIdempotency struct {
	keys map[string]bool
}

func (f *fakeIdempotency) CheckAndInsert(_ context.Context, key, _ string) error {
	if f.keys == nil {
		f.keys = map[string]bool{}
	}
	if f.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	f.keys[key] = true
	return nil
}

func (f *fakeIdempotency) Delete(_ context.Context, key string) error {
	delete(f.keys, key)
	return nil
}

func TestFinalizeRefusesReplayedDraft(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	guard := &fakeIdempotency{}
	svc.SetIdempotency(guard)

	draft := runWizard(t, svc, 300, PadlockNormal)

	// Restore the draft to model a crash after the load insert but
	// before the draft delete.
	_, _, err := svc.Finalize(ctx, draft.ID, 7)
	require.NoError(t, err)
	require.NoError(t, svc.drafts.Update(ctx, draft))

	_, _, err = svc.Finalize(ctx, draft.ID, 7)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Len(t, repo.loads, 1)
}
