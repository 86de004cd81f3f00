package tracking

import (
	"context"
	"errors"
	"testing"

	"bustrack/internal/domain/trip"
)

func TestStartTrip_AcquiresBusLock(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)

	sess, err := env.svc.StartTrip(context.Background(), "driver-1", "bus-7", "route-3", false)
	if err != nil {
		t.Fatalf("StartTrip: %v", err)
	}
	if sess.Status != trip.StatusActive {
		t.Fatalf("status = %v, want ACTIVE", sess.Status)
	}
	holder, _ := env.locker.Holder(context.Background(), "bus-7")
	if holder != sess.ID {
		t.Fatalf("lock holder = %q, want %q", holder, sess.ID)
	}
	if env.trips.get(sess.ID) == nil {
		t.Fatal("session not persisted")
	}
}

func TestStartTrip_SecondDriverGetsConflict(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)
	ctx := context.Background()

	first, err := env.svc.StartTrip(ctx, "driver-1", "bus-7", "route-3", false)
	if err != nil {
		t.Fatalf("first StartTrip: %v", err)
	}

	_, err = env.svc.StartTrip(ctx, "driver-2", "bus-7", "route-3", false)
	var conflict *trip.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("second StartTrip error = %v, want ConflictError", err)
	}
	if conflict.ActiveTripID != first.ID {
		t.Fatalf("conflict names trip %q, want %q", conflict.ActiveTripID, first.ID)
	}
	if conflict.BusID != "bus-7" {
		t.Fatalf("conflict bus = %q", conflict.BusID)
	}
}

func TestStartTrip_ForceTakeoverEndsHolder(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)
	ctx := context.Background()

	first, err := env.svc.StartTrip(ctx, "driver-1", "bus-7", "route-3", false)
	if err != nil {
		t.Fatalf("first StartTrip: %v", err)
	}

	second, err := env.svc.StartTrip(ctx, "driver-2", "bus-7", "route-4", true)
	if err != nil {
		t.Fatalf("force StartTrip: %v", err)
	}

	if got := env.trips.get(first.ID); got.Status != trip.StatusEnded {
		t.Fatalf("holder status = %v, want ENDED", got.Status)
	}
	holder, _ := env.locker.Holder(ctx, "bus-7")
	if holder != second.ID {
		t.Fatalf("lock holder = %q, want the new trip %q", holder, second.ID)
	}
}

func TestStartTrip_SameDriverSameBusIsIdempotent(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)
	ctx := context.Background()

	first, err := env.svc.StartTrip(ctx, "driver-1", "bus-7", "route-3", false)
	if err != nil {
		t.Fatalf("first StartTrip: %v", err)
	}
	again, err := env.svc.StartTrip(ctx, "driver-1", "bus-7", "route-3", false)
	if err != nil {
		t.Fatalf("repeat StartTrip: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("repeat returned new trip %q, want existing %q", again.ID, first.ID)
	}
}

func TestStartTrip_DriverBusyOnDifferentBus(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)
	ctx := context.Background()

	if _, err := env.svc.StartTrip(ctx, "driver-1", "bus-7", "route-3", false); err != nil {
		t.Fatalf("first StartTrip: %v", err)
	}
	_, err := env.svc.StartTrip(ctx, "driver-1", "bus-8", "route-3", false)
	if !errors.Is(err, trip.ErrDriverBusy) {
		t.Fatalf("error = %v, want ErrDriverBusy", err)
	}
}

func TestStartTrip_RepositoryFailureIsNotNoTrip(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)
	ctx := context.Background()

	// a storage outage must abort the start, not pass for "no active trip"
	outage := errors.New("connection refused")
	env.trips.activeByDriverErr = outage

	_, err := env.svc.StartTrip(ctx, "driver-1", "bus-7", "route-3", false)
	if !errors.Is(err, outage) {
		t.Fatalf("error = %v, want the repository failure", err)
	}
	if holder, _ := env.locker.Holder(ctx, "bus-7"); holder != "" {
		t.Fatalf("lock was taken despite the failed start, holder = %q", holder)
	}
}

func TestSelectBus(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)
	ctx := context.Background()

	if err := env.svc.SelectBus(ctx, "bus-7"); err != nil {
		t.Fatalf("free bus: %v", err)
	}

	sess, _ := env.svc.StartTrip(ctx, "driver-1", "bus-7", "route-3", false)

	err := env.svc.SelectBus(ctx, "bus-7")
	var conflict *trip.ConflictError
	if !errors.As(err, &conflict) || conflict.ActiveTripID != sess.ID {
		t.Fatalf("locked bus error = %v, want ConflictError for %q", err, sess.ID)
	}

	if err := env.svc.SelectBus(ctx, ""); !errors.Is(err, trip.ErrInvalidBusID) {
		t.Fatalf("empty bus error = %v, want ErrInvalidBusID", err)
	}
}

func TestPauseResumeEnd(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)
	ctx := context.Background()

	sess, err := env.svc.StartTrip(ctx, "driver-1", "bus-7", "route-3", false)
	if err != nil {
		t.Fatalf("StartTrip: %v", err)
	}

	paused, err := env.svc.PauseTrip(ctx, "driver-1", sess.ID)
	if err != nil {
		t.Fatalf("PauseTrip: %v", err)
	}
	if paused.Status != trip.StatusPaused {
		t.Fatalf("status after pause = %v", paused.Status)
	}
	// paused trips keep the bus lock
	if holder, _ := env.locker.Holder(ctx, "bus-7"); holder != sess.ID {
		t.Fatalf("pause released the lock, holder = %q", holder)
	}

	if _, err := env.svc.PauseTrip(ctx, "driver-1", sess.ID); !errors.Is(err, trip.ErrAlreadyPaused) {
		t.Fatalf("double pause error = %v, want ErrAlreadyPaused", err)
	}

	resumed, err := env.svc.ResumeTrip(ctx, "driver-1", sess.ID)
	if err != nil {
		t.Fatalf("ResumeTrip: %v", err)
	}
	if resumed.Status != trip.StatusActive {
		t.Fatalf("status after resume = %v", resumed.Status)
	}
	if _, err := env.svc.ResumeTrip(ctx, "driver-1", sess.ID); !errors.Is(err, trip.ErrNotPaused) {
		t.Fatalf("double resume error = %v, want ErrNotPaused", err)
	}

	ended, err := env.svc.EndTrip(ctx, "driver-1", sess.ID)
	if err != nil {
		t.Fatalf("EndTrip: %v", err)
	}
	if ended.Status != trip.StatusEnded || ended.EndedAt == nil {
		t.Fatalf("ended = %+v", ended)
	}
	if holder, _ := env.locker.Holder(ctx, "bus-7"); holder != "" {
		t.Fatalf("end kept the lock, holder = %q", holder)
	}

	if _, err := env.svc.EndTrip(ctx, "driver-1", sess.ID); !errors.Is(err, trip.ErrTripEnded) {
		t.Fatalf("double end error = %v, want ErrTripEnded", err)
	}
}

func TestLifecycle_RejectsForeignDriver(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)
	ctx := context.Background()

	sess, _ := env.svc.StartTrip(ctx, "driver-1", "bus-7", "route-3", false)

	if _, err := env.svc.PauseTrip(ctx, "driver-2", sess.ID); !errors.Is(err, trip.ErrDriverMismatch) {
		t.Fatalf("pause by stranger = %v, want ErrDriverMismatch", err)
	}
	if _, err := env.svc.EndTrip(ctx, "driver-2", sess.ID); !errors.Is(err, trip.ErrDriverMismatch) {
		t.Fatalf("end by stranger = %v, want ErrDriverMismatch", err)
	}
}

func TestResetBus_ClearsLockAndNotifies(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)
	ctx := context.Background()

	sess, err := env.svc.StartTrip(ctx, "driver-1", "bus-7", "route-3", false)
	if err != nil {
		t.Fatalf("StartTrip: %v", err)
	}

	if err := env.svc.ResetBus(ctx, "bus-7"); err != nil {
		t.Fatalf("ResetBus: %v", err)
	}

	if got := env.trips.get(sess.ID); got.Status != trip.StatusEnded {
		t.Fatalf("trip status = %v, want ENDED", got.Status)
	}
	if holder, _ := env.locker.Holder(ctx, "bus-7"); holder != "" {
		t.Fatalf("lock survived reset, holder = %q", holder)
	}
	names := env.fanout.eventNames()
	if len(names) != 1 || names[0] != "busOffline" {
		t.Fatalf("fanout events = %v, want [busOffline]", names)
	}
}

func TestResetBus_NoActiveTripStillClearsLock(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)
	ctx := context.Background()

	// crashed instance scenario: lock exists with no live session behind it
	if _, _, err := env.locker.Acquire(ctx, "bus-9", "ghost-trip"); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.ResetBus(ctx, "bus-9"); err != nil {
		t.Fatalf("ResetBus: %v", err)
	}
	if holder, _ := env.locker.Holder(ctx, "bus-9"); holder != "" {
		t.Fatalf("lock survived reset, holder = %q", holder)
	}
	if got := env.fanout.eventNames(); len(got) != 0 {
		t.Fatalf("unexpected fanout events: %v", got)
	}
}

func TestActiveForDriver(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, 0)
	ctx := context.Background()

	if _, err := env.svc.ActiveForDriver(ctx, "driver-1"); !errors.Is(err, trip.ErrNoActiveTrip) {
		t.Fatalf("no trip error = %v, want ErrNoActiveTrip", err)
	}

	sess, _ := env.svc.StartTrip(ctx, "driver-1", "bus-7", "route-3", false)
	got, err := env.svc.ActiveForDriver(ctx, "driver-1")
	if err != nil {
		t.Fatalf("ActiveForDriver: %v", err)
	}
	if got.ID != sess.ID {
		t.Fatalf("got trip %q, want %q", got.ID, sess.ID)
	}

	if _, err := env.svc.EndTrip(ctx, "driver-1", sess.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.ActiveForDriver(ctx, "driver-1"); !errors.Is(err, trip.ErrNoActiveTrip) {
		t.Fatalf("after end error = %v, want ErrNoActiveTrip", err)
	}
}
