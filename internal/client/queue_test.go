package client

import (
	"fmt"
	"testing"

	"bustrack/internal/domain/geo"
)

func sampleN(n int) geo.Sample {
	return geo.Sample{
		TripID:   "trip-1",
		BusID:    "bus-1",
		DriverID: fmt.Sprintf("seq-%d", n),
		Lat:      41.3,
		Lng:      69.2,
	}
}

func TestOfflineQueue_FIFOOrder(t *testing.T) {
	t.Parallel()

	q := newOfflineQueue(30)
	for i := 0; i < 5; i++ {
		q.push(sampleN(i))
	}

	var got []string
	q.drain(func(qs QueuedSample) bool {
		got = append(got, qs.DriverID)
		return true
	})

	for i, id := range got {
		want := fmt.Sprintf("seq-%d", i)
		if id != want {
			t.Errorf("position %d: got %s, want %s", i, id, want)
		}
	}
	if q.len() != 0 {
		t.Errorf("expected empty queue after drain, got %d", q.len())
	}
}

func TestOfflineQueue_EvictsOldestAtCapacity(t *testing.T) {
	t.Parallel()

	q := newOfflineQueue(30)
	for i := 0; i < 42; i++ {
		q.push(sampleN(i))
	}

	if q.len() != 30 {
		t.Fatalf("expected queue pinned at 30, got %d", q.len())
	}
	if q.evicted != 12 {
		t.Errorf("expected 12 evictions, got %d", q.evicted)
	}

	// oldest survivor must be sample 12
	var first string
	q.drain(func(qs QueuedSample) bool {
		if first == "" {
			first = qs.DriverID
		}
		return true
	})
	if first != "seq-12" {
		t.Errorf("expected head seq-12 after eviction, got %s", first)
	}
}

func TestOfflineQueue_DrainStopsAndReheadsOnFailure(t *testing.T) {
	t.Parallel()

	q := newOfflineQueue(30)
	for i := 0; i < 4; i++ {
		q.push(sampleN(i))
	}

	sent := 0
	flushed := q.drain(func(qs QueuedSample) bool {
		if sent == 2 {
			return false // transport dropped mid-flush
		}
		sent++
		return true
	})

	if flushed != 2 {
		t.Errorf("expected 2 flushed, got %d", flushed)
	}
	if q.len() != 2 {
		t.Fatalf("expected 2 retained, got %d", q.len())
	}

	// the failed sample must still be at the head
	var head string
	q.drain(func(qs QueuedSample) bool {
		if head == "" {
			head = qs.DriverID
		}
		return true
	})
	if head != "seq-2" {
		t.Errorf("expected failed sample seq-2 re-headed, got %s", head)
	}
}

func TestOfflineQueue_QueuedFlagSet(t *testing.T) {
	t.Parallel()

	q := newOfflineQueue(30)
	q.push(sampleN(0))
	q.drain(func(qs QueuedSample) bool {
		if !qs.Queued {
			t.Error("expected Queued flag on replayed sample")
		}
		if qs.EnqueuedAt.IsZero() {
			t.Error("expected EnqueuedAt to be stamped")
		}
		return true
	})
}
