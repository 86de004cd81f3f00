package ws

import (
	"io"
	"log/slog"
	"testing"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHub_JoinIsIdempotent(t *testing.T) {
	t.Parallel()
	h := testHub()
	c := NewClient("c1", nil)

	h.Join(BusRoom("bus-1"), c)
	h.Join(BusRoom("bus-1"), c)
	if got := h.Members(BusRoom("bus-1")); got != 1 {
		t.Fatalf("members = %d, want 1", got)
	}
}

func TestHub_LeaveRemovesEmptyRoom(t *testing.T) {
	t.Parallel()
	h := testHub()
	c1 := NewClient("c1", nil)
	c2 := NewClient("c2", nil)

	h.Join(TripRoom("trip-1"), c1)
	h.Join(TripRoom("trip-1"), c2)
	h.Leave(TripRoom("trip-1"), c1)
	if got := h.Members(TripRoom("trip-1")); got != 1 {
		t.Fatalf("members after leave = %d, want 1", got)
	}
	h.Leave(TripRoom("trip-1"), c2)
	if got := h.Members(TripRoom("trip-1")); got != 0 {
		t.Fatalf("members after full leave = %d, want 0", got)
	}
	if _, ok := h.rooms[TripRoom("trip-1")]; ok {
		t.Fatal("empty room was not removed")
	}
}

func TestHub_DropClearsAllMemberships(t *testing.T) {
	t.Parallel()
	h := testHub()
	c := NewClient("c1", nil)
	other := NewClient("c2", nil)

	h.Join(BusRoom("bus-1"), c)
	h.Join(TripRoom("trip-1"), c)
	h.Join(AdminFleetRoom, c)
	h.Join(AdminFleetRoom, other)

	h.Drop(c)

	for _, room := range []string{BusRoom("bus-1"), TripRoom("trip-1")} {
		if got := h.Members(room); got != 0 {
			t.Fatalf("room %q still has %d members", room, got)
		}
	}
	if got := h.Members(AdminFleetRoom); got != 1 {
		t.Fatalf("admin room members = %d, want the surviving client only", got)
	}
	if _, ok := h.byConn[c]; ok {
		t.Fatal("dropped client still indexed")
	}
}

func TestHub_BroadcastToEmptyRoomIsNoop(t *testing.T) {
	t.Parallel()
	h := testHub()
	// no members, no writes, no panic
	h.Broadcast(BusRoom("nobody"), []byte(`{"type":"busLocation"}`))
}

func TestRoomNames(t *testing.T) {
	t.Parallel()
	if BusRoom("7") != "bus:7" {
		t.Fatalf("BusRoom = %q", BusRoom("7"))
	}
	if TripRoom("abc") != "trip:abc" {
		t.Fatalf("TripRoom = %q", TripRoom("abc"))
	}
}
