package client

import "bustrack/internal/contracts"

// RoomKind identifies a broadcast channel family.
type RoomKind string

const (
	RoomBus        RoomKind = "bus"
	RoomTrip       RoomKind = "trip"
	RoomAdminFleet RoomKind = "admin-fleet"
)

// roomIntent is the declarative wish to be subscribed to one channel.
// Intents outlive the wire-level subscription: a disconnect never revokes
// them, the session re-issues every join after each successful handshake.
type roomIntent struct {
	kind RoomKind
	key  string // busId/tripId; empty for the admin-fleet room
}

// membership tracks the ordered, de-duplicated set of room intents.
// It is owned by exactly one Session and mutated only under its lock.
type membership struct {
	intents []roomIntent
}

// add registers an intent. Returns false when it was already present, so
// joining the same channel twice is a caller-visible no-op.
func (m *membership) add(kind RoomKind, key string) bool {
	for _, it := range m.intents {
		if it.kind == kind && it.key == key {
			return false
		}
	}
	m.intents = append(m.intents, roomIntent{kind: kind, key: key})
	return true
}

// joinFrame builds the wire frame for one intent.
func (it roomIntent) joinFrame() ([]byte, error) {
	switch it.kind {
	case RoomBus:
		return contracts.NewFrame(contracts.EventJoinBus, contracts.JoinBus{BusID: it.key})
	case RoomTrip:
		return contracts.NewFrame(contracts.EventJoinTrip, contracts.JoinTrip{TripID: it.key})
	default:
		return contracts.NewFrame(contracts.EventJoinAdmin, nil)
	}
}
