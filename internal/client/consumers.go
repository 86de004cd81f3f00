package client

import (
	"encoding/json"

	"bustrack/internal/contracts"
)

// JoinBus registers intent to receive that bus's broadcasts and joins
// immediately when Live. The intent survives reconnects. Idempotent.
func (s *Session) JoinBus(busID string) {
	if busID == "" {
		return
	}
	s.join(RoomBus, busID)
}

// JoinTrip registers intent to receive that trip's broadcasts.
func (s *Session) JoinTrip(tripID string) {
	if tripID == "" {
		return
	}
	s.join(RoomTrip, tripID)
}

// JoinAdminFleet registers intent to receive the whole-fleet channel.
func (s *Session) JoinAdminFleet() {
	s.join(RoomAdminFleet, "")
}

func (s *Session) join(kind RoomKind, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.rooms.add(kind, key) {
		return // already a member, nothing to re-send
	}
	if s.state != StateLive || s.conn == nil {
		return // will be issued by the next connect-success sequence
	}
	frame, err := (roomIntent{kind: kind, key: key}).joinFrame()
	if err != nil {
		return
	}
	if err := s.conn.WriteJSON(json.RawMessage(frame)); err != nil {
		s.log.Warn("join_write_failed", "room", string(kind), "key", key, "error", err)
	}
}

// OnBusLocation subscribes to live position broadcasts. The disposer must
// be invoked when the consumer goes away.
func (s *Session) OnBusLocation(fn func(contracts.BusLocation)) (dispose func()) {
	return s.on(contracts.EventBusLocation, func(raw json.RawMessage) {
		var p contracts.BusLocation
		if err := json.Unmarshal(raw, &p); err == nil {
			fn(p)
		}
	})
}

// OnBusOffline subscribes to idle-trip notifications.
func (s *Session) OnBusOffline(fn func(contracts.BusOffline)) (dispose func()) {
	return s.on(contracts.EventBusOffline, func(raw json.RawMessage) {
		var p contracts.BusOffline
		if err := json.Unmarshal(raw, &p); err == nil {
			fn(p)
		}
	})
}

// OnStopProgressed subscribes to route-stop progress events.
func (s *Session) OnStopProgressed(fn func(contracts.StopProgressed)) (dispose func()) {
	return s.on(contracts.EventStopProgressed, func(raw json.RawMessage) {
		var p contracts.StopProgressed
		if err := json.Unmarshal(raw, &p); err == nil {
			fn(p)
		}
	})
}

// OnAttendanceMarked subscribes to attendance events.
func (s *Session) OnAttendanceMarked(fn func(contracts.AttendanceMarked)) (dispose func()) {
	return s.on(contracts.EventAttendanceMarked, func(raw json.RawMessage) {
		var p contracts.AttendanceMarked
		if err := json.Unmarshal(raw, &p); err == nil {
			fn(p)
		}
	})
}
