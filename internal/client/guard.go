package client

import (
	"time"

	"bustrack/internal/contracts"
	"bustrack/internal/domain/geo"
)

// Emit is the single choke point every outgoing position sample passes
// through. It validates, then routes: a Live transport gets the sample
// directly (returns true); otherwise it lands on the bounded offline queue
// (returns false). Malformed samples are dropped with a log entry and never
// reach either path, so downstream consumers are shielded from NaN or
// half-filled payloads regardless of where they came from.
func (s *Session) Emit(sample geo.Sample) bool {
	if sample.CapturedAt.IsZero() {
		sample.CapturedAt = time.Now().UTC()
	}
	sample.HeadingDegrees = geo.NormalizeHeading(sample.HeadingDegrees)
	if sample.SpeedKmh < 0 {
		sample.SpeedKmh = 0
	}

	if err := sample.Validate(); err != nil {
		s.log.Warn("emit_rejected", "error", err,
			"trip_id", sample.TripID, "bus_id", sample.BusID)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateLive && s.conn != nil {
		if err := s.writeLocked(contracts.EventDriverLocationUpdate, updatePayload(sample)); err != nil {
			// the transport dropped under us; keep the sample for replay
			s.log.Warn("emit_write_failed", "error", err)
			s.queue.push(sample)
			return false
		}
		return true
	}

	s.queue.push(sample)
	return false
}

func updatePayload(sample geo.Sample) contracts.DriverLocationUpdate {
	return contracts.DriverLocationUpdate{
		TripID:   sample.TripID,
		BusID:    sample.BusID,
		DriverID: sample.DriverID,
		Lat:      sample.Lat,
		Lng:      sample.Lng,
		Speed:    sample.SpeedKmh,
		Heading:  sample.HeadingDegrees,
	}
}
