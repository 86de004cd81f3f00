package trip

import (
	"time"

	"github.com/google/uuid"
)

// Session is the authoritative record of an active driver/bus/route pairing.
// At most one Active session may exist per bus at any time; the lock is
// arbitrated server-side, clients only observe conflict outcomes.
type Session struct {
	ID        string
	BusID     string
	DriverID  string
	RouteID   string
	Status    Status
	StartedAt time.Time
	EndedAt   *time.Time
}

// NewSession creates an Active session with a fresh id.
func NewSession(busID, driverID, routeID string) (*Session, error) {
	if busID == "" {
		return nil, ErrInvalidBusID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	return &Session{
		ID:        uuid.New().String(),
		BusID:     busID,
		DriverID:  driverID,
		RouteID:   routeID,
		Status:    StatusActive,
		StartedAt: time.Now().UTC(),
	}, nil
}

// Pause stops location reporting without releasing the bus lock.
func (s *Session) Pause() error {
	switch s.Status {
	case StatusActive:
		s.Status = StatusPaused
		return nil
	case StatusPaused:
		return ErrAlreadyPaused
	default:
		return ErrTripEnded
	}
}

// Resume returns a paused session to Active.
func (s *Session) Resume() error {
	switch s.Status {
	case StatusPaused:
		s.Status = StatusActive
		return nil
	case StatusActive:
		return ErrNotPaused
	default:
		return ErrTripEnded
	}
}

// End terminates the session. Ending an already-ended session fails.
func (s *Session) End() error {
	if s.Status == StatusEnded {
		return ErrTripEnded
	}
	now := time.Now().UTC()
	s.Status = StatusEnded
	s.EndedAt = &now
	return nil
}

// Live reports whether the session still holds the bus lock.
func (s *Session) Live() bool {
	return s.Status == StatusActive || s.Status == StatusPaused
}
