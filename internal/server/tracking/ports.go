package tracking

import (
	"context"

	"bustrack/internal/contracts"
	"bustrack/internal/domain/geo"
	"bustrack/internal/domain/trip"
)

// TripRepository persists trip sessions.
type TripRepository interface {
	Create(ctx context.Context, s *trip.Session) error
	Update(ctx context.Context, s *trip.Session) error
	ByID(ctx context.Context, id string) (*trip.Session, error)
	ActiveByBus(ctx context.Context, busID string) (*trip.Session, error)
	ActiveByDriver(ctx context.Context, driverID string) (*trip.Session, error)
	ListActive(ctx context.Context) ([]*trip.Session, error)
}

// LocationRepository appends the location history of a trip.
type LocationRepository interface {
	SaveSample(ctx context.Context, sample geo.Sample) error
}

// LatestStore keeps the most recent sample per trip for cheap reads.
type LatestStore interface {
	SetLatest(ctx context.Context, sample geo.Sample) error
	Latest(ctx context.Context, tripID string) (geo.Sample, error)
}

// BusLocker enforces the single-active-driver-per-bus rule.
type BusLocker interface {
	// Acquire claims busID for tripID. It returns the current holder's
	// trip id when the claim fails because the bus is already locked.
	Acquire(ctx context.Context, busID, tripID string) (held bool, holder string, err error)
	Holder(ctx context.Context, busID string) (string, error)
	Release(ctx context.Context, busID string) error
	// Steal replaces the holder unconditionally. Used by force takeover.
	Steal(ctx context.Context, busID, tripID string) error
}

// FanoutPublisher pushes location and trip lifecycle events to the broker
// so sibling instances can rebroadcast to their own connections.
type FanoutPublisher interface {
	PublishBusLocation(ctx context.Context, msg contracts.BusLocationMessage) error
	PublishTripEvent(ctx context.Context, msg contracts.TripEventMessage) error
}

// Broadcaster delivers a wire frame to every member of a room.
type Broadcaster interface {
	Broadcast(room string, frame []byte)
}
