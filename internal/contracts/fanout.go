package contracts

import "time"

// RabbitMQ topology for cross-instance delivery. The tracking service may
// run as several instances; each one rebroadcasts fanout messages to the
// rooms held on its local hub.
const (
	ExchangeBusLocationFanout = "bus_location_fanout"
	ExchangeTripEvents        = "trip_events_fanout"
)

// Envelope adds cross-cutting headers all broker messages may carry.
type Envelope struct {
	CorrelationID string    `json:"correlation_id,omitempty"`
	Producer      string    `json:"producer,omitempty"`
	SentAt        time.Time `json:"sent_at,omitempty"`
}

// BusLocationMessage carries one fan-out location between instances.
type BusLocationMessage struct {
	BusLocation
	DriverID string `json:"driverId"`
	Envelope
}

// TripEventMessage carries busOffline / stopProgressed / attendanceMarked
// between instances. Event names the local hub understands directly.
type TripEventMessage struct {
	Event   string `json:"event"`
	TripID  string `json:"tripId"`
	BusID   string `json:"busId,omitempty"`
	Payload []byte `json:"payload"`
	Envelope
}
