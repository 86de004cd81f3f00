package contracts

import "encoding/json"

// Event names on the realtime channel. These are a fixed wire contract
// shared with deployed mobile clients; renaming any of them is a breaking
// change.
const (
	// handshake
	EventAuth        = "auth"
	EventAuthSuccess = "auth_success"
	EventAuthError   = "auth_error"
	EventError       = "error"

	// client -> server
	EventDriverLocationUpdate = "driver-location-update"
	EventJoinBus              = "join-bus"
	EventJoinTrip             = "join-trip"
	EventJoinAdmin            = "join-admin"

	// server -> client
	EventBusLocation      = "busLocation"
	EventBusOffline       = "busOffline"
	EventStopProgressed   = "stopProgressed"
	EventAttendanceMarked = "attendanceMarked"
)

// Frame is the envelope every realtime message travels in.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshals data into a Frame envelope for the given event.
func NewFrame(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Frame{Type: event, Data: raw})
}
