package contracts

import "time"

// DriverLocationUpdate is the outbound driver sample. Field names are the
// exact wire spelling the existing clients emit.
type DriverLocationUpdate struct {
	TripID   string  `json:"tripId" validate:"required"`
	BusID    string  `json:"busId" validate:"required"`
	DriverID string  `json:"driverId" validate:"required"`
	Lat      float64 `json:"lat" validate:"min=-90,max=90"`
	Lng      float64 `json:"lng" validate:"min=-180,max=180"`
	Speed    int     `json:"speed" validate:"min=0"` // km/h
	Heading  float64 `json:"heading"`                // degrees, 0 when unknown
}

// JoinBus subscribes the connection to one bus's broadcast room.
type JoinBus struct {
	BusID string `json:"busId" validate:"required"`
}

// JoinTrip subscribes the connection to one trip's broadcast room.
type JoinTrip struct {
	TripID string `json:"tripId" validate:"required"`
}

// BusLocation is the fan-out form of an accepted driver update.
type BusLocation struct {
	TripID  string    `json:"tripId"`
	BusID   string    `json:"busId"`
	Lat     float64   `json:"lat"`
	Lng     float64   `json:"lng"`
	Speed   int       `json:"speed"`
	Heading float64   `json:"heading"`
	Time    time.Time `json:"time"`
}

// BusOffline tells subscribers a trip stopped reporting, so they never
// have to infer staleness from silence.
type BusOffline struct {
	TripID string `json:"tripId"`
}

// StopProgressed marks a route stop as reached on an active trip.
type StopProgressed struct {
	TripID   string `json:"tripId"`
	StopID   string `json:"stopId"`
	StopName string `json:"stopName,omitempty"`
	Sequence int    `json:"sequence"`
}

// AttendanceMarked reports a student boarding/leaving event.
type AttendanceMarked struct {
	TripID    string `json:"tripId"`
	StudentID string `json:"studentId"`
	Status    string `json:"status"` // PICKED_UP | DROPPED | ABSENT
}
