package geo

import (
	"errors"
	"math"
	"time"
)

var (
	ErrMissingIdentifier  = errors.New("missing trip/bus/driver identifier")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Sample is one GPS observation produced by a driver device.
// Identifiers are canonical strings end to end; numeric trip ids from
// older clients must be converted at the boundary.
type Sample struct {
	TripID         string
	BusID          string
	DriverID       string
	Lat            float64
	Lng            float64
	SpeedKmh       int
	HeadingDegrees float64
	CapturedAt     time.Time
}

// Validate enforces the hard precondition for transmission: all three
// identifiers present and both coordinates finite and in range. A sample
// failing this must never reach the transport or the offline queue.
func (s Sample) Validate() error {
	if s.TripID == "" || s.BusID == "" || s.DriverID == "" {
		return ErrMissingIdentifier
	}
	if !finite(s.Lat) || !finite(s.Lng) {
		return ErrInvalidCoordinates
	}
	if s.Lat < -90 || s.Lat > 90 || s.Lng < -180 || s.Lng > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// SpeedKmhFromMS converts a raw GPS speed in m/s to a whole km/h,
// floored at 0 (GPS chips report -1 when speed is unknown).
func SpeedKmhFromMS(ms float64) int {
	if math.IsNaN(ms) || ms < 0 {
		return 0
	}
	return int(ms * 3.6)
}

// NormalizeHeading clamps a heading into [0, 360); unknown values map to 0.
func NormalizeHeading(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
