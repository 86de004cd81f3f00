package trip

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidBusID    = errors.New("invalid bus ID")
	ErrInvalidDriverID = errors.New("invalid driver ID")
	ErrNoActiveTrip    = errors.New("no active trip for bus")
	ErrDriverMismatch  = errors.New("trip belongs to another driver")
	ErrAlreadyPaused   = errors.New("trip already paused")
	ErrNotPaused       = errors.New("trip is not paused")
	ErrTripEnded       = errors.New("trip already ended")
	ErrBusLocked       = errors.New("bus already has an active trip")
	ErrDriverBusy      = errors.New("driver already has an active trip")
)

// ConflictError carries the holding trip so the caller can offer an
// explicit force-takeover action instead of silently overwriting.
type ConflictError struct {
	BusID        string
	ActiveTripID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("bus %s locked by active trip %s", e.BusID, e.ActiveTripID)
}

func (e *ConflictError) Unwrap() error { return ErrBusLocked }
