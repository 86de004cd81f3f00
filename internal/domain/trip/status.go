package trip

import (
	"errors"
	"strings"
)

// Status is the lifecycle state of a trip session.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusPaused Status = "PAUSED"
	StatusEnded  Status = "ENDED"
)

var ErrInvalidStatus = errors.New("invalid trip status")

// ParseStatus normalizes and validates a status string from storage.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusActive, StatusPaused, StatusEnded:
		return st, nil
	default:
		return "", ErrInvalidStatus
	}
}

func (s Status) String() string { return string(s) }
