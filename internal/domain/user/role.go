package user

import (
	"errors"
	"strings"
)

// Role is the logical actor type a connection authenticates as.
// It determines default room auto-join behavior on the realtime channel.
type Role string

const (
	RoleDriver Role = "DRIVER"
	RoleParent Role = "PARENT"
	RoleAdmin  Role = "ADMIN"
	RoleStaff  Role = "STAFF"
)

var ErrInvalidRole = errors.New("invalid role")

// ParseRole normalizes (uppercases+trims) and validates a role string.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	if role.Valid() {
		return role, nil
	}
	return "", ErrInvalidRole
}

// Valid reports whether role is one of the allowed role constants.
func (role Role) Valid() bool {
	switch role {
	case RoleDriver, RoleParent, RoleAdmin, RoleStaff:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Role.
func (role Role) String() string {
	return string(role)
}

func (role Role) IsDriver() bool { return role == RoleDriver }
func (role Role) IsParent() bool { return role == RoleParent }

// IsFleetObserver reports whether the role watches the whole fleet and
// should be auto-subscribed to the admin-fleet room.
func (role Role) IsFleetObserver() bool {
	return role == RoleAdmin || role == RoleStaff
}
