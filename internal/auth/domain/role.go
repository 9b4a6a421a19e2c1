package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the closed set of back-office roles.
type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleStaff      Role = "staff"
)

var ErrUnknownRole = errors.New("unknown role")

// Roles lists every role, most privileged first.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleManager, RoleStaff}
}

// ParseRole is the single place a role string from the outside world is
// accepted.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleSuperAdmin, RoleAdmin, RoleManager, RoleStaff:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// UnmarshalText lets JSON decoding reject unknown roles at the boundary.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r Role) String() string { return string(r) }

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleManager, RoleStaff:
		return true
	}
	return false
}
