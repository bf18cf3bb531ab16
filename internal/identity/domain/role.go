package domain

import (
	"fmt"
	"strings"
)

// Role is the closed set of user roles. The zero value is invalid.
type Role uint8

const (
	RoleAdmin Role = iota + 1
	RoleGrantee
	RoleOwner
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleGrantee, RoleOwner}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleGrantee:
		return "grantee"
	case RoleOwner:
		return "owner"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleGrantee, RoleOwner:
		return true
	default:
		return false
	}
}

// ParseRole parses the lowercase role name used in the API and configuration.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "grantee":
		return RoleGrantee, nil
	case "owner":
		return RoleOwner, nil
	default:
		return 0, ErrInvalidRole
	}
}

// CanRegister reports whether a user with role actor may register a user with role target.
// Admins onboard grantees and other admins, grantees onboard owners.
func (r Role) CanRegister(target Role) bool {
	switch r {
	case RoleAdmin:
		return target == RoleGrantee || target == RoleAdmin
	case RoleGrantee:
		return target == RoleOwner
	case RoleOwner:
		return false
	default:
		return false
	}
}
