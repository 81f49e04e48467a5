// Package rbac implements the role-based access decision layer.
//
// Roles form a total order (User < Moderator < Admin < SuperAdmin) and each
// permission declares the minimum role allowed to exercise it. The evaluator
// is a pure function over that ordering; per-resource ownership checks (for
// example "author may edit own post") belong to the business layer consuming
// the identity returned by authorize.
package rbac

import (
	"fmt"
	"strings"
)

// Role identifies a privilege tier. The zero value is not a valid role.
type Role string

const (
	RoleUser       Role = "user"
	RoleModerator  Role = "moderator"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// roleRank encodes the total order. Higher rank means more privilege.
var roleRank = map[Role]int{
	RoleUser:       0,
	RoleModerator:  1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

// ParseRole normalizes and validates a role name.
func ParseRole(s string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(s)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return role, nil
}

// Valid reports whether the role is one of the known tiers.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether the role carries at least the privilege of min.
// Unknown roles never satisfy any requirement.
func (r Role) AtLeast(min Role) bool {
	rr, ok := roleRank[r]
	if !ok {
		return false
	}
	mr, ok := roleRank[min]
	if !ok {
		return false
	}
	return rr >= mr
}

// Allow reports whether role may exercise the permission. Unknown
// permissions and unknown roles are denied.
func Allow(role Role, perm Permission) bool {
	min, ok := MinimumRole(perm)
	if !ok {
		return false
	}
	return role.AtLeast(min)
}
