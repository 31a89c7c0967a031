// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Package access decides what an authenticated caller may do.
//
// Roles form a total order, highest privilege first:
//
//	admin > manager > staff > none
//
// A resource declares the minimum role it requires and Permits answers a single
// boolean. The client-side auth context and the server-side route guard each
// call Permits independently; neither trusts the other's verdict.
package access

import (
	"strings"

	"github.com/samber/oops"
)

// Role is a caller's privilege level.
type Role string

// Known roles, lowest to highest.
const (
	RoleNone    Role = "none"
	RoleStaff   Role = "staff"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// CodeRoleInvalid marks a role value outside the known set.
const CodeRoleInvalid = "ROLE_INVALID"

// ranks maps each role to its position in the order. Unknown roles are absent.
var ranks = map[Role]int{
	RoleNone:    0,
	RoleStaff:   1,
	RoleManager: 2,
	RoleAdmin:   3,
}

// Roles returns the known roles, lowest to highest.
func Roles() []Role {
	return []Role{RoleNone, RoleStaff, RoleManager, RoleAdmin}
}

// AssignableRoles returns the roles a profile row may hold.
func AssignableRoles() []Role {
	return []Role{RoleStaff, RoleManager, RoleAdmin}
}

// ParseRole parses a stored or configured role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := ranks[r]; !ok {
		return RoleNone, oops.Code(CodeRoleInvalid).With("role", s).Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := ranks[r]
	return ok
}

// Rank returns r's position in the order, or -1 for unknown roles.
func (r Role) Rank() int {
	if n, ok := ranks[r]; ok {
		return n
	}
	return -1
}

func (r Role) String() string { return string(r) }

// Permits reports whether role satisfies the required minimum. An unknown
// role permits nothing and an unknown requirement is satisfied by nothing.
func Permits(role, required Role) bool {
	have, ok := ranks[role]
	if !ok {
		return false
	}
	need, ok := ranks[required]
	if !ok {
		return false
	}
	return have >= need
}

// Decision is the outcome of a single policy check. It is never persisted.
type Decision struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason"`
}

// Decide is Permits with a human readable reason.
func Decide(role, required Role) Decision {
	switch {
	case !required.Valid():
		return Decision{Allow: false, Reason: "unknown required role " + string(required)}
	case !role.Valid():
		return Decision{Allow: false, Reason: "unknown role " + string(role)}
	case Permits(role, required):
		return Decision{Allow: true, Reason: string(role) + " satisfies " + string(required)}
	default:
		return Decision{Allow: false, Reason: string(role) + " is below " + string(required)}
	}
}
