// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Package authctx keeps the client's view of who is signed in and what they
// may see.
//
// A Provider combines an identity provider's session store with a role
// resolver and exposes the result as a State. Every session change starts a
// new resolution numbered by a monotonic sequence; only the latest resolution
// may commit, so a slow lookup that finishes after a newer one is dropped.
package authctx

import (
	"github.com/shopfront/shopfront/internal/access"
	"github.com/shopfront/shopfront/internal/auth"
)

// Status tags which variant of State holds.
type Status int

// Status values.
const (
	StatusLoading Status = iota
	StatusUnauthenticated
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// State is the provider's current view. Identity, Role and the display names
// are only meaningful when Status is StatusAuthenticated.
type State struct {
	Status    Status
	Identity  auth.Identity
	Role      access.Role
	FirstName string
	LastName  string

	// Seq is the resolution sequence number that produced this state.
	Seq uint64
}

// EffectiveRole returns the role policy checks should use: the resolved role
// when authenticated, RoleNone otherwise.
func (s State) EffectiveRole() access.Role {
	if s.Status != StatusAuthenticated {
		return access.RoleNone
	}
	return s.Role
}

func loading(seq uint64) State {
	return State{Status: StatusLoading, Role: access.RoleNone, Seq: seq}
}

func unauthenticated(seq uint64) State {
	return State{Status: StatusUnauthenticated, Role: access.RoleNone, Seq: seq}
}

func authenticated(seq uint64, p access.Principal) State {
	return State{
		Status:    StatusAuthenticated,
		Identity:  p.Identity,
		Role:      p.Role,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Seq:       seq,
	}
}
