// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package access

import (
	"context"
	"errors"
	"time"

	"github.com/shopfront/shopfront/internal/auth"
)

// ErrProfileNotFound is returned when no profile row exists for a subject.
var ErrProfileNotFound = errors.New("profile not found")

// ErrUnavailable is returned when the profile store cannot be reached.
var ErrUnavailable = errors.New("profile store unavailable")

// Profile is the role record kept for each identity service subject.
type Profile struct {
	SubjectID string
	Role      string // raw stored value; parsed by the resolver
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfileRepository reads profile rows.
type ProfileRepository interface {
	// GetRoleForSubject returns the profile for subjectID. Errors wrap
	// ErrProfileNotFound when there is no row and ErrUnavailable when the
	// store cannot be reached.
	GetRoleForSubject(ctx context.Context, subjectID string) (*Profile, error)
}

// Principal is a session whose role has been resolved.
type Principal struct {
	Identity  auth.Identity `json:"identity"`
	Role      Role          `json:"role"`
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
}

// Can reports whether the principal satisfies required.
func (p Principal) Can(required Role) bool {
	return Permits(p.Role, required)
}
