// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package authctx

import (
	"context"

	"github.com/shopfront/shopfront/internal/access"
	"github.com/shopfront/shopfront/internal/auth"
)

// Auth is the read side of a mounted Provider. Obtain one from Provider.Auth.
type Auth struct {
	p *Provider
}

// State returns the provider's current state.
func (a *Auth) State() State {
	return a.p.State()
}

// Identity returns the signed-in identity, if any.
func (a *Auth) Identity() (auth.Identity, bool) {
	s := a.p.State()
	return s.Identity, s.Status == StatusAuthenticated
}

// Role returns the effective role: RoleNone unless authenticated.
func (a *Auth) Role() access.Role {
	return a.p.State().EffectiveRole()
}

// IsLoading reports whether a resolution is in flight.
func (a *Auth) IsLoading() bool {
	return a.p.State().Status == StatusLoading
}

// IsAdmin reports whether the effective role permits admin.
func (a *Auth) IsAdmin() bool { return access.Permits(a.Role(), access.RoleAdmin) }

// IsManager reports whether the effective role permits manager.
func (a *Auth) IsManager() bool { return access.Permits(a.Role(), access.RoleManager) }

// IsStaff reports whether the effective role permits staff.
func (a *Auth) IsStaff() bool { return access.Permits(a.Role(), access.RoleStaff) }

// SignOut signs out through the provider.
func (a *Auth) SignOut(ctx context.Context) error {
	return a.p.SignOut(ctx)
}
