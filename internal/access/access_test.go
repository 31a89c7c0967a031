// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopfront/shopfront/internal/access"
	"github.com/shopfront/shopfront/pkg/errutil"
)

func TestPermits(t *testing.T) {
	tests := []struct {
		role     access.Role
		required access.Role
		want     bool
	}{
		{access.RoleAdmin, access.RoleAdmin, true},
		{access.RoleAdmin, access.RoleManager, true},
		{access.RoleAdmin, access.RoleStaff, true},
		{access.RoleManager, access.RoleAdmin, false},
		{access.RoleManager, access.RoleManager, true},
		{access.RoleManager, access.RoleStaff, true},
		{access.RoleStaff, access.RoleManager, false},
		{access.RoleStaff, access.RoleStaff, true},
		{access.RoleNone, access.RoleStaff, false},
		{access.RoleNone, access.RoleNone, true},
		{access.RoleStaff, access.RoleNone, true},
		{"superuser", access.RoleStaff, false},
		{access.RoleAdmin, "superuser", false},
		{"", access.RoleNone, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+">="+string(tt.required), func(t *testing.T) {
			assert.Equal(t, tt.want, access.Permits(tt.role, tt.required))
		})
	}
}

func TestPermits_OrderProperties(t *testing.T) {
	roles := access.Roles()

	for _, r := range roles {
		assert.True(t, access.Permits(r, r), "reflexive for %s", r)
	}
	for _, a := range roles {
		for _, b := range roles {
			for _, c := range roles {
				if access.Permits(a, b) && access.Permits(b, c) {
					assert.True(t, access.Permits(a, c), "transitive %s>=%s>=%s", a, b, c)
				}
			}
			if a != b {
				assert.NotEqual(t, access.Permits(a, b), access.Permits(b, a),
					"total order: exactly one of %s,%s dominates", a, b)
			}
		}
	}
}

func TestRank(t *testing.T) {
	assert.Equal(t, 0, access.RoleNone.Rank())
	assert.Equal(t, 3, access.RoleAdmin.Rank())
	assert.Equal(t, -1, access.Role("owner").Rank())
	assert.Less(t, access.RoleStaff.Rank(), access.RoleManager.Rank())
}

func TestParseRole(t *testing.T) {
	r, err := access.ParseRole(" Manager ")
	require.NoError(t, err)
	assert.Equal(t, access.RoleManager, r)

	r, err = access.ParseRole("root")
	require.Error(t, err)
	assert.Equal(t, access.RoleNone, r)
	errutil.AssertErrorCode(t, err, access.CodeRoleInvalid)
	errutil.AssertErrorContext(t, err, "role", "root")
}

func TestDecide(t *testing.T) {
	d := access.Decide(access.RoleManager, access.RoleStaff)
	assert.True(t, d.Allow)
	assert.Equal(t, "manager satisfies staff", d.Reason)

	d = access.Decide(access.RoleStaff, access.RoleAdmin)
	assert.False(t, d.Allow)
	assert.Equal(t, "staff is below admin", d.Reason)

	d = access.Decide("owner", access.RoleStaff)
	assert.False(t, d.Allow)
	assert.Contains(t, d.Reason, "unknown role")

	d = access.Decide(access.RoleAdmin, "owner")
	assert.False(t, d.Allow)
	assert.Contains(t, d.Reason, "unknown required role")
}

func TestPrincipal_Can(t *testing.T) {
	p := access.Principal{Role: access.RoleManager}
	assert.True(t, p.Can(access.RoleStaff))
	assert.False(t, p.Can(access.RoleAdmin))
	assert.False(t, access.Principal{}.Can(access.RoleStaff))
}
