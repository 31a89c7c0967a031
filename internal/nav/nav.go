// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Package nav filters the back office navigation by the caller's role.
package nav

import (
	"bytes"
	"os"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/shopfront/shopfront/internal/access"
	"github.com/shopfront/shopfront/internal/authctx"
)

// Entry is one navigation link.
type Entry struct {
	Label        string      `yaml:"label" json:"label"`
	Target       string      `yaml:"target" json:"target"`
	RequiredRole access.Role `yaml:"requiredRole" json:"requiredRole"`
}

// Manifest is the ordered navigation.
type Manifest struct {
	Entries []Entry `yaml:"entries" json:"entries"`
}

// Item is a rendered entry. Placeholder items stand in for entries while
// auth is loading and carry no label or target.
type Item struct {
	Entry
	Placeholder bool `json:"placeholder,omitempty"`
}

// DefaultManifest returns the built-in back office navigation.
func DefaultManifest() Manifest {
	return Manifest{Entries: []Entry{
		{Label: "Dashboard", Target: "/admin", RequiredRole: access.RoleStaff},
		{Label: "Orders", Target: "/admin/orders", RequiredRole: access.RoleStaff},
		{Label: "Products", Target: "/admin/products", RequiredRole: access.RoleStaff},
		{Label: "Categories", Target: "/admin/categories", RequiredRole: access.RoleStaff},
		{Label: "Customers", Target: "/admin/customers", RequiredRole: access.RoleManager},
		{Label: "Reports", Target: "/admin/reports", RequiredRole: access.RoleManager},
		{Label: "Users", Target: "/admin/users", RequiredRole: access.RoleAdmin},
		{Label: "Settings", Target: "/admin/settings", RequiredRole: access.RoleAdmin},
	}}
}

// ParseManifest decodes a YAML manifest, rejecting unknown fields and roles.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return Manifest{}, oops.Code("NAV_MANIFEST_INVALID").Wrap(err)
	}
	for i, e := range m.Entries {
		if e.Label == "" || e.Target == "" {
			return Manifest{}, oops.Code("NAV_MANIFEST_INVALID").
				With("index", i).
				Errorf("entry %d needs a label and a target", i)
		}
		if !e.RequiredRole.Valid() {
			return Manifest{}, oops.Code("NAV_MANIFEST_INVALID").
				With("index", i).
				With("role", e.RequiredRole).
				Errorf("entry %q has unknown role %q", e.Label, e.RequiredRole)
		}
	}
	return m, nil
}

// LoadManifest reads a YAML manifest from path. An empty path yields the
// default manifest.
func LoadManifest(path string) (Manifest, error) {
	if path == "" {
		return DefaultManifest(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
	if err != nil {
		return Manifest{}, oops.Code("NAV_MANIFEST_READ_FAILED").With("path", path).Wrap(err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return Manifest{}, oops.With("path", path).Wrap(err)
	}
	return m, nil
}

// Filter returns the entries visible in state, preserving manifest order.
// While state is Loading it returns one placeholder per manifest entry so the
// rendered list keeps its size.
func Filter(m Manifest, state authctx.State) []Item {
	if state.Status == authctx.StatusLoading {
		items := make([]Item, len(m.Entries))
		for i := range items {
			items[i] = Item{Placeholder: true}
		}
		return items
	}
	return FilterRole(m, state.EffectiveRole())
}

// FilterRole returns the entries role may see, preserving manifest order.
func FilterRole(m Manifest, role access.Role) []Item {
	items := make([]Item, 0, len(m.Entries))
	for _, e := range m.Entries {
		if access.Permits(role, e.RequiredRole) {
			items = append(items, Item{Entry: e})
		}
	}
	return items
}
