// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Package admin serves the back office JSON API: paginated lists and partial
// updates for profiles, products and orders. Every route sits behind the
// route guard; every successful update writes one audit entry.
package admin

import (
	"sort"

	"github.com/shopfront/shopfront/internal/access"
)

// Column maps a JSON field to a database column.
type Column struct {
	JSON       string
	Name       string
	Searchable bool
	Sortable   bool
}

// Patch is a decoded PATCH body.
type Patch interface {
	// TargetID returns the row being updated.
	TargetID() string
	// Changes returns the columns to set, keyed by database column.
	Changes() map[string]any
}

// Resource describes one administrable table.
type Resource struct {
	Name      string
	Table     string
	IDColumn  string
	Columns   []Column
	ListRole  access.Role
	PatchRole access.Role

	// NewPatch returns a pointer to an empty patch body for this resource.
	NewPatch func() Patch
}

// column returns the column with the given JSON name.
func (r *Resource) column(jsonName string) (Column, bool) {
	for _, c := range r.Columns {
		if c.JSON == jsonName {
			return c, true
		}
	}
	return Column{}, false
}

func (r *Resource) searchColumns() []string {
	var out []string
	for _, c := range r.Columns {
		if c.Searchable {
			out = append(out, c.Name)
		}
	}
	return out
}

func (r *Resource) sortable() []string {
	var out []string
	for _, c := range r.Columns {
		if c.Sortable {
			out = append(out, c.JSON)
		}
	}
	sort.Strings(out)
	return out
}

// ProfilePatch updates a profile. Changing role is an admin-only operation.
type ProfilePatch struct {
	ID        string  `json:"id" jsonschema:"minLength=1"`
	Role      *string `json:"role,omitempty" jsonschema:"enum=staff,enum=manager,enum=admin"`
	FirstName *string `json:"firstName,omitempty" jsonschema:"maxLength=100"`
	LastName  *string `json:"lastName,omitempty" jsonschema:"maxLength=100"`
}

// TargetID implements Patch.
func (p *ProfilePatch) TargetID() string { return p.ID }

// Changes implements Patch.
func (p *ProfilePatch) Changes() map[string]any {
	m := make(map[string]any)
	if p.Role != nil {
		m["role"] = *p.Role
	}
	if p.FirstName != nil {
		m["first_name"] = *p.FirstName
	}
	if p.LastName != nil {
		m["last_name"] = *p.LastName
	}
	return m
}

// ProductPatch updates a product.
type ProductPatch struct {
	ID         string  `json:"id" jsonschema:"minLength=1"`
	Name       *string `json:"name,omitempty" jsonschema:"minLength=1,maxLength=200"`
	PriceCents *int64  `json:"priceCents,omitempty" jsonschema:"minimum=0"`
	Stock      *int    `json:"stock,omitempty" jsonschema:"minimum=0"`
	Published  *bool   `json:"published,omitempty"`
}

// TargetID implements Patch.
func (p *ProductPatch) TargetID() string { return p.ID }

// Changes implements Patch.
func (p *ProductPatch) Changes() map[string]any {
	m := make(map[string]any)
	if p.Name != nil {
		m["name"] = *p.Name
	}
	if p.PriceCents != nil {
		m["price_cents"] = *p.PriceCents
	}
	if p.Stock != nil {
		m["stock"] = *p.Stock
	}
	if p.Published != nil {
		m["published"] = *p.Published
	}
	return m
}

// OrderPatch updates an order's fulfilment status.
type OrderPatch struct {
	ID     string  `json:"id" jsonschema:"minLength=1"`
	Status *string `json:"status,omitempty" jsonschema:"enum=pending,enum=paid,enum=shipped,enum=delivered,enum=cancelled"`
}

// TargetID implements Patch.
func (p *OrderPatch) TargetID() string { return p.ID }

// Changes implements Patch.
func (p *OrderPatch) Changes() map[string]any {
	m := make(map[string]any)
	if p.Status != nil {
		m["status"] = *p.Status
	}
	return m
}

// Resources returns the administrable resources.
func Resources() []*Resource {
	return []*Resource{
		{
			Name:     "profiles",
			Table:    "profiles",
			IDColumn: "subject_id",
			Columns: []Column{
				{JSON: "id", Name: "subject_id", Searchable: true},
				{JSON: "role", Name: "role", Sortable: true},
				{JSON: "firstName", Name: "first_name", Searchable: true, Sortable: true},
				{JSON: "lastName", Name: "last_name", Searchable: true, Sortable: true},
				{JSON: "createdAt", Name: "created_at", Sortable: true},
				{JSON: "updatedAt", Name: "updated_at", Sortable: true},
			},
			ListRole:  access.RoleManager,
			PatchRole: access.RoleAdmin,
			NewPatch:  func() Patch { return &ProfilePatch{} },
		},
		{
			Name:     "products",
			Table:    "products",
			IDColumn: "id",
			Columns: []Column{
				{JSON: "id", Name: "id"},
				{JSON: "name", Name: "name", Searchable: true, Sortable: true},
				{JSON: "priceCents", Name: "price_cents", Sortable: true},
				{JSON: "stock", Name: "stock", Sortable: true},
				{JSON: "published", Name: "published", Sortable: true},
				{JSON: "createdAt", Name: "created_at", Sortable: true},
				{JSON: "updatedAt", Name: "updated_at", Sortable: true},
			},
			ListRole:  access.RoleStaff,
			PatchRole: access.RoleManager,
			NewPatch:  func() Patch { return &ProductPatch{} },
		},
		{
			Name:     "orders",
			Table:    "orders",
			IDColumn: "id",
			Columns: []Column{
				{JSON: "id", Name: "id", Searchable: true},
				{JSON: "customerEmail", Name: "customer_email", Searchable: true, Sortable: true},
				{JSON: "status", Name: "status", Searchable: true, Sortable: true},
				{JSON: "totalCents", Name: "total_cents", Sortable: true},
				{JSON: "createdAt", Name: "created_at", Sortable: true},
				{JSON: "updatedAt", Name: "updated_at", Sortable: true},
			},
			ListRole:  access.RoleStaff,
			PatchRole: access.RoleManager,
			NewPatch:  func() Patch { return &OrderPatch{} },
		},
	}
}

// Lookup returns the resource named name.
func Lookup(name string) (*Resource, bool) {
	for _, r := range Resources() {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}
