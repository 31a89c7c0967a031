// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package admin

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/samber/oops"
)

// List parameter bounds.
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// CodeQueryInvalid marks a malformed list query.
const CodeQueryInvalid = "ADMIN_QUERY_INVALID"

// ListQuery is a parsed list request.
type ListQuery struct {
	Page     int
	Limit    int
	Search   string
	SortBy   string // database column
	SortDesc bool
}

// Offset returns the row offset for Page.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// ParseListQuery validates list parameters for res.
func ParseListQuery(res *Resource, v url.Values) (ListQuery, error) {
	q := ListQuery{Page: DefaultPage, Limit: DefaultLimit, SortBy: "created_at", SortDesc: true}

	if s := v.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return ListQuery{}, oops.Code(CodeQueryInvalid).With("page", s).Errorf("page must be a positive integer")
		}
		q.Page = n
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > MaxLimit {
			return ListQuery{}, oops.Code(CodeQueryInvalid).With("limit", s).Errorf("limit must be between 1 and %d", MaxLimit)
		}
		q.Limit = n
	}
	q.Search = strings.TrimSpace(v.Get("search"))

	if s := v.Get("sortBy"); s != "" {
		col, ok := res.column(s)
		if !ok || !col.Sortable {
			return ListQuery{}, oops.Code(CodeQueryInvalid).
				With("sortBy", s).
				Errorf("sortBy must be one of %s", strings.Join(res.sortable(), ", "))
		}
		q.SortBy = col.Name
	}
	switch s := strings.ToLower(v.Get("sortOrder")); s {
	case "", "desc":
	case "asc":
		q.SortDesc = false
	default:
		return ListQuery{}, oops.Code(CodeQueryInvalid).With("sortOrder", s).Errorf("sortOrder must be asc or desc")
	}
	return q, nil
}
