// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package access

import (
	"net/url"
	"path"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// RouteRule requires Role for paths matching Pattern. Patterns use glob syntax
// with '/' as separator: "*" matches one segment, "**" any number.
type RouteRule struct {
	Pattern string
	Role    Role
}

type compiledRule struct {
	rule RouteRule
	glob glob.Glob
}

// RouteTable maps UI paths to the minimum role needed to view them. Rules are
// checked in order and the first match wins. Matching is case-insensitive and
// runs on the cleaned path, so "/admin//Users" and "/admin/reports/../users"
// get the same requirement as "/admin/users".
type RouteTable struct {
	rules []compiledRule
}

// DefaultRouteRules returns the back office route requirements.
func DefaultRouteRules() []RouteRule {
	return []RouteRule{
		{Pattern: "/admin/users", Role: RoleAdmin},
		{Pattern: "/admin/users/**", Role: RoleAdmin},
		{Pattern: "/admin/settings", Role: RoleAdmin},
		{Pattern: "/admin/settings/**", Role: RoleAdmin},
		{Pattern: "/admin/reports", Role: RoleManager},
		{Pattern: "/admin/reports/**", Role: RoleManager},
		{Pattern: "/admin", Role: RoleStaff},
		{Pattern: "/admin/**", Role: RoleStaff},
	}
}

// NewRouteTable compiles rules. Returns an error for bad patterns or roles.
func NewRouteTable(rules []RouteRule) (*RouteTable, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.Role.Valid() {
			return nil, oops.Code(CodeRoleInvalid).
				With("pattern", rule.Pattern).
				With("role", rule.Role).
				Errorf("route rule has unknown role")
		}
		g, err := glob.Compile(strings.ToLower(rule.Pattern), '/')
		if err != nil {
			return nil, oops.Code("INVALID_ROUTE_PATTERN").
				With("pattern", rule.Pattern).
				Wrap(err)
		}
		compiled = append(compiled, compiledRule{rule: rule, glob: g})
	}
	return &RouteTable{rules: compiled}, nil
}

// DefaultRouteTable compiles DefaultRouteRules.
//
// Panics if the built-in rules fail to compile (code bug).
func DefaultRouteTable() *RouteTable {
	t, err := NewRouteTable(DefaultRouteRules())
	if err != nil {
		panic("invalid default route rules: " + err.Error())
	}
	return t
}

// Requirement returns the minimum role for path. Paths matching no rule
// require RoleNone.
func (t *RouteTable) Requirement(p string) Role {
	if t == nil {
		return RoleNone
	}
	clean := NormalizePath(p)
	for _, r := range t.rules {
		if r.glob.Match(clean) {
			return r.rule.Role
		}
	}
	return RoleNone
}

// Protected reports whether viewing path needs any role at all.
func (t *RouteTable) Protected(path string) bool {
	return t.Requirement(path) != RoleNone
}

// NormalizePath reduces a UI path to the form rules are matched against: query
// and fragment dropped, percent-escapes decoded, dot segments and repeated
// slashes removed, lower case.
func NormalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	return strings.ToLower(path.Clean("/" + p))
}
