// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package errutil

import (
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TB is the part of testing.TB the assertions use. *testing.T and
// ginkgo's GinkgoT both satisfy it.
type TB interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
}

// AssertErrorCode fails unless err is non-nil and Code(err) equals code.
func AssertErrorCode(t TB, err error, code string) {
	t.Helper()
	require.Error(t, err, "expected an error with code %s", code)
	assert.Equal(t, code, Code(err), "unexpected code on %v", err)
}

// AssertErrorContext fails unless err is an oops error whose context has
// key set to value.
func AssertErrorContext(t TB, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	got, present := oopsErr.Context()[key]
	require.True(t, present, "context has no %q: %v", key, oopsErr.Context())
	assert.Equal(t, value, got)
}
