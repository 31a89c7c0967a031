// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package auth

import (
	"errors"

	"github.com/shopfront/shopfront/pkg/errutil"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoSession is returned when an operation needs a session and none is present.
var ErrNoSession = errors.New("no session")

// Error codes attached to session failures. Every one of them means the caller
// is unauthenticated.
const (
	CodeSessionMissing = "SESSION_MISSING"
	CodeSessionInvalid = "SESSION_INVALID"
	CodeSessionExpired = "SESSION_EXPIRED"
	CodeSessionRevoked = "SESSION_REVOKED"
)

// IsUnauthenticated reports whether err carries one of the session failure codes.
func IsUnauthenticated(err error) bool {
	switch errutil.Code(err) {
	case CodeSessionMissing, CodeSessionInvalid, CodeSessionExpired, CodeSessionRevoked:
		return true
	}
	return errors.Is(err, ErrNoSession)
}
