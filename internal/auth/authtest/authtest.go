// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Package authtest provides token minting and in-memory collaborators for tests.
package authtest

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/shopfront/shopfront/internal/auth"
)

// Secret is the HMAC secret used by tokens minted in tests.
var Secret = []byte("test-secret-do-not-use-in-production")

// TokenOptions describes a token to mint.
type TokenOptions struct {
	Subject   string
	Email     string
	Issuer    string
	Audience  string
	ExpiresAt time.Time
	Secret    []byte
	Extra     map[string]any // extra claims, e.g. a forged role
}

// TB is the subset of testing.TB the helpers need. Ginkgo's GinkgoT
// satisfies it too.
type TB interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
}

// SignToken mints an HS256 token the way the identity service would.
func SignToken(t TB, opts TokenOptions) string {
	t.Helper()

	if opts.ExpiresAt.IsZero() {
		opts.ExpiresAt = time.Now().Add(time.Hour)
	}
	if opts.Secret == nil {
		opts.Secret = Secret
	}

	claims := jwt.MapClaims{
		"sub": opts.Subject,
		"exp": opts.ExpiresAt.Unix(),
		"iat": time.Now().Unix(),
	}
	if opts.Email != "" {
		claims["email"] = opts.Email
	}
	if opts.Issuer != "" {
		claims["iss"] = opts.Issuer
	}
	if opts.Audience != "" {
		claims["aud"] = opts.Audience
	}
	for k, v := range opts.Extra {
		claims[k] = v
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(opts.Secret)
	require.NoError(t, err)
	return token
}

// NewSession builds a valid session for subject expiring in an hour.
func NewSession(t TB, subject string) *auth.Session {
	t.Helper()
	s, err := auth.NewSession("token-"+subject, subject, subject+"@example.test", time.Now().Add(time.Hour))
	require.NoError(t, err)
	return s
}

// RevocationList is an in-memory auth.RevocationRepository.
type RevocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	Err     error // returned by every call when set
}

// NewRevocationList creates an empty RevocationList.
func NewRevocationList() *RevocationList {
	return &RevocationList{entries: make(map[string]time.Time)}
}

// Revoke implements auth.RevocationRepository.
func (l *RevocationList) Revoke(_ context.Context, tokenHash string, expiresAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return l.Err
	}
	l.entries[tokenHash] = expiresAt
	return nil
}

// IsRevoked implements auth.RevocationRepository.
func (l *RevocationList) IsRevoked(_ context.Context, tokenHash string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return false, l.Err
	}
	_, ok := l.entries[tokenHash]
	return ok, nil
}

// DeleteExpired implements auth.RevocationRepository.
func (l *RevocationList) DeleteExpired(_ context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return 0, l.Err
	}
	var n int64
	now := time.Now()
	for h, exp := range l.entries {
		if exp.Before(now) {
			delete(l.entries, h)
			n++
		}
	}
	return n, nil
}

var _ auth.RevocationRepository = (*RevocationList)(nil)
