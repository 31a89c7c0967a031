// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// Identity is who the caller is, derived from a Session.
type Identity struct {
	SubjectID string `json:"subjectId"`
	Email     string `json:"email"`
}

// Session is an opaque token issued by the identity service together with the
// subject it names and its expiry. Fields are unexported so a Session cannot be
// edited after construction.
type Session struct {
	token     string
	subjectID string
	email     string
	expiresAt time.Time
}

// NewSession creates a validated Session.
func NewSession(token, subjectID, email string, expiresAt time.Time) (*Session, error) {
	if token == "" {
		return nil, oops.Code(CodeSessionInvalid).Errorf("session token cannot be empty")
	}
	if subjectID == "" {
		return nil, oops.Code(CodeSessionInvalid).Errorf("session subject cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code(CodeSessionInvalid).Errorf("session expiry cannot be zero")
	}
	return &Session{
		token:     token,
		subjectID: subjectID,
		email:     email,
		expiresAt: expiresAt,
	}, nil
}

// Token returns the opaque session token.
func (s *Session) Token() string { return s.token }

// SubjectID returns the identity service's subject identifier.
func (s *Session) SubjectID() string { return s.subjectID }

// ExpiresAt returns the session expiry.
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// Identity returns the caller identity carried by the session.
func (s *Session) Identity() Identity {
	return Identity{SubjectID: s.subjectID, Email: s.email}
}

// TokenHash returns the SHA-256 hash of the session token.
func (s *Session) TokenHash() string {
	return HashSessionToken(s.token)
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return s.IsExpiredAt(time.Now())
}

// IsExpiredAt returns true if the session would be expired at the given time.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.expiresAt)
}

// HashSessionToken computes the SHA-256 hash of a session token. Only hashes
// are ever persisted.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
