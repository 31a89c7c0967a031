// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"
)

// DefaultCookieName is the cookie carrying the session token for browser callers.
const DefaultCookieName = "sf_session"

// TokenVerifier turns a presented token into a Session.
type TokenVerifier interface {
	Verify(token string) (*Session, error)
}

// RevocationRepository records tokens signed out through this service. Only
// token hashes are stored; rows are kept until the token would have expired.
type RevocationRepository interface {
	// Revoke adds a token hash to the revocation list.
	Revoke(ctx context.Context, tokenHash string, expiresAt time.Time) error

	// IsRevoked reports whether a token hash has been revoked.
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)

	// DeleteExpired removes rows whose token has expired and returns the count.
	DeleteExpired(ctx context.Context) (int64, error)
}

// Service derives sessions from incoming requests. It keeps no per-caller
// state: every call re-verifies the presented token.
type Service struct {
	verifier    TokenVerifier
	revocations RevocationRepository
	identity    *IdentityClient
	cookieName  string
	logger      *slog.Logger
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithCookieName sets the session cookie name.
func WithCookieName(name string) ServiceOption {
	return func(s *Service) {
		if name != "" {
			s.cookieName = name
		}
	}
}

// WithIdentityClient makes SignOut also end the session at the identity service.
func WithIdentityClient(c *IdentityClient) ServiceOption {
	return func(s *Service) { s.identity = c }
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service.
func NewService(verifier TokenVerifier, revocations RevocationRepository, opts ...ServiceOption) (*Service, error) {
	if verifier == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token verifier is required")
	}
	if revocations == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("revocation repository is required")
	}
	s := &Service{
		verifier:    verifier,
		revocations: revocations,
		cookieName:  DefaultCookieName,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CookieName returns the session cookie name.
func (s *Service) CookieName() string { return s.cookieName }

// TokenFromRequest extracts the session token from the Authorization bearer
// header, falling back to the session cookie. Returns "" when neither is set.
func (s *Service) TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(s.cookieName); err == nil {
		return c.Value
	}
	return ""
}

// SessionFromRequest derives the caller's session from r's credentials.
func (s *Service) SessionFromRequest(r *http.Request) (*Session, error) {
	return s.ValidateToken(r.Context(), s.TokenFromRequest(r))
}

// ValidateToken verifies token and checks it has not been signed out.
func (s *Service) ValidateToken(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code(CodeSessionMissing).Wrap(ErrNoSession)
	}

	session, err := s.verifier.Verify(token)
	if err != nil {
		return nil, err //nolint:wrapcheck // verifier errors already carry session codes
	}

	revoked, err := s.revocations.IsRevoked(ctx, session.TokenHash())
	if err != nil {
		return nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "check revocation").
			With("subject_id", session.SubjectID()).
			Wrap(err)
	}
	if revoked {
		return nil, oops.Code(CodeSessionRevoked).
			With("subject_id", session.SubjectID()).
			Errorf("session has been signed out")
	}

	return session, nil
}

// SignOut revokes the session locally and, when configured, at the identity
// service. The local revocation is authoritative; identity service failures
// are logged.
func (s *Service) SignOut(ctx context.Context, session *Session) error {
	if session == nil {
		return oops.Code(CodeSessionMissing).Wrap(ErrNoSession)
	}

	if err := s.revocations.Revoke(ctx, session.TokenHash(), session.ExpiresAt()); err != nil {
		return oops.Code("AUTH_SIGNOUT_FAILED").
			With("operation", "revoke session").
			With("subject_id", session.SubjectID()).
			Wrap(err)
	}

	if s.identity != nil {
		if err := s.identity.Logout(ctx, session.Token()); err != nil {
			s.logger.WarnContext(ctx, "identity service logout failed",
				"subject_id", session.SubjectID(),
				"error", err)
		}
	}
	return nil
}

// UpdatePassword forwards a password change for session's subject to the
// identity service.
func (s *Service) UpdatePassword(ctx context.Context, session *Session, newSecret string) error {
	if session == nil {
		return oops.Code(CodeSessionMissing).Wrap(ErrNoSession)
	}
	if s.identity == nil {
		return oops.Code("AUTH_PASSWORD_UNSUPPORTED").Errorf("identity service is not configured")
	}
	return s.identity.UpdatePassword(ctx, session.Token(), newSecret)
}

// PurgeExpired deletes revocation rows for tokens that have expired anyway.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.revocations.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code("AUTH_PURGE_FAILED").Wrap(err)
	}
	return n, nil
}

// IsInfrastructureError reports whether err is a session lookup failure rather
// than a verdict about the presented credentials.
func IsInfrastructureError(err error) bool {
	return err != nil && !IsUnauthenticated(err) && !errors.Is(err, ErrNoSession)
}
