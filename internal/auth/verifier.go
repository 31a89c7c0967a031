// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// Claims is the token payload issued by the identity service. Any role claim
// the service adds is ignored: roles come from the profile store only.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Verifier checks HMAC-signed session tokens issued by the identity service.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// VerifierOption customises a Verifier.
type VerifierOption func(*verifierOptions)

type verifierOptions struct {
	issuer   string
	audience string
	now      func() time.Time
}

// WithIssuer requires the iss claim to match.
func WithIssuer(issuer string) VerifierOption {
	return func(o *verifierOptions) { o.issuer = issuer }
}

// WithAudience requires the aud claim to contain audience.
func WithAudience(audience string) VerifierOption {
	return func(o *verifierOptions) { o.audience = audience }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) VerifierOption {
	return func(o *verifierOptions) { o.now = now }
}

// NewVerifier creates a Verifier for tokens signed with secret.
func NewVerifier(secret []byte, opts ...VerifierOption) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, oops.Code("CONFIG_INVALID").Errorf("session signing secret is required")
	}

	o := verifierOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(o.now),
	}
	if o.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(o.issuer))
	}
	if o.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(o.audience))
	}

	return &Verifier{
		secret: secret,
		parser: jwt.NewParser(parserOpts...),
	}, nil
}

// Verify validates token and returns the session it carries.
func (v *Verifier) Verify(token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code(CodeSessionMissing).Wrap(ErrNoSession)
	}

	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, oops.Code(CodeSessionExpired).Wrap(err)
		}
		return nil, oops.Code(CodeSessionInvalid).Wrap(err)
	}

	return sessionFromClaims(token, claims)
}

// ParseUnverified reads the session out of token without checking its
// signature. Clients use it to learn the subject and expiry of a token the
// identity service just handed them; servers must use Verifier.Verify.
func ParseUnverified(token string) (*Session, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, oops.Code(CodeSessionInvalid).Wrap(err)
	}
	if claims.ExpiresAt == nil {
		return nil, oops.Code(CodeSessionInvalid).Errorf("session token has no expiry")
	}
	return sessionFromClaims(token, claims)
}

func sessionFromClaims(token string, claims *Claims) (*Session, error) {
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return NewSession(token, claims.Subject, claims.Email, expiresAt)
}
