// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Package postgres implements auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/shopfront/shopfront/internal/auth"
	"github.com/shopfront/shopfront/internal/store"
)

// RevocationRepository implements auth.RevocationRepository using PostgreSQL.
type RevocationRepository struct {
	pool store.Pool
	now  func() time.Time
}

// NewRevocationRepository creates a new RevocationRepository.
func NewRevocationRepository(pool store.Pool) *RevocationRepository {
	return &RevocationRepository{pool: pool, now: time.Now}
}

// Revoke stores a token hash. Revoking the same token twice is a no-op.
func (r *RevocationRepository) Revoke(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO revoked_sessions (token_hash, expires_at, revoked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO NOTHING
	`, tokenHash, expiresAt, r.now())
	if err != nil {
		return oops.Code("REVOCATION_CREATE_FAILED").
			With("operation", "insert revoked_session").
			Wrap(err)
	}
	return nil
}

// IsRevoked reports whether tokenHash is on the revocation list.
func (r *RevocationRepository) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM revoked_sessions WHERE token_hash = $1)
	`, tokenHash).Scan(&exists)
	if err != nil {
		return false, oops.Code("REVOCATION_LOOKUP_FAILED").
			With("operation", "check revoked_session").
			Wrap(err)
	}
	return exists, nil
}

// DeleteExpired removes revocations for tokens that are past expiry.
func (r *RevocationRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM revoked_sessions WHERE expires_at < $1
	`, r.now())
	if err != nil {
		return 0, oops.Code("REVOCATION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired revoked_sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

var _ auth.RevocationRepository = (*RevocationRepository)(nil)
