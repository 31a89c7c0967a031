// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

// Package postgres provides the PostgreSQL profile repository.
package postgres

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/shopfront/shopfront/internal/access"
	"github.com/shopfront/shopfront/internal/store"
)

// ProfileRepository implements access.ProfileRepository using PostgreSQL.
//
// Errors carry context but no oops code, so the resolver's classification is
// the one callers see.
type ProfileRepository struct {
	pool store.Pool
	now  func() time.Time
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(pool store.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool, now: time.Now}
}

// GetRoleForSubject implements access.ProfileRepository.
func (r *ProfileRepository) GetRoleForSubject(ctx context.Context, subjectID string) (*access.Profile, error) {
	var p access.Profile
	err := r.pool.QueryRow(ctx, `
		SELECT subject_id, role, first_name, last_name, created_at, updated_at
		FROM profiles
		WHERE subject_id = $1
	`, subjectID).Scan(&p.SubjectID, &p.Role, &p.FirstName, &p.LastName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, classify(err, subjectID, "get profile")
	}
	return &p, nil
}

// SetRole assigns role to subjectID, creating the profile if needed. Returns
// the previous role, or "" when the profile is new.
func (r *ProfileRepository) SetRole(ctx context.Context, subjectID string, role access.Role) (string, error) {
	if !role.Valid() || role == access.RoleNone {
		return "", oops.Code(access.CodeRoleInvalid).
			With("subject_id", subjectID).
			With("role", role).
			Errorf("role %q cannot be assigned", role)
	}

	var previous *string
	err := r.pool.QueryRow(ctx, `
		WITH prev AS (
			SELECT role FROM profiles WHERE subject_id = $1 FOR UPDATE
		)
		INSERT INTO profiles (subject_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (subject_id) DO UPDATE
			SET role = EXCLUDED.role, updated_at = EXCLUDED.updated_at
		RETURNING (SELECT role FROM prev)
	`, subjectID, string(role), r.now().UTC()).Scan(&previous)
	if err != nil {
		return "", classify(err, subjectID, "set role")
	}
	if previous == nil {
		return "", nil
	}
	return *previous, nil
}

func classify(err error, subjectID, operation string) error {
	builder := oops.With("subject_id", subjectID).With("operation", operation)
	if errors.Is(err, pgx.ErrNoRows) {
		return builder.Wrap(access.ErrProfileNotFound)
	}
	if IsUnavailable(err) {
		return builder.Wrap(errors.Join(access.ErrUnavailable, err))
	}
	return builder.Wrap(err)
}

// IsUnavailable reports whether err means the database could not be reached,
// as opposed to a query that ran and failed.
func IsUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.AdminShutdown, pgerrcode.CrashShutdown, pgerrcode.CannotConnectNow,
			pgerrcode.TooManyConnections:
			return true
		}
		return pgerrcode.IsConnectionException(pgErr.Code)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
