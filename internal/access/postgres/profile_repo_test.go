// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopfront/shopfront/internal/access"
	"github.com/shopfront/shopfront/pkg/errutil"
)

func newMockRepo(t *testing.T) (*ProfileRepository, pgxmock.PgxPoolIface, time.Time) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)

	now := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	repo := NewProfileRepository(mock)
	repo.now = func() time.Time { return now }
	return repo, mock, now
}

func TestProfileRepository_GetRoleForSubject(t *testing.T) {
	repo, mock, now := newMockRepo(t)

	rows := pgxmock.NewRows([]string{"subject_id", "role", "first_name", "last_name", "created_at", "updated_at"}).
		AddRow("sub-1", "manager", "Ada", "Lovelace", now, now)
	mock.ExpectQuery(`SELECT subject_id, role, first_name, last_name`).
		WithArgs("sub-1").
		WillReturnRows(rows)

	p, err := repo.GetRoleForSubject(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "manager", p.Role)
	assert.Equal(t, "Ada", p.FirstName)
	assert.Equal(t, "Lovelace", p.LastName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_GetRoleForSubject_Errors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantIs      error
		unavailable bool
	}{
		{name: "no rows", err: pgx.ErrNoRows, wantIs: access.ErrProfileNotFound},
		{name: "admin shutdown", err: &pgconn.PgError{Code: pgerrcode.AdminShutdown}, wantIs: access.ErrUnavailable, unavailable: true},
		{name: "connection failure", err: &pgconn.PgError{Code: pgerrcode.ConnectionFailure}, wantIs: access.ErrUnavailable, unavailable: true},
		{name: "deadline", err: context.DeadlineExceeded, wantIs: access.ErrUnavailable, unavailable: true},
		{name: "undefined table", err: &pgconn.PgError{Code: pgerrcode.UndefinedTable}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, _ := newMockRepo(t)
			mock.ExpectQuery(`FROM profiles`).WithArgs("sub-1").WillReturnError(tt.err)

			_, err := repo.GetRoleForSubject(context.Background(), "sub-1")
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			} else {
				assert.NotErrorIs(t, err, access.ErrProfileNotFound)
				assert.NotErrorIs(t, err, access.ErrUnavailable)
			}
			assert.Equal(t, tt.unavailable, IsUnavailable(tt.err))
			assert.Empty(t, errutil.Code(err), "repository errors leave classification to the resolver")
			errutil.AssertErrorContext(t, err, "subject_id", "sub-1")
		})
	}
}

func TestProfileRepository_SetRole(t *testing.T) {
	repo, mock, now := newMockRepo(t)
	previous := "staff"

	mock.ExpectQuery(`INSERT INTO profiles`).
		WithArgs("sub-1", "admin", now).
		WillReturnRows(pgxmock.NewRows([]string{"role"}).AddRow(&previous))

	got, err := repo.SetRole(context.Background(), "sub-1", access.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "staff", got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_SetRole_NewProfile(t *testing.T) {
	repo, mock, now := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO profiles`).
		WithArgs("sub-2", "staff", now).
		WillReturnRows(pgxmock.NewRows([]string{"role"}).AddRow((*string)(nil)))

	got, err := repo.SetRole(context.Background(), "sub-2", access.RoleStaff)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestProfileRepository_SetRole_RejectsUnassignable(t *testing.T) {
	repo, _, _ := newMockRepo(t)

	for _, role := range []access.Role{access.RoleNone, "owner"} {
		_, err := repo.SetRole(context.Background(), "sub-1", role)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, access.CodeRoleInvalid)
	}
}

func TestProfileRepository_SetRole_DatabaseError(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	mock.ExpectQuery(`INSERT INTO profiles`).WillReturnError(errors.New("boom"))

	_, err := repo.SetRole(context.Background(), "sub-1", access.RoleStaff)
	require.Error(t, err)
}
