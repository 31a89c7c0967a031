// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopfront/shopfront/internal/config"
	"github.com/shopfront/shopfront/pkg/errutil"
)

type fakeMigrator struct {
	version uint
	dirty   bool
	pending []uint
	upErr   error

	ups, downs int
	forced     []int
	closed     bool
}

func (f *fakeMigrator) Up() error {
	f.ups++
	return f.upErr
}

func (f *fakeMigrator) Down() error {
	f.downs++
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, f.dirty, nil }

func (f *fakeMigrator) Force(v int) error {
	f.forced = append(f.forced, v)
	return nil
}

func (f *fakeMigrator) Pending() ([]uint, error) { return f.pending, nil }

func (f *fakeMigrator) Close() error {
	f.closed = true
	return nil
}

// useMigrator installs m as the migrator every command opens.
func useMigrator(t *testing.T, m *fakeMigrator) *[]string {
	t.Helper()
	var urls []string
	orig := openMigrator
	openMigrator = func(databaseURL string) (migrator, error) {
		urls = append(urls, databaseURL)
		return m, nil
	}
	t.Cleanup(func() { openMigrator = orig })
	return &urls
}

const testDatabaseURL = "postgres://shop@localhost/shop"

func TestMigrateCommand_Properties(t *testing.T) {
	cmd := NewMigrateCmd()

	assert.Equal(t, "migrate", cmd.Use)
	assert.Contains(t, cmd.Long, "PostgreSQL")
	names := make([]string, 0, len(cmd.Commands()))
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"up", "down", "status", "force"}, names)
}

func TestMigrateCommand_NoDatabaseURL(t *testing.T) {
	t.Setenv(config.DatabaseURLEnv, "")
	useMigrator(t, &fakeMigrator{})

	_, err := execute(t, "migrate", "up")
	errutil.AssertErrorCode(t, err, config.CodeInvalid)
	errutil.AssertErrorContext(t, err, "key", "database.url")
}

func TestMigrateCommand_Up(t *testing.T) {
	m := &fakeMigrator{pending: []uint{3, 4}}
	urls := useMigrator(t, m)

	out, err := execute(t, "migrate", "--database-url", testDatabaseURL)
	require.NoError(t, err)

	assert.Equal(t, 1, m.ups)
	assert.True(t, m.closed)
	assert.Equal(t, []string{testDatabaseURL}, *urls)
	assert.Contains(t, out, "Applied 2 migration(s)")
}

func TestMigrateCommand_UpToDate(t *testing.T) {
	m := &fakeMigrator{version: 4}
	useMigrator(t, m)

	out, err := execute(t, "migrate", "up", "--database-url", testDatabaseURL)
	require.NoError(t, err)

	assert.Zero(t, m.ups)
	assert.Contains(t, out, "Schema is up to date")
}

func TestMigrateCommand_UpFailure(t *testing.T) {
	m := &fakeMigrator{pending: []uint{1}, upErr: errors.New("boom")}
	useMigrator(t, m)

	_, err := execute(t, "migrate", "up", "--database-url", testDatabaseURL)
	require.Error(t, err)
	assert.True(t, m.closed)
}

func TestMigrateCommand_DownRequiresConfirmation(t *testing.T) {
	m := &fakeMigrator{}
	urls := useMigrator(t, m)

	_, err := execute(t, "migrate", "down", "--database-url", testDatabaseURL)
	errutil.AssertErrorCode(t, err, "CONFIRMATION_REQUIRED")
	assert.Zero(t, m.downs)
	assert.Empty(t, *urls, "migrator must not be opened without confirmation")

	out, err := execute(t, "migrate", "down", "--yes", "--database-url", testDatabaseURL)
	require.NoError(t, err)
	assert.Equal(t, 1, m.downs)
	assert.Contains(t, out, "rolled back")
}

func TestMigrateCommand_Status(t *testing.T) {
	m := &fakeMigrator{version: 2, pending: []uint{3, 4}}
	useMigrator(t, m)

	out, err := execute(t, "migrate", "status", "--database-url", testDatabaseURL)
	require.NoError(t, err)

	assert.Contains(t, out, "Version: 2 (000002_revoked_sessions)")
	assert.Contains(t, out, "Pending: 000003_audit_log, 000004_catalog")
	assert.NotContains(t, out, "DIRTY")
}

func TestMigrateCommand_StatusDirtyEmptySchema(t *testing.T) {
	m := &fakeMigrator{dirty: true}
	useMigrator(t, m)

	out, err := execute(t, "migrate", "status", "--database-url", testDatabaseURL)
	require.NoError(t, err)

	assert.Contains(t, out, "Version: 0 (none)")
	assert.Contains(t, out, "DIRTY")
	assert.Contains(t, out, "Pending: none")
}

func TestMigrateCommand_Force(t *testing.T) {
	m := &fakeMigrator{}
	useMigrator(t, m)

	out, err := execute(t, "migrate", "force", "3", "--database-url", testDatabaseURL)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, m.forced)
	assert.Contains(t, out, "Forced version 3")

	_, err = execute(t, "migrate", "force", "--database-url", testDatabaseURL, "--", "-1")
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")
	assert.Equal(t, []int{3}, m.forced)
}

func TestParseForceVersion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantVersion int
		wantErr     bool
	}{
		{name: "valid integer", input: "3", wantVersion: 3},
		{name: "zero is valid", input: "0", wantVersion: 0},
		{name: "surrounding whitespace is trimmed", input: "  42 ", wantVersion: 42},
		{name: "non-numeric", input: "abc", wantErr: true},
		{name: "float", input: "1.5", wantErr: true},
		{name: "trailing characters", input: "3abc", wantErr: true},
		{name: "negative", input: "-1", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseForceVersion(tt.input)
			if tt.wantErr {
				errutil.AssertErrorCode(t, err, "INVALID_VERSION")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, got)
		})
	}
}
