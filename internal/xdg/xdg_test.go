// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDir(t *testing.T) {
	tests := []struct {
		name    string
		xdgHome string
		home    string
		want    string
	}{
		{"env var", "/custom/config", "/home/u", "/custom/config/shopfront"},
		{"default", "", "/home/testuser", "/home/testuser/.config/shopfront"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XDG_CONFIG_HOME", tt.xdgHome)
			t.Setenv("HOME", tt.home)
			got, err := ConfigDir()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStateDir(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", "/home/testuser")
	got, err := StateDir()
	require.NoError(t, err)
	assert.Equal(t, "/home/testuser/.local/state/shopfront", got)

	t.Setenv("XDG_STATE_HOME", "/var/state")
	got, err = StateDir()
	require.NoError(t, err)
	assert.Equal(t, "/var/state/shopfront", got)
}

func TestStateDir_NoHome(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", "")
	_, err := StateDir()
	require.Error(t, err)
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}
