// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/shopfront/shopfront/internal/store"
)

// migrator is the part of *store.Migrator the migrate commands drive.
type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Force(version int) error
	Pending() ([]uint, error)
	Close() error
}

// openMigrator is replaced in tests.
var openMigrator = func(databaseURL string) (migrator, error) {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewMigrateCmd creates the migrate command and its subcommands. Bare
// "migrate" applies pending migrations.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  `Apply, inspect, or repair the PostgreSQL schema. Without a subcommand, applies all pending migrations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, runMigrateUp)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, runMigrateUp)
		},
	})

	var confirm bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all shopfront tables)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return oops.Code("CONFIRMATION_REQUIRED").Errorf("refusing to drop the schema without --yes")
			}
			return withMigrator(cmd, func(cmd *cobra.Command, m migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&confirm, "yes", false, "confirm dropping the schema")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, runMigrateStatus)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it (dirty state recovery)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, func(cmd *cobra.Command, m migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forced version %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(*cobra.Command, migrator) error) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	m, err := openMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck // close failures do not change the outcome
	return fn(cmd, m)
}

func runMigrateUp(cmd *cobra.Command, m migrator) error {
	pending, err := m.Pending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
		return nil
	}
	if err := m.Up(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s)\n", len(pending))
	return nil
}

func runMigrateStatus(cmd *cobra.Command, m migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	pending, err := m.Pending()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	name, err := store.MigrationName(version)
	if err != nil {
		return err
	}
	if name == "" {
		name = "none"
	}
	fmt.Fprintf(out, "Version: %d (%s)\n", version, name)
	if dirty {
		fmt.Fprintln(out, "State:   DIRTY (repair the schema, then run 'migrate force')")
	}
	if len(pending) == 0 {
		fmt.Fprintln(out, "Pending: none")
		return nil
	}
	names := make([]string, 0, len(pending))
	for _, v := range pending {
		n, err := store.MigrationName(v)
		if err != nil {
			return err
		}
		names = append(names, n)
	}
	fmt.Fprintf(out, "Pending: %s\n", strings.Join(names, ", "))
	return nil
}

// migrateUp applies pending migrations for serve --auto-migrate.
func migrateUp(databaseURL string) error {
	m, err := openMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck // close failures do not change the outcome
	return m.Up()
}

// parseForceVersion parses a non-negative migration version.
func parseForceVersion(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", s).
			Errorf("version must be a non-negative integer, got %q", s)
	}
	return v, nil
}
