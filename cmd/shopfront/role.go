// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/shopfront/shopfront/internal/access"
	accesspg "github.com/shopfront/shopfront/internal/access/postgres"
	"github.com/shopfront/shopfront/internal/access/audit"
	"github.com/shopfront/shopfront/internal/config"
	"github.com/shopfront/shopfront/internal/store"
)

// roleStore reads and writes profile roles.
type roleStore interface {
	GetRoleForSubject(ctx context.Context, subjectID string) (*access.Profile, error)
	SetRole(ctx context.Context, subjectID string, role access.Role) (string, error)
}

// roleBackend is what the role commands run against.
type roleBackend struct {
	profiles roleStore
	audit    audit.Writer
	close    func()
}

// openRoleBackend is replaced in tests.
var openRoleBackend = func(ctx context.Context, cfg *config.Config) (*roleBackend, error) {
	pool, err := store.Connect(ctx, cfg.Database.URL, store.DefaultConnectOptions())
	if err != nil {
		return nil, err
	}
	return &roleBackend{
		profiles: accesspg.NewProfileRepository(pool),
		audit:    audit.NewPostgresWriter(pool),
		close:    pool.Close,
	}, nil
}

// NewRoleCmd creates the role command.
func NewRoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Inspect or assign back office roles",
	}

	var actor string
	set := &cobra.Command{
		Use:   "set SUBJECT ROLE",
		Short: "Assign ROLE (staff, manager or admin) to SUBJECT",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := access.ParseRole(args[1])
			if err != nil {
				return err
			}
			if role == access.RoleNone {
				return oops.Code(access.CodeRoleInvalid).With("role", args[1]).
					Errorf("role must be one of staff, manager, admin")
			}
			return withRoleBackend(cmd, func(ctx context.Context, b *roleBackend, cfg *config.Config) error {
				return runRoleSet(ctx, cmd, b, cfg, actor, args[0], role)
			})
		},
	}
	set.Flags().StringVar(&actor, "actor", "cli", "actor recorded in the audit log")
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:   "get SUBJECT",
		Short: "Print the role stored for SUBJECT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRoleBackend(cmd, func(ctx context.Context, b *roleBackend, _ *config.Config) error {
				profile, err := b.profiles.GetRoleForSubject(ctx, args[0])
				if errors.Is(err, access.ErrProfileNotFound) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: no profile\n", args[0])
					return nil
				}
				if err != nil {
					return oops.Code("ROLE_LOOKUP_FAILED").With("subject_id", args[0]).Wrap(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", profile.SubjectID, profile.Role)
				return nil
			})
		},
	})

	return cmd
}

func withRoleBackend(cmd *cobra.Command, fn func(context.Context, *roleBackend, *config.Config) error) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := openRoleBackend(ctx, cfg)
	if err != nil {
		return err
	}
	if b.close != nil {
		defer b.close()
	}
	return fn(ctx, b, cfg)
}

func runRoleSet(ctx context.Context, cmd *cobra.Command, b *roleBackend, cfg *config.Config, actor, subject string, role access.Role) error {
	previous, err := b.profiles.SetRole(ctx, subject, role)
	if err != nil {
		return err
	}

	opts := []audit.RecorderOption{}
	if cfg.Audit.WALPath != "" {
		opts = append(opts, audit.WithWALPath(cfg.Audit.WALPath))
	}
	recorder, err := audit.NewRecorder(b.audit, opts...)
	if err != nil {
		return err
	}
	defer recorder.Close() //nolint:errcheck // nothing buffered after Record returns

	entry, err := audit.NewEntry(actor, audit.ActionRoleChange, "profiles", subject,
		map[string]any{"role": previous}, map[string]any{"role": string(role)})
	if err != nil {
		return err
	}
	if err := recorder.Record(ctx, entry); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: role changed but audit entry was not recorded: %v\n", err)
	}

	if previous == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: created with role %s\n", subject, role)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", subject, previous, role)
	}
	return nil
}
