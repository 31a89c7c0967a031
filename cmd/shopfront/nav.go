// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shopfront/shopfront/internal/access"
	"github.com/shopfront/shopfront/internal/nav"
)

// NewNavCmd creates the nav command.
func NewNavCmd() *cobra.Command {
	var roleName string
	cmd := &cobra.Command{
		Use:   "nav",
		Short: "Print the navigation a role would see",
		Long: `Print the back office navigation filtered for a role. Uses the manifest
named by --nav-manifest, or the built-in one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			role, err := access.ParseRole(roleName)
			if err != nil {
				return err
			}
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			manifest, err := nav.LoadManifest(cfg.Nav.Manifest)
			if err != nil {
				return err
			}
			return printNav(cmd.OutOrStdout(), nav.FilterRole(manifest, role))
		},
	}
	cmd.Flags().StringVar(&roleName, "role", string(access.RoleStaff), "role to filter for (none, staff, manager, admin)")
	return cmd
}

func printNav(out io.Writer, items []nav.Item) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(out, "(no entries)")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", it.Label, it.Target, it.RequiredRole)
	}
	return w.Flush()
}
