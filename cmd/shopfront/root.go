// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shopfront/shopfront/internal/config"
	"github.com/shopfront/shopfront/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the shopfront CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shopfront",
		Short: "Shopfront back office access control",
		Long: `Shopfront serves the storefront back office API. Every request is
checked against the caller's identity-service session and the role stored
in their profile.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML, default $XDG_CONFIG_HOME/shopfront/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewRoleCmd())
	cmd.AddCommand(NewNavCmd())
	cmd.AddCommand(NewConsoleCmd())

	return cmd
}

// loadConfig reads and validates configuration for cmd and installs the
// configured logger as the slog default. Without --config the XDG config
// file is used when present.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path := configFile
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(cmd.Flags(), path)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger := logging.SetDefault("shopfront", version, logging.Options{
		Format: cfg.Log.Format,
		Level:  cfg.Log.Level,
	})
	return cfg, logger, nil
}
