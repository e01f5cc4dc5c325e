// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/wizardmod/wizard/internal/config"
	"github.com/wizardmod/wizard/internal/xdg"
)

// NewRootCmd creates the root command for the wizard CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wizard",
		Short: "Wizard - a plugin host for game servers",
		Long: `Wizard discovers, orders and runs native, Lua and binary plugins,
delivering engine hooks to them in dependency order.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (default $XDG_CONFIG_HOME/wizard/config.yaml)")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewResolveCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// loadConfig reads --config, or the user config file when the flag is not
// set, and the configuration flags of cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err //nolint:wrapcheck // flag is registered on the root command
	}
	if path == "" {
		path = xdg.ConfigFile()
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err //nolint:wrapcheck // config errors carry their own code
	}
	if err := cfg.Validate(); err != nil {
		return nil, err //nolint:wrapcheck // config errors carry their own code
	}
	return cfg, nil
}
