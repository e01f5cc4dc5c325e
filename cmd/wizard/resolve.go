// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wizardmod/wizard/internal/builtin"
	"github.com/wizardmod/wizard/internal/plugin"
	"github.com/wizardmod/wizard/pkg/wizard"
)

// NewResolveCmd creates the resolve subcommand.
func NewResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [dir]",
		Short: "Print the load order of the discovered plugins",
		Long: `Discover plugin manifests and print the strict load order, built-in
plugins included. The first unresolved dependency or cycle is reported as
an error. Invalid manifests are listed and left out.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dir := cfg.PluginsDir
			if len(args) == 1 {
				dir = args[0]
			}
			return runResolve(cmd, dir, cfg.Disabled, cfg.Banlist.Addresses)
		},
	}
}

func runResolve(cmd *cobra.Command, dir string, disabled, banned []string) error {
	found, invalid, err := plugin.Discover(dir, disabled)
	if err != nil {
		return err //nolint:wrapcheck // discovery errors carry the directory
	}

	out := cmd.OutOrStdout()
	for _, f := range invalid {
		fmt.Fprintf(out, "skipped %s [%s]: %v\n", f.Plugin, f.Code(), f.Err)
	}

	origins := make(map[string]string)
	var descs []wizard.Descriptor
	for _, mod := range builtin.Modules(builtin.Options{BannedAddresses: banned}) {
		descs = append(descs, mod.Descriptor)
		origins[mod.Descriptor.Name] = string(plugin.OriginNative)
	}
	for _, dp := range found {
		descs = append(descs, dp.Manifest.Descriptor())
		origins[dp.Manifest.Name] = string(dp.Manifest.Type)
	}

	order, err := plugin.Resolve(descs)
	if err != nil {
		return err //nolint:wrapcheck // resolution errors carry their own code
	}
	for i, name := range order {
		fmt.Fprintf(out, "%2d. %s (%s)\n", i+1, name, origins[name])
	}
	return nil
}
