// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/wizardmod/wizard/internal/plugin"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dir]",
		Short: "Check every plugin manifest against the schema",
		Long: `Validate each <dir>/<plugin>/plugin.yaml against the manifest JSON
Schema and the semantic manifest rules. Missing entry scripts and
executables are reported as warnings.`,
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
			return runValidate(cmd, dir)
		},
	}
}

func runValidate(cmd *cobra.Command, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return oops.Code("VALIDATE_FAILED").With("dir", dir).Wrapf(err, "read plugins directory")
	}

	out := cmd.OutOrStdout()
	var checked, failed int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pluginDir := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(filepath.Join(pluginDir, plugin.ManifestFile)) //nolint:gosec // path built from ReadDir entries
		if os.IsNotExist(err) {
			continue
		}
		checked++
		if err == nil {
			err = plugin.ValidateSchema(data)
		}
		var m *plugin.Manifest
		if err == nil {
			m, err = plugin.ParseManifest(data)
		}
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", entry.Name(), err)
			continue
		}
		fmt.Fprintf(out, "ok   %s %s (%s)\n", m.Name, m.Version, m.Type)
		if missing := missingArtifact(m, pluginDir); missing != "" {
			fmt.Fprintf(out, "     warning: %s not found\n", missing)
		}
	}

	fmt.Fprintf(out, "%d manifests checked, %d invalid\n", checked, failed)
	if failed > 0 {
		return oops.Code("VALIDATE_FAILED").With("invalid", failed).Errorf("%d invalid manifests", failed)
	}
	return nil
}

// missingArtifact returns the entry script or executable a manifest points
// at when it does not exist.
func missingArtifact(m *plugin.Manifest, dir string) string {
	var path string
	switch {
	case m.LuaPlugin != nil:
		path = filepath.Join(dir, m.LuaPlugin.Entry)
	case m.BinaryPlugin != nil:
		path = m.ExecutablePath(dir)
	default:
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return path
	}
	return ""
}
