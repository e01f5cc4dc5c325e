// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// writePlugin creates <dir>/<sub>/plugin.yaml and any extra files.
func writePlugin(t *testing.T, dir, sub, manifest string, files map[string]string) {
	t.Helper()
	pluginDir := filepath.Join(dir, sub)
	require.NoError(t, os.MkdirAll(pluginDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "plugin.yaml"), []byte(manifest), 0o600))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(pluginDir, name), []byte(content), 0o600))
	}
}

// execute runs the root command with args and returns stdout and stderr.
// A user config file is never picked up.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return executeCmd(t, NewRootCmd(), args...)
}

func executeCmd(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

const greeterManifest = `name: greeter
version: 1.0.0
type: lua
dependencies:
  - name: banlist
    version: ">= 1.0.0"
    optional: true
lua-plugin:
  entry: main.lua
`

const greeterScript = `function on_load() end
`
