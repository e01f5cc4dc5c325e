// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

// Package xdg locates wizard's files under the XDG Base Directory layout.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "wizard"

// ConfigDir returns $XDG_CONFIG_HOME/wizard, falling back to ~/.config/wizard.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the path of the user config file when one exists, or
// "" when there is none.
func ConfigFile() string {
	path := filepath.Join(ConfigDir(), "config.yaml")
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return ""
	}
	return path
}
