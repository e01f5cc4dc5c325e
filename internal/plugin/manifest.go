// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

// Package plugin resolves, loads and drives plugins through their lifecycle
// and dispatches engine hooks to them.
package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wizardmod/wizard/pkg/wizard"
)

// ManifestFile is the manifest file name inside a plugin directory.
const ManifestFile = "plugin.yaml"

// Type identifies the plugin runtime.
type Type string

// Plugin types supported by the system.
const (
	TypeLua    Type = "lua"
	TypeBinary Type = "binary"
)

// Manifest represents a plugin.yaml file.
type Manifest struct {
	Name         string              `yaml:"name" json:"name" jsonschema:"pattern=^[A-Za-z][A-Za-z0-9_.-]*$,maxLength=64"`
	Description  string              `yaml:"description,omitempty" json:"description,omitempty"`
	Author       string              `yaml:"author,omitempty" json:"author,omitempty"`
	Version      string              `yaml:"version" json:"version"`
	URL          string              `yaml:"url,omitempty" json:"url,omitempty" jsonschema:"format=uri"`
	Type         Type                `yaml:"type" json:"type" jsonschema:"enum=lua,enum=binary"`
	Dependencies []wizard.Dependency `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Conflicts    []wizard.Conflict   `yaml:"conflicts,omitempty" json:"conflicts,omitempty"`
	Capabilities []string            `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
	LuaPlugin    *LuaConfig          `yaml:"lua-plugin,omitempty" json:"lua-plugin,omitempty"`
	BinaryPlugin *BinaryConfig       `yaml:"binary-plugin,omitempty" json:"binary-plugin,omitempty"`
}

// LuaConfig holds Lua-specific configuration.
type LuaConfig struct {
	Entry string `yaml:"entry" json:"entry"`
}

// BinaryConfig holds binary plugin configuration.
type BinaryConfig struct {
	// Executable may contain ${os} and ${arch}, expanded at load time.
	Executable string `yaml:"executable" json:"executable"`
}

// ParseManifest parses and validates a plugin.yaml file.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, errors.New("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	if err := m.Descriptor().Validate(); err != nil {
		return err
	}
	if m.Version == "" {
		return errors.New("version is required")
	}

	switch m.Type {
	case TypeLua:
		if m.LuaPlugin == nil || m.LuaPlugin.Entry == "" {
			return errors.New("lua-plugin.entry is required when type is lua")
		}
	case TypeBinary:
		if m.BinaryPlugin == nil || m.BinaryPlugin.Executable == "" {
			return errors.New("binary-plugin.executable is required when type is binary")
		}
	default:
		return fmt.Errorf("type must be 'lua' or 'binary', got %q", m.Type)
	}

	for i, c := range m.Capabilities {
		if c == "" {
			return fmt.Errorf("capability %d is empty", i)
		}
	}
	return nil
}

// Descriptor converts the manifest to plugin metadata.
func (m *Manifest) Descriptor() wizard.Descriptor {
	return wizard.Descriptor{
		Name:         m.Name,
		Description:  m.Description,
		Author:       m.Author,
		Version:      m.Version,
		URL:          m.URL,
		Dependencies: slices.Clone(m.Dependencies),
		Conflicts:    slices.Clone(m.Conflicts),
	}
}

// ExecutablePath resolves the binary plugin executable inside dir.
func (m *Manifest) ExecutablePath(dir string) string {
	if m.BinaryPlugin == nil {
		return ""
	}
	exe := strings.NewReplacer("${os}", runtime.GOOS, "${arch}", runtime.GOARCH).Replace(m.BinaryPlugin.Executable)
	return filepath.Join(dir, exe)
}

// DiscoveredPlugin contains a manifest and its directory.
type DiscoveredPlugin struct {
	Manifest *Manifest
	Dir      string
}

// Discover reads every <dir>/<plugin>/plugin.yaml. Plugins named in
// disabled are skipped; invalid manifests come back as failures. A missing
// dir is not an error.
func Discover(dir string, disabled []string) ([]*DiscoveredPlugin, []Failure, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, errs().With("dir", dir).Wrapf(err, "read plugins directory")
	}

	var (
		found   []*DiscoveredPlugin
		invalid []Failure
	)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pluginDir := filepath.Join(dir, entry.Name())
		manifestPath := filepath.Join(pluginDir, ManifestFile)

		data, err := os.ReadFile(manifestPath) //nolint:gosec // manifestPath is constructed from ReadDir entries
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			invalid = append(invalid, Failure{Plugin: entry.Name(), Err: ErrInvalidManifest(manifestPath, err)})
			continue
		}

		m, err := ParseManifest(data)
		if err != nil {
			invalid = append(invalid, Failure{Plugin: entry.Name(), Err: ErrInvalidManifest(manifestPath, err)})
			continue
		}
		if slices.Contains(disabled, m.Name) {
			continue
		}
		found = append(found, &DiscoveredPlugin{Manifest: m, Dir: pluginDir})
	}
	return found, invalid, nil
}
