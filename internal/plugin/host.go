// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package plugin

import (
	"context"

	"github.com/wizardmod/wizard/pkg/wizard"
)

// Host manages one plugin runtime type (Lua, binary).
type Host interface {
	// Load instantiates a plugin from its manifest. The Manager drives the
	// returned instance through its lifecycle.
	Load(ctx context.Context, manifest *Manifest, dir string) (wizard.Plugin, error)

	// Unload releases the runtime resources of a plugin.
	Unload(ctx context.Context, name string) error

	// Plugins returns names of all loaded plugins.
	Plugins() []string

	// Close shuts down the host and all plugins.
	Close(ctx context.Context) error
}

// originFor maps a manifest type to its origin.
func originFor(t Type) Origin {
	if t == TypeBinary {
		return OriginBinary
	}
	return OriginLua
}

// typeFor maps an origin back to its manifest type.
func typeFor(o Origin) (Type, bool) {
	switch o {
	case OriginLua:
		return TypeLua, true
	case OriginBinary:
		return TypeBinary, true
	default:
		return "", false
	}
}
