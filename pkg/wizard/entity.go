// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package wizard

import (
	"cmp"
	"fmt"
	"math"
)

// Entity is an opaque handle to an engine-owned object.
// The host never dereferences it; it only forwards it to plugins.
type Entity uint64

// NullEntity is the reserved null entity.
const NullEntity Entity = 0

// IsNull reports whether e is the null entity.
func (e Entity) IsNull() bool {
	return e == NullEntity
}

// Compare orders entities by raw value. It returns -1, 0 or +1.
func (e Entity) Compare(other Entity) int {
	return cmp.Compare(e, other)
}

// String returns "Entity.Null" or "Entity(0x...)".
func (e Entity) String() string {
	if e.IsNull() {
		return "Entity.Null"
	}
	return fmt.Sprintf("Entity(0x%x)", uint64(e))
}

// PluginID identifies a loaded plugin instance.
// Ids are allocated by the host and never reused within a process.
type PluginID uint64

// NullPlugin denotes "no plugin".
const NullPlugin PluginID = math.MaxUint64

// IsNull reports whether id is the null plugin id.
func (id PluginID) IsNull() bool {
	return id == NullPlugin
}

// Compare orders plugin ids by raw value. It returns -1, 0 or +1.
func (id PluginID) Compare(other PluginID) int {
	return cmp.Compare(id, other)
}

// String returns "Plugin.Null" or "Plugin(N)".
func (id PluginID) String() string {
	if id.IsNull() {
		return "Plugin.Null"
	}
	return fmt.Sprintf("Plugin(%d)", uint64(id))
}
