// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

// Package capability grants plugins access to host-bridge calls.
//
// Patterns use gobwas/glob with '.' as the segment separator:
//   - '*' matches a single segment
//   - '**' matches zero or more segments
//
// "plugin.*" matches "plugin.lookup" but not "plugin.lookup.name";
// "**" matches any capability.
package capability

import (
	"slices"
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Capabilities checked by the host.
const (
	// PluginLookup allows resolving other plugins by name.
	PluginLookup = "plugin.lookup"
	// PluginList allows listing running plugins.
	PluginList = "plugin.list"
	// All grants every capability. Native plugins get it.
	All = "**"
)

// CodeDenied is the oops code returned by Require.
const CodeDenied = "CAPABILITY_DENIED"

type grant struct {
	pattern string
	glob    glob.Glob
}

// Enforcer holds per-plugin grants. Safe for concurrent use; the zero value
// is ready to use.
type Enforcer struct {
	mu     sync.RWMutex
	grants map[string][]grant
}

// NewEnforcer creates a capability enforcer.
func NewEnforcer() *Enforcer {
	return &Enforcer{grants: make(map[string][]grant)}
}

// SetGrants replaces the grants of plugin. Either every pattern compiles
// and the grants are stored, or nothing changes.
func (e *Enforcer) SetGrants(plugin string, patterns []string) error {
	if plugin == "" {
		return oops.In("capability").Errorf("plugin name cannot be empty")
	}

	compiled := make([]grant, len(patterns))
	for i, p := range patterns {
		if p == "" {
			return oops.In("capability").With("plugin", plugin).Errorf("capability %d: empty pattern", i)
		}
		g, err := glob.Compile(p, '.')
		if err != nil {
			return oops.In("capability").With("plugin", plugin).With("pattern", p).Wrapf(err, "capability %d", i)
		}
		compiled[i] = grant{pattern: p, glob: g}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.grants == nil {
		e.grants = make(map[string][]grant)
	}
	e.grants[plugin] = compiled
	return nil
}

// RemoveGrants forgets plugin. Unknown names are ignored.
func (e *Enforcer) RemoveGrants(plugin string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.grants, plugin)
}

// Grants returns a copy of the patterns granted to plugin, or nil.
func (e *Enforcer) Grants(plugin string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	gs, ok := e.grants[plugin]
	if !ok {
		return nil
	}
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = g.pattern
	}
	return out
}

// Plugins returns the registered plugin names, sorted.
func (e *Enforcer) Plugins() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.grants))
	for name := range e.grants {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Check reports whether plugin holds capability. Unknown plugins and empty
// capabilities are denied.
func (e *Enforcer) Check(plugin, capability string) bool {
	if capability == "" {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, g := range e.grants[plugin] {
		if g.glob.Match(capability) {
			return true
		}
	}
	return false
}

// Require is Check returning a CAPABILITY_DENIED error on refusal.
func (e *Enforcer) Require(plugin, capability string) error {
	if e.Check(plugin, capability) {
		return nil
	}
	return oops.In("capability").
		Code(CodeDenied).
		With("plugin", plugin).
		With("capability", capability).
		Hint("add the capability to the plugin manifest").
		Errorf("plugin %s lacks capability %s", plugin, capability)
}
