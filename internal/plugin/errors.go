// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package plugin

import (
	"strings"

	"github.com/samber/oops"
)

// Error codes for plugin management.
const (
	CodeUnresolvedDependency = "UNRESOLVED_DEPENDENCY"
	CodeCyclicDependency     = "CYCLIC_DEPENDENCY"
	CodeLoadFailed           = "LOAD_FAILED"
	CodeDependencyFailed     = "DEPENDENCY_FAILED"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeDuplicateName        = "DUPLICATE_NAME"
	CodePluginNotFound       = "PLUGIN_NOT_FOUND"
	CodeInvalidManifest      = "INVALID_MANIFEST"
	CodeConflictingPlugin    = "CONFLICTING_PLUGIN"
)

func errs() oops.OopsErrorBuilder {
	return oops.In("plugin")
}

// ErrUnresolvedDependency reports a required dependency that is missing or
// whose version does not satisfy the declared constraint.
func ErrUnresolvedDependency(plugin, dependency, constraint string) error {
	b := errs().Code(CodeUnresolvedDependency).
		With("plugin", plugin).
		With("dependency", dependency)
	if constraint != "" {
		return b.With("constraint", constraint).
			Errorf("plugin %s requires %s %s", plugin, dependency, constraint)
	}
	return b.Errorf("plugin %s requires missing plugin %s", plugin, dependency)
}

// ErrCyclicDependency reports the members of a dependency cycle in path order.
func ErrCyclicDependency(members []string) error {
	return errs().Code(CodeCyclicDependency).
		With("members", members).
		Errorf("cyclic dependency: %s -> %s", strings.Join(members, " -> "), members[0])
}

// ErrLoadFailed wraps a failure raised while instantiating, loading or
// starting a plugin.
func ErrLoadFailed(plugin string, cause error) error {
	return errs().Code(CodeLoadFailed).
		With("plugin", plugin).
		Wrapf(cause, "plugin %s failed to load", plugin)
}

// ErrDependencyFailed reports a plugin skipped because a dependency failed.
func ErrDependencyFailed(plugin, dependency string) error {
	return errs().Code(CodeDependencyFailed).
		With("plugin", plugin).
		With("dependency", dependency).
		Errorf("plugin %s skipped: dependency %s failed", plugin, dependency)
}

// ErrConflictingPlugin reports a plugin that cannot run alongside other.
func ErrConflictingPlugin(plugin, other, reason string) error {
	b := errs().Code(CodeConflictingPlugin).
		With("plugin", plugin).
		With("conflict", other)
	if reason != "" {
		return b.With("reason", reason).
			Errorf("plugin %s conflicts with %s: %s", plugin, other, reason)
	}
	return b.Errorf("plugin %s conflicts with %s", plugin, other)
}

// ErrInvalidTransition reports an illegal lifecycle state change.
func ErrInvalidTransition(plugin string, from, to State) error {
	return errs().Code(CodeInvalidTransition).
		With("plugin", plugin).
		With("from", from.String()).
		With("to", to.String()).
		Errorf("plugin %s cannot move from %s to %s", plugin, from, to)
}

// ErrDuplicateName reports a second plugin claiming a taken name.
func ErrDuplicateName(name string) error {
	return errs().Code(CodeDuplicateName).
		With("plugin", name).
		Errorf("plugin name %s already in use", name)
}

// ErrPluginNotFound reports a lookup miss by id or name.
func ErrPluginNotFound(key any) error {
	return errs().Code(CodePluginNotFound).
		With("plugin", key).
		Errorf("plugin %v not found", key)
}

// ErrInvalidManifest wraps a manifest parse or validation failure.
func ErrInvalidManifest(path string, cause error) error {
	return errs().Code(CodeInvalidManifest).
		With("path", path).
		Hint("run `wizard validate` on the plugin directory").
		Wrapf(cause, "invalid manifest %s", path)
}
