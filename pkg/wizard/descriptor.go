// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package wizard

import (
	"errors"
	"fmt"
	"regexp"
	"slices"

	"github.com/Masterminds/semver/v3"
)

// Dependency names another plugin that must be running first.
type Dependency struct {
	// Name is the exact, case-sensitive name of the required plugin.
	Name string `json:"name" yaml:"name"`
	// Version is an optional semver constraint such as ">=1.2.0, <2".
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	// Optional dependencies only affect ordering; a missing one is ignored.
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// Conflict names a plugin that cannot run alongside the declaring one.
type Conflict struct {
	Name string `json:"name" yaml:"name"`
	// Version narrows the conflict to matching versions; empty means any.
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	Reason  string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Descriptor is the static metadata of a plugin.
type Descriptor struct {
	Name         string
	Description  string
	Author       string
	Version      string
	URL          string
	Dependencies []Dependency
	Conflicts    []Conflict
}

// maxNameLength is the maximum allowed length for plugin names.
const maxNameLength = 64

// namePattern allows names like "SamplePlugin1" or "Plugin3.SamplePlugin".
var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*$`)

// ValidateName checks a plugin name.
func ValidateName(name string) error {
	if name == "" {
		return errors.New("name is required")
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("name must be %d characters or less, got %d", maxNameLength, len(name))
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("name %q must start with a letter and contain only letters, digits, '.', '_' or '-'", name)
	}
	return nil
}

// Validate checks descriptor constraints.
func (d Descriptor) Validate() error {
	if err := ValidateName(d.Name); err != nil {
		return err
	}
	seen := make(map[string]bool, len(d.Dependencies))
	for i, dep := range d.Dependencies {
		if err := ValidateName(dep.Name); err != nil {
			return fmt.Errorf("dependency %d: %w", i, err)
		}
		if dep.Name == d.Name {
			return fmt.Errorf("dependency %d: plugin %q cannot depend on itself", i, d.Name)
		}
		if seen[dep.Name] {
			return fmt.Errorf("dependency %d: %q listed twice", i, dep.Name)
		}
		seen[dep.Name] = true
		if err := validateConstraint(dep.Version); err != nil {
			return fmt.Errorf("dependency %d: %w", i, err)
		}
	}
	for i, c := range d.Conflicts {
		if err := ValidateName(c.Name); err != nil {
			return fmt.Errorf("conflict %d: %w", i, err)
		}
		if c.Name == d.Name {
			return fmt.Errorf("conflict %d: plugin %q cannot conflict with itself", i, d.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("conflict %d: %q is also a dependency", i, c.Name)
		}
		if err := validateConstraint(c.Version); err != nil {
			return fmt.Errorf("conflict %d: %w", i, err)
		}
	}
	return nil
}

func validateConstraint(constraint string) error {
	if constraint == "" {
		return nil
	}
	if _, err := semver.NewConstraint(constraint); err != nil {
		return fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}
	return nil
}

// DependencyNames returns the declared dependency names in order.
func (d Descriptor) DependencyNames() []string {
	names := make([]string, len(d.Dependencies))
	for i, dep := range d.Dependencies {
		names[i] = dep.Name
	}
	return names
}

// Clone returns a deep copy of d.
func (d Descriptor) Clone() Descriptor {
	d.Dependencies = slices.Clone(d.Dependencies)
	d.Conflicts = slices.Clone(d.Conflicts)
	return d
}

// Module is the static registration of a native Go plugin.
type Module struct {
	Descriptor Descriptor
	// Capabilities lists the host-bridge grants for the plugin.
	// Nil grants everything; native code is trusted.
	Capabilities []string
	// New creates a fresh plugin instance. It is called once per load.
	New func() Plugin
}
