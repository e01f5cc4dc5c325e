// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

// Package builtin holds the native plugins compiled into the wizard binary.
package builtin

import "github.com/wizardmod/wizard/pkg/wizard"

// Options configures the built-in plugins.
type Options struct {
	// BannedAddresses are glob patterns or CIDR prefixes rejected at connect.
	BannedAddresses []string
	// Admins are the auth ids allowed to ban clients at runtime.
	Admins []string
}

// Modules returns the static registrations of every built-in plugin.
func Modules(opts Options) []wizard.Module {
	return []wizard.Module{
		BanlistModule(opts.BannedAddresses, opts.Admins),
	}
}
