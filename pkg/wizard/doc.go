// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

// Package wizard is the plugin-facing contract of the Wizard plugin host.
//
// A plugin is any value implementing [Plugin]. It declares its identity with a
// [Descriptor] and opts into engine hooks by also implementing
// [ServerListener] and/or [ClientListener]. Native Go plugins are registered
// with the host as a [Module]; Lua and binary plugins describe themselves in a
// plugin.yaml manifest instead.
//
// Hooks return a [Result] that tells the host how to combine the listener's
// answer with the rest of the chain:
//
//	Continue  proceed with the original action
//	Changed   the arguments were overridden; use the new values
//	Handled   do not perform the original action, keep notifying listeners
//	Stop      end the chain now and perform the original, unmodified action
package wizard
