// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package wizard

import (
	"math/bits"
	"strings"
)

// Hook identifies an engine extension point.
type Hook uint8

// Engine hooks. Server hooks first, then client hooks.
const (
	HookConfigsExecuted Hook = iota
	HookLevelInit
	HookLevelStart
	HookLevelShutdown
	HookEntityCreated
	HookEntityDestroyed
	HookClientConnect
	HookClientConnected
	HookClientDisconnect
	HookClientDisconnected
	HookClientPutInServer
	HookClientActive
	HookClientSettingsChanged
	HookClientAuthorized
	HookClientCommand

	hookCount
)

var hookNames = [hookCount]string{
	HookConfigsExecuted:       "configs_executed",
	HookLevelInit:             "level_init",
	HookLevelStart:            "level_start",
	HookLevelShutdown:         "level_shutdown",
	HookEntityCreated:         "entity_created",
	HookEntityDestroyed:       "entity_destroyed",
	HookClientConnect:         "client_connect",
	HookClientConnected:       "client_connected",
	HookClientDisconnect:      "client_disconnect",
	HookClientDisconnected:    "client_disconnected",
	HookClientPutInServer:     "client_put_in_server",
	HookClientActive:          "client_active",
	HookClientSettingsChanged: "client_settings_changed",
	HookClientAuthorized:      "client_authorized",
	HookClientCommand:         "client_command",
}

// String returns the snake_case hook name, e.g. "client_connect".
func (h Hook) String() string {
	if h >= hookCount {
		return "unknown"
	}
	return hookNames[h]
}

// Hooks returns every hook in declaration order.
func Hooks() []Hook {
	all := make([]Hook, 0, hookCount)
	for h := range hookCount {
		all = append(all, h)
	}
	return all
}

// ParseHook looks up a hook by its snake_case name.
func ParseHook(name string) (Hook, bool) {
	for h, n := range hookNames {
		if n == name {
			return Hook(h), true
		}
	}
	return 0, false
}

// HookSet is a bit set of hooks a plugin listens to.
type HookSet uint32

// Hook sets for the two listener capabilities.
const (
	ServerHooks HookSet = 1<<HookConfigsExecuted | 1<<HookLevelInit | 1<<HookLevelStart |
		1<<HookLevelShutdown | 1<<HookEntityCreated | 1<<HookEntityDestroyed
	ClientHooks HookSet = 1<<HookClientConnect | 1<<HookClientConnected | 1<<HookClientDisconnect |
		1<<HookClientDisconnected | 1<<HookClientPutInServer | 1<<HookClientActive |
		1<<HookClientSettingsChanged | 1<<HookClientAuthorized | 1<<HookClientCommand
)

// NewHookSet builds a set from individual hooks.
func NewHookSet(hooks ...Hook) HookSet {
	var s HookSet
	for _, h := range hooks {
		s = s.With(h)
	}
	return s
}

// Has reports whether h is in the set.
func (s HookSet) Has(h Hook) bool {
	return h < hookCount && s&(1<<h) != 0
}

// With returns the set with h added.
func (s HookSet) With(h Hook) HookSet {
	if h >= hookCount {
		return s
	}
	return s | 1<<h
}

// Len returns the number of hooks in the set.
func (s HookSet) Len() int {
	return bits.OnesCount32(uint32(s))
}

// Slice returns the hooks in declaration order.
func (s HookSet) Slice() []Hook {
	out := make([]Hook, 0, s.Len())
	for h := range hookCount {
		if s.Has(h) {
			out = append(out, h)
		}
	}
	return out
}

// String renders the set as a comma separated list of hook names.
func (s HookSet) String() string {
	names := make([]string, 0, s.Len())
	for _, h := range s.Slice() {
		names = append(names, h.String())
	}
	return "[" + strings.Join(names, ",") + "]"
}
