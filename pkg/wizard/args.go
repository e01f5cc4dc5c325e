// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package wizard

import "slices"

// Hook arguments. Every listener receives its own copy; edits only survive
// when the listener returns Changed.

// LevelArgs accompanies HookLevelInit.
type LevelArgs struct {
	MapName string `json:"map_name"`
}

// Clone returns a copy of a.
func (a *LevelArgs) Clone() *LevelArgs {
	c := *a
	return &c
}

// EntityArgs accompanies HookEntityCreated and HookEntityDestroyed.
type EntityArgs struct {
	Entity    Entity `json:"entity"`
	ClassName string `json:"class_name"`
}

// Clone returns a copy of a.
func (a *EntityArgs) Clone() *EntityArgs {
	c := *a
	return &c
}

// ConnectArgs accompanies HookClientConnect. A listener rejecting the
// connection sets Reject to the message shown to the client.
type ConnectArgs struct {
	Entity  Entity `json:"entity"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Reject  string `json:"reject,omitempty"`
}

// Clone returns a copy of a.
func (a *ConnectArgs) Clone() *ConnectArgs {
	c := *a
	return &c
}

// ClientArgs accompanies client hooks that only carry the client entity.
type ClientArgs struct {
	Entity Entity `json:"entity"`
}

// Clone returns a copy of a.
func (a *ClientArgs) Clone() *ClientArgs {
	c := *a
	return &c
}

// PutInServerArgs accompanies HookClientPutInServer.
type PutInServerArgs struct {
	Entity     Entity `json:"entity"`
	PlayerName string `json:"player_name"`
}

// Clone returns a copy of a.
func (a *PutInServerArgs) Clone() *PutInServerArgs {
	c := *a
	return &c
}

// ActiveArgs accompanies HookClientActive.
type ActiveArgs struct {
	Entity Entity `json:"entity"`
	// Load is true when the client became active after a level load.
	Load bool `json:"load"`
}

// Clone returns a copy of a.
func (a *ActiveArgs) Clone() *ActiveArgs {
	c := *a
	return &c
}

// AuthArgs accompanies HookClientAuthorized.
type AuthArgs struct {
	Entity Entity `json:"entity"`
	AuthID string `json:"auth_id"`
}

// Clone returns a copy of a.
func (a *AuthArgs) Clone() *AuthArgs {
	c := *a
	return &c
}

// CommandArgs accompanies HookClientCommand.
type CommandArgs struct {
	Entity Entity   `json:"entity"`
	Args   []string `json:"args"`
}

// Clone returns a deep copy of a.
func (a *CommandArgs) Clone() *CommandArgs {
	c := *a
	c.Args = slices.Clone(a.Args)
	return &c
}

// Command returns the first argument, or "" for an empty command.
func (a *CommandArgs) Command() string {
	if len(a.Args) == 0 {
		return ""
	}
	return a.Args[0]
}

// Empty hooks (configs executed, level start/shutdown) carry no arguments;
// the dispatcher uses NoArgs for them.

// NoArgs is the argument type of hooks without payload.
type NoArgs struct{}

// Clone returns a.
func (a *NoArgs) Clone() *NoArgs {
	return &NoArgs{}
}
