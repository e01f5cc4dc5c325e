// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package wizard

import (
	"context"
	"log/slog"
)

// Plugin is the lifecycle contract every plugin implements.
//
// The host calls OnLoad, then OnStart. OnEnd and OnUnload are always called
// for a plugin whose OnLoad succeeded, even when OnStart fails.
type Plugin interface {
	// OnLoad hands the plugin its host bridge. An error aborts the load.
	OnLoad(ctx context.Context, host HostBridge) error
	OnStart(ctx context.Context) error
	// OnAllLoaded is called once after the initial batch, or right after
	// OnStart for a late-loaded plugin.
	OnAllLoaded(ctx context.Context)
	OnPause(ctx context.Context)
	OnUnpause(ctx context.Context)
	OnEnd(ctx context.Context) error
	OnUnload(ctx context.Context) error
}

// ServerListener receives engine-level hooks.
type ServerListener interface {
	OnConfigsExecuted(ctx context.Context) Result
	OnLevelInit(ctx context.Context, args *LevelArgs) Result
	OnLevelStart(ctx context.Context) Result
	OnLevelShutdown(ctx context.Context) Result
	OnEntityCreated(ctx context.Context, args *EntityArgs) Result
	OnEntityDestroyed(ctx context.Context, args *EntityArgs) Result
}

// ClientListener receives per-client hooks.
type ClientListener interface {
	// OnClientConnect returns false to reject the client, setting
	// args.Reject to the reason.
	OnClientConnect(ctx context.Context, args *ConnectArgs) bool
	OnClientConnected(ctx context.Context, args *ClientArgs) Result
	OnClientDisconnect(ctx context.Context, args *ClientArgs) Result
	OnClientDisconnected(ctx context.Context, args *ClientArgs) Result
	OnClientPutInServer(ctx context.Context, args *PutInServerArgs) Result
	OnClientActive(ctx context.Context, args *ActiveArgs) Result
	OnClientSettingsChanged(ctx context.Context, args *ClientArgs) Result
	OnClientAuthorized(ctx context.Context, args *AuthArgs) Result
	OnClientCommand(ctx context.Context, args *CommandArgs) Result
}

// HookFilter narrows the hooks a listener is subscribed to. Without it a
// ServerListener gets every server hook and a ClientListener every client hook.
type HookFilter interface {
	Hooks() HookSet
}

// HookSetOf computes the hooks p is subscribed to.
func HookSetOf(p Plugin) HookSet {
	var set HookSet
	if _, ok := p.(ServerListener); ok {
		set |= ServerHooks
	}
	if _, ok := p.(ClientListener); ok {
		set |= ClientHooks
	}
	if f, ok := p.(HookFilter); ok {
		set &= f.Hooks()
	}
	return set
}

// HostBridge is the host surface handed to a plugin in OnLoad.
type HostBridge interface {
	// Self returns the id of the calling plugin.
	Self() PluginID
	// FindPluginByName returns the id of a running plugin, or NullPlugin.
	FindPluginByName(name string) PluginID
	// Logger returns a logger scoped to the calling plugin.
	Logger() *slog.Logger
}

// BasePlugin implements Plugin with no-ops. Embed it and override what you need.
type BasePlugin struct{}

var _ Plugin = BasePlugin{}

func (BasePlugin) OnLoad(context.Context, HostBridge) error { return nil }
func (BasePlugin) OnStart(context.Context) error            { return nil }
func (BasePlugin) OnAllLoaded(context.Context)              {}
func (BasePlugin) OnPause(context.Context)                  {}
func (BasePlugin) OnUnpause(context.Context)                {}
func (BasePlugin) OnEnd(context.Context) error              { return nil }
func (BasePlugin) OnUnload(context.Context) error           { return nil }

// NopServerListener returns Continue from every server hook.
type NopServerListener struct{}

var _ ServerListener = NopServerListener{}

func (NopServerListener) OnConfigsExecuted(context.Context) Result              { return Continue }
func (NopServerListener) OnLevelInit(context.Context, *LevelArgs) Result        { return Continue }
func (NopServerListener) OnLevelStart(context.Context) Result                   { return Continue }
func (NopServerListener) OnLevelShutdown(context.Context) Result                { return Continue }
func (NopServerListener) OnEntityCreated(context.Context, *EntityArgs) Result   { return Continue }
func (NopServerListener) OnEntityDestroyed(context.Context, *EntityArgs) Result { return Continue }

// NopClientListener accepts every connection and returns Continue elsewhere.
type NopClientListener struct{}

var _ ClientListener = NopClientListener{}

func (NopClientListener) OnClientConnect(context.Context, *ConnectArgs) bool              { return true }
func (NopClientListener) OnClientConnected(context.Context, *ClientArgs) Result           { return Continue }
func (NopClientListener) OnClientDisconnect(context.Context, *ClientArgs) Result          { return Continue }
func (NopClientListener) OnClientDisconnected(context.Context, *ClientArgs) Result        { return Continue }
func (NopClientListener) OnClientPutInServer(context.Context, *PutInServerArgs) Result    { return Continue }
func (NopClientListener) OnClientActive(context.Context, *ActiveArgs) Result              { return Continue }
func (NopClientListener) OnClientSettingsChanged(context.Context, *ClientArgs) Result     { return Continue }
func (NopClientListener) OnClientAuthorized(context.Context, *AuthArgs) Result            { return Continue }
func (NopClientListener) OnClientCommand(context.Context, *CommandArgs) Result            { return Continue }
