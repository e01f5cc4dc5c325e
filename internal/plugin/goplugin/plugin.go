// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package goplugin

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/wizardmod/wizard/pkg/pluginsdk"
	"github.com/wizardmod/wizard/pkg/wizard"
)

// HandshakeConfig is shared with plugins through pkg/pluginsdk.
var HandshakeConfig = pluginsdk.HandshakeConfig

// PluginMap is the go-plugin plugin map used by the host.
var PluginMap = pluginsdk.PluginSet(nil)

// remote is the host side of the plugin protocol, implemented by
// *pluginsdk.Client.
type remote interface {
	Describe(ctx context.Context) (wizard.HookSet, error)
	Load(ctx context.Context, host wizard.HostBridge) error
	Lifecycle(ctx context.Context, ev pluginsdk.Event) error
	Hook(ctx context.Context, h wizard.Hook, args any) (*pluginsdk.HookReply, error)
	Close() error
}

var (
	_ wizard.ServerListener = (*remotePlugin)(nil)
	_ wizard.ClientListener = (*remotePlugin)(nil)
	_ wizard.HookFilter     = (*remotePlugin)(nil)
)

// remotePlugin forwards lifecycle callbacks and hooks to a plugin process.
type remotePlugin struct {
	name    string
	remote  remote
	hooks   wizard.HookSet
	timeout time.Duration

	mu     sync.RWMutex
	logger *slog.Logger
}

func (p *remotePlugin) Hooks() wizard.HookSet { return p.hooks }

func (p *remotePlugin) log() *slog.Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.logger
}

func (p *remotePlugin) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

func (p *remotePlugin) OnLoad(ctx context.Context, host wizard.HostBridge) error {
	p.mu.Lock()
	p.logger = host.Logger()
	p.mu.Unlock()

	ctx, cancel := p.bound(ctx)
	defer cancel()
	if err := p.remote.Load(ctx, host); err != nil {
		return oops.In("goplugin").With("plugin", p.name).Wrap(err)
	}
	return nil
}

func (p *remotePlugin) lifecycle(ctx context.Context, ev pluginsdk.Event) error {
	ctx, cancel := p.bound(ctx)
	defer cancel()
	if err := p.remote.Lifecycle(ctx, ev); err != nil {
		return oops.In("goplugin").With("plugin", p.name).Wrap(err)
	}
	return nil
}

func (p *remotePlugin) notify(ctx context.Context, ev pluginsdk.Event) {
	if err := p.lifecycle(ctx, ev); err != nil {
		p.log().Warn("lifecycle callback failed", "event", string(ev), "error", err)
	}
}

func (p *remotePlugin) OnStart(ctx context.Context) error { return p.lifecycle(ctx, pluginsdk.EventStart) }
func (p *remotePlugin) OnAllLoaded(ctx context.Context)   { p.notify(ctx, pluginsdk.EventAllLoaded) }
func (p *remotePlugin) OnPause(ctx context.Context)       { p.notify(ctx, pluginsdk.EventPause) }
func (p *remotePlugin) OnUnpause(ctx context.Context)     { p.notify(ctx, pluginsdk.EventUnpause) }
func (p *remotePlugin) OnEnd(ctx context.Context) error   { return p.lifecycle(ctx, pluginsdk.EventEnd) }

func (p *remotePlugin) OnUnload(ctx context.Context) error {
	err := p.lifecycle(ctx, pluginsdk.EventUnload)
	_ = p.remote.Close()
	return err
}

// hook delivers h and copies edited arguments back for Changed results.
// Transport and plugin faults panic; the dispatcher isolates them.
func (p *remotePlugin) hook(ctx context.Context, h wizard.Hook, args any) *pluginsdk.HookReply {
	ctx, cancel := p.bound(ctx)
	defer cancel()
	reply, err := p.remote.Hook(ctx, h, args)
	if err != nil {
		panic(oops.In("goplugin").With("plugin", p.name).With("hook", h.String()).Wrap(err))
	}
	readBack := reply.Result == wizard.Changed || h == wizard.HookClientConnect
	if readBack && args != nil && len(reply.Args) > 0 {
		if err := json.Unmarshal(reply.Args, args); err != nil {
			panic(oops.In("goplugin").With("plugin", p.name).With("hook", h.String()).Wrapf(err, "decode arguments"))
		}
	}
	return reply
}

func (p *remotePlugin) OnConfigsExecuted(ctx context.Context) wizard.Result {
	return p.hook(ctx, wizard.HookConfigsExecuted, nil).Result
}

func (p *remotePlugin) OnLevelInit(ctx context.Context, args *wizard.LevelArgs) wizard.Result {
	return p.hook(ctx, wizard.HookLevelInit, args).Result
}

func (p *remotePlugin) OnLevelStart(ctx context.Context) wizard.Result {
	return p.hook(ctx, wizard.HookLevelStart, nil).Result
}

func (p *remotePlugin) OnLevelShutdown(ctx context.Context) wizard.Result {
	return p.hook(ctx, wizard.HookLevelShutdown, nil).Result
}

func (p *remotePlugin) OnEntityCreated(ctx context.Context, args *wizard.EntityArgs) wizard.Result {
	return p.hook(ctx, wizard.HookEntityCreated, args).Result
}

func (p *remotePlugin) OnEntityDestroyed(ctx context.Context, args *wizard.EntityArgs) wizard.Result {
	return p.hook(ctx, wizard.HookEntityDestroyed, args).Result
}

func (p *remotePlugin) OnClientConnect(ctx context.Context, args *wizard.ConnectArgs) bool {
	return p.hook(ctx, wizard.HookClientConnect, args).Accept
}

func (p *remotePlugin) OnClientConnected(ctx context.Context, args *wizard.ClientArgs) wizard.Result {
	return p.hook(ctx, wizard.HookClientConnected, args).Result
}

func (p *remotePlugin) OnClientDisconnect(ctx context.Context, args *wizard.ClientArgs) wizard.Result {
	return p.hook(ctx, wizard.HookClientDisconnect, args).Result
}

func (p *remotePlugin) OnClientDisconnected(ctx context.Context, args *wizard.ClientArgs) wizard.Result {
	return p.hook(ctx, wizard.HookClientDisconnected, args).Result
}

func (p *remotePlugin) OnClientPutInServer(ctx context.Context, args *wizard.PutInServerArgs) wizard.Result {
	return p.hook(ctx, wizard.HookClientPutInServer, args).Result
}

func (p *remotePlugin) OnClientActive(ctx context.Context, args *wizard.ActiveArgs) wizard.Result {
	return p.hook(ctx, wizard.HookClientActive, args).Result
}

func (p *remotePlugin) OnClientSettingsChanged(ctx context.Context, args *wizard.ClientArgs) wizard.Result {
	return p.hook(ctx, wizard.HookClientSettingsChanged, args).Result
}

func (p *remotePlugin) OnClientAuthorized(ctx context.Context, args *wizard.AuthArgs) wizard.Result {
	return p.hook(ctx, wizard.HookClientAuthorized, args).Result
}

func (p *remotePlugin) OnClientCommand(ctx context.Context, args *wizard.CommandArgs) wizard.Result {
	return p.hook(ctx, wizard.HookClientCommand, args).Result
}
