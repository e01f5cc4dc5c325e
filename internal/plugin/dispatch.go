// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wizardmod/wizard/pkg/wizard"
)

// Outcome is the folded result of one hook chain.
type Outcome[A any] struct {
	// Args are the arguments the engine should act on: the last Changed
	// copy, or the originals after a Stop.
	Args    A
	Result  wizard.Result
	Changed bool
	Handled bool
	Stopped bool
}

// Proceed reports whether the engine should run its default action.
func (o Outcome[A]) Proceed() bool {
	return !o.Handled || o.Stopped
}

// ConnectOutcome is the result of a client connect chain.
type ConnectOutcome struct {
	Accepted bool
	// Reason is the rejection message shown to the client.
	Reason     string
	RejectedBy wizard.PluginID
}

// Dispatcher delivers engine hooks to running plugins in load order.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger

	mu       sync.Mutex
	rejected map[wizard.Entity]struct{}
}

// NewDispatcher creates a dispatcher over reg.
func NewDispatcher(reg *Registry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		logger:   logger,
		rejected: make(map[wizard.Entity]struct{}),
	}
}

// fold runs call on every listener of hook. Each listener gets a private
// copy of the current arguments; only Changed publishes it.
func fold[A interface{ Clone() A }](
	ctx context.Context,
	d *Dispatcher,
	hook wizard.Hook,
	args A,
	call func(context.Context, wizard.Plugin, A) wizard.Result,
) Outcome[A] {
	ctx, span := tracer.Start(ctx, "plugin.dispatch", trace.WithAttributes(
		attribute.String("hook", hook.String()),
	))
	defer span.End()
	start := time.Now()

	out := Outcome[A]{Args: args, Result: wizard.Continue}
	for _, l := range d.registry.Listeners(hook) {
		cp := out.Args.Clone()
		r := d.invoke(ctx, l, hook, func() wizard.Result { return call(ctx, l.Instance, cp) })
		switch r {
		case wizard.Changed:
			out.Args = cp
			out.Changed = true
		case wizard.Handled:
			out.Handled = true
		case wizard.Stop:
			out = Outcome[A]{Args: args, Result: wizard.Stop, Stopped: true}
			span.SetAttributes(attribute.String("stopped_by", l.Descriptor.Name))
		}
		if out.Stopped {
			break
		}
	}

	switch {
	case out.Stopped:
	case out.Handled:
		out.Result = wizard.Handled
	case out.Changed:
		out.Result = wizard.Changed
	}
	span.SetAttributes(attribute.String("result", out.Result.String()))
	RecordDispatch(hook.String(), out.Result.String(), time.Since(start))
	return out
}

// invoke isolates one listener call: panics and out-of-range results
// become Continue.
func (d *Dispatcher) invoke(ctx context.Context, l Record, hook wizard.Hook, fn func() wizard.Result) (r wizard.Result) {
	defer func() {
		if p := recover(); p != nil {
			d.logger.ErrorContext(ctx, "plugin listener panicked",
				"plugin", l.Descriptor.Name,
				"hook", hook.String(),
				"panic", fmt.Sprint(p))
			RecordListenerFault(l.Descriptor.Name, hook.String())
			r = wizard.Continue
		}
	}()
	r = fn()
	if !r.Valid() {
		d.logger.WarnContext(ctx, "plugin listener returned invalid result",
			"plugin", l.Descriptor.Name,
			"hook", hook.String(),
			"result", uint8(r))
		RecordListenerFault(l.Descriptor.Name, hook.String())
		return wizard.Continue
	}
	return r
}

func server(p wizard.Plugin) wizard.ServerListener { return p.(wizard.ServerListener) }
func client(p wizard.Plugin) wizard.ClientListener { return p.(wizard.ClientListener) }

// ConfigsExecuted fires after the engine executed its configuration files.
func (d *Dispatcher) ConfigsExecuted(ctx context.Context) Outcome[*wizard.NoArgs] {
	return fold(ctx, d, wizard.HookConfigsExecuted, &wizard.NoArgs{},
		func(ctx context.Context, p wizard.Plugin, _ *wizard.NoArgs) wizard.Result {
			return server(p).OnConfigsExecuted(ctx)
		})
}

// LevelInit fires when a map begins loading.
func (d *Dispatcher) LevelInit(ctx context.Context, mapName string) Outcome[*wizard.LevelArgs] {
	return fold(ctx, d, wizard.HookLevelInit, &wizard.LevelArgs{MapName: mapName},
		func(ctx context.Context, p wizard.Plugin, a *wizard.LevelArgs) wizard.Result {
			return server(p).OnLevelInit(ctx, a)
		})
}

// LevelStart fires once the level is live.
func (d *Dispatcher) LevelStart(ctx context.Context) Outcome[*wizard.NoArgs] {
	return fold(ctx, d, wizard.HookLevelStart, &wizard.NoArgs{},
		func(ctx context.Context, p wizard.Plugin, _ *wizard.NoArgs) wizard.Result {
			return server(p).OnLevelStart(ctx)
		})
}

// LevelShutdown fires before the level unloads.
func (d *Dispatcher) LevelShutdown(ctx context.Context) Outcome[*wizard.NoArgs] {
	return fold(ctx, d, wizard.HookLevelShutdown, &wizard.NoArgs{},
		func(ctx context.Context, p wizard.Plugin, _ *wizard.NoArgs) wizard.Result {
			return server(p).OnLevelShutdown(ctx)
		})
}

// EntityCreated fires for each new entity.
func (d *Dispatcher) EntityCreated(ctx context.Context, e wizard.Entity, className string) Outcome[*wizard.EntityArgs] {
	return fold(ctx, d, wizard.HookEntityCreated, &wizard.EntityArgs{Entity: e, ClassName: className},
		func(ctx context.Context, p wizard.Plugin, a *wizard.EntityArgs) wizard.Result {
			return server(p).OnEntityCreated(ctx, a)
		})
}

// EntityDestroyed fires before an entity is removed.
func (d *Dispatcher) EntityDestroyed(ctx context.Context, e wizard.Entity, className string) Outcome[*wizard.EntityArgs] {
	return fold(ctx, d, wizard.HookEntityDestroyed, &wizard.EntityArgs{Entity: e, ClassName: className},
		func(ctx context.Context, p wizard.Plugin, a *wizard.EntityArgs) wizard.Result {
			return server(p).OnEntityDestroyed(ctx, a)
		})
}

// ClientConnect asks every listener whether to admit a client. The first
// listener returning false rejects it and ends the chain. A rejected client
// gets no disconnect hooks until a later connect is accepted.
func (d *Dispatcher) ClientConnect(ctx context.Context, e wizard.Entity, name, address string) ConnectOutcome {
	ctx, span := tracer.Start(ctx, "plugin.dispatch", trace.WithAttributes(
		attribute.String("hook", wizard.HookClientConnect.String()),
	))
	defer span.End()
	start := time.Now()
	args := &wizard.ConnectArgs{Entity: e, Name: name, Address: address}

	for _, l := range d.registry.Listeners(wizard.HookClientConnect) {
		cp := args.Clone()
		accepted := true
		d.invoke(ctx, l, wizard.HookClientConnect, func() wizard.Result {
			accepted = client(l.Instance).OnClientConnect(ctx, cp)
			return wizard.Continue
		})
		if accepted {
			continue
		}

		reason := cp.Reject
		if reason == "" {
			reason = "rejected by " + l.Descriptor.Name
		}
		d.mu.Lock()
		d.rejected[e] = struct{}{}
		d.mu.Unlock()

		span.SetAttributes(attribute.String("rejected_by", l.Descriptor.Name))
		RecordDispatch(wizard.HookClientConnect.String(), "rejected", time.Since(start))
		return ConnectOutcome{Accepted: false, Reason: reason, RejectedBy: l.ID}
	}

	d.mu.Lock()
	delete(d.rejected, e)
	d.mu.Unlock()
	RecordDispatch(wizard.HookClientConnect.String(), "accepted", time.Since(start))
	return ConnectOutcome{Accepted: true, RejectedBy: wizard.NullPlugin}
}

// Rejected reports whether e's last connect attempt was rejected.
func (d *Dispatcher) Rejected(e wizard.Entity) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.rejected[e]
	return ok
}

// ClientConnected fires once an accepted client finished connecting.
func (d *Dispatcher) ClientConnected(ctx context.Context, e wizard.Entity) Outcome[*wizard.ClientArgs] {
	return fold(ctx, d, wizard.HookClientConnected, &wizard.ClientArgs{Entity: e},
		func(ctx context.Context, p wizard.Plugin, a *wizard.ClientArgs) wizard.Result {
			return client(p).OnClientConnected(ctx, a)
		})
}

// ClientDisconnect fires when a client starts disconnecting. Suppressed for
// rejected clients.
func (d *Dispatcher) ClientDisconnect(ctx context.Context, e wizard.Entity) Outcome[*wizard.ClientArgs] {
	args := &wizard.ClientArgs{Entity: e}
	if d.Rejected(e) {
		return Outcome[*wizard.ClientArgs]{Args: args, Result: wizard.Continue}
	}
	return fold(ctx, d, wizard.HookClientDisconnect, args,
		func(ctx context.Context, p wizard.Plugin, a *wizard.ClientArgs) wizard.Result {
			return client(p).OnClientDisconnect(ctx, a)
		})
}

// ClientDisconnected fires after a client left. Suppressed for rejected
// clients, whose rejection is forgotten here.
func (d *Dispatcher) ClientDisconnected(ctx context.Context, e wizard.Entity) Outcome[*wizard.ClientArgs] {
	args := &wizard.ClientArgs{Entity: e}
	d.mu.Lock()
	_, wasRejected := d.rejected[e]
	delete(d.rejected, e)
	d.mu.Unlock()
	if wasRejected {
		return Outcome[*wizard.ClientArgs]{Args: args, Result: wizard.Continue}
	}
	return fold(ctx, d, wizard.HookClientDisconnected, args,
		func(ctx context.Context, p wizard.Plugin, a *wizard.ClientArgs) wizard.Result {
			return client(p).OnClientDisconnected(ctx, a)
		})
}

// ClientPutInServer fires when the client's player spawns.
func (d *Dispatcher) ClientPutInServer(ctx context.Context, e wizard.Entity, playerName string) Outcome[*wizard.PutInServerArgs] {
	return fold(ctx, d, wizard.HookClientPutInServer, &wizard.PutInServerArgs{Entity: e, PlayerName: playerName},
		func(ctx context.Context, p wizard.Plugin, a *wizard.PutInServerArgs) wizard.Result {
			return client(p).OnClientPutInServer(ctx, a)
		})
}

// ClientActive fires when the client becomes active.
func (d *Dispatcher) ClientActive(ctx context.Context, e wizard.Entity, load bool) Outcome[*wizard.ActiveArgs] {
	return fold(ctx, d, wizard.HookClientActive, &wizard.ActiveArgs{Entity: e, Load: load},
		func(ctx context.Context, p wizard.Plugin, a *wizard.ActiveArgs) wizard.Result {
			return client(p).OnClientActive(ctx, a)
		})
}

// ClientSettingsChanged fires when a client's settings change.
func (d *Dispatcher) ClientSettingsChanged(ctx context.Context, e wizard.Entity) Outcome[*wizard.ClientArgs] {
	return fold(ctx, d, wizard.HookClientSettingsChanged, &wizard.ClientArgs{Entity: e},
		func(ctx context.Context, p wizard.Plugin, a *wizard.ClientArgs) wizard.Result {
			return client(p).OnClientSettingsChanged(ctx, a)
		})
}

// ClientAuthorized fires once the client's identity is verified.
func (d *Dispatcher) ClientAuthorized(ctx context.Context, e wizard.Entity, authID string) Outcome[*wizard.AuthArgs] {
	return fold(ctx, d, wizard.HookClientAuthorized, &wizard.AuthArgs{Entity: e, AuthID: authID},
		func(ctx context.Context, p wizard.Plugin, a *wizard.AuthArgs) wizard.Result {
			return client(p).OnClientAuthorized(ctx, a)
		})
}

// ClientCommand fires for each console command a client sends.
func (d *Dispatcher) ClientCommand(ctx context.Context, e wizard.Entity, args []string) Outcome[*wizard.CommandArgs] {
	return fold(ctx, d, wizard.HookClientCommand, &wizard.CommandArgs{Entity: e, Args: slices.Clone(args)},
		func(ctx context.Context, p wizard.Plugin, a *wizard.CommandArgs) wizard.Result {
			return client(p).OnClientCommand(ctx, a)
		})
}
