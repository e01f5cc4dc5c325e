// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package lua

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/wizardmod/wizard/internal/plugin/hostfunc"
	"github.com/wizardmod/wizard/pkg/wizard"
)

// errStateClosed is returned by calls into an unloaded plugin.
var errStateClosed = errors.New("lua state closed")

// Lifecycle callbacks a script may define as globals.
const (
	fnOnLoad      = "on_load"
	fnOnStart     = "on_start"
	fnOnAllLoaded = "on_all_loaded"
	fnOnPause     = "on_pause"
	fnOnUnpause   = "on_unpause"
	fnOnEnd       = "on_end"
	fnOnUnload    = "on_unload"
)

// hookFunction is the global a script defines to listen to h,
// e.g. on_client_command.
func hookFunction(h wizard.Hook) string {
	return "on_" + h.String()
}

// scriptPlugin adapts one persistent Lua state to wizard.Plugin.
// Every call into the state holds mu; gopher-lua states are not goroutine safe.
type scriptPlugin struct {
	name    string
	logger  *slog.Logger
	binding *hostfunc.Binding
	hooks   wizard.HookSet
	timeout time.Duration

	mu sync.Mutex
	L  *lua.LState
}

var (
	_ wizard.Plugin         = (*scriptPlugin)(nil)
	_ wizard.ServerListener = (*scriptPlugin)(nil)
	_ wizard.ClientListener = (*scriptPlugin)(nil)
	_ wizard.HookFilter     = (*scriptPlugin)(nil)
)

func newScriptPlugin(name string, L *lua.LState, binding *hostfunc.Binding, logger *slog.Logger, timeout time.Duration) *scriptPlugin {
	p := &scriptPlugin{name: name, logger: logger, binding: binding, timeout: timeout, L: L}
	for _, h := range wizard.Hooks() {
		if _, ok := L.GetGlobal(hookFunction(h)).(*lua.LFunction); ok {
			p.hooks = p.hooks.With(h)
		}
	}
	return p
}

// Hooks reports the hooks the script defines a function for.
func (p *scriptPlugin) Hooks() wizard.HookSet {
	return p.hooks
}

// call invokes the global fn with the arguments build creates. A missing
// function yields nil results. Lua errors and context expiry come back as
// errors.
func (p *scriptPlugin) call(ctx context.Context, fn string, nret int, build func(L *lua.LState) []lua.LValue) ([]lua.LValue, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.L == nil {
		return nil, errStateClosed
	}
	rets := make([]lua.LValue, nret)
	for i := range rets {
		rets[i] = lua.LNil
	}
	f, ok := p.L.GetGlobal(fn).(*lua.LFunction)
	if !ok {
		return rets, nil
	}
	var args []lua.LValue
	if build != nil {
		args = build(p.L)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	p.L.SetContext(ctx)
	defer p.L.RemoveContext()

	if err := p.L.CallByParam(lua.P{Fn: f, NRet: nret, Protect: true}, args...); err != nil {
		return nil, oops.In("lua").With("plugin", p.name).With("function", fn).Wrap(err)
	}
	for i := range rets {
		rets[i] = p.L.Get(-nret + i)
	}
	p.L.Pop(nret)
	return rets, nil
}

// lifecycle runs a fallible callback. Returning false, optionally with a
// message, fails it.
func (p *scriptPlugin) lifecycle(ctx context.Context, fn string) error {
	rets, err := p.call(ctx, fn, 2, nil)
	if err != nil {
		return err
	}
	if rets[0] == lua.LFalse {
		msg := fmt.Sprintf("%s returned false", fn)
		if s, ok := rets[1].(lua.LString); ok && s != "" {
			msg = string(s)
		}
		return oops.In("lua").With("plugin", p.name).With("function", fn).Errorf("%s", msg)
	}
	return nil
}

// notify runs an infallible callback; errors are logged.
func (p *scriptPlugin) notify(ctx context.Context, fn string) {
	if _, err := p.call(ctx, fn, 0, nil); err != nil {
		p.log().WarnContext(ctx, "lua callback failed", "function", fn, "error", err)
	}
}

func (p *scriptPlugin) log() *slog.Logger {
	if b := p.binding.Bridge(); b != nil {
		return b.Logger()
	}
	return p.logger
}

func (p *scriptPlugin) OnLoad(ctx context.Context, host wizard.HostBridge) error {
	p.binding.Bind(host)
	return p.lifecycle(ctx, fnOnLoad)
}

func (p *scriptPlugin) OnStart(ctx context.Context) error   { return p.lifecycle(ctx, fnOnStart) }
func (p *scriptPlugin) OnAllLoaded(ctx context.Context)     { p.notify(ctx, fnOnAllLoaded) }
func (p *scriptPlugin) OnPause(ctx context.Context)         { p.notify(ctx, fnOnPause) }
func (p *scriptPlugin) OnUnpause(ctx context.Context)       { p.notify(ctx, fnOnUnpause) }
func (p *scriptPlugin) OnEnd(ctx context.Context) error     { return p.lifecycle(ctx, fnOnEnd) }
func (p *scriptPlugin) OnUnload(ctx context.Context) error  { return p.lifecycle(ctx, fnOnUnload) }

// hook calls on_<hook>(args) and copies the table back into args.
// Errors panic so the dispatcher isolates them like any listener fault.
func (p *scriptPlugin) hook(ctx context.Context, h wizard.Hook, args hookArgs) wizard.Result {
	var table *lua.LTable
	rets, err := p.call(ctx, hookFunction(h), 1, func(L *lua.LState) []lua.LValue {
		if args == nil {
			return nil
		}
		table = args.toTable(L)
		return []lua.LValue{table}
	})
	if err != nil {
		panic(err)
	}
	if table != nil {
		args.fromTable(table)
	}
	return toResult(rets[0])
}

func (p *scriptPlugin) OnConfigsExecuted(ctx context.Context) wizard.Result {
	return p.hook(ctx, wizard.HookConfigsExecuted, nil)
}

func (p *scriptPlugin) OnLevelInit(ctx context.Context, a *wizard.LevelArgs) wizard.Result {
	return p.hook(ctx, wizard.HookLevelInit, levelArgs{a})
}

func (p *scriptPlugin) OnLevelStart(ctx context.Context) wizard.Result {
	return p.hook(ctx, wizard.HookLevelStart, nil)
}

func (p *scriptPlugin) OnLevelShutdown(ctx context.Context) wizard.Result {
	return p.hook(ctx, wizard.HookLevelShutdown, nil)
}

func (p *scriptPlugin) OnEntityCreated(ctx context.Context, a *wizard.EntityArgs) wizard.Result {
	return p.hook(ctx, wizard.HookEntityCreated, entityArgs{a})
}

func (p *scriptPlugin) OnEntityDestroyed(ctx context.Context, a *wizard.EntityArgs) wizard.Result {
	return p.hook(ctx, wizard.HookEntityDestroyed, entityArgs{a})
}

// OnClientConnect rejects when the script returns false. A second string
// return value, or args.reject, is the reason.
func (p *scriptPlugin) OnClientConnect(ctx context.Context, a *wizard.ConnectArgs) bool {
	args := connectArgs{a}
	var table *lua.LTable
	rets, err := p.call(ctx, hookFunction(wizard.HookClientConnect), 2, func(L *lua.LState) []lua.LValue {
		table = args.toTable(L)
		return []lua.LValue{table}
	})
	if err != nil {
		panic(err)
	}
	if table != nil {
		args.fromTable(table)
	}
	if rets[0] != lua.LFalse {
		return true
	}
	if s, ok := rets[1].(lua.LString); ok && s != "" {
		a.Reject = string(s)
	}
	return false
}

func (p *scriptPlugin) OnClientConnected(ctx context.Context, a *wizard.ClientArgs) wizard.Result {
	return p.hook(ctx, wizard.HookClientConnected, clientArgs{a})
}

func (p *scriptPlugin) OnClientDisconnect(ctx context.Context, a *wizard.ClientArgs) wizard.Result {
	return p.hook(ctx, wizard.HookClientDisconnect, clientArgs{a})
}

func (p *scriptPlugin) OnClientDisconnected(ctx context.Context, a *wizard.ClientArgs) wizard.Result {
	return p.hook(ctx, wizard.HookClientDisconnected, clientArgs{a})
}

func (p *scriptPlugin) OnClientPutInServer(ctx context.Context, a *wizard.PutInServerArgs) wizard.Result {
	return p.hook(ctx, wizard.HookClientPutInServer, putInServerArgs{a})
}

func (p *scriptPlugin) OnClientActive(ctx context.Context, a *wizard.ActiveArgs) wizard.Result {
	return p.hook(ctx, wizard.HookClientActive, activeArgs{a})
}

func (p *scriptPlugin) OnClientSettingsChanged(ctx context.Context, a *wizard.ClientArgs) wizard.Result {
	return p.hook(ctx, wizard.HookClientSettingsChanged, clientArgs{a})
}

func (p *scriptPlugin) OnClientAuthorized(ctx context.Context, a *wizard.AuthArgs) wizard.Result {
	return p.hook(ctx, wizard.HookClientAuthorized, authArgs{a})
}

func (p *scriptPlugin) OnClientCommand(ctx context.Context, a *wizard.CommandArgs) wizard.Result {
	return p.hook(ctx, wizard.HookClientCommand, commandArgs{a})
}

// close releases the Lua state. Later calls fail with errStateClosed.
func (p *scriptPlugin) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.L != nil {
		p.L.Close()
		p.L = nil
	}
}
