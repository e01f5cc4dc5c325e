// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

// Package hostfunc provides host functions to Lua plugins.
//
// Host functions expose host capabilities to plugins in a controlled way.
// Functions that reach other plugins or shared storage require capability checks.
package hostfunc

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/oklog/ulid/v2"
	lua "github.com/yuin/gopher-lua"

	"github.com/wizardmod/wizard/internal/plugin/capability"
	"github.com/wizardmod/wizard/pkg/wizard"
)

// GlobalName is the Lua global holding the host function table.
const GlobalName = "wizard"

// Capabilities checked by host functions.
const (
	CapKVRead  = "kv.read"
	CapKVWrite = "kv.write"
)

// KVStore provides namespaced key-value storage.
type KVStore interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Set(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace, key string) error
}

// Binding ties one Lua state to its plugin. The host bridge arrives in
// OnLoad, after the plugin code already ran.
type Binding struct {
	Name string

	mu     sync.RWMutex
	bridge wizard.HostBridge
}

// NewBinding creates an unbound binding for plugin name.
func NewBinding(name string) *Binding {
	return &Binding{Name: name}
}

// Bind sets the host bridge.
func (b *Binding) Bind(bridge wizard.HostBridge) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bridge = bridge
}

// Bridge returns the host bridge, or nil before OnLoad.
func (b *Binding) Bridge() wizard.HostBridge {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bridge
}

// Functions provides host functions to Lua plugins.
type Functions struct {
	kvStore  KVStore
	enforcer *capability.Enforcer
	logger   *slog.Logger
}

// Option configures Functions.
type Option func(*Functions)

// WithLogger sets the logger used before a plugin is bound.
func WithLogger(l *slog.Logger) Option {
	return func(f *Functions) {
		f.logger = l
	}
}

// New creates host functions with dependencies.
// Panics if enforcer is nil.
func New(kv KVStore, enforcer *capability.Enforcer, opts ...Option) *Functions {
	if enforcer == nil {
		panic("hostfunc.New: enforcer cannot be nil")
	}
	f := &Functions{kvStore: kv, enforcer: enforcer, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Register installs the wizard table in ls for the plugin behind b.
func (f *Functions) Register(ls *lua.LState, b *Binding) {
	mod := ls.NewTable()

	ls.SetField(mod, "CONTINUE", lua.LNumber(wizard.Continue))
	ls.SetField(mod, "CHANGED", lua.LNumber(wizard.Changed))
	ls.SetField(mod, "HANDLED", lua.LNumber(wizard.Handled))
	ls.SetField(mod, "STOP", lua.LNumber(wizard.Stop))

	ls.SetField(mod, "log", ls.NewFunction(f.logFn(b)))
	ls.SetField(mod, "new_request_id", ls.NewFunction(newRequestIDFn))
	ls.SetField(mod, "self", ls.NewFunction(selfFn(b)))

	ls.SetField(mod, "find_plugin", ls.NewFunction(f.wrap(b, capability.PluginLookup, findPluginFn(b))))
	ls.SetField(mod, "plugins", ls.NewFunction(f.wrap(b, capability.PluginList, pluginsFn(b))))

	ls.SetField(mod, "kv_get", ls.NewFunction(f.wrap(b, CapKVRead, f.kvGetFn(b.Name))))
	ls.SetField(mod, "kv_set", ls.NewFunction(f.wrap(b, CapKVWrite, f.kvSetFn(b.Name))))
	ls.SetField(mod, "kv_delete", ls.NewFunction(f.wrap(b, CapKVWrite, f.kvDeleteFn(b.Name))))

	ls.SetGlobal(GlobalName, mod)
}

// wrap returns nil plus an error message when the plugin lacks capName.
func (f *Functions) wrap(b *Binding, capName string, fn lua.LGFunction) lua.LGFunction {
	return func(L *lua.LState) int {
		if !f.enforcer.Check(b.Name, capName) {
			f.pluginLogger(b).Warn("capability denied", "capability", capName)
			return pushError(L, "capability denied: "+b.Name+" requires "+capName)
		}
		return fn(L)
	}
}

func (f *Functions) pluginLogger(b *Binding) *slog.Logger {
	if bridge := b.Bridge(); bridge != nil {
		return bridge.Logger()
	}
	return f.logger.With("plugin", b.Name)
}

func (f *Functions) logFn(b *Binding) lua.LGFunction {
	return func(L *lua.LState) int {
		level := L.CheckString(1)
		message := L.CheckString(2)

		logger := f.pluginLogger(b)
		ctx := luaContext(L)
		switch level {
		case "debug":
			logger.DebugContext(ctx, message)
		case "info":
			logger.InfoContext(ctx, message)
		case "warn":
			logger.WarnContext(ctx, message)
		case "error":
			logger.ErrorContext(ctx, message)
		default:
			L.ArgError(1, "invalid log level "+strconv.Quote(level)+" (expected debug, info, warn or error)")
		}
		return 0
	}
}

func newRequestIDFn(L *lua.LState) int {
	L.Push(lua.LString(ulid.Make().String()))
	return 1
}

func selfFn(b *Binding) lua.LGFunction {
	return func(L *lua.LState) int {
		bridge := b.Bridge()
		if bridge == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(pluginIDValue(bridge.Self()))
		return 1
	}
}

func findPluginFn(b *Binding) lua.LGFunction {
	return func(L *lua.LState) int {
		name := L.CheckString(1)
		bridge := b.Bridge()
		if bridge == nil {
			return pushError(L, "host bridge not available before on_load")
		}
		return pushSuccess(L, pluginIDValue(bridge.FindPluginByName(name)))
	}
}

// lister matches plugin.PluginLister without importing the plugin package.
type lister interface {
	RunningPlugins() []string
}

func pluginsFn(b *Binding) lua.LGFunction {
	return func(L *lua.LState) int {
		l, ok := b.Bridge().(lister)
		if !ok {
			return pushError(L, "plugin listing not available")
		}
		t := L.NewTable()
		for _, name := range l.RunningPlugins() {
			t.Append(lua.LString(name))
		}
		return pushSuccess(L, t)
	}
}

func (f *Functions) kvGetFn(pluginName string) lua.LGFunction {
	return func(L *lua.LState) int {
		key := L.CheckString(1)
		if f.kvStore == nil {
			return pushError(L, "kv store not available")
		}

		value, err := f.kvStore.Get(luaContext(L), pluginName, key)
		if err != nil {
			return pushError(L, err.Error())
		}
		if value == nil {
			return pushSuccess(L, lua.LNil)
		}
		return pushSuccess(L, lua.LString(string(value)))
	}
}

func (f *Functions) kvSetFn(pluginName string) lua.LGFunction {
	return func(L *lua.LState) int {
		key := L.CheckString(1)
		value := L.CheckString(2)
		if f.kvStore == nil {
			return pushError(L, "kv store not available")
		}
		if err := f.kvStore.Set(luaContext(L), pluginName, key, []byte(value)); err != nil {
			return pushError(L, err.Error())
		}
		return pushSuccess(L, lua.LTrue)
	}
}

func (f *Functions) kvDeleteFn(pluginName string) lua.LGFunction {
	return func(L *lua.LState) int {
		key := L.CheckString(1)
		if f.kvStore == nil {
			return pushError(L, "kv store not available")
		}
		if err := f.kvStore.Delete(luaContext(L), pluginName, key); err != nil {
			return pushError(L, err.Error())
		}
		return pushSuccess(L, lua.LTrue)
	}
}
