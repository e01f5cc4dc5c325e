// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package lua

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/wizardmod/wizard/internal/plugin"
	"github.com/wizardmod/wizard/internal/plugin/hostfunc"
	"github.com/wizardmod/wizard/pkg/wizard"
)

var _ plugin.Host = (*Host)(nil)

// Host runs Lua plugins, one persistent state per plugin.
type Host struct {
	factory     *StateFactory
	hostFuncs   *hostfunc.Functions
	logger      *slog.Logger
	callTimeout time.Duration

	mu      sync.RWMutex
	plugins map[string]*scriptPlugin
	closed  bool
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithCallTimeout bounds every call into a script. Zero disables the bound.
func WithCallTimeout(d time.Duration) HostOption {
	return func(h *Host) {
		h.callTimeout = d
	}
}

// WithLogger sets the logger used for script faults before OnLoad.
func WithLogger(l *slog.Logger) HostOption {
	return func(h *Host) {
		h.logger = l
	}
}

// NewHost creates a Lua host. Scripts see the wizard.* host functions
// from hf. Panics if hf is nil.
func NewHost(hf *hostfunc.Functions, opts ...HostOption) *Host {
	if hf == nil {
		panic("lua.NewHost: hostFuncs cannot be nil")
	}
	h := &Host{
		factory:   NewStateFactory(),
		hostFuncs: hf,
		logger:    slog.Default(),
		plugins:   make(map[string]*scriptPlugin),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Load reads the entry script, runs its top level in a fresh sandboxed
// state and returns the plugin bound to that state.
func (h *Host) Load(ctx context.Context, manifest *plugin.Manifest, dir string) (wizard.Plugin, error) {
	errb := oops.In("lua").With("plugin", manifest.Name).With("operation", "load")
	if manifest.LuaPlugin == nil {
		return nil, errb.New("manifest has no lua-plugin section")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errb.New("host is closed")
	}
	if _, ok := h.plugins[manifest.Name]; ok {
		return nil, errb.New("plugin already loaded")
	}

	entryPath := filepath.Join(dir, manifest.LuaPlugin.Entry)
	code, err := os.ReadFile(filepath.Clean(entryPath))
	if err != nil {
		return nil, errb.With("path", entryPath).Hint("failed to read entry file").Wrap(err)
	}

	L, err := h.factory.NewState()
	if err != nil {
		return nil, errb.Hint("failed to create state").Wrap(err)
	}
	binding := hostfunc.NewBinding(manifest.Name)
	h.hostFuncs.Register(L, binding)

	L.SetContext(ctx)
	err = L.DoString(string(code))
	L.RemoveContext()
	if err != nil {
		L.Close()
		return nil, errb.With("entry", manifest.LuaPlugin.Entry).Hint("script failed to run").Wrap(err)
	}

	p := newScriptPlugin(manifest.Name, L, binding, h.logger.With("plugin", manifest.Name), h.callTimeout)
	h.plugins[manifest.Name] = p
	return p, nil
}

// Unload closes the plugin's state.
func (h *Host) Unload(_ context.Context, name string) error {
	h.mu.Lock()
	p, ok := h.plugins[name]
	delete(h.plugins, name)
	h.mu.Unlock()

	if !ok {
		return oops.In("lua").With("plugin", name).With("operation", "unload").New("plugin not loaded")
	}
	p.close()
	return nil
}

// Plugins returns the sorted names of loaded plugins.
func (h *Host) Plugins() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.plugins))
	for name := range h.plugins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close closes every remaining state. Later loads fail.
func (h *Host) Close(_ context.Context) error {
	h.mu.Lock()
	remaining := h.plugins
	h.plugins = make(map[string]*scriptPlugin)
	h.closed = true
	h.mu.Unlock()

	for _, p := range remaining {
		p.close()
	}
	return nil
}
