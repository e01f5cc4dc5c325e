// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package plugin_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wizardmod/wizard/pkg/wizard"
)

// journal records plugin callbacks in call order.
type journal struct {
	entries []string
}

func (j *journal) add(plugin, event string) {
	j.entries = append(j.entries, plugin+":"+event)
}

// only returns entries for one callback name, e.g. "OnStart".
func (j *journal) only(event string) []string {
	var out []string
	for _, e := range j.entries {
		if strings.HasSuffix(e, ":"+event) {
			out = append(out, strings.TrimSuffix(e, ":"+event))
		}
	}
	return out
}

func (j *journal) count(entry string) int {
	n := 0
	for _, e := range j.entries {
		if e == entry {
			n++
		}
	}
	return n
}

// fakePlugin records every callback and listens to every hook.
type fakePlugin struct {
	name string
	j    *journal

	loadErr  error
	startErr error
	panicOn  string

	host    wizard.HostBridge
	results map[wizard.Hook]wizard.Result
	// edit mutates hook arguments before returning.
	edit   func(args any)
	reject string
	// onStart runs inside OnStart after recording.
	onStart func(host wizard.HostBridge)
}

var (
	_ wizard.Plugin         = (*fakePlugin)(nil)
	_ wizard.ServerListener = (*fakePlugin)(nil)
	_ wizard.ClientListener = (*fakePlugin)(nil)
)

func newFake(name string, j *journal) *fakePlugin {
	return &fakePlugin{name: name, j: j, results: map[wizard.Hook]wizard.Result{}}
}

func (p *fakePlugin) record(event string) {
	p.j.add(p.name, event)
	if p.panicOn == event {
		panic(p.name + " exploded in " + event)
	}
}

func (p *fakePlugin) OnLoad(_ context.Context, host wizard.HostBridge) error {
	p.record("OnLoad")
	p.host = host
	return p.loadErr
}

func (p *fakePlugin) OnStart(context.Context) error {
	p.record("OnStart")
	if p.onStart != nil {
		p.onStart(p.host)
	}
	return p.startErr
}

func (p *fakePlugin) OnAllLoaded(context.Context) { p.record("OnAllLoaded") }
func (p *fakePlugin) OnPause(context.Context)     { p.record("OnPause") }
func (p *fakePlugin) OnUnpause(context.Context)   { p.record("OnUnpause") }

func (p *fakePlugin) OnEnd(context.Context) error {
	p.record("OnEnd")
	return nil
}

func (p *fakePlugin) OnUnload(context.Context) error {
	p.record("OnUnload")
	return nil
}

func (p *fakePlugin) hook(h wizard.Hook, args any) wizard.Result {
	p.record(h.String())
	if p.edit != nil && args != nil {
		p.edit(args)
	}
	return p.results[h]
}

func (p *fakePlugin) OnConfigsExecuted(context.Context) wizard.Result {
	return p.hook(wizard.HookConfigsExecuted, nil)
}

func (p *fakePlugin) OnLevelInit(_ context.Context, a *wizard.LevelArgs) wizard.Result {
	return p.hook(wizard.HookLevelInit, a)
}

func (p *fakePlugin) OnLevelStart(context.Context) wizard.Result {
	return p.hook(wizard.HookLevelStart, nil)
}

func (p *fakePlugin) OnLevelShutdown(context.Context) wizard.Result {
	return p.hook(wizard.HookLevelShutdown, nil)
}

func (p *fakePlugin) OnEntityCreated(_ context.Context, a *wizard.EntityArgs) wizard.Result {
	return p.hook(wizard.HookEntityCreated, a)
}

func (p *fakePlugin) OnEntityDestroyed(_ context.Context, a *wizard.EntityArgs) wizard.Result {
	return p.hook(wizard.HookEntityDestroyed, a)
}

func (p *fakePlugin) OnClientConnect(_ context.Context, a *wizard.ConnectArgs) bool {
	p.record(wizard.HookClientConnect.String())
	if p.reject != "" {
		a.Reject = p.reject
		return false
	}
	return true
}

func (p *fakePlugin) OnClientConnected(_ context.Context, a *wizard.ClientArgs) wizard.Result {
	return p.hook(wizard.HookClientConnected, a)
}

func (p *fakePlugin) OnClientDisconnect(_ context.Context, a *wizard.ClientArgs) wizard.Result {
	return p.hook(wizard.HookClientDisconnect, a)
}

func (p *fakePlugin) OnClientDisconnected(_ context.Context, a *wizard.ClientArgs) wizard.Result {
	return p.hook(wizard.HookClientDisconnected, a)
}

func (p *fakePlugin) OnClientPutInServer(_ context.Context, a *wizard.PutInServerArgs) wizard.Result {
	return p.hook(wizard.HookClientPutInServer, a)
}

func (p *fakePlugin) OnClientActive(_ context.Context, a *wizard.ActiveArgs) wizard.Result {
	return p.hook(wizard.HookClientActive, a)
}

func (p *fakePlugin) OnClientSettingsChanged(_ context.Context, a *wizard.ClientArgs) wizard.Result {
	return p.hook(wizard.HookClientSettingsChanged, a)
}

func (p *fakePlugin) OnClientAuthorized(_ context.Context, a *wizard.AuthArgs) wizard.Result {
	return p.hook(wizard.HookClientAuthorized, a)
}

func (p *fakePlugin) OnClientCommand(_ context.Context, a *wizard.CommandArgs) wizard.Result {
	return p.hook(wizard.HookClientCommand, a)
}

// filteredPlugin narrows a fakePlugin to a hook subset.
type filteredPlugin struct {
	*fakePlugin
	set wizard.HookSet
}

func (p filteredPlugin) Hooks() wizard.HookSet { return p.set }

// module wraps p as a native module depending on deps.
func module(p wizard.Plugin, name string, deps ...string) wizard.Module {
	d := wizard.Descriptor{Name: name, Version: "1.0.0"}
	for _, dep := range deps {
		d.Dependencies = append(d.Dependencies, wizard.Dependency{Name: dep})
	}
	return wizard.Module{Descriptor: d, New: func() wizard.Plugin { return p }}
}

func fakeModule(p *fakePlugin, deps ...string) wizard.Module {
	return module(p, p.name, deps...)
}

func desc(name string, deps ...string) wizard.Descriptor {
	d := wizard.Descriptor{Name: name, Version: "1.0.0"}
	for _, dep := range deps {
		d.Dependencies = append(d.Dependencies, wizard.Dependency{Name: dep})
	}
	return d
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Helper functions for creating test fixtures with secure permissions.
func mkdirAll(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(path, 0o750))
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// writePlugin creates <dir>/<sub>/plugin.yaml with manifest.
func writePlugin(t *testing.T, dir, sub, manifest string) string {
	t.Helper()
	pluginDir := filepath.Join(dir, sub)
	mkdirAll(t, pluginDir)
	writeFile(t, filepath.Join(pluginDir, "plugin.yaml"), manifest)
	return pluginDir
}
