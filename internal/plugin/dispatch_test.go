// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package plugin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wizardmod/wizard/internal/plugin"
	"github.com/wizardmod/wizard/pkg/wizard"
)

// loaded starts a manager with the given plugins loaded in slice order.
func loaded(t *testing.T, plugins ...wizard.Module) *plugin.Manager {
	t.Helper()
	m := plugin.NewManager("", plugin.WithLogger(quietLogger()))
	// Chain each module on the previous one so load order is slice order.
	for i := 1; i < len(plugins); i++ {
		prev := plugins[i-1].Descriptor.Name
		plugins[i].Descriptor.Dependencies = append(plugins[i].Descriptor.Dependencies,
			wizard.Dependency{Name: prev, Optional: true})
	}
	report, err := m.LoadAll(context.Background(), plugins...)
	require.NoError(t, err)
	require.True(t, report.OK(), report.Text())
	return m
}

func TestDispatch_ChangedThenHandled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	j := &journal{}
	a, b, c := newFake("A", j), newFake("B", j), newFake("C", j)
	b.results[wizard.HookLevelInit] = wizard.Changed
	b.edit = func(args any) { args.(*wizard.LevelArgs).MapName = "de_nuke" }
	c.results[wizard.HookLevelInit] = wizard.Handled
	var seenByC string
	c.edit = func(args any) { seenByC = args.(*wizard.LevelArgs).MapName }
	m := loaded(t, fakeModule(a), fakeModule(b), fakeModule(c))

	out := m.Dispatcher().LevelInit(context.Background(), "de_dust")

	assert.Equal(t, "de_nuke", out.Args.MapName)
	assert.Equal(t, "de_nuke", seenByC)
	assert.Equal(t, wizard.Handled, out.Result)
	assert.True(t, out.Changed)
	assert.True(t, out.Handled)
	assert.False(t, out.Stopped)
	assert.False(t, out.Proceed())
	assert.Equal(t, []string{"A", "B", "C"}, j.only("level_init"))
}

func TestDispatch_StopDiscardsEverything(t *testing.T) {
	j := &journal{}
	a, b, c, d := newFake("A", j), newFake("B", j), newFake("C", j), newFake("D", j)
	a.results[wizard.HookClientCommand] = wizard.Changed
	a.edit = func(args any) { args.(*wizard.CommandArgs).Args[0] = "rewritten" }
	b.results[wizard.HookClientCommand] = wizard.Handled
	c.results[wizard.HookClientCommand] = wizard.Stop
	m := loaded(t, fakeModule(a), fakeModule(b), fakeModule(c), fakeModule(d))

	out := m.Dispatcher().ClientCommand(context.Background(), wizard.Entity(7), []string{"say", "hi"})

	assert.Equal(t, wizard.Stop, out.Result)
	assert.True(t, out.Stopped)
	assert.False(t, out.Changed)
	assert.False(t, out.Handled)
	assert.True(t, out.Proceed(), "engine runs the original action after Stop")
	assert.Equal(t, []string{"say", "hi"}, out.Args.Args)
	assert.Equal(t, []string{"A", "B", "C"}, j.only("client_command"), "D is never called")
}

func TestDispatch_ContinueEditsAreDiscarded(t *testing.T) {
	j := &journal{}
	a, b := newFake("A", j), newFake("B", j)
	a.edit = func(args any) { args.(*wizard.EntityArgs).ClassName = "tampered" }
	var seenByB string
	b.edit = func(args any) { seenByB = args.(*wizard.EntityArgs).ClassName }
	m := loaded(t, fakeModule(a), fakeModule(b))

	out := m.Dispatcher().EntityCreated(context.Background(), wizard.Entity(3), "prop_physics")

	assert.Equal(t, "prop_physics", seenByB)
	assert.Equal(t, "prop_physics", out.Args.ClassName)
	assert.Equal(t, wizard.Continue, out.Result)
	assert.True(t, out.Proceed())
}

func TestDispatch_EngineArgumentsNotAliased(t *testing.T) {
	j := &journal{}
	a := newFake("A", j)
	a.results[wizard.HookClientCommand] = wizard.Changed
	a.edit = func(args any) { args.(*wizard.CommandArgs).Args[1] = "changed" }
	m := loaded(t, fakeModule(a))

	engineArgs := []string{"say", "hi"}
	out := m.Dispatcher().ClientCommand(context.Background(), wizard.Entity(1), engineArgs)

	assert.Equal(t, []string{"say", "changed"}, out.Args.Args)
	assert.Equal(t, []string{"say", "hi"}, engineArgs)
}

func TestDispatch_ListenerFaultsAreIsolated(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	j := &journal{}
	a, b, c := newFake("A", j), newFake("B", j), newFake("C", j)
	a.panicOn = "level_start"
	b.results[wizard.HookLevelStart] = wizard.Result(42)
	m := loaded(t, fakeModule(a), fakeModule(b), fakeModule(c))

	out := m.Dispatcher().LevelStart(context.Background())

	assert.Equal(t, wizard.Continue, out.Result)
	assert.Equal(t, []string{"A", "B", "C"}, j.only("level_start"))
}

func TestDispatch_HookFilterNarrowsDelivery(t *testing.T) {
	j := &journal{}
	a := newFake("A", j)
	f := filteredPlugin{newFake("F", j), wizard.NewHookSet(wizard.HookClientCommand)}
	m := loaded(t, fakeModule(a), module(f, "F"))

	m.Dispatcher().LevelShutdown(context.Background())
	m.Dispatcher().ClientCommand(context.Background(), wizard.Entity(1), []string{"help"})

	assert.Equal(t, []string{"A"}, j.only("level_shutdown"))
	assert.Equal(t, []string{"A", "F"}, j.only("client_command"))
}

func TestDispatch_NoListeners(t *testing.T) {
	m := loaded(t)
	out := m.Dispatcher().ConfigsExecuted(context.Background())
	assert.Equal(t, wizard.Continue, out.Result)
	assert.True(t, out.Proceed())
}

func TestDispatch_EveryHookReachesListeners(t *testing.T) {
	j := &journal{}
	m := loaded(t, fakeModule(newFake("A", j)))
	d := m.Dispatcher()
	ctx := context.Background()
	e := wizard.Entity(5)

	d.ConfigsExecuted(ctx)
	d.LevelInit(ctx, "map")
	d.LevelStart(ctx)
	d.LevelShutdown(ctx)
	d.EntityCreated(ctx, e, "cls")
	d.EntityDestroyed(ctx, e, "cls")
	d.ClientConnect(ctx, e, "name", "127.0.0.1")
	d.ClientConnected(ctx, e)
	d.ClientPutInServer(ctx, e, "player")
	d.ClientActive(ctx, e, true)
	d.ClientSettingsChanged(ctx, e)
	d.ClientAuthorized(ctx, e, "STEAM_0:1:2")
	d.ClientCommand(ctx, e, []string{"kill"})
	d.ClientDisconnect(ctx, e)
	d.ClientDisconnected(ctx, e)

	for _, h := range wizard.Hooks() {
		assert.Equal(t, 1, j.count("A:"+h.String()), h.String())
	}
}

func TestDispatch_ClientConnectRejection(t *testing.T) {
	j := &journal{}
	a, b, c := newFake("A", j), newFake("B", j), newFake("C", j)
	b.reject = "You are banned"
	m := loaded(t, fakeModule(a), fakeModule(b), fakeModule(c))
	d := m.Dispatcher()
	ctx := context.Background()
	e := wizard.Entity(9)

	out := d.ClientConnect(ctx, e, "griefer", "10.0.0.1:27005")

	assert.False(t, out.Accepted)
	assert.Equal(t, "You are banned", out.Reason)
	assert.Equal(t, m.FindPluginByName("B"), out.RejectedBy)
	assert.Equal(t, []string{"A", "B"}, j.only("client_connect"))
	assert.True(t, d.Rejected(e))

	d.ClientDisconnect(ctx, e)
	d.ClientDisconnected(ctx, e)
	assert.Empty(t, j.only("client_disconnect"))
	assert.Empty(t, j.only("client_disconnected"))
	assert.False(t, d.Rejected(e), "rejection is forgotten after disconnected")
}

func TestDispatch_ClientAcceptedAfterRejection(t *testing.T) {
	j := &journal{}
	a := newFake("A", j)
	a.reject = "full"
	m := loaded(t, fakeModule(a))
	d := m.Dispatcher()
	ctx := context.Background()
	e := wizard.Entity(9)

	require.False(t, d.ClientConnect(ctx, e, "p", "addr").Accepted)
	a.reject = ""
	out := d.ClientConnect(ctx, e, "p", "addr")
	require.True(t, out.Accepted)
	assert.True(t, out.RejectedBy.IsNull())

	d.ClientDisconnect(ctx, e)
	assert.Equal(t, []string{"A"}, j.only("client_disconnect"))
}

func TestDispatch_ClientConnectDefaultReason(t *testing.T) {
	m := loaded(t, module(rejector{}, "Gate"))
	out := m.Dispatcher().ClientConnect(context.Background(), wizard.Entity(1), "p", "addr")
	assert.False(t, out.Accepted)
	assert.Equal(t, "rejected by Gate", out.Reason)
}

func TestDispatch_ClientConnectPanicAccepts(t *testing.T) {
	j := &journal{}
	a := newFake("A", j)
	a.panicOn = "client_connect"
	m := loaded(t, fakeModule(a))
	out := m.Dispatcher().ClientConnect(context.Background(), wizard.Entity(1), "p", "addr")
	assert.True(t, out.Accepted)
}

func TestDispatch_PausedPluginsGetNoHooks(t *testing.T) {
	j := &journal{}
	a, b := newFake("A", j), newFake("B", j)
	m := loaded(t, fakeModule(a), fakeModule(b))
	ctx := context.Background()
	require.NoError(t, m.Pause(ctx, m.FindPluginByName("A")))

	m.Dispatcher().LevelStart(ctx)

	assert.Equal(t, []string{"B"}, j.only("level_start"))
}

// rejector refuses every client without giving a reason.
type rejector struct {
	wizard.BasePlugin
	wizard.NopClientListener
}

func (rejector) OnClientConnect(context.Context, *wizard.ConnectArgs) bool { return false }
