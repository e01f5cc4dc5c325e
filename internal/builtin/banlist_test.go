// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package builtin_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizardmod/wizard/internal/builtin"
	"github.com/wizardmod/wizard/internal/plugin"
	"github.com/wizardmod/wizard/pkg/wizard"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBanlist_Banned(t *testing.T) {
	b := builtin.NewBanlist([]string{"10.0.0.*", "192.168.0.0/16", "2001:db8::/32"}, nil)
	require.NoError(t, b.OnLoad(context.Background(), &host{}))

	tests := []struct {
		address string
		rule    string
		banned  bool
	}{
		{"10.0.0.7:27005", "10.0.0.*", true},
		{"10.0.1.7:27005", "", false},
		{"192.168.44.2", "192.168.0.0/16", true},
		{"[2001:db8::1]:27015", "2001:db8::/32", true},
		{"[::ffff:192.168.1.1]:1", "192.168.0.0/16", true},
		{"172.16.0.1:1", "", false},
		{"not-an-address", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			rule, banned := b.Banned(tt.address)
			assert.Equal(t, tt.banned, banned)
			assert.Equal(t, tt.rule, rule)
		})
	}
}

func TestBanlist_InvalidRulesFailLoad(t *testing.T) {
	assert.Error(t, builtin.NewBanlist([]string{"10.0.0.0/99"}, nil).OnLoad(context.Background(), &host{}))
	assert.Error(t, builtin.NewBanlist([]string{"10.0.[0"}, nil).OnLoad(context.Background(), &host{}))
}

func TestBanlist_ThroughDispatcher(t *testing.T) {
	m := plugin.NewManager(t.TempDir(), plugin.WithLogger(quietLogger()))
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	ctx := context.Background()

	report, err := m.LoadAll(ctx, builtin.Modules(builtin.Options{
		BannedAddresses: []string{"10.0.0.*"},
		Admins:          []string{"STEAM_0:1:42"},
	})...)
	require.NoError(t, err)
	require.Equal(t, []string{builtin.BanlistName}, report.Loaded)

	d := m.Dispatcher()
	out := d.ClientConnect(ctx, 3, "griefer", "10.0.0.3:27005")
	assert.False(t, out.Accepted)
	assert.Equal(t, "You are banned from this server", out.Reason)
	assert.Equal(t, m.FindPluginByName(builtin.BanlistName), out.RejectedBy)

	assert.True(t, d.ClientConnect(ctx, 4, "alice", "10.0.1.4:27005").Accepted)
	d.ClientAuthorized(ctx, 4, "STEAM_0:1:42")

	cmd := d.ClientCommand(ctx, 4, []string{"ban", "10.0.1.*"})
	assert.True(t, cmd.Handled)
	assert.False(t, cmd.Proceed())
	assert.False(t, d.ClientConnect(ctx, 5, "alice2", "10.0.1.5:27005").Accepted)

	assert.Equal(t, wizard.Continue, d.ClientCommand(ctx, 4, []string{"say", "gg"}).Result)
}

func TestBanlist_NonAdminCannotBan(t *testing.T) {
	m := plugin.NewManager(t.TempDir(), plugin.WithLogger(quietLogger()))
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	ctx := context.Background()

	_, err := m.LoadAll(ctx, builtin.Modules(builtin.Options{Admins: []string{"STEAM_0:1:42"}})...)
	require.NoError(t, err)
	d := m.Dispatcher()

	t.Run("unauthorized client", func(t *testing.T) {
		cmd := d.ClientCommand(ctx, 7, []string{"ban", "*.*.*.*"})
		assert.Equal(t, wizard.Continue, cmd.Result)
		assert.True(t, d.ClientConnect(ctx, 8, "bob", "203.0.113.5:27005").Accepted)
	})

	t.Run("authorized with another id", func(t *testing.T) {
		d.ClientAuthorized(ctx, 7, "STEAM_0:0:7")
		cmd := d.ClientCommand(ctx, 7, []string{"ban", "*.*.*.*"})
		assert.Equal(t, wizard.Continue, cmd.Result)
		assert.True(t, d.ClientConnect(ctx, 8, "bob", "203.0.113.5:27005").Accepted)
	})

	t.Run("admin status ends on disconnect", func(t *testing.T) {
		d.ClientAuthorized(ctx, 9, "STEAM_0:1:42")
		d.ClientDisconnected(ctx, 9)
		cmd := d.ClientCommand(ctx, 9, []string{"ban", "*.*.*.*"})
		assert.Equal(t, wizard.Continue, cmd.Result)
		assert.True(t, d.ClientConnect(ctx, 8, "bob", "203.0.113.5:27005").Accepted)
	})
}

func TestBanlist_IsAdmin(t *testing.T) {
	ctx := context.Background()
	b := builtin.NewBanlist(nil, []string{" STEAM_0:1:42 ", ""})
	require.NoError(t, b.OnLoad(ctx, &host{}))

	b.OnClientAuthorized(ctx, &wizard.AuthArgs{Entity: 2, AuthID: "STEAM_0:1:42"})
	b.OnClientAuthorized(ctx, &wizard.AuthArgs{Entity: 3, AuthID: ""})
	assert.True(t, b.IsAdmin(2))
	assert.False(t, b.IsAdmin(3))

	b.OnClientDisconnected(ctx, &wizard.ClientArgs{Entity: 2})
	assert.False(t, b.IsAdmin(2))
}

type host struct{}

func (host) Self() wizard.PluginID                   { return 0 }
func (host) FindPluginByName(string) wizard.PluginID { return wizard.NullPlugin }
func (host) Logger() *slog.Logger                    { return quietLogger() }
