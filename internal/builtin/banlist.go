// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package builtin

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/wizardmod/wizard/pkg/wizard"
)

// BanlistName is the registered name of the banlist plugin.
const BanlistName = "banlist"

// BanlistModule registers a banlist rejecting the given address patterns.
// Only clients authorized as one of admins may ban at runtime.
func BanlistModule(patterns, admins []string) wizard.Module {
	return wizard.Module{
		Descriptor: wizard.Descriptor{
			Name:        BanlistName,
			Description: "Rejects clients connecting from banned addresses",
			Author:      "Wizard Contributors",
			Version:     "1.0.0",
		},
		New: func() wizard.Plugin { return NewBanlist(patterns, admins) },
	}
}

type banRule struct {
	pattern string
	prefix  netip.Prefix
	glob    glob.Glob
}

func (r banRule) match(addr netip.Addr, host string) bool {
	if r.glob != nil {
		return r.glob.Match(host)
	}
	return addr.IsValid() && r.prefix.Contains(addr.Unmap())
}

func compileRule(pattern string) (banRule, error) {
	pattern = strings.TrimSpace(pattern)
	if strings.Contains(pattern, "/") {
		p, err := netip.ParsePrefix(pattern)
		if err != nil {
			return banRule{}, oops.In("banlist").With("pattern", pattern).Wrapf(err, "invalid prefix")
		}
		return banRule{pattern: pattern, prefix: p.Masked()}, nil
	}
	g, err := glob.Compile(pattern, '.', ':')
	if err != nil {
		return banRule{}, oops.In("banlist").With("pattern", pattern).Wrapf(err, "invalid pattern")
	}
	return banRule{pattern: pattern, glob: g}, nil
}

// Banlist rejects connecting clients whose address matches a ban rule.
// Admin clients can add rules at runtime with the "ban <pattern>" command.
type Banlist struct {
	wizard.BasePlugin
	wizard.NopClientListener

	patterns []string
	admins   map[string]bool

	mu         sync.RWMutex
	rules      []banRule
	authorized map[wizard.Entity]string
	logger     *slog.Logger
}

// NewBanlist creates a banlist. Rules are compiled in OnLoad. admins lists
// the auth ids allowed to run the ban command.
func NewBanlist(patterns, admins []string) *Banlist {
	b := &Banlist{
		patterns:   patterns,
		admins:     make(map[string]bool, len(admins)),
		authorized: make(map[wizard.Entity]string),
		logger:     slog.Default(),
	}
	for _, id := range admins {
		if id = strings.TrimSpace(id); id != "" {
			b.admins[id] = true
		}
	}
	return b
}

// Hooks implements wizard.HookFilter.
func (b *Banlist) Hooks() wizard.HookSet {
	return wizard.NewHookSet(
		wizard.HookClientConnect,
		wizard.HookClientAuthorized,
		wizard.HookClientDisconnected,
		wizard.HookClientCommand,
	)
}

// OnLoad compiles the configured rules; an invalid one aborts the load.
func (b *Banlist) OnLoad(_ context.Context, host wizard.HostBridge) error {
	rules := make([]banRule, 0, len(b.patterns))
	for _, p := range b.patterns {
		r, err := compileRule(p)
		if err != nil {
			return err
		}
		rules = append(rules, r)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rules = rules
	b.logger = host.Logger()
	return nil
}

// Ban adds a rule at runtime.
func (b *Banlist) Ban(pattern string) error {
	r, err := compileRule(pattern)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rules = append(b.rules, r)
	return nil
}

// Banned returns the rule matching address, if any. address may carry a port.
func (b *Banlist) Banned(address string) (string, bool) {
	host := address
	if h, _, err := net.SplitHostPort(address); err == nil {
		host = h
	}
	addr, _ := netip.ParseAddr(host)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, r := range b.rules {
		if r.match(addr, host) {
			return r.pattern, true
		}
	}
	return "", false
}

// OnClientConnect rejects banned addresses.
func (b *Banlist) OnClientConnect(ctx context.Context, args *wizard.ConnectArgs) bool {
	rule, banned := b.Banned(args.Address)
	if !banned {
		return true
	}
	b.log().InfoContext(ctx, "rejected banned client",
		"entity", args.Entity.String(), "address", args.Address, "rule", rule)
	args.Reject = "You are banned from this server"
	return false
}

// OnClientAuthorized remembers clients authorized with an admin auth id.
func (b *Banlist) OnClientAuthorized(_ context.Context, args *wizard.AuthArgs) wizard.Result {
	if !b.admins[args.AuthID] {
		return wizard.Continue
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.authorized[args.Entity] = args.AuthID
	return wizard.Continue
}

// OnClientDisconnected forgets the client's admin status.
func (b *Banlist) OnClientDisconnected(_ context.Context, args *wizard.ClientArgs) wizard.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.authorized, args.Entity)
	return wizard.Continue
}

// IsAdmin reports whether e was authorized with an admin auth id.
func (b *Banlist) IsAdmin(e wizard.Entity) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.authorized[e]
	return ok
}

// OnClientCommand handles "ban <pattern>" from admins. Other clients fall
// through to the remaining listeners.
func (b *Banlist) OnClientCommand(ctx context.Context, args *wizard.CommandArgs) wizard.Result {
	if args.Command() != "ban" || len(args.Args) != 2 {
		return wizard.Continue
	}
	if !b.IsAdmin(args.Entity) {
		b.log().WarnContext(ctx, "ban command refused", "entity", args.Entity.String())
		return wizard.Continue
	}
	if err := b.Ban(args.Args[1]); err != nil {
		b.log().WarnContext(ctx, "ban command failed", "entity", args.Entity.String(), "error", err)
	} else {
		b.log().InfoContext(ctx, "address banned", "entity", args.Entity.String(), "rule", args.Args[1])
	}
	return wizard.Handled
}

func (b *Banlist) log() *slog.Logger {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.logger
}
