// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

// Package main implements the echo binary plugin. Clients typing
// "echo <words>" get their words logged back by the host and the command
// is marked handled.
//
// Build next to its manifest:
//
//	go build -o plugins/echo/echo-$(go env GOOS)-$(go env GOARCH) ./plugins/echo
package main

import (
	"context"
	"strings"
	"sync"

	"github.com/wizardmod/wizard/pkg/pluginsdk"
	"github.com/wizardmod/wizard/pkg/wizard"
)

type echo struct {
	wizard.BasePlugin
	wizard.NopClientListener

	mu   sync.Mutex
	host wizard.HostBridge
}

func (e *echo) OnLoad(_ context.Context, host wizard.HostBridge) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.host = host
	return nil
}

func (e *echo) OnAllLoaded(context.Context) {
	e.mu.Lock()
	host := e.host
	e.mu.Unlock()
	if id := host.FindPluginByName("banlist"); !id.IsNull() {
		host.Logger().Info("banlist is running", "id", id.String())
	}
}

func (e *echo) Hooks() wizard.HookSet {
	return wizard.NewHookSet(wizard.HookClientCommand)
}

func (e *echo) OnClientCommand(ctx context.Context, args *wizard.CommandArgs) wizard.Result {
	if args.Command() != "echo" {
		return wizard.Continue
	}
	e.mu.Lock()
	host := e.host
	e.mu.Unlock()
	host.Logger().InfoContext(ctx, strings.Join(args.Args[1:], " "), "entity", args.Entity.String())
	return wizard.Handled
}

func main() {
	pluginsdk.Serve(&pluginsdk.ServeConfig{Plugin: &echo{}})
}
