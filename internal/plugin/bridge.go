// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package plugin

import (
	"log/slog"

	"github.com/wizardmod/wizard/internal/plugin/capability"
	"github.com/wizardmod/wizard/pkg/errutil"
	"github.com/wizardmod/wizard/pkg/wizard"
)

// PluginLister is implemented by host bridges that can list running plugins.
type PluginLister interface {
	RunningPlugins() []string
}

// hostBridge is the capability-checked HostBridge handed to one plugin.
type hostBridge struct {
	m      *Manager
	id     wizard.PluginID
	name   string
	logger *slog.Logger
}

var (
	_ wizard.HostBridge = (*hostBridge)(nil)
	_ PluginLister      = (*hostBridge)(nil)
)

func (b *hostBridge) Self() wizard.PluginID {
	return b.id
}

func (b *hostBridge) Logger() *slog.Logger {
	return b.logger
}

// FindPluginByName needs the plugin.lookup capability; denial yields NullPlugin.
func (b *hostBridge) FindPluginByName(name string) wizard.PluginID {
	if err := b.m.enforcer.Require(b.name, capability.PluginLookup); err != nil {
		errutil.LogWarn(b.logger, "plugin lookup denied", err)
		return wizard.NullPlugin
	}
	return b.m.FindPluginByName(name)
}

// RunningPlugins needs the plugin.list capability; denial yields nil.
func (b *hostBridge) RunningPlugins() []string {
	if err := b.m.enforcer.Require(b.name, capability.PluginList); err != nil {
		errutil.LogWarn(b.logger, "plugin list denied", err)
		return nil
	}
	var names []string
	for _, id := range b.m.registry.Running() {
		if rec, ok := b.m.registry.Get(id); ok {
			names = append(names, rec.Descriptor.Name)
		}
	}
	return names
}
