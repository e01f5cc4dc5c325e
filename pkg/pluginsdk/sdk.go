// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

// Package pluginsdk provides the SDK for building Wizard binary plugins.
//
// Binary plugins communicate with the host via gRPC using the HashiCorp
// go-plugin framework. A plugin implements wizard.Plugin and any of the
// listener interfaces, then hands itself to Serve:
//
//	package main
//
//	import (
//		"context"
//
//		"github.com/wizardmod/wizard/pkg/pluginsdk"
//		"github.com/wizardmod/wizard/pkg/wizard"
//	)
//
//	type Greeter struct {
//		wizard.BasePlugin
//		wizard.NopClientListener
//	}
//
//	func (g *Greeter) OnClientPutInServer(ctx context.Context, args *wizard.PutInServerArgs) wizard.Result {
//		// greet args.PlayerName
//		return wizard.Continue
//	}
//
//	func main() {
//		pluginsdk.Serve(&pluginsdk.ServeConfig{Plugin: &Greeter{}})
//	}
//
// The host bridge passed to OnLoad calls back into the host process; its
// Logger forwards records to the host log.
package pluginsdk

import (
	hashiplug "github.com/hashicorp/go-plugin"

	"github.com/wizardmod/wizard/pkg/wizard"
)

// ServeConfig configures the plugin server.
type ServeConfig struct {
	// Plugin is the plugin implementation.
	// Required; Serve will panic if nil.
	Plugin wizard.Plugin
}

// Serve starts the plugin server. This should be called from main().
// It blocks and never returns under normal operation.
func Serve(config *ServeConfig) {
	if config == nil {
		panic("pluginsdk: config cannot be nil")
	}
	if config.Plugin == nil {
		panic("pluginsdk: config.Plugin cannot be nil")
	}
	hashiplug.Serve(&hashiplug.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins:         PluginSet(config.Plugin),
		GRPCServer:      hashiplug.DefaultGRPCServer,
	})
}

// PluginSet returns the go-plugin plugin map. The host passes a nil impl.
func PluginSet(impl wizard.Plugin) hashiplug.PluginSet {
	return hashiplug.PluginSet{
		PluginName: &GRPCPlugin{Impl: impl},
	}
}
