// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

// Package goplugin provides a Host implementation for binary plugins
// using HashiCorp's go-plugin system over gRPC.
package goplugin

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"sync"
	"time"

	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/samber/oops"

	"github.com/wizardmod/wizard/internal/plugin"
	"github.com/wizardmod/wizard/pkg/pluginsdk"
	"github.com/wizardmod/wizard/pkg/wizard"
)

// DefaultCallTimeout bounds every lifecycle callback and hook sent to a
// plugin process.
const DefaultCallTimeout = 5 * time.Second

// Sentinel errors for programmatic error checking.
var (
	// ErrHostClosed is returned when operations are attempted on a closed host.
	ErrHostClosed = errors.New("host is closed")
	// ErrPluginNotLoaded is returned when operating on a plugin that isn't loaded.
	ErrPluginNotLoaded = errors.New("plugin not loaded")
	// ErrPluginAlreadyLoaded is returned when loading a plugin that's already loaded.
	ErrPluginAlreadyLoaded = errors.New("plugin already loaded")
)

var _ plugin.Host = (*Host)(nil)

// PluginClient wraps go-plugin client for testability.
type PluginClient interface {
	// Client returns the gRPC client protocol.
	Client() (hashiplug.ClientProtocol, error)
	// Kill terminates the plugin process.
	Kill()
}

// ClientFactory creates plugin clients.
type ClientFactory interface {
	// NewClient creates a client for the given executable path.
	NewClient(execPath string) PluginClient
}

// DefaultClientFactory creates real go-plugin clients.
type DefaultClientFactory struct{}

// NewClient creates a real go-plugin client.
func (f *DefaultClientFactory) NewClient(execPath string) PluginClient {
	return hashiplug.NewClient(&hashiplug.ClientConfig{
		HandshakeConfig:  HandshakeConfig,
		Plugins:          PluginMap,
		Cmd:              exec.Command(execPath), // #nosec G204 -- execPath resolved from a validated plugin manifest
		AllowedProtocols: []hashiplug.Protocol{hashiplug.ProtocolGRPC},
	})
}

// Host manages binary plugins via HashiCorp go-plugin.
type Host struct {
	clientFactory ClientFactory
	callTimeout   time.Duration
	logger        *slog.Logger

	mu      sync.RWMutex
	plugins map[string]*loadedPlugin
	closed  bool
}

// loadedPlugin holds state for a single loaded binary plugin.
type loadedPlugin struct {
	client PluginClient
	plugin *remotePlugin
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithClientFactory replaces the go-plugin client factory.
func WithClientFactory(f ClientFactory) HostOption {
	return func(h *Host) {
		if f != nil {
			h.clientFactory = f
		}
	}
}

// WithCallTimeout bounds every call into a plugin process. Zero disables
// the bound.
func WithCallTimeout(d time.Duration) HostOption {
	return func(h *Host) {
		h.callTimeout = d
	}
}

// WithLogger sets the logger used before a plugin receives its own.
func WithLogger(l *slog.Logger) HostOption {
	return func(h *Host) {
		h.logger = l
	}
}

// NewHost creates a new binary plugin host.
func NewHost(opts ...HostOption) *Host {
	h := &Host{
		clientFactory: &DefaultClientFactory{},
		callTimeout:   DefaultCallTimeout,
		logger:        slog.Default(),
		plugins:       make(map[string]*loadedPlugin),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Load starts the plugin process, asks it for its hooks and returns the
// plugin proxy. The Manager drives the proxy through the lifecycle.
func (h *Host) Load(ctx context.Context, manifest *plugin.Manifest, dir string) (wizard.Plugin, error) {
	errb := oops.In("goplugin").With("plugin", manifest.Name).With("operation", "load")
	if manifest.BinaryPlugin == nil {
		return nil, errb.New("manifest has no binary-plugin section")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errb.Wrap(ErrHostClosed)
	}
	if _, ok := h.plugins[manifest.Name]; ok {
		return nil, errb.Wrap(ErrPluginAlreadyLoaded)
	}

	execPath := manifest.ExecutablePath(dir)
	if _, err := os.Stat(execPath); err != nil {
		if os.IsNotExist(err) {
			return nil, errb.With("path", execPath).Wrapf(err, "plugin executable not found")
		}
		return nil, errb.With("path", execPath).Wrapf(err, "cannot access plugin executable")
	}

	client := h.clientFactory.NewClient(execPath)

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, errb.Wrapf(err, "connect to plugin")
	}

	raw, err := rpcClient.Dispense(pluginsdk.PluginName)
	if err != nil {
		client.Kill()
		return nil, errb.Wrapf(err, "dispense plugin")
	}

	conn, ok := raw.(remote)
	if !ok {
		client.Kill()
		return nil, errb.Errorf("plugin does not speak the wizard protocol (got %T)", raw)
	}

	p := &remotePlugin{
		name:    manifest.Name,
		remote:  conn,
		timeout: h.callTimeout,
		logger:  h.logger.With("plugin", manifest.Name),
	}
	describeCtx, cancel := p.bound(ctx)
	p.hooks, err = conn.Describe(describeCtx)
	cancel()
	if err != nil {
		client.Kill()
		return nil, errb.Wrapf(err, "describe plugin")
	}

	h.plugins[manifest.Name] = &loadedPlugin{client: client, plugin: p}
	return p, nil
}

// Unload kills the plugin process.
func (h *Host) Unload(_ context.Context, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHostClosed
	}

	p, ok := h.plugins[name]
	if !ok {
		return oops.In("goplugin").With("plugin", name).Wrap(ErrPluginNotLoaded)
	}
	p.kill()
	delete(h.plugins, name)
	return nil
}

func (p *loadedPlugin) kill() {
	_ = p.plugin.remote.Close()
	if p.client != nil {
		p.client.Kill()
	}
}

// Plugins returns names of all loaded plugins.
func (h *Host) Plugins() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return nil
	}

	names := make([]string, 0, len(h.plugins))
	for name := range h.plugins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close shuts down the host and kills every plugin process.
func (h *Host) Close(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, p := range h.plugins {
		p.kill()
	}

	h.closed = true
	clear(h.plugins)
	return nil
}
