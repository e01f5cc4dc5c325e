// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package main

import (
	"context"
	"time"

	"github.com/wizardmod/wizard/internal/observability"
	"github.com/wizardmod/wizard/internal/plugin/hostfunc"
)

// RunDeps contains injectable dependencies for the run command.
// All fields with nil values will use their default implementations.
type RunDeps struct {
	// KVFactory opens the plugin key/value store for a DSN. It is only
	// called when a DSN is configured.
	// Default: store.Connect
	KVFactory func(ctx context.Context, dsn string) (KVStore, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, opts ...observability.Option) ObservabilityServer

	// Started is called once the startup batch is loaded.
	Started func()
}

// KVStore is a closable plugin key/value store.
type KVStore interface {
	hostfunc.KVStore
	Close()
}

// ObservabilityServer is the interface for the observability HTTP server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// shutdownTimeout bounds the orderly unload on exit.
const shutdownTimeout = 10 * time.Second
