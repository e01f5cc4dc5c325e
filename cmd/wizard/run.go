// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/wizardmod/wizard/internal/builtin"
	"github.com/wizardmod/wizard/internal/config"
	"github.com/wizardmod/wizard/internal/logging"
	"github.com/wizardmod/wizard/internal/observability"
	"github.com/wizardmod/wizard/internal/plugin"
	"github.com/wizardmod/wizard/internal/plugin/capability"
	"github.com/wizardmod/wizard/internal/plugin/goplugin"
	"github.com/wizardmod/wizard/internal/plugin/hostfunc"
	pluginlua "github.com/wizardmod/wizard/internal/plugin/lua"
	"github.com/wizardmod/wizard/internal/store"
	"github.com/wizardmod/wizard/pkg/errutil"
)

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Load every plugin and serve until interrupted",
		Long: `Load the built-in plugins and every plugin discovered in the plugins
directory in dependency order, print the load report and keep the plugins
running until SIGINT or SIGTERM. Plugins are unloaded in reverse order on exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
}

// runWithDeps runs the host with injectable dependencies.
// If deps is nil, default implementations are used.
func runWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *RunDeps) error {
	if deps == nil {
		deps = &RunDeps{}
	}
	if deps.KVFactory == nil {
		deps.KVFactory = func(ctx context.Context, dsn string) (KVStore, error) {
			return store.Connect(ctx, dsn, store.ConnectOptions{Attempts: 5, Backoff: 250 * time.Millisecond})
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, opts ...observability.Option) ObservabilityServer {
			return observability.NewServer(addr, ready, opts...)
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	logger := logging.SetDefault(logging.Options{
		Service: "wizard",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var kv KVStore
	if cfg.KV.DSN != "" {
		var err error
		kv, err = deps.KVFactory(ctx, cfg.KV.DSN)
		if err != nil {
			return oops.Code("KV_CONNECT_FAILED").With("operation", "connect plugin store").Wrap(err)
		}
		defer kv.Close()
		logger.Info("plugin store connected", "backend", "postgres")
	}

	manager := newManager(cfg, logger, kv)

	var obsServer ObservabilityServer
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, manager.Ready,
			observability.WithCollectors(plugin.RegisterMetrics),
			observability.WithStatus(func() any { return manager.Status() }),
		)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.MetricsAddr).Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	report, err := manager.LoadAll(ctx, builtin.Modules(builtin.Options{
		BannedAddresses: cfg.Banlist.Addresses,
		Admins:          cfg.Banlist.Admins,
	})...)
	if err != nil {
		shutdown(logger, manager, obsServer)
		return oops.Code("LOAD_FAILED").With("plugins_dir", cfg.PluginsDir).Wrap(err)
	}
	fmt.Fprint(cmd.OutOrStdout(), report.Text())
	logger.Info("plugins loaded",
		"report_id", report.ID.String(),
		"loaded", len(report.Loaded),
		"failed", len(report.Failures),
	)
	if deps.Started != nil {
		deps.Started()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	shutdown(logger, manager, obsServer)
	logger.Info("shutdown complete")
	return nil
}

// newManager builds the plugin manager and the runtimes cfg enables. A nil
// kv keeps plugin values in memory.
func newManager(cfg *config.Config, logger *slog.Logger, kv hostfunc.KVStore) *plugin.Manager {
	enforcer := capability.NewEnforcer()
	opts := []plugin.ManagerOption{
		plugin.WithLogger(logger),
		plugin.WithEnforcer(enforcer),
		plugin.WithDisabled(cfg.Disabled...),
	}
	if cfg.Lua.Enabled {
		if kv == nil {
			kv = store.NewMemoryKV()
		}
		hf := hostfunc.New(kv, enforcer, hostfunc.WithLogger(logger))
		opts = append(opts, plugin.WithLuaHost(pluginlua.NewHost(hf,
			pluginlua.WithCallTimeout(cfg.Lua.CallTimeout),
			pluginlua.WithLogger(logger),
		)))
	}
	if cfg.Binary.Enabled {
		opts = append(opts, plugin.WithBinaryHost(goplugin.NewHost(
			goplugin.WithCallTimeout(cfg.Binary.CallTimeout),
			goplugin.WithLogger(logger),
		)))
	}
	return plugin.NewManager(cfg.PluginsDir, opts...)
}

// shutdown unloads every plugin and stops the observability server.
func shutdown(logger *slog.Logger, manager *plugin.Manager, obsServer ObservabilityServer) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := manager.Close(ctx); err != nil {
		errutil.LogError(logger, "error closing plugin manager", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(ctx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}
}

func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
