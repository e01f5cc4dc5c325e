// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package plugin

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wizardmod/wizard/internal/logging"
	"github.com/wizardmod/wizard/internal/plugin/capability"
	"github.com/wizardmod/wizard/pkg/errutil"
	"github.com/wizardmod/wizard/pkg/wizard"
)

var tracer = otel.Tracer("wizard/plugin")

// Manager loads plugins in dependency order, drives their lifecycle and
// owns the hook dispatcher.
//
// Load, unload, pause and dispatch calls must come from one goroutine (the
// engine thread). Status accessors are safe from any goroutine.
type Manager struct {
	pluginsDir string
	disabled   []string
	hosts      map[Type]Host
	enforcer   *capability.Enforcer
	logger     *slog.Logger
	registry   *Registry
	dispatcher *Dispatcher
	ready      atomic.Bool

	mu         sync.Mutex
	allLoaded  map[wizard.PluginID]bool
	failures   []Failure
	lastReport *LoadReport
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithHost sets the runtime for manifests of type t.
func WithHost(t Type, h Host) ManagerOption {
	return func(m *Manager) {
		m.hosts[t] = h
	}
}

// WithLuaHost sets the Lua host for the manager.
func WithLuaHost(h Host) ManagerOption {
	return WithHost(TypeLua, h)
}

// WithBinaryHost sets the binary plugin host for the manager.
func WithBinaryHost(h Host) ManagerOption {
	return WithHost(TypeBinary, h)
}

// WithEnforcer shares a capability enforcer with the runtimes.
func WithEnforcer(e *capability.Enforcer) ManagerOption {
	return func(m *Manager) {
		m.enforcer = e
	}
}

// WithLogger sets the manager logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithDisabled skips plugins with the given names.
func WithDisabled(names ...string) ManagerOption {
	return func(m *Manager) {
		m.disabled = append(m.disabled, names...)
	}
}

// NewManager creates a plugin manager. An empty pluginsDir disables discovery.
func NewManager(pluginsDir string, opts ...ManagerOption) *Manager {
	m := &Manager{
		pluginsDir: pluginsDir,
		hosts:      make(map[Type]Host),
		registry:   NewRegistry(),
		allLoaded:  make(map[wizard.PluginID]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.enforcer == nil {
		m.enforcer = capability.NewEnforcer()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.dispatcher = NewDispatcher(m.registry, m.logger)
	return m
}

// candidate is one plugin proposed for loading.
type candidate struct {
	desc     wizard.Descriptor
	origin   Origin
	module   *wizard.Module
	manifest *Manifest
	dir      string
}

func moduleCandidate(mod wizard.Module) candidate {
	return candidate{desc: mod.Descriptor.Clone(), origin: OriginNative, module: &mod}
}

func manifestCandidate(dp *DiscoveredPlugin) candidate {
	return candidate{
		desc:     dp.Manifest.Descriptor(),
		origin:   originFor(dp.Manifest.Type),
		manifest: dp.Manifest,
		dir:      dp.Dir,
	}
}

func (c candidate) capabilities() []string {
	if c.module != nil {
		if c.module.Capabilities == nil {
			return []string{capability.All}
		}
		return c.module.Capabilities
	}
	return c.manifest.Capabilities
}

// Registry exposes the plugin registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Dispatcher returns the hook dispatcher the engine raises events through.
func (m *Manager) Dispatcher() *Dispatcher {
	return m.dispatcher
}

// Ready reports whether the initial batch has finished loading.
func (m *Manager) Ready() bool {
	return m.ready.Load()
}

// Failures returns every failure reported since the manager was created.
func (m *Manager) Failures() []Failure {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.failures)
}

// LastReport returns the report of the most recent batch, or nil.
func (m *Manager) LastReport() *LoadReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReport
}

// Discover finds plugins in the plugins directory, honoring the disabled list.
func (m *Manager) Discover(_ context.Context) ([]*DiscoveredPlugin, []Failure, error) {
	if m.pluginsDir == "" {
		return nil, nil, nil
	}
	return Discover(m.pluginsDir, m.disabled)
}

// LoadAll loads the initial batch: the given native modules plus every
// discovered manifest. Once the batch is done each started plugin receives
// OnAllLoaded, in load order. Plugin failures are reported, not returned;
// the error is only for an unreadable plugins directory.
func (m *Manager) LoadAll(ctx context.Context, modules ...wizard.Module) (*LoadReport, error) {
	discovered, invalid, err := m.Discover(ctx)
	if err != nil {
		return nil, err
	}

	cands := make([]candidate, 0, len(modules)+len(discovered))
	for _, mod := range modules {
		if slices.Contains(m.disabled, mod.Descriptor.Name) {
			m.logger.Info("plugin disabled", "plugin", mod.Descriptor.Name)
			continue
		}
		cands = append(cands, moduleCandidate(mod))
	}
	for _, dp := range discovered {
		cands = append(cands, manifestCandidate(dp))
	}

	report := m.loadBatch(ctx, cands, invalid, false)

	for _, id := range m.registry.Running() {
		m.notifyAllLoaded(ctx, id)
	}
	m.ready.Store(true)
	return report, nil
}

// Load loads one native module after startup. The plugin receives
// OnAllLoaded right after OnStart once the initial batch is done.
func (m *Manager) Load(ctx context.Context, mod wizard.Module) *LoadReport {
	return m.loadBatch(ctx, []candidate{moduleCandidate(mod)}, nil, m.ready.Load())
}

// LoadDir loads the manifests under dir as a late batch.
func (m *Manager) LoadDir(ctx context.Context, dir string) (*LoadReport, error) {
	discovered, invalid, err := Discover(dir, m.disabled)
	if err != nil {
		return nil, err
	}
	cands := make([]candidate, 0, len(discovered))
	for _, dp := range discovered {
		cands = append(cands, manifestCandidate(dp))
	}
	return m.loadBatch(ctx, cands, invalid, m.ready.Load()), nil
}

func (m *Manager) loadBatch(ctx context.Context, cands []candidate, pre []Failure, late bool) *LoadReport {
	report := newLoadReport(time.Now())
	report.Failures = append(report.Failures, pre...)

	byName := make(map[string]candidate, len(cands))
	descs := make([]wizard.Descriptor, 0, len(cands))
	rejected := make([]string, 0, len(pre))
	for _, f := range pre {
		rejected = append(rejected, f.Plugin)
	}
	for _, c := range cands {
		name := c.desc.Name
		if err := c.desc.Validate(); err != nil {
			report.Failures = append(report.Failures, Failure{Plugin: name, Err: ErrLoadFailed(name, err)})
			rejected = append(rejected, name)
			continue
		}
		_, inBatch := byName[name]
		_, registered := m.registry.FindByName(name)
		if inBatch || registered {
			report.Failures = append(report.Failures, Failure{Plugin: name, Err: ErrDuplicateName(name)})
			rejected = append(rejected, name)
			continue
		}
		byName[name] = c
		descs = append(descs, c.desc)
	}

	available := make([]wizard.Descriptor, 0, m.registry.Len())
	for _, rec := range m.registry.All() {
		available = append(available, rec.Descriptor)
	}

	plan := Plan(descs, available, rejected)
	for _, edge := range plan.Ignored {
		m.logger.Debug("optional dependency absent", "edge", edge)
	}
	report.Order = plan.Order
	report.Failures = append(report.Failures, plan.Failures...)

	for _, name := range plan.Order {
		id, err := m.loadOne(ctx, byName[name])
		if err != nil {
			report.Failures = append(report.Failures, Failure{Plugin: name, Err: err})
			continue
		}
		report.Loaded = append(report.Loaded, name)
		if late {
			m.notifyAllLoaded(ctx, id)
		}
	}

	for _, f := range report.Failures {
		errutil.LogError(m.logger, "plugin not loaded", f.Err)
	}
	slices.SortStableFunc(report.Failures, func(a, b Failure) int {
		return cmp.Compare(a.Plugin, b.Plugin)
	})
	report.Duration = time.Since(report.StartedAt)

	m.mu.Lock()
	m.failures = append(m.failures, report.Failures...)
	m.lastReport = report
	m.mu.Unlock()

	m.logger.Info("plugin batch finished",
		"report", report.ID.String(),
		"loaded", len(report.Loaded),
		"failed", len(report.Failures),
		"duration", report.Duration)
	return report
}

// loadOne drives one plugin from instantiation to Running.
func (m *Manager) loadOne(ctx context.Context, c candidate) (wizard.PluginID, error) {
	name := c.desc.Name
	ctx, span := tracer.Start(ctx, "plugin.load", trace.WithAttributes(
		attribute.String("plugin.name", name),
		attribute.String("plugin.origin", string(c.origin)),
	))
	defer span.End()
	start := time.Now()

	fail := func(err error) (wizard.PluginID, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		RecordLoad(c.origin, LoadStatusFailed, time.Since(start))
		return wizard.NullPlugin, err
	}

	// Dependencies that failed earlier in this batch are absent by now,
	// and a registered dependency only counts while it is Running.
	for _, dep := range c.desc.Dependencies {
		if dep.Optional {
			continue
		}
		id, ok := m.registry.FindByName(dep.Name)
		if !ok {
			return fail(ErrDependencyFailed(name, dep.Name))
		}
		if rec, ok := m.registry.Get(id); !ok || rec.State != StateRunning {
			return fail(ErrDependencyFailed(name, dep.Name))
		}
	}

	instance, err := m.instantiate(ctx, c)
	if err != nil {
		return fail(ErrLoadFailed(name, err))
	}

	id, err := m.registry.Register(c.desc, instance, c.origin)
	if err != nil {
		m.release(ctx, name, c.origin)
		return fail(err)
	}
	span.SetAttributes(attribute.Int64("plugin.id", int64(id)))
	logger := logging.ForPlugin(m.logger, name, id)

	if err := m.enforcer.SetGrants(name, c.capabilities()); err != nil {
		m.discard(ctx, id, name, c.origin)
		return fail(ErrLoadFailed(name, err))
	}

	bridge := &hostBridge{m: m, id: id, name: name, logger: logger}
	if err := safeCall(func() error { return instance.OnLoad(ctx, bridge) }); err != nil {
		m.discard(ctx, id, name, c.origin)
		return fail(ErrLoadFailed(name, err))
	}
	m.mustTransition(id, StateLoaded)
	m.mustTransition(id, StateStarting)

	if err := safeCall(func() error { return instance.OnStart(ctx) }); err != nil {
		m.teardown(ctx, logger, instance)
		m.discard(ctx, id, name, c.origin)
		return fail(ErrLoadFailed(name, err))
	}
	m.mustTransition(id, StateRunning)

	PluginsRunning.Inc()
	RecordLoad(c.origin, LoadStatusLoaded, time.Since(start))
	logger.InfoContext(ctx, "plugin loaded",
		"version", c.desc.Version,
		"origin", string(c.origin),
		"hooks", wizard.HookSetOf(instance).String())
	return id, nil
}

func (m *Manager) instantiate(ctx context.Context, c candidate) (wizard.Plugin, error) {
	if c.module != nil {
		if c.module.New == nil {
			return nil, errors.New("module has no constructor")
		}
		var p wizard.Plugin
		err := safeCall(func() error {
			p = c.module.New()
			return nil
		})
		if err == nil && p == nil {
			err = errors.New("module constructor returned nil")
		}
		return p, err
	}

	h, ok := m.hosts[c.manifest.Type]
	if !ok || h == nil {
		return nil, fmt.Errorf("no %s host configured", c.manifest.Type)
	}
	p, err := h.Load(ctx, c.manifest, c.dir)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// release frees runtime resources held for a manifest plugin.
func (m *Manager) release(ctx context.Context, name string, origin Origin) {
	t, ok := typeFor(origin)
	if !ok {
		return
	}
	if h := m.hosts[t]; h != nil {
		if err := h.Unload(ctx, name); err != nil {
			errutil.LogWarn(m.logger.With("plugin", name), "host unload failed", err)
		}
	}
}

// discard removes a plugin that failed before reaching Running.
func (m *Manager) discard(ctx context.Context, id wizard.PluginID, name string, origin Origin) {
	_ = m.registry.SetState(id, StateFailed)
	_ = m.registry.Unregister(id)
	m.enforcer.RemoveGrants(name)
	m.release(ctx, name, origin)
}

// teardown runs OnEnd then OnUnload; failures are logged and swallowed.
func (m *Manager) teardown(ctx context.Context, logger *slog.Logger, p wizard.Plugin) {
	if err := safeCall(func() error { return p.OnEnd(ctx) }); err != nil {
		errutil.LogWarn(logger, "plugin OnEnd failed", err)
	}
	if err := safeCall(func() error { return p.OnUnload(ctx) }); err != nil {
		errutil.LogWarn(logger, "plugin OnUnload failed", err)
	}
}

// mustTransition applies a transition the manager itself sequenced.
func (m *Manager) mustTransition(id wizard.PluginID, to State) {
	if err := m.registry.SetState(id, to); err != nil {
		errutil.LogError(m.logger, "lifecycle out of sequence", err)
	}
}

func (m *Manager) notifyAllLoaded(ctx context.Context, id wizard.PluginID) {
	m.mu.Lock()
	if m.allLoaded[id] {
		m.mu.Unlock()
		return
	}
	m.allLoaded[id] = true
	m.mu.Unlock()

	rec, ok := m.registry.Get(id)
	if !ok {
		return
	}
	if err := safeCall(func() error { rec.Instance.OnAllLoaded(ctx); return nil }); err != nil {
		errutil.LogWarn(logging.ForPlugin(m.logger, rec.Descriptor.Name, id), "plugin OnAllLoaded failed", err)
	}
}

// FindPluginByName returns the id of a running plugin, or NullPlugin.
func (m *Manager) FindPluginByName(name string) wizard.PluginID {
	id, ok := m.registry.FindByName(name)
	if !ok {
		return wizard.NullPlugin
	}
	if rec, ok := m.registry.Get(id); !ok || rec.State != StateRunning {
		return wizard.NullPlugin
	}
	return id
}

// Pause suspends a running plugin. Paused plugins get no hooks and are
// invisible to FindPluginByName.
func (m *Manager) Pause(ctx context.Context, id wizard.PluginID) error {
	rec, ok := m.registry.Get(id)
	if !ok {
		return ErrPluginNotFound(id)
	}
	if err := m.registry.SetState(id, StatePausing); err != nil {
		return err
	}
	PluginsRunning.Dec()
	logger := logging.ForPlugin(m.logger, rec.Descriptor.Name, id)
	if err := safeCall(func() error { rec.Instance.OnPause(ctx); return nil }); err != nil {
		errutil.LogWarn(logger, "plugin OnPause failed", err)
	}
	m.mustTransition(id, StatePaused)
	logger.InfoContext(ctx, "plugin paused")
	return nil
}

// Unpause resumes a paused plugin.
func (m *Manager) Unpause(ctx context.Context, id wizard.PluginID) error {
	rec, ok := m.registry.Get(id)
	if !ok {
		return ErrPluginNotFound(id)
	}
	if err := m.registry.SetState(id, StateUnpausing); err != nil {
		return err
	}
	logger := logging.ForPlugin(m.logger, rec.Descriptor.Name, id)
	if err := safeCall(func() error { rec.Instance.OnUnpause(ctx); return nil }); err != nil {
		errutil.LogWarn(logger, "plugin OnUnpause failed", err)
	}
	m.mustTransition(id, StateRunning)
	PluginsRunning.Inc()
	logger.InfoContext(ctx, "plugin unpaused")
	return nil
}

// Unload unloads a plugin after first unloading every plugin that requires
// it, directly or transitively. Plugins go down in reverse load order.
func (m *Manager) Unload(ctx context.Context, id wizard.PluginID) error {
	rec, ok := m.registry.Get(id)
	if !ok {
		return ErrPluginNotFound(id)
	}

	all := m.registry.All()
	doomed := map[string]bool{rec.Descriptor.Name: true}
	for changed := true; changed; {
		changed = false
		for _, r := range all {
			if doomed[r.Descriptor.Name] {
				continue
			}
			for _, dep := range r.Descriptor.Dependencies {
				if !dep.Optional && doomed[dep.Name] {
					doomed[r.Descriptor.Name] = true
					changed = true
					break
				}
			}
		}
	}

	for i := len(all) - 1; i >= 0; i-- {
		if doomed[all[i].Descriptor.Name] {
			if err := m.unloadOne(ctx, all[i].ID); err != nil {
				errutil.LogError(m.logger, "plugin unload failed", err)
			}
		}
	}
	return nil
}

// UnloadAll unloads every plugin in reverse load order, best effort.
func (m *Manager) UnloadAll(ctx context.Context) {
	m.ready.Store(false)
	all := m.registry.All()
	for i := len(all) - 1; i >= 0; i-- {
		if err := m.unloadOne(ctx, all[i].ID); err != nil {
			errutil.LogError(m.logger, "plugin unload failed", err)
		}
	}
}

func (m *Manager) unloadOne(ctx context.Context, id wizard.PluginID) error {
	rec, ok := m.registry.Get(id)
	if !ok {
		return ErrPluginNotFound(id)
	}
	ctx, span := tracer.Start(ctx, "plugin.unload", trace.WithAttributes(
		attribute.String("plugin.name", rec.Descriptor.Name),
		attribute.Int64("plugin.id", int64(id)),
	))
	defer span.End()

	if err := m.registry.SetState(id, StateEnding); err != nil {
		return err
	}
	if rec.State == StateRunning {
		PluginsRunning.Dec()
	}

	logger := logging.ForPlugin(m.logger, rec.Descriptor.Name, id)
	m.teardown(ctx, logger, rec.Instance)
	m.release(ctx, rec.Descriptor.Name, rec.Origin)
	m.enforcer.RemoveGrants(rec.Descriptor.Name)

	m.mustTransition(id, StateUnloaded)
	_ = m.registry.Unregister(id)

	m.mu.Lock()
	delete(m.allLoaded, id)
	m.mu.Unlock()

	logger.InfoContext(ctx, "plugin unloaded")
	return nil
}

// Close unloads every plugin and shuts down the runtimes.
func (m *Manager) Close(ctx context.Context) error {
	m.UnloadAll(ctx)

	var errs []error
	for t, h := range m.hosts {
		if h == nil {
			continue
		}
		if err := h.Close(ctx); err != nil {
			errs = append(errs, oops.In("plugin").With("host", string(t)).Wrapf(err, "close %s host", t))
		}
	}
	return errors.Join(errs...)
}

// PluginStatus is the status view of one plugin.
type PluginStatus struct {
	ID      wizard.PluginID `json:"id"`
	Name    string          `json:"name"`
	Version string          `json:"version"`
	State   State           `json:"state"`
	Origin  Origin          `json:"origin"`
	Hooks   []string        `json:"hooks,omitempty"`
}

// Status is the JSON snapshot served by the observability server.
type Status struct {
	Ready      bool           `json:"ready"`
	Plugins    []PluginStatus `json:"plugins"`
	Failures   []Failure      `json:"failures,omitempty"`
	LastReport *LoadReport    `json:"last_report,omitempty"`
}

// Status returns a snapshot of the manager.
func (m *Manager) Status() Status {
	s := Status{
		Ready:      m.Ready(),
		Failures:   m.Failures(),
		LastReport: m.LastReport(),
		Plugins:    []PluginStatus{},
	}
	for _, rec := range m.registry.All() {
		ps := PluginStatus{
			ID:      rec.ID,
			Name:    rec.Descriptor.Name,
			Version: rec.Descriptor.Version,
			State:   rec.State,
			Origin:  rec.Origin,
		}
		for _, h := range rec.Hooks.Slice() {
			ps.Hooks = append(ps.Hooks, h.String())
		}
		s.Plugins = append(s.Plugins, ps)
	}
	return s
}

// safeCall runs fn, converting a panic into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = oops.In("plugin").With("panic", fmt.Sprint(r)).Errorf("panic: %v", r)
		}
	}()
	return fn()
}
