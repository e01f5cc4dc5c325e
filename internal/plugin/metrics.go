// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package plugin

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Load outcome labels.
const (
	LoadStatusLoaded = "loaded"
	LoadStatusFailed = "failed"
)

// PluginLoads counts load attempts by origin and outcome.
var PluginLoads = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wizard_plugin_loads_total",
		Help: "Total number of plugin load attempts",
	},
	[]string{"origin", "status"},
)

// PluginLoadDuration observes OnLoad plus OnStart time.
var PluginLoadDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "wizard_plugin_load_duration_seconds",
		Help:    "Plugin load and start duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"origin"},
)

// PluginsRunning is the number of plugins in the Running state.
var PluginsRunning = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "wizard_plugins_running",
		Help: "Number of running plugins",
	},
)

// HookDispatches counts dispatches by hook and folded result.
var HookDispatches = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wizard_hook_dispatches_total",
		Help: "Total number of hook dispatches",
	},
	[]string{"hook", "result"},
)

// HookDuration observes the time to run a full listener chain.
var HookDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "wizard_hook_duration_seconds",
		Help:    "Hook chain duration in seconds",
		Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
	},
	[]string{"hook"},
)

// ListenerFaults counts listener panics and invalid results.
var ListenerFaults = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wizard_hook_listener_faults_total",
		Help: "Total number of listener panics or invalid results",
	},
	[]string{"plugin", "hook"},
)

// RegisterMetrics registers the plugin metrics with reg.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(PluginLoads)
	reg.MustRegister(PluginLoadDuration)
	reg.MustRegister(PluginsRunning)
	reg.MustRegister(HookDispatches)
	reg.MustRegister(HookDuration)
	reg.MustRegister(ListenerFaults)
}

// RecordLoad records one load attempt.
func RecordLoad(origin Origin, status string, d time.Duration) {
	PluginLoads.WithLabelValues(string(origin), status).Inc()
	if status == LoadStatusLoaded {
		PluginLoadDuration.WithLabelValues(string(origin)).Observe(d.Seconds())
	}
}

// RecordDispatch records one hook chain.
func RecordDispatch(hook, result string, d time.Duration) {
	HookDispatches.WithLabelValues(hook, result).Inc()
	HookDuration.WithLabelValues(hook).Observe(d.Seconds())
}

// RecordListenerFault records a panicking or misbehaving listener.
func RecordListenerFault(plugin, hook string) {
	ListenerFaults.WithLabelValues(plugin, hook).Inc()
}
