// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

// Package config loads wizard configuration from defaults, an optional
// YAML file and command-line flags, in that order of precedence.
package config

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/wizardmod/wizard/internal/logging"
)

// Config is the complete wizard configuration.
type Config struct {
	PluginsDir  string        `koanf:"plugins_dir"`
	Disabled    []string      `koanf:"disabled"`
	Log         LogConfig     `koanf:"log"`
	MetricsAddr string        `koanf:"metrics_addr"`
	Lua         LuaConfig     `koanf:"lua"`
	Binary      BinaryConfig  `koanf:"binary"`
	Banlist     BanlistConfig `koanf:"banlist"`
	KV          KVConfig      `koanf:"kv"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// LuaConfig configures the Lua runtime.
type LuaConfig struct {
	Enabled     bool          `koanf:"enabled"`
	CallTimeout time.Duration `koanf:"call_timeout"`
}

// BinaryConfig configures the go-plugin runtime.
type BinaryConfig struct {
	Enabled     bool          `koanf:"enabled"`
	CallTimeout time.Duration `koanf:"call_timeout"`
}

// BanlistConfig configures the built-in banlist.
type BanlistConfig struct {
	Addresses []string `koanf:"addresses"`
	// Admins are the auth ids allowed to use the ban command.
	Admins []string `koanf:"admins"`
}

// KVConfig selects the plugin key/value backing. An empty DSN keeps
// values in memory.
type KVConfig struct {
	DSN string `koanf:"dsn"`
}

// Defaults returns the built-in value of every key.
func Defaults() map[string]any {
	return map[string]any{
		"plugins_dir":         "plugins",
		"disabled":            []string{},
		"log.format":          "json",
		"log.level":           "info",
		"metrics_addr":        "127.0.0.1:9100",
		"lua.enabled":         true,
		"lua.call_timeout":    "2s",
		"binary.enabled":      true,
		"binary.call_timeout": "5s",
		"banlist.addresses":   []string{},
		"banlist.admins":      []string{},
		"kv.dsn":              "",
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"plugins-dir":         "plugins_dir",
	"disable":             "disabled",
	"log-format":          "log.format",
	"log-level":           "log.level",
	"metrics-addr":        "metrics_addr",
	"lua":                 "lua.enabled",
	"lua-call-timeout":    "lua.call_timeout",
	"binary":              "binary.enabled",
	"binary-call-timeout": "binary.call_timeout",
	"ban":                 "banlist.addresses",
	"ban-admin":           "banlist.admins",
	"kv-dsn":              "kv.dsn",
}

// BindFlags registers the configuration flags on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("plugins-dir", "plugins", "directory scanned for plugin manifests")
	fs.StringSlice("disable", nil, "plugin names to skip (repeatable)")
	fs.String("log-format", "json", "log format (json or text)")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	fs.Bool("lua", true, "enable the Lua runtime")
	fs.Duration("lua-call-timeout", 2*time.Second, "bound on every call into a Lua script (0 = none)")
	fs.Bool("binary", true, "enable the binary plugin runtime")
	fs.Duration("binary-call-timeout", 5*time.Second, "bound on every call into a plugin process (0 = none)")
	fs.StringSlice("ban", nil, "address pattern or CIDR rejected by the banlist (repeatable)")
	fs.StringSlice("ban-admin", nil, "auth id allowed to use the ban command (repeatable)")
	fs.String("kv-dsn", "", "PostgreSQL DSN for the plugin key/value store (empty = in memory)")
}

// Load builds the configuration. path may be empty; flags may be nil.
// Only flags set explicitly on the command line override the file.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	errb := oops.In("config").Code("CONFIG_LOAD_FAILED")

	for key, val := range Defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, errb.With("key", key).Wrapf(err, "set default")
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errb.With("path", path).Hint("check the --config path").Wrapf(err, "load config file")
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, errb.Wrapf(err, "load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errb.Wrapf(err, "decode config")
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	errb := oops.In("config").Code("CONFIG_INVALID")
	if c.PluginsDir == "" {
		return errb.New("plugins_dir is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return errb.With("log.format", c.Log.Format).Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errb.With("log.level", c.Log.Level).Wrap(err)
	}
	if c.Lua.CallTimeout < 0 {
		return errb.With("lua.call_timeout", c.Lua.CallTimeout).New("lua.call_timeout must not be negative")
	}
	if c.Binary.CallTimeout < 0 {
		return errb.With("binary.call_timeout", c.Binary.CallTimeout).New("binary.call_timeout must not be negative")
	}
	return nil
}
