// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizardmod/wizard/internal/config"
	"github.com/wizardmod/wizard/pkg/errutil"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wizard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func flagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("", flagSet(t))
	require.NoError(t, err)

	assert.Equal(t, "plugins", cfg.PluginsDir)
	assert.Empty(t, cfg.Disabled)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
	assert.True(t, cfg.Lua.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Lua.CallTimeout)
	assert.True(t, cfg.Binary.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Binary.CallTimeout)
	assert.Empty(t, cfg.Banlist.Admins)
	assert.Empty(t, cfg.KV.DSN)
	require.NoError(t, cfg.Validate())
}

func TestLoad_NilFlags(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "plugins", cfg.PluginsDir)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
plugins_dir: /srv/wizard/plugins
disabled: [echo, greeter]
log:
  format: text
  level: debug
metrics_addr: ""
lua:
  call_timeout: 750ms
binary:
  enabled: false
banlist:
  addresses: ["10.0.0.*"]
  admins: ["STEAM_0:1:42"]
kv:
  dsn: postgres://wizard@localhost/wizard
`)
	cfg, err := config.Load(path, flagSet(t))
	require.NoError(t, err)

	assert.Equal(t, "/srv/wizard/plugins", cfg.PluginsDir)
	assert.Equal(t, []string{"echo", "greeter"}, cfg.Disabled)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Empty(t, cfg.MetricsAddr)
	assert.True(t, cfg.Lua.Enabled)
	assert.Equal(t, 750*time.Millisecond, cfg.Lua.CallTimeout)
	assert.False(t, cfg.Binary.Enabled)
	assert.Equal(t, []string{"10.0.0.*"}, cfg.Banlist.Addresses)
	assert.Equal(t, []string{"STEAM_0:1:42"}, cfg.Banlist.Admins)
	assert.Equal(t, "postgres://wizard@localhost/wizard", cfg.KV.DSN)
}

func TestLoad_ExplicitFlagsWin(t *testing.T) {
	path := writeConfig(t, "log:\n  format: text\n  level: warn\nlua:\n  enabled: true\n")
	cfg, err := config.Load(path, flagSet(t, "--log-level=error", "--lua=false", "--disable=echo", "--ban=192.168.0.0/16", "--ban-admin=STEAM_0:0:7"))
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.Log.Format, "unset flag keeps the file value")
	assert.Equal(t, "error", cfg.Log.Level)
	assert.False(t, cfg.Lua.Enabled)
	assert.Equal(t, []string{"echo"}, cfg.Disabled)
	assert.Equal(t, []string{"192.168.0.0/16"}, cfg.Banlist.Addresses)
	assert.Equal(t, []string{"STEAM_0:0:7"}, cfg.Banlist.Admins)
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")

	_, err = config.Load(writeConfig(t, "log: [unterminated"), nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		cfg, err := config.Load("", nil)
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty plugins dir", func(c *config.Config) { c.PluginsDir = "" }},
		{"unknown log format", func(c *config.Config) { c.Log.Format = "xml" }},
		{"unknown log level", func(c *config.Config) { c.Log.Level = "verbose" }},
		{"negative lua timeout", func(c *config.Config) { c.Lua.CallTimeout = -time.Second }},
		{"negative binary timeout", func(c *config.Config) { c.Binary.CallTimeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		})
	}
}
