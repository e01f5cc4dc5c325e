// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package capability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizardmod/wizard/internal/plugin/capability"
	"github.com/wizardmod/wizard/pkg/errutil"
)

func TestEnforcer_Check(t *testing.T) {
	tests := []struct {
		name       string
		grants     []string
		capability string
		want       bool
	}{
		{"exact match", []string{"plugin.lookup"}, "plugin.lookup", true},
		{"single segment wildcard", []string{"plugin.*"}, "plugin.lookup", true},
		{"single segment does not cross dots", []string{"plugin.*"}, "plugin.lookup.name", false},
		{"super wildcard", []string{"**"}, "plugin.lookup.name", true},
		{"no match", []string{"plugin.list"}, "plugin.lookup", false},
		{"empty grants", []string{}, "plugin.lookup", false},
		{"prefix is not a match", []string{"plugin"}, "plugin.lookup", false},
		{"empty capability denied", []string{"**"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := capability.NewEnforcer()
			require.NoError(t, e.SetGrants("greeter", tt.grants))
			assert.Equal(t, tt.want, e.Check("greeter", tt.capability))
		})
	}
}

func TestEnforcer_UnknownPluginDenied(t *testing.T) {
	var e capability.Enforcer
	assert.False(t, e.Check("ghost", capability.PluginLookup))
}

func TestEnforcer_SetGrants_InvalidPatternIsAtomic(t *testing.T) {
	e := capability.NewEnforcer()
	require.NoError(t, e.SetGrants("greeter", []string{"plugin.lookup"}))

	require.Error(t, e.SetGrants("greeter", []string{"plugin.list", "plugin.[unclosed"}))
	require.Error(t, e.SetGrants("greeter", []string{""}))
	require.Error(t, e.SetGrants("", []string{"**"}))

	assert.Equal(t, []string{"plugin.lookup"}, e.Grants("greeter"))
}

func TestEnforcer_GrantsIsACopy(t *testing.T) {
	e := capability.NewEnforcer()
	caps := []string{"plugin.lookup"}
	require.NoError(t, e.SetGrants("greeter", caps))
	caps[0] = "**"

	got := e.Grants("greeter")
	got[0] = "**"

	assert.Equal(t, []string{"plugin.lookup"}, e.Grants("greeter"))
	assert.Nil(t, e.Grants("ghost"))
}

func TestEnforcer_RemoveGrantsAndPlugins(t *testing.T) {
	e := capability.NewEnforcer()
	require.NoError(t, e.SetGrants("b", nil))
	require.NoError(t, e.SetGrants("a", []string{"**"}))
	assert.Equal(t, []string{"a", "b"}, e.Plugins())

	e.RemoveGrants("a")
	e.RemoveGrants("never-registered")

	assert.Equal(t, []string{"b"}, e.Plugins())
	assert.False(t, e.Check("a", capability.PluginLookup))
}

func TestEnforcer_Require(t *testing.T) {
	e := capability.NewEnforcer()
	require.NoError(t, e.SetGrants("greeter", []string{capability.PluginList}))

	require.NoError(t, e.Require("greeter", capability.PluginList))

	err := e.Require("greeter", capability.PluginLookup)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, capability.CodeDenied)
	errutil.AssertErrorContext(t, err, "capability", capability.PluginLookup)
}
