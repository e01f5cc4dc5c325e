// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package plugin_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizardmod/wizard/internal/plugin"
)

func TestGenerateSchema(t *testing.T) {
	data, err := plugin.GenerateSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, plugin.SchemaID, doc["$id"])
	assert.Equal(t, "Wizard Plugin Manifest", doc["title"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"name", "version", "type", "dependencies", "capabilities", "lua-plugin", "binary-plugin"} {
		assert.Contains(t, props, key)
	}
	assert.Subset(t, doc["required"], []any{"name", "version", "type"})
}

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		valid bool
	}{
		{
			name:  "lua plugin",
			yaml:  "name: greeter\nversion: 1.0.0\ntype: lua\nlua-plugin:\n  entry: main.lua\n",
			valid: true,
		},
		{
			name:  "binary plugin with dependencies",
			yaml:  "name: echo\nversion: 1.0.0\ntype: binary\ndependencies:\n  - name: banlist\n    optional: true\nbinary-plugin:\n  executable: echo\n",
			valid: true,
		},
		{
			name: "missing version",
			yaml: "name: greeter\ntype: lua\n",
		},
		{
			name: "unknown type",
			yaml: "name: greeter\nversion: 1.0.0\ntype: wasm\n",
		},
		{
			name: "bad name",
			yaml: "name: 9lives\nversion: 1.0.0\ntype: lua\n",
		},
		{
			name: "unknown field",
			yaml: "name: greeter\nversion: 1.0.0\ntype: lua\nevents: [say]\n",
		},
		{
			name: "version is not a string",
			yaml: "name: greeter\nversion: 3\ntype: lua\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := plugin.ValidateSchema([]byte(tt.yaml))
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateSchema_EmptyAndMalformed(t *testing.T) {
	assert.Error(t, plugin.ValidateSchema(nil))
	assert.Error(t, plugin.ValidateSchema([]byte("name: [")))
}
