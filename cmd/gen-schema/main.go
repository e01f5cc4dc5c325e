// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

// Command gen-schema writes the plugin manifest JSON Schema.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/wizardmod/wizard/internal/plugin"
)

func main() {
	out := pflag.StringP("out", "o", filepath.Join("schemas", "plugin.schema.json"), "output file")
	pflag.Parse()

	if err := generate(*out, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "gen-schema: %v\n", err)
		os.Exit(1)
	}
}

func generate(outPath string, w io.Writer) error {
	schema, err := plugin.GenerateSchema()
	if err != nil {
		return oops.In("gen-schema").Wrapf(err, "generate schema")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return oops.In("gen-schema").With("path", outPath).Wrapf(err, "create directory")
	}
	if err := os.WriteFile(outPath, schema, 0o600); err != nil {
		return oops.In("gen-schema").With("path", outPath).Wrapf(err, "write schema")
	}
	fmt.Fprintf(w, "Generated %s\n", outPath)
	return nil
}
