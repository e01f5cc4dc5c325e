// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/wizardmod/wizard/internal/store"
)

// Migrator is the schema migration surface used by the migrate command.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Close() error
}

// migratorFactory opens a Migrator for a database URL. Tests replace it.
var migratorFactory = func(url string) (Migrator, error) {
	return store.NewMigrator(url)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the plugin key/value store schema",
		Long: `Apply or roll back the PostgreSQL migrations of the plugin key/value
store configured by kv.dsn (--kv-dsn).`,
	}
	cmd.AddCommand(newMigrateStepCmd("up", "Apply all pending migrations", func(cmd *cobra.Command, m Migrator) error {
		if err := m.Up(); err != nil {
			return err //nolint:wrapcheck // migrator errors carry their own code
		}
		cmd.Println("Migrations applied")
		return nil
	}))
	down := newMigrateStepCmd("down", "Roll back migrations", func(cmd *cobra.Command, m Migrator) error {
		steps, err := cmd.Flags().GetInt("steps")
		if err != nil {
			return err //nolint:wrapcheck // flag is registered below
		}
		if steps < 0 {
			return oops.Code("CONFIG_INVALID").With("steps", steps).Errorf("--steps must not be negative")
		}
		if steps == 0 {
			err = m.Down()
		} else {
			err = m.Steps(-steps)
		}
		if err != nil {
			return err //nolint:wrapcheck // migrator errors carry their own code
		}
		cmd.Println("Migrations rolled back")
		return nil
	})
	down.Flags().Int("steps", 0, "number of migrations to roll back (0 = all)")
	cmd.AddCommand(down)
	cmd.AddCommand(newMigrateStepCmd("version", "Print the current schema version", func(cmd *cobra.Command, m Migrator) error {
		v, dirty, err := m.Version()
		if err != nil {
			return err //nolint:wrapcheck // migrator errors carry their own code
		}
		if dirty {
			cmd.Printf("Schema version %d (dirty)\n", v)
			return nil
		}
		cmd.Printf("Schema version %d\n", v)
		return nil
	}))
	return cmd
}

func newMigrateStepCmd(use, short string, step func(*cobra.Command, Migrator) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.KV.DSN == "" {
				return oops.Code("CONFIG_INVALID").Hint("set kv.dsn in the config file or pass --kv-dsn").
					Errorf("kv.dsn is required for migrations")
			}
			m, err := migratorFactory(cfg.KV.DSN)
			if err != nil {
				return err //nolint:wrapcheck // migrator errors carry their own code
			}
			defer func() {
				if closeErr := m.Close(); closeErr != nil {
					cmd.PrintErrln("warning: closing migrator:", closeErr)
				}
			}()
			return step(cmd, m)
		},
	}
}
