// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

// Package store provides the key-value storage behind the plugin kv_*
// host functions: PostgreSQL when a DSN is configured, memory otherwise.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// poolIface is the subset of pgxpool.Pool the store uses.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}
