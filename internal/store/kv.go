// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// MaxValueSize bounds a single stored value.
const MaxValueSize = 64 * 1024

func checkValueSize(namespace, key string, value []byte) error {
	if len(value) > MaxValueSize {
		return oops.Code("KV_VALUE_TOO_LARGE").
			With("plugin", namespace).
			With("key", key).
			With("size", len(value)).
			Errorf("value exceeds %d bytes", MaxValueSize)
	}
	return nil
}

// PostgresKV stores plugin values in the plugin_kv table.
type PostgresKV struct {
	pool poolIface
}

// NewPostgresKV wraps an existing pool.
func NewPostgresKV(pool poolIface) *PostgresKV {
	return &PostgresKV{pool: pool}
}

// ConnectOptions tunes Connect.
type ConnectOptions struct {
	// Attempts is the number of connection attempts. Zero means 5.
	Attempts uint64
	// Backoff is the first retry delay, doubled per attempt. Zero means 200ms.
	Backoff time.Duration
}

// Connect opens a pool for dsn and waits until the database answers a ping.
func Connect(ctx context.Context, dsn string, opts ConnectOptions) (*PostgresKV, error) {
	if opts.Attempts == 0 {
		opts.Attempts = 5
	}
	if opts.Backoff == 0 {
		opts.Backoff = 200 * time.Millisecond
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("KV_CONNECT_FAILED").With("operation", "parse dsn").Wrap(err)
	}

	backoff := retry.WithMaxRetries(opts.Attempts-1, retry.NewExponential(opts.Backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("KV_CONNECT_FAILED").
			With("attempts", opts.Attempts).
			Hint("check kv.dsn and that the database is reachable").
			Wrap(err)
	}
	return &PostgresKV{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresKV) Close() {
	s.pool.Close()
}

// Get returns the value for key, or nil when absent.
func (s *PostgresKV) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM plugin_kv WHERE plugin = $1 AND key = $2`,
		namespace, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapPgError(err, "get", namespace, key)
	}
	return value, nil
}

// Set creates or replaces the value for key.
func (s *PostgresKV) Set(ctx context.Context, namespace, key string, value []byte) error {
	if err := checkValueSize(namespace, key, value); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO plugin_kv (plugin, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (plugin, key) DO UPDATE SET value = $3, updated_at = now()`,
		namespace, key, value)
	if err != nil {
		return wrapPgError(err, "set", namespace, key)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *PostgresKV) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM plugin_kv WHERE plugin = $1 AND key = $2`,
		namespace, key)
	if err != nil {
		return wrapPgError(err, "delete", namespace, key)
	}
	return nil
}

func wrapPgError(err error, op, namespace, key string) error {
	b := oops.With("operation", op).With("plugin", namespace).With("key", key)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		b = b.Code("KV_SCHEMA_MISSING").Hint("run `wizard migrate up`")
	}
	return b.Wrap(err)
}
