//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wizardmod/wizard/internal/store"
)

func TestPostgresKV_FullCycle(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("wizard"),
		postgres.WithUsername("wizard"),
		postgres.WithPassword("wizard"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx) //nolint:errcheck // best-effort cleanup

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrator, err := store.NewMigrator(connStr)
	require.NoError(t, err)
	defer migrator.Close() //nolint:errcheck // best-effort cleanup

	require.NoError(t, migrator.Up())
	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	kv, err := store.Connect(ctx, connStr, store.ConnectOptions{})
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Set(ctx, "greeter", "motd", []byte("hello")))
	require.NoError(t, kv.Set(ctx, "greeter", "motd", []byte("welcome")))
	got, err := kv.Get(ctx, "greeter", "motd")
	require.NoError(t, err)
	assert.Equal(t, []byte("welcome"), got)

	other, err := kv.Get(ctx, "banlist", "motd")
	require.NoError(t, err)
	assert.Nil(t, other)

	require.NoError(t, kv.Delete(ctx, "greeter", "motd"))
	got, err = kv.Get(ctx, "greeter", "motd")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, migrator.Down())
	version, _, err = migrator.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
}
