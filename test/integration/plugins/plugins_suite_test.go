// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

//go:build integration

// Package plugins_test runs the shipped plugins against a real PostgreSQL
// plugin store.
package plugins_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wizardmod/wizard/internal/store"
)

func TestPlugins(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Plugins Integration Suite")
}

// testEnv holds the database shared by the suite.
type testEnv struct {
	ctx       context.Context
	container testcontainers.Container
	kv        *store.PostgresKV
}

var env *testEnv

var _ = BeforeSuite(func() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("wizard"),
		postgres.WithUsername("wizard"),
		postgres.WithPassword("wizard"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	Expect(err).NotTo(HaveOccurred())

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := store.NewMigrator(connStr)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	Expect(migrator.Close()).To(Succeed())

	kv, err := store.Connect(ctx, connStr, store.ConnectOptions{Attempts: 5, Backoff: 200 * time.Millisecond})
	Expect(err).NotTo(HaveOccurred())

	env = &testEnv{ctx: ctx, container: container, kv: kv}
})

var _ = AfterSuite(func() {
	if env == nil {
		return
	}
	env.kv.Close()
	if env.container != nil {
		_ = env.container.Terminate(env.ctx)
	}
})

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
