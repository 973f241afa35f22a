// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

//go:build integration

package cli_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestCLI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "CLI Integration Suite")
}

// env is the database the keyward binary under test migrates. The suite
// keeps its own pool to inspect the schema between commands.
var env struct {
	pool    *pgxpool.Pool
	connStr string
}

var _ = BeforeSuite(func() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("keyward_cli"),
		postgres.WithUsername("keyward"),
		postgres.WithPassword("keyward"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() { _ = container.Terminate(context.Background()) })

	env.connStr, err = container.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	env.pool, err = pgxpool.New(ctx, env.connStr)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(env.pool.Close)
})

// resetDatabase drops the schema so every test starts unmigrated.
func resetDatabase(ctx context.Context) {
	for _, table := range []string{"accounts", "schema_migrations"} {
		_, err := env.pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		Expect(err).NotTo(HaveOccurred())
	}
}
