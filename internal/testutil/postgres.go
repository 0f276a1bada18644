// Package testutil holds helpers for tests that need real infrastructure.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"dropspot/internal/infra"
)

// Postgres connects to DROPSPOT_TEST_DSN, migrates and truncates every table.
// The test is skipped when the variable is unset. Packages share one database,
// so run DB-backed tests with -p 1.
func Postgres(t testing.TB) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("DROPSPOT_TEST_DSN")
	if dsn == "" {
		t.Skip("DROPSPOT_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	if err := infra.Migrate(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE claims, waitlist_entries, drops, ai_usage RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return db
}

// Redis connects to DROPSPOT_TEST_REDIS_ADDR and flushes the selected database.
func Redis(t testing.TB) *redis.Client {
	t.Helper()

	addr := os.Getenv("DROPSPOT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DROPSPOT_TEST_REDIS_ADDR not set; skipping Redis-backed tests")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	if err := rdb.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	return rdb
}
