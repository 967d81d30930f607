// Package testdb provides helpers for tests that run against a real
// PostgreSQL instance. Tests obtain a migrated, empty database via Get and
// skip automatically when no database is configured.
package testdb

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"

	"github.com/jiweiyuan/muse/migrations"
)

// connectTimeout bounds the initial ping so a misconfigured DATABASE_URL
// fails fast instead of hanging the test run.
const connectTimeout = 5 * time.Second

// IsIntegrationTestEnvironment reports whether DATABASE_URL is set,
// indicating that database-backed tests can run.
func IsIntegrationTestEnvironment() bool {
	return os.Getenv("DATABASE_URL") != ""
}

// Get returns a migrated database connection with empty tables. The test is
// skipped when DATABASE_URL is not set. The connection is closed when the
// test finishes.
func Get(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping database test")
	}

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err, "failed to open database connection")
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "failed to ping database")

	goose.SetBaseFS(migrations.FS)
	require.NoError(t, goose.SetDialect("postgres"), "failed to set goose dialect")
	require.NoError(t, goose.Up(db, "."), "failed to apply migrations")

	Reset(t, db)
	return db
}

// Reset truncates all application tables so each test starts from a clean
// slate.
func Reset(t *testing.T, db *sql.DB) {
	t.Helper()

	_, err := db.Exec(`TRUNCATE TABLE tasks, projects CASCADE`)
	require.NoError(t, err, "failed to truncate tables")
}
