// Package testdb opens an in-memory SQLite database seeded with a small slice
// of the Chinook catalog for package tests.
package testdb

import (
	"context"
	_ "embed"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/tanpawarit/chinook-concierge/pkg/database"
)

//go:embed chinook_fixture.sql
var fixtureSQL string

// Open returns a migrated, seeded database closed at test cleanup.
func Open(t testing.TB) *bun.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Driver:      database.DriverSQLite,
		DSN:         ":memory:",
		AutoMigrate: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range strings.Split(fixtureSQL, ";\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}
	return db
}
