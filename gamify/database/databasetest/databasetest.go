// Package databasetest provides an in-memory database for repository and
// service tests. It runs the same bun models against SQLite, which supports
// the ON CONFLICT clauses the production queries rely on.
package databasetest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/storekit/gamify/gamify/database"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"
)

// New returns a bun handle backed by a fresh in-memory SQLite database with
// all tables created. The database is closed when the test finishes.
func New(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	// A memory database lives and dies with its connection, so the pool must
	// never hand out a second one.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, model := range database.Tables() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			t.Fatalf("failed to create table for %T: %v", model, err)
		}
	}

	return db
}

// NewSeeded returns an in-memory database with the onboarding catalog loaded.
func NewSeeded(t *testing.T) *bun.DB {
	t.Helper()

	db := New(t)
	if err := database.SeedCatalog(context.Background(), db); err != nil {
		t.Fatalf("failed to seed catalog: %v", err)
	}
	return db
}
