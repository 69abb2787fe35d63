// Package dbtest opens throwaway SQLite databases carrying the production
// schema.  It is imported only from tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/iliyamo/linkbio/internal/database"
)

// New returns an in-memory database with foreign keys enabled and the schema
// applied.  The pool is pinned to one connection because every connection to
// ":memory:" would otherwise see its own empty database.
func New(t testing.TB) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
