package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"
)

// newTestDB opens a private shared-cache in-memory database keyed by the test
// name, runs the migrations, and registers cleanup. Each test sees only its
// own rows, so tests can run in parallel.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	// In-memory databases ignore the WAL pragma, so the DSN carries only the
	// pragmas that still apply. The test name is percent-encoded to keep
	// subtest slashes out of the query string.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		url.PathEscape(t.Name()),
	)

	open := func(maxConns int) *sql.DB {
		pool, err := sql.Open("sqlite", dsn)
		if err != nil {
			t.Fatalf("open test db: %v", err)
		}
		t.Cleanup(func() { _ = pool.Close() })

		pool.SetMaxOpenConns(maxConns)
		if err := pool.PingContext(context.Background()); err != nil {
			t.Fatalf("ping test db: %v", err)
		}
		return pool
	}

	db := &DB{Writer: open(1), Reader: open(4), path: dsn}

	if err := RunMigrations(db.Writer); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	return db
}
