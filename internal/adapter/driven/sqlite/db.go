// Package sqlite implements the driven storage ports on modernc.org/sqlite.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB holds the two connection pools the adapter runs on: a single-connection
// writer, so concurrent writes queue instead of failing with "database is
// locked", and a small reader pool for everything else.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// NewDB opens both pools against the same database file with WAL journaling,
// a busy timeout, synchronous NORMAL, foreign keys, and a 64MB page cache.
func NewDB(dbPath string) (*DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		dbPath,
	)

	writer, err := openPool(dsn, 1)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}

	reader, err := openPool(dsn, 4)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}

	return &DB{Writer: writer, Reader: reader, path: dbPath}, nil
}

func openPool(dsn string, maxConns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(maxConns)

	if err := pool.Ping(); err != nil {
		_ = pool.Close()
		return nil, err
	}

	return pool, nil
}

// Close closes both pools and returns the first error encountered.
func (db *DB) Close() error {
	var firstErr error

	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}

	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}

	return firstErr
}
