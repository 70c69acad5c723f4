// Package storage persists the simulated native SDK's state in SQLite.
//
// It uses modernc.org/sqlite (pure Go, no CGO). The database operates in WAL
// mode for concurrent read/write access and runs schema migrations on open.
package storage

import (
	"database/sql"
	"errors"
	"fmt"

	// Register the pure-Go SQLite driver. This does NOT require CGO.
	_ "modernc.org/sqlite"
)

// ErrEmptyPath is returned by NewDB without a path.
var ErrEmptyPath = errors.New("database path must not be empty")

// DB wraps a *sql.DB connection to a SQLite database.
type DB struct {
	inner *sql.DB
	path  string
}

// NewDB opens (or creates) a SQLite database at dbPath with WAL mode and busy
// timeout. Migrations are applied automatically on open.
func NewDB(dbPath string) (*DB, error) {
	if dbPath == "" {
		return nil, ErrEmptyPath
	}

	// WAL mode for concurrent access, 5s busy timeout for lock contention.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &DB{inner: sqlDB, path: dbPath}, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

// withTx runs fn in a transaction, committing if it returns nil.
func (db *DB) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.inner.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
