package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/tickflow/internal/query"
)

//go:embed schema.sql
var schemaSQL string

// pragma is a connection setting applied by Open.
type pragma struct {
	name  string
	value string
}

// WAL lets readers (trace, replay) run while a run is being recorded.
var pragmas = []pragma{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// migrations[v] upgrades a ledger from user_version v to v+1. Append only.
var migrations = []func(tx *sql.Tx) error{
	addGrantsSourceIndex, // 0 -> 1: trace --source
}

// SchemaVersion is the user_version of a fully migrated ledger.
var SchemaVersion = len(migrations)

// Store is the durable tick ledger.
type Store struct {
	db *sql.DB
}

// Open creates or opens the ledger at path and brings its schema up to
// date. Reopening an existing ledger is safe. path may be ":memory:".
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}

	// SQLite has one writer, and a ":memory:" database lives and dies with
	// its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initialize(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func initialize(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	for _, p := range pragmas {
		stmt := fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return migrate(db)
}

// migrate runs every migration past the ledger's user_version, each in its
// own transaction together with the version bump.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version > SchemaVersion {
		return fmt.Errorf("ledger schema version %d is newer than supported %d", version, SchemaVersion)
	}

	for v := version; v < SchemaVersion; v++ {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if err := migrations[v](tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	return nil
}

func addGrantsSourceIndex(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_grants_source ON grants(run_id, source, tick)`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Query compiles q and runs it. Callers close the returned rows.
func (s *Store) Query(ctx context.Context, q query.Select) (*sql.Rows, error) {
	sqlText, params, err := query.Compile(q)
	if err != nil {
		return nil, err
	}
	return s.db.QueryContext(ctx, sqlText, params...)
}

// Pragma returns the current value of a connection setting, as SQLite
// reports it (journal_mode "wal", synchronous "1", ...).
func (s *Store) Pragma(ctx context.Context, name string) (string, error) {
	var value string
	if err := s.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err != nil {
		return "", fmt.Errorf("pragma %s: %w", name, err)
	}
	return value, nil
}
