package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// pragma is a connection setting applied on open. want is the value
// SQLite reports back once it is in effect.
type pragma struct {
	name, value, want string
}

var pragmas = []pragma{
	{"journal_mode", "WAL", "wal"},   // readers (trace, replay) never block a serving process
	{"synchronous", "NORMAL", "1"},   // fsync at checkpoints only
	{"busy_timeout", "5000", "5000"}, // ms to wait on a locked journal
	{"foreign_keys", "ON", "1"},      // events and deltas need their session
}

// migrations[i] upgrades a journal from user_version i to i+1. The schema
// file creates the base tables; migrations only add to them.
var migrations = []func(*sql.DB) error{
	// 1: per-target delta reads for "trace --target".
	execMigration(`CREATE INDEX IF NOT EXISTS idx_deltas_target ON deltas(session_id, target, seq)`),
	// 2: sessions listed per application for replay.
	execMigration(`CREATE INDEX IF NOT EXISTS idx_sessions_app ON sessions(app, opened_seq)`),
}

// Store is the durable session journal: every opened session, every event
// it consumed, and every delta it produced.
//
// Store implements engine.Journal.
type Store struct {
	db *sql.DB
}

// Open creates or opens the journal at path. ":memory:" gives a private
// in-memory journal. Pragmas and pending migrations are applied before
// Open returns, so opening an existing journal is always safe.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer and every live session
	// writes through this pool. It also keeps ":memory:" one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := setup(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func setup(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	for _, p := range pragmas {
		stmt := fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return migrate(db)
}

// SchemaVersion is the user_version a fully migrated journal reports.
func SchemaVersion() int {
	return len(migrations)
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("journal schema version %d is newer than supported version %d", version, len(migrations))
	}
	for v := version; v < len(migrations); v++ {
		if err := migrations[v](db); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

func execMigration(stmt string) func(*sql.DB) error {
	return func(db *sql.DB) error {
		_, err := db.Exec(stmt)
		return err
	}
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Counts returns the number of journaled sessions, events and deltas.
func (s *Store) Counts(ctx context.Context) (sessions, events, deltas int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sessions),
			(SELECT COUNT(*) FROM events),
			(SELECT COUNT(*) FROM deltas)
	`).Scan(&sessions, &events, &deltas)
	if err != nil {
		err = fmt.Errorf("count journal: %w", err)
	}
	return sessions, events, deltas, err
}

// checkPragmas reports the first pragma not in effect.
func (s *Store) checkPragmas() error {
	for _, p := range pragmas {
		var got string
		if err := s.db.QueryRow("PRAGMA " + p.name).Scan(&got); err != nil {
			return fmt.Errorf("failed to query %s: %w", p.name, err)
		}
		if got != p.want {
			return fmt.Errorf("%s = %q, expected %q", p.name, got, p.want)
		}
	}
	return nil
}
