package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/ruanwenjun/spark/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// pragma is a connection setting and the value SQLite reports back once
// it is in effect.
type pragma struct {
	name string
	set  string
	want string
}

// The pool holds one connection, so connection-scoped settings apply to
// every statement.
var pragmas = []pragma{
	{name: "journal_mode", set: "WAL", want: "wal"},
	{name: "synchronous", set: "NORMAL", want: "1"},
	{name: "busy_timeout", set: "5000", want: "5000"},
	{name: "foreign_keys", set: "ON", want: "1"},
}

// migrations[i] upgrades a log at user_version i to i+1. Append only.
var migrations = []func(tx *sql.Tx) error{
	// v1: plan_id lookups for FindByPlanID on logs created before the
	// index was part of schema.sql.
	func(tx *sql.Tx) error {
		_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_submissions_plan_id ON submissions(plan_id)`)
		return err
	},
}

// Store is the append-only submission log for plans sent to the engine.
type Store struct {
	db *sql.DB

	// plans caches decoded plans by operation id.
	plans *xsync.MapOf[string, *ir.Relation]
}

// Open opens the submission log at path, creating it if needed. The log
// is brought to the latest schema version; opening an existing log is
// safe and leaves its rows untouched.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := prepare(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, plans: xsync.NewMapOf[string, *ir.Relation]()}, nil
}

func prepare(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.set)); err != nil {
			return fmt.Errorf("failed to set pragma %s: %w", p.name, err)
		}
		if err := checkPragma(db, p.name, p.want); err != nil {
			return err
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return migrate(db)
}

// migrate runs the pending migrations and the user_version bump in one
// transaction.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version >= len(migrations) {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for v := version; v < len(migrations); v++ {
		if err := migrations[v](tx); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(migrations))); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return tx.Commit()
}

func checkPragma(db *sql.DB, name, want string) error {
	var got string
	if err := db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return fmt.Errorf("read pragma %s: %w", name, err)
	}
	if !strings.EqualFold(got, want) {
		return fmt.Errorf("pragma %s = %q, want %q", name, got, want)
	}
	return nil
}

// Close closes the log.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying handle for inspection in tools and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}
