package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "github.com/lib/pq"
	embedsql "github.com/nick-dorsch/swimlane/embed/sql"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

type DB struct {
	*sql.DB
	dialect    Dialect
	onChange   []func(ctx context.Context)
	onChangeMu sync.RWMutex
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OnChange registers fn to run after every successful write. Hooks run
// synchronously in registration order.
func (db *DB) OnChange(fn func(ctx context.Context)) {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChange = append(db.onChange, fn)
}

func (db *DB) triggerChange(ctx context.Context) {
	db.onChangeMu.RLock()
	hooks := append([]func(context.Context){}, db.onChange...)
	db.onChangeMu.RUnlock()

	for _, fn := range hooks {
		fn(ctx)
	}
}

// Connect opens the task table on the named driver ("sqlite" or "postgres").
func Connect(driver, dsn string) (*DB, error) {
	switch Dialect(driver) {
	case DialectSQLite, "":
		return Open(dsn)
	case DialectPostgres:
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
}

// Open opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	return &DB{DB: db, dialect: DialectSQLite}, nil
}

// OpenPostgres connects to a Postgres server and verifies the connection.
func OpenPostgres(dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	return &DB{DB: db, dialect: DialectPostgres}, nil
}

func (db *DB) Dialect() Dialect {
	return db.dialect
}

func (db *DB) Migrate(ctx context.Context, schema string) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	db.triggerChange(ctx)
	return nil
}

func (db *DB) Init(ctx context.Context) error {
	return db.Migrate(ctx, embedsql.Schema)
}

// rebind rewrites ? placeholders to $1..$n for Postgres.
func (db *DB) rebind(query string) string {
	return rebind(db.dialect, query)
}

func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
