// Package database owns the embedded SQLite connection and transaction
// discipline. It is the only package that opens connections; repositories
// obtain their querier through the context helpers in this package.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the sql.DB handle for the embedded database.
type DB struct {
	*sql.DB
}

// Config holds database open options.
type Config struct {
	// Path to the database file, or ":memory:".
	Path          string
	BusyTimeoutMS int
	MaxOpenConns  int
}

// Open opens (creating if necessary) the embedded database and applies the
// connection pragmas. WAL mode keeps readers unblocked during writes;
// immediate transactions make write transactions conflict at BEGIN rather
// than at upgrade time.
func Open(ctx context.Context, cfg *Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	busyTimeout := cfg.BusyTimeoutMS
	if busyTimeout <= 0 {
		busyTimeout = 5000
	}

	dsn := buildDSN(cfg.Path, busyTimeout)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if isMemory(cfg.Path) {
		// A second connection to :memory: would see a different database.
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

func buildDSN(path string, busyTimeoutMS int) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS))
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_txlock", "immediate")
	if !isMemory(path) {
		q.Add("_pragma", "journal_mode(wal)")
		q.Add("_pragma", "synchronous(normal)")
	}
	return "file:" + path + "?" + q.Encode()
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// IsBusy reports whether err looks like a SQLite busy/locked failure that
// is worth retrying.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}
