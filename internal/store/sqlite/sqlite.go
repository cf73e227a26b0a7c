// SPDX-License-Identifier: MIT

// Package sqlite provides the SQLite-backed shift context store.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver
)

// Config defines standard SQLite operational parameters.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultConfig returns the recommended connection settings.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 25,
	}
}

// Open initializes a SQLite connection pool with mandatory PRAGMAs.
// WAL mode and busy_timeout are set in the DSN so they apply to every
// connection in the pool.
func Open(dbPath string, cfg Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dbPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	k TEXT PRIMARY KEY,
	v TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS shift (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	start_at TEXT NOT NULL,
	end_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS patients (
	id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	acuity TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	patient_id TEXT NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	due_at TEXT NOT NULL,
	duration_minutes INTEGER NOT NULL DEFAULT 0,
	is_prn INTEGER NOT NULL DEFAULT 0,
	is_stat INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_orders_patient ON orders(patient_id);
CREATE TABLE IF NOT EXISTS overrides (
	order_id TEXT PRIMARY KEY REFERENCES orders(id) ON DELETE CASCADE,
	starts_at TEXT NOT NULL
);
`

// migrate creates the schema if it does not exist yet.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite: migrate failed: %w", err)
	}
	return nil
}
