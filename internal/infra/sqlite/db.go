// Package sqlite persists the settlement ledger: the settlement records, the
// append-only audit trail, and the ingested transaction feed.
package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite handle and exposes typed ledger operations.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database under dir and applies the
// schema. WAL plus a single connection keeps every write serialized, which
// the CAS status updates and the balance-gated inserts rely on.
func Open(dir string) (*DB, error) {
	path := filepath.Join(dir, "settled.db")
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db := &DB{db: sqlDB}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying handle.
func (db *DB) Close() error { return db.db.Close() }

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// Settlement requests. Amounts are stored as exact decimal strings;
		// they are summed in Go, never through SQLite float arithmetic.
		`CREATE TABLE IF NOT EXISTS settlements (
			id          TEXT PRIMARY KEY,
			merchant_id TEXT NOT NULL,
			environment TEXT NOT NULL CHECK (environment IN ('sandbox','live')),
			amount      TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'pending'
			            CHECK (status IN ('pending','approved','rejected','paid')),
			note        TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_settlements_env_status_created
			ON settlements(environment, status, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_settlements_merchant_env
			ON settlements(merchant_id, environment)`,

		// Append-only transition log. Rows are inserted in the same
		// transaction as the status CAS and never updated or deleted.
		`CREATE TABLE IF NOT EXISTS settlement_audit (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			settlement_id TEXT NOT NULL REFERENCES settlements(id),
			from_status   TEXT NOT NULL,
			to_status     TEXT NOT NULL,
			actor         TEXT NOT NULL,
			at            TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_settlement
			ON settlement_audit(settlement_id)`,

		// Finalized transactions ingested from the external ledger feed.
		// The feed may redeliver; ingest is an idempotent upsert by id.
		`CREATE TABLE IF NOT EXISTS transactions (
			id          TEXT PRIMARY KEY,
			merchant_id TEXT NOT NULL,
			environment TEXT NOT NULL CHECK (environment IN ('sandbox','live')),
			amount      TEXT NOT NULL,
			status      TEXT NOT NULL CHECK (status IN ('success','pending','failed')),
			created_at  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_merchant_env_status
			ON transactions(merchant_id, environment, status)`,
	}
}

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
