package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// WAL lets the API read while a refresh writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			fingerprint TEXT NOT NULL,
			rate_version TEXT NOT NULL,
			data_dir TEXT NOT NULL,
			file_count INTEGER NOT NULL,
			failed_files INTEGER NOT NULL,
			row_count INTEGER NOT NULL,
			filtered_out INTEGER NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS source_files (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			path TEXT NOT NULL,
			name TEXT NOT NULL,
			bank_id TEXT NOT NULL,
			bank_name TEXT NOT NULL,
			detected_by TEXT NOT NULL,
			encoding TEXT NOT NULL,
			sheet TEXT NOT NULL,
			file_hash TEXT NOT NULL,
			size INTEGER NOT NULL,
			record_count INTEGER NOT NULL,
			malformed_rows INTEGER NOT NULL,
			missing_columns TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_source_files_run ON source_files(run_id)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			row_no INTEGER NOT NULL,
			bank_id TEXT NOT NULL,
			bank_name TEXT NOT NULL,
			source_file TEXT NOT NULL,
			transaction_id TEXT NOT NULL,
			transaction_date DATETIME,
			settlement_date DATETIME,
			transaction_type TEXT NOT NULL,
			transaction_type_original TEXT NOT NULL,
			category TEXT NOT NULL,
			card_brand TEXT NOT NULL,
			installment_count INTEGER NOT NULL,
			gross_amount REAL NOT NULL,
			commission_rate REAL NOT NULL,
			commission_amount REAL NOT NULL,
			net_amount REAL NOT NULL,
			rate_source TEXT NOT NULL,
			reward_deduction REAL NOT NULL,
			service_deduction REAL NOT NULL,
			commission_calculated REAL NOT NULL,
			amount_diff REAL NOT NULL,
			amount_diff_pct REAL NOT NULL,
			rate_verified INTEGER NOT NULL,
			rate_expected REAL NOT NULL,
			commission_expected REAL NOT NULL,
			rate_diff REAL NOT NULL,
			commission_diff REAL NOT NULL,
			rate_match INTEGER NOT NULL,
			amount_match INTEGER NOT NULL,
			control_flags TEXT NOT NULL,
			control_status TEXT NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_run ON transactions(run_id, row_no)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_bank ON transactions(bank_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(transaction_date)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}

	return nil
}
