package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sqlx.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sqlx.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS imports (
					id TEXT PRIMARY KEY,
					source TEXT NOT NULL,
					digest TEXT UNIQUE NOT NULL,
					imported_at TEXT NOT NULL,
					account_count INTEGER NOT NULL DEFAULT 0,
					transaction_count INTEGER NOT NULL DEFAULT 0
				)`,

				`CREATE TABLE IF NOT EXISTS accounts (
					import_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					acct_id TEXT NOT NULL,
					type TEXT NOT NULL,
					name TEXT NOT NULL,
					number TEXT NOT NULL,
					currency TEXT NOT NULL,
					bank_id TEXT NOT NULL DEFAULT '',
					branch_id TEXT NOT NULL DEFAULT '',
					ledger TEXT,
					ledger_date TEXT,
					available TEXT,
					available_date TEXT,
					PRIMARY KEY (import_id, position),
					FOREIGN KEY (import_id) REFERENCES imports(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_accounts_acct_id ON accounts(acct_id)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					import_id TEXT NOT NULL,
					account_position INTEGER NOT NULL,
					position INTEGER NOT NULL,
					fit_id TEXT NOT NULL,
					type TEXT NOT NULL,
					date_posted TEXT NOT NULL,
					date_user TEXT,
					name TEXT NOT NULL,
					memo TEXT NOT NULL,
					check_number TEXT NOT NULL DEFAULT '',
					amount TEXT NOT NULL,
					PRIMARY KEY (import_id, account_position, position),
					FOREIGN KEY (import_id, account_position) REFERENCES accounts(import_id, position) ON DELETE CASCADE
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Fingerprint transactions for overlap detection",
		Up: func(tx *sqlx.Tx) error {
			queries := []string{
				`ALTER TABLE transactions ADD COLUMN hash TEXT NOT NULL DEFAULT ''`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_hash ON transactions(hash)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate brings the schema up to ExpectedSchemaVersion.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	if err := s.db.GetContext(ctx, &currentVersion, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		err := s.withTx(ctx, func(tx *sqlx.Tx) error {
			if upErr := migration.Up(tx); upErr != nil {
				return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
			}
			if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
				return fmt.Errorf("failed to update schema version: %w", execErr)
			}
			return nil
		})
		if err != nil {
			return err
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	if err := s.db.GetContext(ctx, &finalVersion, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
