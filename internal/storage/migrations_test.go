package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
)

// TestMigrate_FromVersion1 upgrades a database created before transactions
// were fingerprinted.
func TestMigrate_FromVersion1(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "v1.db")
	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	err = store.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := migrations[0].Up(tx); err != nil {
			return err
		}
		_, err := tx.Exec("PRAGMA user_version = 1")
		return err
	})
	if err != nil {
		t.Fatalf("Failed to apply version 1: %v", err)
	}

	queries := []string{
		`INSERT INTO imports (id, source, digest, imported_at) VALUES ('old', 'old.qfx', 'd', '2023-01-01T00:00:00Z')`,
		`INSERT INTO accounts (import_id, position, acct_id, type, name, number, currency)
			VALUES ('old', 0, '42', 'CHECKING', 'Bank account 42', '42', 'USD')`,
		`INSERT INTO transactions (import_id, account_position, position, fit_id, type, date_posted, name, memo, amount)
			VALUES ('old', 0, 0, 'F1', 'DEBIT', '2023-01-01T00:00:00Z', 'SHOP', '', '-1.00')`,
	}
	for _, q := range queries {
		if _, err := store.db.ExecContext(ctx, q); err != nil {
			t.Fatalf("Failed to seed version 1 data: %v", err)
		}
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	var hash string
	if err := store.db.GetContext(ctx, &hash, `SELECT hash FROM transactions WHERE fit_id = 'F1'`); err != nil {
		t.Fatalf("Failed to read hash column: %v", err)
	}
	if hash != "" {
		t.Errorf("existing row hash = %q, want empty", hash)
	}

	accounts, err := store.LoadImport(ctx, "old")
	if err != nil {
		t.Fatalf("LoadImport() failed: %v", err)
	}
	if len(accounts) != 1 || len(accounts[0].Transactions) != 1 {
		t.Fatalf("LoadImport() = %+v, want one account with one transaction", accounts)
	}
	if got := accounts[0].Transactions[0].Amount.String(); got != "-1" {
		t.Errorf("amount = %s, want -1", got)
	}
}

func TestMigrate_ForeignKeysEnforced(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.db.Exec(`INSERT INTO accounts (import_id, position, acct_id, type, name, number, currency)
		VALUES ('missing', 0, '1', 'CHECKING', 'x', '1', 'USD')`)
	if err == nil {
		t.Error("inserting an account for an unknown import should fail")
	}
}

func TestMigrations_Ordered(t *testing.T) {
	for i, m := range migrations {
		if m.Version != i+1 {
			t.Errorf("migration %d has version %d", i, m.Version)
		}
		if m.Description == "" {
			t.Errorf("migration %d has no description", m.Version)
		}
	}
	if last := migrations[len(migrations)-1].Version; last != ExpectedSchemaVersion {
		t.Errorf("last migration = %d, ExpectedSchemaVersion = %d", last, ExpectedSchemaVersion)
	}
}
