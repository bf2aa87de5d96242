package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/ofxread/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Import is one archived file.
type Import struct {
	ImportedAt   time.Time
	ID           string
	Source       string
	Digest       string
	Accounts     int
	Transactions int
}

type importRow struct {
	ID           string `db:"id"`
	Source       string `db:"source"`
	Digest       string `db:"digest"`
	ImportedAt   string `db:"imported_at"`
	Accounts     int    `db:"account_count"`
	Transactions int    `db:"transaction_count"`
}

type accountRow struct {
	Ledger        sql.NullString `db:"ledger"`
	LedgerDate    sql.NullString `db:"ledger_date"`
	Available     sql.NullString `db:"available"`
	AvailableDate sql.NullString `db:"available_date"`
	ImportID      string         `db:"import_id"`
	AcctID        string         `db:"acct_id"`
	Type          string         `db:"type"`
	Name          string         `db:"name"`
	Number        string         `db:"number"`
	Currency      string         `db:"currency"`
	BankID        string         `db:"bank_id"`
	BranchID      string         `db:"branch_id"`
	Position      int            `db:"position"`
}

type transactionRow struct {
	DateUser        sql.NullString `db:"date_user"`
	ImportID        string         `db:"import_id"`
	FitID           string         `db:"fit_id"`
	Type            string         `db:"type"`
	DatePosted      string         `db:"date_posted"`
	Name            string         `db:"name"`
	Memo            string         `db:"memo"`
	CheckNumber     string         `db:"check_number"`
	Amount          string         `db:"amount"`
	Hash            string         `db:"hash"`
	AccountPosition int            `db:"account_position"`
	Position        int            `db:"position"`
}

// SaveImport archives the accounts parsed from one file and returns the new
// import's id. A digest that was imported before fails with ErrDuplicateImport.
func (s *SQLiteStorage) SaveImport(ctx context.Context, source, digest string, accounts []model.Account) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validateString(source, "source"); err != nil {
		return "", err
	}
	if err := validateString(digest, "digest"); err != nil {
		return "", err
	}
	if err := validateAccounts(accounts); err != nil {
		return "", err
	}

	row := importRow{
		ID:         uuid.NewString(),
		Source:     source,
		Digest:     digest,
		ImportedAt: formatTime(s.now().UTC()),
		Accounts:   len(accounts),
	}
	for i := range accounts {
		row.Transactions += len(accounts[i].Transactions)
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var existing int
		if err := tx.GetContext(ctx, &existing, `SELECT COUNT(*) FROM imports WHERE digest = ?`, digest); err != nil {
			return fmt.Errorf("failed to check for duplicate import: %w", err)
		}
		if existing > 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateImport, source)
		}

		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO imports (id, source, digest, imported_at, account_count, transaction_count)
			VALUES (:id, :source, :digest, :imported_at, :account_count, :transaction_count)`, row); err != nil {
			return fmt.Errorf("failed to save import: %w", err)
		}

		for i := range accounts {
			if err := saveAccount(ctx, tx, row.ID, i, &accounts[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return row.ID, nil
}

func saveAccount(ctx context.Context, tx *sqlx.Tx, importID string, position int, acct *model.Account) error {
	row := accountRow{
		ImportID: importID,
		Position: position,
		AcctID:   acct.Info.AcctID,
		Type:     acct.Info.Type.String(),
		Name:     acct.Info.Name,
		Number:   acct.Info.Number,
		Currency: acct.Info.Currency,
		BankID:   acct.Info.BankID,
		BranchID: acct.Info.BranchID,
	}
	if bal := acct.Balance; bal != nil {
		row.Ledger = validString(bal.Ledger.String())
		row.LedgerDate = validString(formatTime(bal.LedgerDate))
		if bal.Available != nil {
			row.Available = validString(bal.Available.String())
		}
		if bal.AvailableDate != nil {
			row.AvailableDate = validString(formatTime(*bal.AvailableDate))
		}
	}

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO accounts (import_id, position, acct_id, type, name, number, currency, bank_id, branch_id,
			ledger, ledger_date, available, available_date)
		VALUES (:import_id, :position, :acct_id, :type, :name, :number, :currency, :bank_id, :branch_id,
			:ledger, :ledger_date, :available, :available_date)`, row); err != nil {
		return fmt.Errorf("failed to save account %s: %w", acct.Info.AcctID, err)
	}

	for j := range acct.Transactions {
		txn := &acct.Transactions[j]
		trow := transactionRow{
			ImportID:        importID,
			AccountPosition: position,
			Position:        j,
			FitID:           txn.FitID,
			Type:            txn.Type.String(),
			DatePosted:      formatTime(txn.DatePosted),
			Name:            txn.Name,
			Memo:            txn.Memo,
			CheckNumber:     txn.CheckNumber,
			Amount:          txn.Amount.String(),
			Hash:            txn.Hash(acct.Info.AcctID),
		}
		if txn.DateUser != nil {
			trow.DateUser = validString(formatTime(*txn.DateUser))
		}

		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO transactions (import_id, account_position, position, fit_id, type, date_posted, date_user,
				name, memo, check_number, amount, hash)
			VALUES (:import_id, :account_position, :position, :fit_id, :type, :date_posted, :date_user,
				:name, :memo, :check_number, :amount, :hash)`, trow); err != nil {
			return fmt.Errorf("failed to save transaction %d of account %s: %w", j, acct.Info.AcctID, err)
		}
	}
	return nil
}

// ListImports returns every import, oldest first.
func (s *SQLiteStorage) ListImports(ctx context.Context) ([]Import, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var rows []importRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, source, digest, imported_at, account_count, transaction_count
		FROM imports
		ORDER BY rowid`); err != nil {
		return nil, fmt.Errorf("failed to list imports: %w", err)
	}

	imports := make([]Import, 0, len(rows))
	for _, row := range rows {
		imp, err := row.toImport()
		if err != nil {
			return nil, err
		}
		imports = append(imports, imp)
	}
	return imports, nil
}

// GetImport returns one import record.
func (s *SQLiteStorage) GetImport(ctx context.Context, id string) (*Import, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var row importRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, source, digest, imported_at, account_count, transaction_count
		FROM imports WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import: %w", err)
	}

	imp, err := row.toImport()
	if err != nil {
		return nil, err
	}
	return &imp, nil
}

// LoadImport rebuilds the accounts of an import in their original order.
func (s *SQLiteStorage) LoadImport(ctx context.Context, id string) ([]model.Account, error) {
	if _, err := s.GetImport(ctx, id); err != nil {
		return nil, err
	}

	var accountRows []accountRow
	if err := s.db.SelectContext(ctx, &accountRows, `
		SELECT import_id, position, acct_id, type, name, number, currency, bank_id, branch_id,
			ledger, ledger_date, available, available_date
		FROM accounts WHERE import_id = ? ORDER BY position`, id); err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	var txRows []transactionRow
	if err := s.db.SelectContext(ctx, &txRows, `
		SELECT import_id, account_position, position, fit_id, type, date_posted, date_user,
			name, memo, check_number, amount, hash
		FROM transactions WHERE import_id = ? ORDER BY account_position, position`, id); err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	accounts := make([]model.Account, len(accountRows))
	for i, row := range accountRows {
		acct, err := row.toAccount()
		if err != nil {
			return nil, err
		}
		accounts[i] = acct
	}

	for _, row := range txRows {
		if row.AccountPosition < 0 || row.AccountPosition >= len(accounts) {
			return nil, fmt.Errorf("transaction %d references missing account %d", row.Position, row.AccountPosition)
		}
		txn, err := row.toTransaction()
		if err != nil {
			return nil, err
		}
		acct := &accounts[row.AccountPosition]
		acct.Transactions = append(acct.Transactions, txn)
	}
	return accounts, nil
}

// Overlap counts the transactions of an import that were already archived by
// an earlier import.
func (s *SQLiteStorage) Overlap(ctx context.Context, id string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(id, "id"); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM transactions t
		WHERE t.import_id = ?
		AND EXISTS (
			SELECT 1 FROM transactions o
			WHERE o.hash = t.hash AND o.import_id != t.import_id
		)`, id); err != nil {
		return 0, fmt.Errorf("failed to count overlapping transactions: %w", err)
	}
	return count, nil
}

func (r importRow) toImport() (Import, error) {
	importedAt, err := parseTime(r.ImportedAt)
	if err != nil {
		return Import{}, fmt.Errorf("import %s: %w", r.ID, err)
	}
	return Import{
		ID:           r.ID,
		Source:       r.Source,
		Digest:       r.Digest,
		ImportedAt:   importedAt,
		Accounts:     r.Accounts,
		Transactions: r.Transactions,
	}, nil
}

func (r accountRow) toAccount() (model.Account, error) {
	acct := model.Account{
		Info: model.AccountInfo{
			AcctID:   r.AcctID,
			Type:     model.ParseAccountType(r.Type),
			Name:     r.Name,
			Number:   r.Number,
			Currency: r.Currency,
			BankID:   r.BankID,
			BranchID: r.BranchID,
		},
		Transactions: []model.Transaction{},
	}

	if !r.Ledger.Valid {
		return acct, nil
	}
	ledger, err := decimal.NewFromString(r.Ledger.String)
	if err != nil {
		return acct, fmt.Errorf("account %s: invalid ledger balance: %w", r.AcctID, err)
	}
	ledgerDate, err := parseTime(r.LedgerDate.String)
	if err != nil {
		return acct, fmt.Errorf("account %s: %w", r.AcctID, err)
	}
	acct.Balance = &model.Balance{Ledger: ledger, LedgerDate: ledgerDate}

	if r.Available.Valid {
		available, err := decimal.NewFromString(r.Available.String)
		if err != nil {
			return acct, fmt.Errorf("account %s: invalid available balance: %w", r.AcctID, err)
		}
		acct.Balance.Available = &available
	}
	if r.AvailableDate.Valid {
		availableDate, err := parseTime(r.AvailableDate.String)
		if err != nil {
			return acct, fmt.Errorf("account %s: %w", r.AcctID, err)
		}
		acct.Balance.AvailableDate = &availableDate
	}
	return acct, nil
}

func (r transactionRow) toTransaction() (model.Transaction, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("transaction %s: invalid amount: %w", r.FitID, err)
	}
	posted, err := parseTime(r.DatePosted)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", r.FitID, err)
	}

	txn := model.Transaction{
		DatePosted:  posted,
		FitID:       r.FitID,
		Name:        r.Name,
		Memo:        r.Memo,
		CheckNumber: r.CheckNumber,
		Amount:      amount,
		Type:        model.ParseTransactionType(r.Type),
	}
	if r.DateUser.Valid {
		user, err := parseTime(r.DateUser.String)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("transaction %s: %w", r.FitID, err)
		}
		txn.DateUser = &user
	}
	return txn, nil
}

// Times are stored as RFC 3339 text so the original offset survives.
func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	return t, nil
}

func validString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}
