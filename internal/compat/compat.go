// Package compat parses OFX files with github.com/aclindsa/ofxgo and compares
// the result with the native engine's output.
package compat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Veraticus/ofxread/internal/model"
	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])(\r?)$`)
)

// amountPrecision bounds the digits kept when converting ofxgo's rationals.
const amountPrecision = 8

// Preprocess fixes formatting issues that ofxgo rejects but banks emit.
func Preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n\ufeff")

	// SEVERITY must be INFO, WARN or ERROR.
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// <TAGNAME at end of line with no closing bracket.
	content = tagFixRegex.ReplaceAllString(content, "$1>$2")

	return content
}

// Parse reads r with ofxgo and converts the bank, credit card and investment
// statements it finds into accounts.
func Parse(ctx context.Context, r io.Reader) ([]model.Account, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(Preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var accounts []model.Account

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			acct, err := bankAccount(stmt)
			if err != nil {
				return nil, err
			}
			accounts = append(accounts, acct)
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			acct, err := creditCardAccount(stmt)
			if err != nil {
				return nil, err
			}
			accounts = append(accounts, acct)
		}
	}

	for _, msg := range resp.InvStmt {
		if stmt, ok := msg.(*ofxgo.InvStatementResponse); ok {
			acct, err := investmentAccount(stmt)
			if err != nil {
				return nil, err
			}
			accounts = append(accounts, acct)
		}
	}

	slog.Debug("Parsed OFX file with ofxgo",
		"accounts", len(accounts),
		"bank_statements", len(resp.Bank),
		"cc_statements", len(resp.CreditCard),
		"inv_statements", len(resp.InvStmt))

	return accounts, nil
}

func bankAccount(stmt *ofxgo.StatementResponse) (model.Account, error) {
	from := stmt.BankAcctFrom
	acctID := string(from.AcctID)
	acct := model.Account{
		Info: model.AccountInfo{
			AcctID:   joinNonEmpty(string(from.BankID), string(from.BranchID), acctID),
			Type:     model.ParseAccountType(from.AcctType.String()),
			Name:     "Bank account " + acctID,
			Number:   acctID,
			Currency: stmt.CurDef.String(),
			BankID:   string(from.BankID),
			BranchID: string(from.BranchID),
		},
	}

	txns, err := convertTransactions(stmt.BankTranList)
	if err != nil {
		return acct, err
	}
	acct.Transactions = txns

	if !stmt.DtAsOf.IsZero() {
		ledger, err := toDecimal(&stmt.BalAmt)
		if err != nil {
			return acct, err
		}
		acct.Balance = &model.Balance{Ledger: ledger, LedgerDate: stmt.DtAsOf.Time}
	}
	return acct, nil
}

func creditCardAccount(stmt *ofxgo.CCStatementResponse) (model.Account, error) {
	acctID := string(stmt.CCAcctFrom.AcctID)
	acct := model.Account{
		Info: model.AccountInfo{
			AcctID:   acctID,
			Type:     model.AccountCreditCard,
			Name:     "Credit card " + acctID,
			Number:   acctID,
			Currency: stmt.CurDef.String(),
		},
	}

	txns, err := convertTransactions(stmt.BankTranList)
	if err != nil {
		return acct, err
	}
	acct.Transactions = txns

	if !stmt.DtAsOf.IsZero() {
		ledger, err := toDecimal(&stmt.BalAmt)
		if err != nil {
			return acct, err
		}
		acct.Balance = &model.Balance{Ledger: ledger, LedgerDate: stmt.DtAsOf.Time}
	}
	return acct, nil
}

func investmentAccount(stmt *ofxgo.InvStatementResponse) (model.Account, error) {
	brokerID, acctID := string(stmt.InvAcctFrom.BrokerID), string(stmt.InvAcctFrom.AcctID)
	name := "Investment account " + acctID
	if brokerID != "" {
		name += " at broker " + brokerID
	}
	acct := model.Account{
		Info: model.AccountInfo{
			AcctID:   joinNonEmpty(brokerID, acctID),
			Type:     model.AccountInvestment,
			Name:     name,
			Number:   acctID,
			Currency: stmt.CurDef.String(),
		},
		Transactions: []model.Transaction{},
	}

	if stmt.InvTranList != nil {
		for _, bank := range stmt.InvTranList.BankTransactions {
			for i := range bank.Transactions {
				tx, err := convertTransaction(&bank.Transactions[i])
				if err != nil {
					return acct, err
				}
				acct.Transactions = append(acct.Transactions, tx)
			}
		}
	}

	if stmt.InvBal != nil {
		cash, err := toDecimal(&stmt.InvBal.AvailCash)
		if err != nil {
			return acct, err
		}
		acct.Balance = &model.Balance{Ledger: cash, LedgerDate: stmt.DtAsOf.Time}
	}
	return acct, nil
}

func convertTransactions(list *ofxgo.TransactionList) ([]model.Transaction, error) {
	if list == nil {
		return []model.Transaction{}, nil
	}
	txns := make([]model.Transaction, 0, len(list.Transactions))
	for i := range list.Transactions {
		tx, err := convertTransaction(&list.Transactions[i])
		if err != nil {
			return nil, err
		}
		txns = append(txns, tx)
	}
	return txns, nil
}

func convertTransaction(ofxTx *ofxgo.Transaction) (model.Transaction, error) {
	amount, err := toDecimal(&ofxTx.TrnAmt)
	if err != nil {
		return model.Transaction{}, err
	}

	tx := model.Transaction{
		Type:        model.ParseTransactionType(ofxTx.TrnType.String()),
		DatePosted:  ofxTx.DtPosted.Time,
		FitID:       string(ofxTx.FiTID),
		Name:        string(ofxTx.Name),
		Memo:        string(ofxTx.Memo),
		CheckNumber: string(ofxTx.CheckNum),
		Amount:      amount,
	}
	if tx.Name == "" && ofxTx.Payee != nil {
		tx.Name = string(ofxTx.Payee.Name)
	}
	if ofxTx.DtUser != nil {
		user := ofxTx.DtUser.Time
		tx.DateUser = &user
	}
	return tx, nil
}

func toDecimal(a *ofxgo.Amount) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(a.FloatString(amountPrecision))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to convert amount %s: %w", a.String(), err)
	}
	return d, nil
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
