// Package model defines the account and transaction values extracted from OFX files.
package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the OFX TRNTYPE of a transaction.
type TransactionType int

// Transaction types. The zero value is TransactionOther.
const (
	TransactionOther TransactionType = iota
	TransactionCredit
	TransactionDebit
	TransactionInt
	TransactionDiv
	TransactionFee
	TransactionSrvChg
	TransactionDep
	TransactionATM
	TransactionPOS
	TransactionXfer
	TransactionCheck
	TransactionPayment
	TransactionCash
	TransactionDirectDep
	TransactionDirectDebit
	TransactionRepeatPmt
)

var transactionTypeNames = [...]string{
	TransactionOther:       "OTHER",
	TransactionCredit:      "CREDIT",
	TransactionDebit:       "DEBIT",
	TransactionInt:         "INT",
	TransactionDiv:         "DIV",
	TransactionFee:         "FEE",
	TransactionSrvChg:      "SRVCHG",
	TransactionDep:         "DEP",
	TransactionATM:         "ATM",
	TransactionPOS:         "POS",
	TransactionXfer:        "XFER",
	TransactionCheck:       "CHECK",
	TransactionPayment:     "PAYMENT",
	TransactionCash:        "CASH",
	TransactionDirectDep:   "DIRECTDEP",
	TransactionDirectDebit: "DIRECTDEBIT",
	TransactionRepeatPmt:   "REPEATPMT",
}

var transactionTypesByName = func() map[string]TransactionType {
	m := make(map[string]TransactionType, len(transactionTypeNames))
	for i, name := range transactionTypeNames {
		m[name] = TransactionType(i)
	}
	return m
}()

// TransactionTypes returns every transaction type in declaration order.
func TransactionTypes() []TransactionType {
	types := make([]TransactionType, len(transactionTypeNames))
	for i := range transactionTypeNames {
		types[i] = TransactionType(i)
	}
	return types
}

// ParseTransactionType maps an OFX TRNTYPE value to a TransactionType.
// Unrecognized values map to TransactionOther.
func ParseTransactionType(s string) TransactionType {
	if t, ok := transactionTypesByName[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return t
	}
	return TransactionOther
}

// String returns the canonical OFX name, e.g. "DIRECTDEP".
func (t TransactionType) String() string {
	if t < 0 || int(t) >= len(transactionTypeNames) {
		return transactionTypeNames[TransactionOther]
	}
	return transactionTypeNames[t]
}

// DisplayName returns the lower-cased canonical name, e.g. "directdep".
func (t TransactionType) DisplayName() string {
	return strings.ToLower(t.String())
}

// MarshalText encodes the type by its canonical name.
func (t TransactionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a canonical name; unknown names decode to TransactionOther.
func (t *TransactionType) UnmarshalText(text []byte) error {
	*t = ParseTransactionType(string(text))
	return nil
}

// TransactionTypeName returns the display name of a transaction type.
// It does not depend on any parse and is safe to call at any time.
func TransactionTypeName(t TransactionType) string {
	return t.DisplayName()
}

// Transaction is a single STMTTRN entry.
type Transaction struct {
	DatePosted  time.Time       `json:"datePosted" yaml:"datePosted"`
	DateUser    *time.Time      `json:"dateUser,omitempty" yaml:"dateUser,omitempty"`
	FitID       string          `json:"fitId" yaml:"fitId"`
	Name        string          `json:"name" yaml:"name"`
	Memo        string          `json:"memo" yaml:"memo"`
	CheckNumber string          `json:"checkNumber,omitempty" yaml:"checkNumber,omitempty"`
	Amount      decimal.Decimal `json:"amount" yaml:"amount"`
	Type        TransactionType `json:"type" yaml:"type"`
}

// Hash fingerprints the transaction for consumers that de-duplicate across statements.
func (t *Transaction) Hash(acctID string) string {
	data := fmt.Sprintf("%s:%s:%s:%s:%s",
		acctID,
		t.FitID,
		t.DatePosted.UTC().Format("2006-01-02"),
		t.Amount.String(),
		t.Name)
	sum := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", sum)
}
