package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies an account by the statement or ACCTTYPE it came from.
type AccountType int

// Account types. The zero value is AccountUnknown.
const (
	AccountUnknown AccountType = iota
	AccountChecking
	AccountSavings
	AccountCreditCard
	AccountMoneyMarket
	AccountCreditLine
	AccountInvestment
	AccountCMA
)

var accountTypeNames = [...]string{
	AccountUnknown:     "UNKNOWN",
	AccountChecking:    "CHECKING",
	AccountSavings:     "SAVINGS",
	AccountCreditCard:  "CREDITCARD",
	AccountMoneyMarket: "MONEYMRKT",
	AccountCreditLine:  "CREDITLINE",
	AccountInvestment:  "INVESTMENT",
	AccountCMA:         "CMA",
}

var accountTypesByName = map[string]AccountType{
	"CHECKING":   AccountChecking,
	"SAVINGS":    AccountSavings,
	"CREDITCARD": AccountCreditCard,
	"MONEYMRKT":  AccountMoneyMarket,
	"CREDITLINE": AccountCreditLine,
	"INVESTMENT": AccountInvestment,
	"CMA":        AccountCMA,
}

// AccountTypes returns every account type in declaration order.
func AccountTypes() []AccountType {
	types := make([]AccountType, len(accountTypeNames))
	for i := range accountTypeNames {
		types[i] = AccountType(i)
	}
	return types
}

// ParseAccountType maps an OFX ACCTTYPE value to an AccountType.
// Unrecognized values map to AccountUnknown.
func ParseAccountType(s string) AccountType {
	if t, ok := accountTypesByName[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return t
	}
	return AccountUnknown
}

// String returns the canonical OFX name, e.g. "CHECKING".
func (t AccountType) String() string {
	if t < 0 || int(t) >= len(accountTypeNames) {
		return accountTypeNames[AccountUnknown]
	}
	return accountTypeNames[t]
}

// DisplayName returns the lower-cased canonical name, e.g. "checking".
func (t AccountType) DisplayName() string {
	return strings.ToLower(t.String())
}

// MarshalText encodes the type by its canonical name.
func (t AccountType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a canonical name; unknown names decode to AccountUnknown.
func (t *AccountType) UnmarshalText(text []byte) error {
	*t = ParseAccountType(string(text))
	return nil
}

// AccountInfo identifies an account within an institution.
type AccountInfo struct {
	AcctID   string      `json:"acctId" yaml:"acctId"`
	Type     AccountType `json:"type" yaml:"type"`
	Name     string      `json:"name" yaml:"name"`
	Number   string      `json:"number" yaml:"number"`
	Currency string      `json:"currency" yaml:"currency"`
	BankID   string      `json:"bankId,omitempty" yaml:"bankId,omitempty"`
	BranchID string      `json:"branchId,omitempty" yaml:"branchId,omitempty"`
}

// Balance is the statement balance as reported by the institution.
// Available fields are only set when the statement carries AVAILBAL.
type Balance struct {
	LedgerDate    time.Time        `json:"ledgerDate" yaml:"ledgerDate"`
	AvailableDate *time.Time       `json:"availableDate,omitempty" yaml:"availableDate,omitempty"`
	Available     *decimal.Decimal `json:"available,omitempty" yaml:"available,omitempty"`
	Ledger        decimal.Decimal  `json:"ledger" yaml:"ledger"`
}

// Account is one statement's account with its balance and transactions.
type Account struct {
	Balance      *Balance      `json:"balance,omitempty" yaml:"balance,omitempty"`
	Info         AccountInfo   `json:"info" yaml:"info"`
	Transactions []Transaction `json:"transactions" yaml:"transactions"`
}

// TransactionCount returns the number of transactions on the account.
func (a *Account) TransactionCount() int {
	return len(a.Transactions)
}

// Net sums all transaction amounts.
func (a *Account) Net() decimal.Decimal {
	total := decimal.Zero
	for _, tx := range a.Transactions {
		total = total.Add(tx.Amount)
	}
	return total
}
