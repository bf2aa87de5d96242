package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionTypeName(t *testing.T) {
	tests := []struct {
		want string
		typ  TransactionType
	}{
		{typ: TransactionOther, want: "other"},
		{typ: TransactionCredit, want: "credit"},
		{typ: TransactionDebit, want: "debit"},
		{typ: TransactionInt, want: "int"},
		{typ: TransactionDiv, want: "div"},
		{typ: TransactionFee, want: "fee"},
		{typ: TransactionSrvChg, want: "srvchg"},
		{typ: TransactionDep, want: "dep"},
		{typ: TransactionATM, want: "atm"},
		{typ: TransactionPOS, want: "pos"},
		{typ: TransactionXfer, want: "xfer"},
		{typ: TransactionCheck, want: "check"},
		{typ: TransactionPayment, want: "payment"},
		{typ: TransactionCash, want: "cash"},
		{typ: TransactionDirectDep, want: "directdep"},
		{typ: TransactionDirectDebit, want: "directdebit"},
		{typ: TransactionRepeatPmt, want: "repeatpmt"},
		{typ: TransactionType(1000), want: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, TransactionTypeName(tt.typ))
			assert.Equal(t, tt.want, tt.typ.DisplayName())
		})
	}
}

func TestTransactionTypes_Complete(t *testing.T) {
	types := TransactionTypes()
	require.Len(t, types, 17)

	seen := make(map[string]bool)
	for _, typ := range types {
		assert.Equal(t, typ, ParseTransactionType(typ.String()))
		assert.False(t, seen[typ.DisplayName()], "duplicate display name %s", typ.DisplayName())
		seen[typ.DisplayName()] = true
	}
}

func TestParseTransactionType_Unknown(t *testing.T) {
	assert.Equal(t, TransactionOther, ParseTransactionType("BARTER"))
	assert.Equal(t, TransactionOther, ParseTransactionType(""))
	assert.Equal(t, TransactionDirectDep, ParseTransactionType("directdep"))

	var typ TransactionType
	require.NoError(t, typ.UnmarshalText([]byte("POS")))
	assert.Equal(t, TransactionPOS, typ)
}

func TestTransaction_Hash(t *testing.T) {
	tx1 := Transaction{
		FitID:      "TX001",
		DatePosted: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Name:       "STARBUCKS",
		Amount:     decimal.RequireFromString("-25.50"),
	}
	tx2 := tx1
	tx2.Memo = "memo is not part of the fingerprint"
	assert.Equal(t, tx1.Hash("acct"), tx2.Hash("acct"))

	tx3 := tx1
	tx3.Amount = decimal.RequireFromString("-30.00")
	assert.NotEqual(t, tx1.Hash("acct"), tx3.Hash("acct"))

	tx4 := tx1
	tx4.DatePosted = time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	assert.NotEqual(t, tx1.Hash("acct"), tx4.Hash("acct"))

	assert.NotEqual(t, tx1.Hash("acct"), tx1.Hash("other"))
	assert.Len(t, tx1.Hash("acct"), 64)
}
