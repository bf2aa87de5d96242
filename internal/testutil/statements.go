package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// SGMLHeader is a typical OFX 1.02 header block.
const SGMLHeader = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

`

// Txn is one STMTTRN entry. Type defaults to DEBIT.
type Txn struct {
	FitID  string
	Posted string
	Amount string
	Name   string
	Memo   string
	Type   string
}

// Statement describes a single-account bank statement. Start and End bound
// the transaction list; when empty they span the transactions, or the server
// date for a statement without any.
type Statement struct {
	ServerDate string
	Start      string
	End        string
	BankID     string
	AcctID     string
	AcctType   string
	Currency   string
	Ledger     string
	LedgerAsOf string
	Txns       []Txn
}

// Checking returns a checking statement for account 123456789 1234567890
// with the given ledger balance and transactions.
func Checking(ledger, asOf string, txns ...Txn) Statement {
	return Statement{
		ServerDate: "20240315120000[0:GMT]",
		BankID:     "123456789",
		AcctID:     "1234567890",
		AcctType:   "CHECKING",
		Currency:   "USD",
		Ledger:     ledger,
		LedgerAsOf: asOf,
		Txns:       txns,
	}
}

// SGML renders the statement as an OFX 1.x document.
func (s Statement) SGML() string {
	var b strings.Builder
	b.WriteString(SGMLHeader)
	b.WriteString("<OFX>\n<SIGNONMSGSRSV1>\n<SONRS>\n<STATUS>\n<CODE>0\n<SEVERITY>INFO\n</STATUS>\n")
	fmt.Fprintf(&b, "<DTSERVER>%s\n<LANGUAGE>ENG\n</SONRS>\n</SIGNONMSGSRSV1>\n", s.ServerDate)
	b.WriteString("<BANKMSGSRSV1>\n<STMTTRNRS>\n<TRNUID>1\n<STATUS>\n<CODE>0\n<SEVERITY>INFO\n</STATUS>\n")
	fmt.Fprintf(&b, "<STMTRS>\n<CURDEF>%s\n<BANKACCTFROM>\n<BANKID>%s\n<ACCTID>%s\n<ACCTTYPE>%s\n</BANKACCTFROM>\n",
		s.Currency, s.BankID, s.AcctID, s.AcctType)
	start, end := s.Period()
	fmt.Fprintf(&b, "<BANKTRANLIST>\n<DTSTART>%s\n<DTEND>%s\n", start, end)
	for _, txn := range s.Txns {
		typ := txn.Type
		if typ == "" {
			typ = "DEBIT"
		}
		fmt.Fprintf(&b, "<STMTTRN>\n<TRNTYPE>%s\n<DTPOSTED>%s\n<TRNAMT>%s\n<FITID>%s\n<NAME>%s\n",
			typ, txn.Posted, txn.Amount, txn.FitID, txn.Name)
		if txn.Memo != "" {
			fmt.Fprintf(&b, "<MEMO>%s\n", txn.Memo)
		}
		b.WriteString("</STMTTRN>\n")
	}
	b.WriteString("</BANKTRANLIST>\n")
	if s.Ledger != "" {
		fmt.Fprintf(&b, "<LEDGERBAL>\n<BALAMT>%s\n<DTASOF>%s\n</LEDGERBAL>\n", s.Ledger, s.LedgerAsOf)
	}
	b.WriteString("</STMTRS>\n</STMTTRNRS>\n</BANKMSGSRSV1>\n</OFX>\n")
	return b.String()
}

// Period returns the DTSTART and DTEND written for the transaction list.
func (s Statement) Period() (string, string) {
	start, end := s.Start, s.End
	first, last := s.ServerDate, s.ServerDate
	for i, txn := range s.Txns {
		if i == 0 || txn.Posted < first {
			first = txn.Posted
		}
		if i == 0 || txn.Posted > last {
			last = txn.Posted
		}
	}
	if start == "" {
		start = first
	}
	if end == "" {
		end = last
	}
	return start, end
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
