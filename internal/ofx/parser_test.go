package ofx

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/ofxread/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCreditCardXML = `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<?OFX OFXHEADER="200" VERSION="211" SECURITY="NONE" OLDFILEUID="NONE" NEWFILEUID="NONE"?>
<OFX>
  <SIGNONMSGSRSV1>
    <SONRS>
      <STATUS><CODE>0</CODE><SEVERITY>INFO</SEVERITY></STATUS>
      <DTSERVER>20240315120000[-5:EST]</DTSERVER>
      <LANGUAGE>ENG</LANGUAGE>
    </SONRS>
  </SIGNONMSGSRSV1>
  <CREDITCARDMSGSRSV1>
    <CCSTMTTRNRS>
      <TRNUID>1</TRNUID>
      <STATUS><CODE>0</CODE><SEVERITY>INFO</SEVERITY></STATUS>
      <CCSTMTRS>
        <CURDEF>usd</CURDEF>
        <CCACCTFROM><ACCTID>4111111111111111</ACCTID></CCACCTFROM>
        <BANKTRANLIST>
          <DTSTART>20240101</DTSTART>
          <DTEND>20240131</DTEND>
          <STMTTRN>
            <TRNTYPE>DEBIT</TRNTYPE>
            <DTPOSTED>20240110</DTPOSTED>
            <DTUSER>20240109083000</DTUSER>
            <TRNAMT>-45.99</TRNAMT>
            <FITID>CC2024011001</FITID>
            <NAME>AMAZON.COM*RT4Y7HG2</NAME>
          </STMTTRN>
          <STMTTRN>
            <TRNTYPE>PAYMENT</TRNTYPE>
            <DTPOSTED>20240120120000[0:GMT]</DTPOSTED>
            <TRNAMT>500.00</TRNAMT>
            <FITID>CC2024012001</FITID>
            <PAYEE><NAME>THANK YOU</NAME></PAYEE>
          </STMTTRN>
        </BANKTRANLIST>
        <LEDGERBAL><BALAMT>-1045.99</BALAMT><DTASOF>20240131</DTASOF></LEDGERBAL>
      </CCSTMTRS>
    </CCSTMTTRNRS>
  </CREDITCARDMSGSRSV1>
</OFX>`

const sampleInvestmentOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102

<OFX>
<INVSTMTMSGSRSV1>
<INVSTMTTRNRS>
<TRNUID>1
<INVSTMTRS>
<DTASOF>20240229160000[-5:EST]
<CURDEF>USD
<INVACCTFROM>
<BROKERID>example.com
<ACCTID>987654
</INVACCTFROM>
<INVTRANLIST>
<DTSTART>20240201
<DTEND>20240229
<BUYSTOCK>
<INVBUY>
<INVTRAN>
<FITID>BUY1
<DTTRADE>20240205
</INVTRAN>
<UNITS>10
<TOTAL>-1000.00
</INVBUY>
<BUYTYPE>BUY
</BUYSTOCK>
<INVBANKTRAN>
<STMTTRN>
<TRNTYPE>DIV
<DTPOSTED>20240215
<TRNAMT>12.34
<FITID>DIV1
<NAME>Dividend
</STMTTRN>
<SUBACCTFUND>CASH
</INVBANKTRAN>
</INVTRANLIST>
<INVBAL>
<AVAILCASH>1500.25
<MARGINBALANCE>0
<SHORTBALANCE>0
</INVBAL>
</INVSTMTRS>
</INVSTMTTRNRS>
</INVSTMTMSGSRSV1>
</OFX>`

const sampleAccountInfoOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102

<OFX>
<SIGNUPMSGSRSV1>
<ACCTINFOTRNRS>
<TRNUID>1
<ACCTINFORS>
<DTACCTUP>20240101
<ACCTINFO>
<DESC>Everyday Checking
<BANKACCTINFO>
<BANKACCTFROM>
<BANKID>111000025
<ACCTID>0001
<ACCTTYPE>SAVINGS
</BANKACCTFROM>
<SUPTXDL>Y
</BANKACCTINFO>
</ACCTINFO>
<ACCTINFO>
<CCACCTINFO>
<CCACCTFROM>
<ACCTID>5500
</CCACCTFROM>
</CCACCTINFO>
</ACCTINFO>
</ACCTINFORS>
</ACCTINFOTRNRS>
</SIGNUPMSGSRSV1>
</OFX>`

func testParser() *Parser {
	return NewParser(WithLocation(time.UTC))
}

func parseString(t *testing.T, data string) []model.Account {
	t.Helper()
	accounts, err := testParser().ParseBytes(context.Background(), []byte(data))
	require.NoError(t, err)
	return accounts
}

// bankStatement wraps STMTRS content in a minimal SGML document.
func bankStatement(body string) string {
	return "OFXHEADER:100\nDATA:OFXSGML\n\n<OFX><BANKMSGSRSV1><STMTTRNRS><STMTRS>\n" +
		body + "\n</STMTRS></STMTTRNRS></BANKMSGSRSV1></OFX>"
}

const bankAcctFrom = "<BANKACCTFROM><BANKID>1<ACCTID>2<ACCTTYPE>CHECKING</BANKACCTFROM>\n"

func TestParseFile_JustAccount(t *testing.T) {
	accounts, err := testParser().ParseFile(context.Background(), filepath.Join("testdata", "justaccount.qfx"))
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	acct := accounts[0]
	assert.Equal(t, model.AccountInfo{
		AcctID:   "003456789 Branch-xxx XXXXXX0000",
		Type:     model.AccountChecking,
		Name:     "Bank account XXXXXX0000",
		Number:   "XXXXXX0000",
		Currency: "USD",
		BankID:   "003456789",
		BranchID: "Branch-xxx",
	}, acct.Info)
	assert.Nil(t, acct.Balance)
	assert.NotNil(t, acct.Transactions)
	assert.Empty(t, acct.Transactions)
}

func TestParseFile_Small(t *testing.T) {
	accounts, err := testParser().ParseFile(context.Background(), filepath.Join("testdata", "small.qfx"))
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	acct := accounts[0]
	assert.Equal(t, "003456789 Branch-xxx XXXXXX0000", acct.Info.AcctID)

	require.NotNil(t, acct.Balance)
	assert.Equal(t, "8381.12", acct.Balance.Ledger.StringFixed(2))
	assert.Equal(t, time.Date(2017, 3, 27, 11, 14, 49, 0, time.UTC), acct.Balance.LedgerDate)
	require.NotNil(t, acct.Balance.Available)
	assert.Equal(t, "8281.12", acct.Balance.Available.StringFixed(2))

	require.Len(t, acct.Transactions, 8)
	first := acct.Transactions[0]
	assert.Equal(t, model.TransactionDebit, first.Type)
	assert.Equal(t, time.Date(2017, 3, 24, 12, 0, 0, 0, time.UTC), first.DatePosted)
	assert.Nil(t, first.DateUser)
	assert.Equal(t, "-26.86", first.Amount.StringFixed(2))
	assert.Equal(t, "201703240001", first.FitID)
	assert.Equal(t, "Debit Card Purchase 03/22 0", first.Name)
	assert.Equal(t, "HANA NATURAL           BROOKLYN      NY", first.Memo)

	check := acct.Transactions[2]
	assert.Equal(t, model.TransactionCheck, check.Type)
	assert.Equal(t, "1042", check.CheckNumber)
	assert.Empty(t, check.Memo)

	atm := acct.Transactions[4]
	assert.Equal(t, model.TransactionATM, atm.Type)
	assert.Equal(t, "ATM 123 MAIN ST & 4TH", atm.Memo)

	var types []model.TransactionType
	for _, tx := range acct.Transactions {
		types = append(types, tx.Type)
	}
	assert.Equal(t, []model.TransactionType{
		model.TransactionDebit, model.TransactionDebit, model.TransactionCheck, model.TransactionDirectDep,
		model.TransactionATM, model.TransactionFee, model.TransactionXfer, model.TransactionInt,
	}, types)

	assert.True(t, decimal.RequireFromString("1656.43").Equal(acct.Net()), "net %s", acct.Net())
}

func TestParseFile_NotFound(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.qfx")

	accounts, err := testParser().ParseFile(context.Background(), missing)
	require.Error(t, err)
	assert.Nil(t, accounts)
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, "file not found: "+missing, err.Error())

	var nf *FileNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, missing, nf.Path)

	_, err = ParseFile(t.TempDir())
	assert.ErrorIs(t, err, ErrFileNotFound, "a directory is not a statement file")
}

func TestParseFile_WrapsParseErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ofx")
	require.NoError(t, os.WriteFile(path, []byte("not valid OFX"), 0o600))

	_, err := testParser().ParseFile(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedHeader)
	assert.Contains(t, err.Error(), path)
}

func TestParse_Idempotent(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "small.qfx"))
	require.NoError(t, err)

	first, err := testParser().ParseBytes(context.Background(), data)
	require.NoError(t, err)
	second, err := testParser().ParseBytes(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	fromReader, err := testParser().Parse(context.Background(), strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Equal(t, first, fromReader)
}

func TestParse_ConcurrentCallsAgree(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "small.qfx"))
	require.NoError(t, err)

	parser := testParser()
	want, err := parser.ParseBytes(context.Background(), data)
	require.NoError(t, err)

	const workers = 8
	results := make([][]model.Account, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = parser.ParseBytes(context.Background(), data)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, want, results[i])
	}
}

func TestParse_CreditCardXML(t *testing.T) {
	// No WithLocation: dates without an offset take the DTSERVER zone.
	accounts, err := NewParser().ParseBytes(context.Background(), []byte(sampleCreditCardXML))
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	acct := accounts[0]
	assert.Equal(t, model.AccountInfo{
		AcctID:   "4111111111111111",
		Type:     model.AccountCreditCard,
		Name:     "Credit card 4111111111111111",
		Number:   "4111111111111111",
		Currency: "USD",
	}, acct.Info)
	assert.Equal(t, "creditcard", acct.Info.Type.DisplayName())

	require.Len(t, acct.Transactions, 2)
	amazon := acct.Transactions[0]
	est := time.FixedZone("EST", -5*3600)
	assert.True(t, amazon.DatePosted.Equal(time.Date(2024, 1, 10, 0, 0, 0, 0, est)))
	require.NotNil(t, amazon.DateUser)
	assert.True(t, amazon.DateUser.Equal(time.Date(2024, 1, 9, 8, 30, 0, 0, est)))

	payment := acct.Transactions[1]
	assert.Equal(t, model.TransactionPayment, payment.Type)
	assert.Equal(t, "THANK YOU", payment.Name)
	assert.True(t, payment.DatePosted.Equal(time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)))

	require.NotNil(t, acct.Balance)
	assert.Equal(t, "-1045.99", acct.Balance.Ledger.StringFixed(2))
	assert.Nil(t, acct.Balance.Available)
}

func TestParse_Investment(t *testing.T) {
	accounts := parseString(t, sampleInvestmentOFX)
	require.Len(t, accounts, 1)

	acct := accounts[0]
	assert.Equal(t, "example.com 987654", acct.Info.AcctID)
	assert.Equal(t, model.AccountInvestment, acct.Info.Type)
	assert.Equal(t, "Investment account 987654 at broker example.com", acct.Info.Name)
	assert.Empty(t, acct.Info.BankID)

	require.Len(t, acct.Transactions, 1)
	assert.Equal(t, model.TransactionDiv, acct.Transactions[0].Type)
	assert.Equal(t, "12.34", acct.Transactions[0].Amount.StringFixed(2))

	require.NotNil(t, acct.Balance)
	assert.Equal(t, "1500.25", acct.Balance.Ledger.StringFixed(2))
	assert.True(t, acct.Balance.LedgerDate.Equal(time.Date(2024, 2, 29, 21, 0, 0, 0, time.UTC)))
}

func TestParse_AccountInfo(t *testing.T) {
	accounts := parseString(t, sampleAccountInfoOFX)
	require.Len(t, accounts, 2)

	assert.Equal(t, "111000025 0001", accounts[0].Info.AcctID)
	assert.Equal(t, model.AccountSavings, accounts[0].Info.Type)
	assert.Equal(t, "Everyday Checking", accounts[0].Info.Name)

	assert.Equal(t, "5500", accounts[1].Info.AcctID)
	assert.Equal(t, "Credit card 5500", accounts[1].Info.Name)
	for _, acct := range accounts {
		assert.Nil(t, acct.Balance)
		assert.Empty(t, acct.Transactions)
	}
}

func TestParse_Statements(t *testing.T) {
	tests := []struct {
		check func(t *testing.T, accounts []model.Account)
		name  string
		input string
	}{
		{
			name: "last ledger balance wins",
			input: bankStatement(bankAcctFrom +
				"<LEDGERBAL><BALAMT>10.00<DTASOF>20240101</LEDGERBAL>\n" +
				"<LEDGERBAL><BALAMT>20.00<DTASOF>20240102</LEDGERBAL>"),
			check: func(t *testing.T, accounts []model.Account) {
				t.Helper()
				require.Len(t, accounts, 1)
				require.NotNil(t, accounts[0].Balance)
				assert.Equal(t, "20.00", accounts[0].Balance.Ledger.StringFixed(2))
				assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), accounts[0].Balance.LedgerDate)
			},
		},
		{
			name:  "statement without account is skipped",
			input: bankStatement("<CURDEF>USD\n<LEDGERBAL><BALAMT>1.00</LEDGERBAL>"),
			check: func(t *testing.T, accounts []model.Account) {
				t.Helper()
				assert.Empty(t, accounts)
			},
		},
		{
			name:  "unknown types fall back",
			input: bankStatement("<BANKACCTFROM><BANKID>1<ACCTID>2<ACCTTYPE>PIGGYBANK</BANKACCTFROM>\n<BANKTRANLIST><STMTTRN><TRNTYPE>BARTER<TRNAMT>1</STMTTRN></BANKTRANLIST>"),
			check: func(t *testing.T, accounts []model.Account) {
				t.Helper()
				require.Len(t, accounts, 1)
				assert.Equal(t, model.AccountUnknown, accounts[0].Info.Type)
				require.Len(t, accounts[0].Transactions, 1)
				assert.Equal(t, model.TransactionOther, accounts[0].Transactions[0].Type)
				assert.True(t, accounts[0].Transactions[0].DatePosted.IsZero())
			},
		},
		{
			name: "currency comes from the document when the statement has none",
			input: "<OFX><SIGNUPMSGSRSV1><CURDEF>eur</CURDEF></SIGNUPMSGSRSV1>" +
				"<BANKMSGSRSV1><STMTRS>" + bankAcctFrom + "</STMTRS></BANKMSGSRSV1></OFX>",
			check: func(t *testing.T, accounts []model.Account) {
				t.Helper()
				require.Len(t, accounts, 1)
				assert.Equal(t, "EUR", accounts[0].Info.Currency)
			},
		},
		{
			name:  "available balance without ledger is ignored",
			input: bankStatement(bankAcctFrom + "<AVAILBAL><BALAMT>5.00<DTASOF>20240101</AVAILBAL>"),
			check: func(t *testing.T, accounts []model.Account) {
				t.Helper()
				require.Len(t, accounts, 1)
				assert.Nil(t, accounts[0].Balance)
			},
		},
		{
			name: "empty optional fields are absent",
			input: bankStatement(bankAcctFrom +
				"<BANKTRANLIST><STMTTRN><TRNTYPE>CREDIT<DTPOSTED><DTUSER><TRNAMT>3.10<FITID>x<NAME><MEMO></STMTTRN></BANKTRANLIST>"),
			check: func(t *testing.T, accounts []model.Account) {
				t.Helper()
				require.Len(t, accounts, 1)
				require.Len(t, accounts[0].Transactions, 1)
				tx := accounts[0].Transactions[0]
				assert.True(t, tx.DatePosted.IsZero())
				assert.Nil(t, tx.DateUser)
				assert.Equal(t, "3.1", tx.Amount.String())
				assert.Equal(t, "x", tx.FitID)
				assert.Empty(t, tx.Name)
			},
		},
		{
			name: "empty unrecognized element keeps the transaction intact",
			input: bankStatement(bankAcctFrom +
				"<BANKTRANLIST><STMTTRN><TRNTYPE>DEBIT\n<DTAVAIL>\n<DTPOSTED>20170324\n<TRNAMT>-26.86\n<FITID>X1\n<NAME>Shop\n</STMTTRN></BANKTRANLIST>"),
			check: func(t *testing.T, accounts []model.Account) {
				t.Helper()
				require.Len(t, accounts, 1)
				require.Len(t, accounts[0].Transactions, 1)
				tx := accounts[0].Transactions[0]
				assert.Equal(t, "-26.86", tx.Amount.StringFixed(2))
				assert.Equal(t, "X1", tx.FitID)
				assert.Equal(t, "Shop", tx.Name)
				assert.Equal(t, time.Date(2017, 3, 24, 0, 0, 0, 0, time.UTC), tx.DatePosted)
			},
		},
		{
			name: "cdata payee name",
			input: bankStatement(bankAcctFrom +
				"<BANKTRANLIST><STMTTRN><TRNAMT>-80.00</TRNAMT><FITID>C1</FITID><NAME><![CDATA[AT&T Wireless]]></NAME></STMTTRN></BANKTRANLIST>"),
			check: func(t *testing.T, accounts []model.Account) {
				t.Helper()
				require.Len(t, accounts, 1)
				require.Len(t, accounts[0].Transactions, 1)
				assert.Equal(t, "AT&T Wireless", accounts[0].Transactions[0].Name)
			},
		},
		{
			name: "accounts are returned in document order",
			input: "<OFX><BANKMSGSRSV1>" +
				"<STMTRS><BANKACCTFROM><BANKID>1<ACCTID>A</BANKACCTFROM></STMTRS>" +
				"<STMTRS><BANKACCTFROM><BANKID>1<ACCTID>B</BANKACCTFROM></STMTRS>" +
				"</BANKMSGSRSV1><CREDITCARDMSGSRSV1>" +
				"<CCSTMTRS><CCACCTFROM><ACCTID>C</CCACCTFROM></CCSTMTRS>" +
				"</CREDITCARDMSGSRSV1></OFX>",
			check: func(t *testing.T, accounts []model.Account) {
				t.Helper()
				require.Len(t, accounts, 3)
				assert.Equal(t, "1 A", accounts[0].Info.AcctID)
				assert.Equal(t, "1 B", accounts[1].Info.AcctID)
				assert.Equal(t, "C", accounts[2].Info.AcctID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, parseString(t, tt.input))
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		wantErr error
		name    string
		input   string
		wantTag string
	}{
		{
			name:    "invalid amount",
			input:   bankStatement(bankAcctFrom + "<BANKTRANLIST><STMTTRN><TRNAMT>12.3.4</STMTTRN></BANKTRANLIST>"),
			wantErr: ErrInvalidAmount,
			wantTag: "TRNAMT",
		},
		{
			name:    "invalid posted date",
			input:   bankStatement(bankAcctFrom + "<BANKTRANLIST><STMTTRN><DTPOSTED>2024-01-01<TRNAMT>1</STMTTRN></BANKTRANLIST>"),
			wantErr: ErrInvalidDate,
			wantTag: "DTPOSTED",
		},
		{
			name:    "invalid balance amount",
			input:   bankStatement(bankAcctFrom + "<LEDGERBAL><BALAMT>lots<DTASOF>20240101</LEDGERBAL>"),
			wantErr: ErrInvalidAmount,
			wantTag: "BALAMT",
		},
		{
			name:    "invalid balance date",
			input:   bankStatement(bankAcctFrom + "<LEDGERBAL><BALAMT>1<DTASOF>20241301</LEDGERBAL>"),
			wantErr: ErrInvalidDate,
			wantTag: "DTASOF",
		},
		{
			name:    "unbalanced tag",
			input:   bankStatement(bankAcctFrom + "</BANKTRANLIST>"),
			wantErr: ErrUnbalancedTag,
			wantTag: "BANKTRANLIST",
		},
		{
			name: "truncated statement",
			input: "OFXHEADER:100\nDATA:OFXSGML\n\n<OFX><BANKMSGSRSV1><STMTTRNRS><STMTRS>\n" +
				bankAcctFrom + "<BANKTRANLIST><STMTTRN><TRNAMT>-1.00",
			wantErr: ErrUnterminatedDocument,
			wantTag: "STMTRS",
		},
		{
			name:    "malformed header",
			input:   "OFXHEADER 100\n<OFX></OFX>",
			wantErr: ErrMalformedHeader,
		},
		{
			name:    "no body",
			input:   "OFXHEADER:100\nDATA:OFXSGML\n",
			wantErr: ErrUnterminatedDocument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts, err := testParser().ParseBytes(context.Background(), []byte(tt.input))
			require.Error(t, err)
			assert.Nil(t, accounts)
			assert.ErrorIs(t, err, tt.wantErr)

			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.wantTag, perr.Tag)
			if tt.wantTag != "" {
				assert.Positive(t, perr.Pos.Line)
			}
		})
	}
}

func TestParse_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testParser().ParseBytes(ctx, []byte(sampleInvestmentOFX))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadDocument(t *testing.T) {
	doc, err := ReadDocument(filepath.Join("testdata", "small.qfx"))
	require.NoError(t, err)
	assert.Equal(t, "102", doc.Header.Version())
	assert.Len(t, doc.Root.Find("OFX", "BANKMSGSRSV1", "STMTTRNRS", "STMTRS", "BANKTRANLIST").ChildrenNamed("STMTTRN"), 8)

	_, err = ReadDocument("does-not-exist.qfx")
	assert.ErrorIs(t, err, ErrFileNotFound)
}
