package ofx

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Veraticus/ofxread/internal/model"
	"github.com/shopspring/decimal"
)

// extractor turns a Document into accounts. It lives for one parse.
type extractor struct {
	loc      *time.Location
	currency string
}

// extractAccounts walks the document depth-first and returns one account per
// recognized statement or account-info aggregate, in document order.
func extractAccounts(ctx context.Context, doc *Document, loc *time.Location) ([]model.Account, error) {
	x := &extractor{
		loc:      documentLocation(doc.Root, loc),
		currency: firstValue(doc.Root, "CURDEF"),
	}

	accounts := []model.Account{}
	var walkErr error
	doc.Root.Walk(func(el *Element) bool {
		if walkErr != nil {
			return false
		}

		var (
			acct *model.Account
			err  error
		)
		switch el.Name {
		case "STMTRS":
			acct, err = x.bankStatement(el)
		case "CCSTMTRS":
			acct, err = x.creditCardStatement(el)
		case "INVSTMTRS":
			acct, err = x.investmentStatement(el)
		case "ACCTINFO":
			acct = x.accountInfo(el)
		default:
			return true
		}

		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			walkErr = err
			return false
		}
		if acct != nil {
			accounts = append(accounts, *acct)
		}
		return false
	})

	if walkErr != nil {
		return nil, walkErr
	}
	return accounts, nil
}

// documentLocation prefers the zone of the server timestamp in the signon
// response over the caller's default.
func documentLocation(root *Element, fallback *time.Location) *time.Location {
	if fallback == nil {
		fallback = time.Local
	}
	if zone, ok := ParseOffset(firstValue(root, "DTSERVER")); ok {
		return zone
	}
	return fallback
}

func firstValue(root *Element, name string) string {
	var value string
	root.Walk(func(el *Element) bool {
		if value != "" {
			return false
		}
		if el.Name == name {
			value = strings.TrimSpace(el.Value)
			return false
		}
		return true
	})
	return value
}

func (x *extractor) bankStatement(stmt *Element) (*model.Account, error) {
	from := stmt.Child("BANKACCTFROM")
	if from == nil {
		return nil, nil
	}
	info := bankInfo(from)
	info.Currency = x.currencyOf(stmt)

	acct, err := x.statement(info, stmt.Find("BANKTRANLIST").ChildrenNamed("STMTTRN"))
	if err != nil {
		return nil, err
	}
	if err := x.ledgerBalances(acct, stmt); err != nil {
		return nil, err
	}
	return acct, nil
}

func (x *extractor) creditCardStatement(stmt *Element) (*model.Account, error) {
	from := stmt.Child("CCACCTFROM")
	if from == nil {
		return nil, nil
	}
	info := creditCardInfo(from)
	info.Currency = x.currencyOf(stmt)

	acct, err := x.statement(info, stmt.Find("BANKTRANLIST").ChildrenNamed("STMTTRN"))
	if err != nil {
		return nil, err
	}
	if err := x.ledgerBalances(acct, stmt); err != nil {
		return nil, err
	}
	return acct, nil
}

func (x *extractor) investmentStatement(stmt *Element) (*model.Account, error) {
	from := stmt.Child("INVACCTFROM")
	if from == nil {
		return nil, nil
	}
	info := investmentInfo(from)
	info.Currency = x.currencyOf(stmt)

	var trns []*Element
	for _, bank := range stmt.Find("INVTRANLIST").ChildrenNamed("INVBANKTRAN") {
		trns = append(trns, bank.ChildrenNamed("STMTTRN")...)
	}
	acct, err := x.statement(info, trns)
	if err != nil {
		return nil, err
	}

	// Investment statements have no LEDGERBAL; available cash stands in for it.
	if cash := stmt.Find("INVBAL", "AVAILCASH"); cash != nil && strings.TrimSpace(cash.Value) != "" {
		amount, err := x.amount(cash)
		if err != nil {
			return nil, err
		}
		asOf, err := x.optionalDate(stmt, "DTASOF")
		if err != nil {
			return nil, err
		}
		acct.Balance = &model.Balance{Ledger: amount}
		if asOf != nil {
			acct.Balance.LedgerDate = *asOf
		}
	}
	return acct, nil
}

func (x *extractor) accountInfo(el *Element) *model.Account {
	var info model.AccountInfo
	switch {
	case el.Find("BANKACCTINFO", "BANKACCTFROM") != nil:
		info = bankInfo(el.Find("BANKACCTINFO", "BANKACCTFROM"))
	case el.Find("CCACCTINFO", "CCACCTFROM") != nil:
		info = creditCardInfo(el.Find("CCACCTINFO", "CCACCTFROM"))
	case el.Find("INVACCTINFO", "INVACCTFROM") != nil:
		info = investmentInfo(el.Find("INVACCTINFO", "INVACCTFROM"))
	default:
		return nil
	}
	if desc := el.Text("DESC"); desc != "" {
		info.Name = desc
	}
	info.Currency = x.currency
	return &model.Account{Info: info, Transactions: []model.Transaction{}}
}

func bankInfo(from *Element) model.AccountInfo {
	bankID, branchID, acctID := from.Text("BANKID"), from.Text("BRANCHID"), from.Text("ACCTID")
	return model.AccountInfo{
		AcctID:   joinNonEmpty(bankID, branchID, acctID),
		Type:     model.ParseAccountType(from.Text("ACCTTYPE")),
		Name:     "Bank account " + acctID,
		Number:   acctID,
		BankID:   bankID,
		BranchID: branchID,
	}
}

func creditCardInfo(from *Element) model.AccountInfo {
	acctID := from.Text("ACCTID")
	return model.AccountInfo{
		AcctID: acctID,
		Type:   model.AccountCreditCard,
		Name:   "Credit card " + acctID,
		Number: acctID,
	}
}

func investmentInfo(from *Element) model.AccountInfo {
	brokerID, acctID := from.Text("BROKERID"), from.Text("ACCTID")
	name := "Investment account " + acctID
	if brokerID != "" {
		name += " at broker " + brokerID
	}
	return model.AccountInfo{
		AcctID: joinNonEmpty(brokerID, acctID),
		Type:   model.AccountInvestment,
		Name:   name,
		Number: acctID,
	}
}

func (x *extractor) currencyOf(stmt *Element) string {
	if cur := stmt.Text("CURDEF"); cur != "" {
		return strings.ToUpper(cur)
	}
	return strings.ToUpper(x.currency)
}

func (x *extractor) statement(info model.AccountInfo, trns []*Element) (*model.Account, error) {
	acct := &model.Account{
		Info:         info,
		Transactions: make([]model.Transaction, 0, len(trns)),
	}
	for _, trn := range trns {
		tx, err := x.transaction(trn)
		if err != nil {
			return nil, err
		}
		acct.Transactions = append(acct.Transactions, tx)
	}
	return acct, nil
}

// ledgerBalances applies every LEDGERBAL in order, so the last one wins.
func (x *extractor) ledgerBalances(acct *model.Account, stmt *Element) error {
	for _, bal := range stmt.ChildrenNamed("LEDGERBAL") {
		amount, asOf, ok, err := x.balance(bal)
		if err != nil {
			return err
		}
		if ok {
			acct.Balance = &model.Balance{Ledger: amount, LedgerDate: asOf}
		}
	}

	if acct.Balance == nil {
		return nil
	}
	for _, bal := range stmt.ChildrenNamed("AVAILBAL") {
		amount, asOf, ok, err := x.balance(bal)
		if err != nil {
			return err
		}
		if ok {
			acct.Balance.Available = &amount
			acct.Balance.AvailableDate = &asOf
		}
	}
	return nil
}

func (x *extractor) balance(bal *Element) (amount decimal.Decimal, asOf time.Time, ok bool, err error) {
	amt := bal.Child("BALAMT")
	if amt == nil || strings.TrimSpace(amt.Value) == "" {
		return amount, asOf, false, nil
	}
	if amount, err = x.amount(amt); err != nil {
		return amount, asOf, false, err
	}
	date, err := x.optionalDate(bal, "DTASOF")
	if err != nil {
		return amount, asOf, false, err
	}
	if date != nil {
		asOf = *date
	}
	return amount, asOf, true, nil
}

func (x *extractor) transaction(trn *Element) (model.Transaction, error) {
	tx := model.Transaction{
		Type:        model.ParseTransactionType(trn.Text("TRNTYPE")),
		FitID:       trn.Text("FITID"),
		Name:        trn.Text("NAME"),
		Memo:        trn.Text("MEMO"),
		CheckNumber: trn.Text("CHECKNUM"),
	}
	if tx.Name == "" {
		tx.Name = trn.Text("PAYEE", "NAME")
	}

	if amt := trn.Child("TRNAMT"); amt != nil && strings.TrimSpace(amt.Value) != "" {
		amount, err := x.amount(amt)
		if err != nil {
			return tx, err
		}
		tx.Amount = amount
	}

	posted, err := x.optionalDate(trn, "DTPOSTED")
	if err != nil {
		return tx, err
	}
	if posted != nil {
		tx.DatePosted = *posted
	}

	if tx.DateUser, err = x.optionalDate(trn, "DTUSER"); err != nil {
		return tx, err
	}
	return tx, nil
}

func (x *extractor) amount(el *Element) (decimal.Decimal, error) {
	d, err := ParseAmount(el.Value)
	return d, annotate(err, el)
}

// optionalDate parses the named child; a missing or empty child yields nil.
func (x *extractor) optionalDate(parent *Element, name string) (*time.Time, error) {
	el := parent.Child(name)
	if el == nil || strings.TrimSpace(el.Value) == "" {
		return nil, nil
	}
	t, err := ParseDate(el.Value, x.loc)
	if err != nil {
		return nil, annotate(err, el)
	}
	return &t, nil
}

// annotate attaches the element's tag and position to a field error.
func annotate(err error, el *Element) error {
	var perr *Error
	if errors.As(err, &perr) {
		perr.Tag = el.Name
		perr.Pos = el.Pos
	}
	return err
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
