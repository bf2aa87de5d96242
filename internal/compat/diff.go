package compat

import (
	"fmt"
	"time"

	"github.com/Veraticus/ofxread/internal/model"
)

// Difference is one field on which two parses disagree.
type Difference struct {
	Path      string
	Engine    string
	Reference string
}

func (d Difference) String() string {
	return fmt.Sprintf("%s: engine=%q ofxgo=%q", d.Path, d.Engine, d.Reference)
}

// Diff compares the engine's accounts with a reference parse. Dates are
// compared by calendar day in their own zone, since the two parsers resolve
// zone-less dates differently. Amounts are compared numerically.
func Diff(engine, reference []model.Account) []Difference {
	var diffs []Difference
	add := func(path, e, r string) {
		if e != r {
			diffs = append(diffs, Difference{Path: path, Engine: e, Reference: r})
		}
	}

	add("accounts", fmt.Sprint(len(engine)), fmt.Sprint(len(reference)))
	n := min(len(engine), len(reference))

	for i := 0; i < n; i++ {
		e, r := &engine[i], &reference[i]
		prefix := fmt.Sprintf("accounts[%d]", i)

		add(prefix+".acctId", e.Info.AcctID, r.Info.AcctID)
		add(prefix+".type", e.Info.Type.String(), r.Info.Type.String())
		add(prefix+".currency", e.Info.Currency, r.Info.Currency)
		add(prefix+".balance", balanceString(e.Balance), balanceString(r.Balance))
		add(prefix+".transactions", fmt.Sprint(len(e.Transactions)), fmt.Sprint(len(r.Transactions)))

		for j := 0; j < min(len(e.Transactions), len(r.Transactions)); j++ {
			et, rt := &e.Transactions[j], &r.Transactions[j]
			tp := fmt.Sprintf("%s.transactions[%d]", prefix, j)

			add(tp+".fitId", et.FitID, rt.FitID)
			add(tp+".type", et.Type.String(), rt.Type.String())
			add(tp+".amount", et.Amount.String(), rt.Amount.String())
			add(tp+".datePosted", day(et.DatePosted), day(rt.DatePosted))
			add(tp+".name", et.Name, rt.Name)
			add(tp+".memo", et.Memo, rt.Memo)
		}
	}
	return diffs
}

func balanceString(b *model.Balance) string {
	if b == nil {
		return ""
	}
	return b.Ledger.String() + " @ " + day(b.LedgerDate)
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
