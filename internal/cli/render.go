package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Veraticus/ofxread/internal/model"
	"github.com/Veraticus/ofxread/internal/storage"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const dateLayout = "2006-01-02"

// RenderAccounts writes one box per account followed by its transactions.
func RenderAccounts(w io.Writer, accounts []model.Account) error {
	if len(accounts) == 0 {
		_, err := fmt.Fprintln(w, FormatWarning("No statements found"))
		return err
	}
	for i := range accounts {
		if _, err := fmt.Fprintln(w, RenderAccount(&accounts[i])); err != nil {
			return err
		}
	}
	return nil
}

// RenderAccount renders a single account summary and transaction table.
func RenderAccount(acct *model.Account) string {
	info := acct.Info
	title := AccountIcon(info.Type) + " " + info.Name

	lines := []string{
		fmt.Sprintf("%s %s", SubtleStyle.Render("ID:"), info.AcctID),
		fmt.Sprintf("%s %s", SubtleStyle.Render("Type:"), info.Type.DisplayName()),
		fmt.Sprintf("%s %s", SubtleStyle.Render("Currency:"), orDash(info.Currency)),
	}
	lines = append(lines, balanceLines(acct.Balance, info.Currency)...)
	lines = append(lines, fmt.Sprintf("%s %d, net %s",
		SubtleStyle.Render("Transactions:"), acct.TransactionCount(), StyleAmount(acct.Net())))

	box := RenderBox(title, strings.Join(lines, "\n"))
	if len(acct.Transactions) == 0 {
		return box
	}
	return lipgloss.JoinVertical(lipgloss.Left, box, TransactionTable(acct.Transactions).Render())
}

func balanceLines(bal *model.Balance, currency string) []string {
	if bal == nil {
		return []string{SubtleStyle.Render("No balance reported")}
	}
	lines := []string{fmt.Sprintf("%s %s %s as of %s",
		SubtleStyle.Render("Ledger:"), StyleAmount(bal.Ledger), currency, bal.LedgerDate.Format(dateLayout))}
	if bal.Available != nil {
		line := fmt.Sprintf("%s %s %s", SubtleStyle.Render("Available:"), StyleAmount(*bal.Available), currency)
		if bal.AvailableDate != nil {
			line += " as of " + bal.AvailableDate.Format(dateLayout)
		}
		lines = append(lines, line)
	}
	return lines
}

// TransactionTable lays out transactions in statement order.
func TransactionTable(txns []model.Transaction) *table.Table {
	rows := make([][]string, 0, len(txns))
	for _, txn := range txns {
		rows = append(rows, []string{
			txn.DatePosted.Format(dateLayout),
			txn.Type.DisplayName(),
			txn.Amount.StringFixed(2),
			txn.Name,
			txn.Memo,
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtleStyle).
		Headers("DATE", "TYPE", "AMOUNT", "NAME", "MEMO").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			if col == 2 && strings.HasPrefix(rows[row][col], "-") {
				return TableCellStyle.Foreground(ErrorColor)
			}
			return TableCellStyle
		})
}

// RenderTypes lists account and transaction types with their display names.
func RenderTypes(w io.Writer) error {
	accountRows := make([][]string, 0, len(model.AccountTypes()))
	for _, t := range model.AccountTypes() {
		accountRows = append(accountRows, []string{t.String(), t.DisplayName()})
	}
	txnRows := make([][]string, 0, len(model.TransactionTypes()))
	for _, t := range model.TransactionTypes() {
		txnRows = append(txnRows, []string{t.String(), model.TransactionTypeName(t)})
	}

	out := lipgloss.JoinVertical(lipgloss.Left,
		StyleTitle(LedgerIcon+" Account types"),
		simpleTable([]string{"OFX", "NAME"}, accountRows).Render(),
		"",
		StyleTitle(LedgerIcon+" Transaction types"),
		simpleTable([]string{"OFX", "NAME"}, txnRows).Render(),
	)
	_, err := fmt.Fprintln(w, out)
	return err
}

// RenderImports lists archived imports, oldest first.
func RenderImports(w io.Writer, imports []storage.Import) error {
	if len(imports) == 0 {
		_, err := fmt.Fprintln(w, FormatInfo("The archive is empty"))
		return err
	}
	rows := make([][]string, 0, len(imports))
	for _, imp := range imports {
		rows = append(rows, []string{
			imp.ID,
			imp.ImportedAt.Local().Format("2006-01-02 15:04"),
			imp.Source,
			strconv.Itoa(imp.Accounts),
			strconv.Itoa(imp.Transactions),
		})
	}
	_, err := fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left,
		StyleTitle(FolderIcon+" Archived imports"),
		simpleTable([]string{"ID", "IMPORTED", "SOURCE", "ACCOUNTS", "TRANSACTIONS"}, rows).Render(),
	))
	return err
}

func simpleTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.HiddenBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		})
}

// StyleTitle formats text as a title.
func StyleTitle(text string) string {
	return TitleStyle.UnsetMargins().Render(text)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
