package tui

import (
	"fmt"
	"strings"

	"github.com/Veraticus/ofxread/internal/model"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if len(m.accounts) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render(m.source),
			m.theme.Subtitle.Render("No statements found"),
			m.help.View(m.keymap),
		)
	}

	acct := &m.accounts[m.current]
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderTabs(),
		m.renderSummary(acct),
		m.table.View(),
		m.renderDetail(),
		m.help.View(m.keymap),
	)
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, len(m.accounts)+1)
	tabs = append(tabs, m.theme.Title.Render(m.source)+" ")
	for i := range m.accounts {
		label := fmt.Sprintf("%d %s", i+1, m.accounts[i].Info.Type.DisplayName())
		if i == m.current {
			tabs = append(tabs, m.theme.TabActive.Render(label))
		} else {
			tabs = append(tabs, m.theme.TabIdle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderSummary(acct *model.Account) string {
	info := acct.Info
	lines := []string{
		m.theme.Bold.Render(info.Name),
		m.theme.Subtitle.Render(fmt.Sprintf("%s · %s · %s", info.AcctID, info.Type.DisplayName(), info.Currency)),
	}
	if bal := acct.Balance; bal != nil {
		line := fmt.Sprintf("Ledger %s as of %s", m.amount(bal.Ledger), bal.LedgerDate.Format("2006-01-02"))
		if bal.Available != nil {
			line += fmt.Sprintf("   Available %s", m.amount(*bal.Available))
		}
		lines = append(lines, line)
	} else {
		lines = append(lines, m.theme.Subtitle.Render("No balance reported"))
	}
	lines = append(lines, fmt.Sprintf("%d transactions, net %s", acct.TransactionCount(), m.amount(acct.Net())))

	return m.theme.Box.Width(max(m.width-4, 20)).Render(strings.Join(lines, "\n"))
}

func (m Model) renderDetail() string {
	txn, ok := m.Selected()
	if !ok {
		return m.theme.Subtitle.Render("No transactions")
	}
	parts := []string{"FITID " + txn.FitID}
	if txn.DateUser != nil {
		parts = append(parts, "user date "+txn.DateUser.Format("2006-01-02"))
	}
	if txn.CheckNumber != "" {
		parts = append(parts, "check "+txn.CheckNumber)
	}
	return m.theme.Subtitle.Render(strings.Join(parts, "  "))
}

func (m Model) amount(d decimal.Decimal) string {
	if d.IsNegative() {
		return m.theme.Debit.Render(d.StringFixed(2))
	}
	return m.theme.Credit.Render(d.StringFixed(2))
}
