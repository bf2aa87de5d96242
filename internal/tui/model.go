// Package tui implements an interactive statement browser on bubbletea.
package tui

import (
	"github.com/Veraticus/ofxread/internal/model"
	"github.com/Veraticus/ofxread/internal/tui/themes"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Config holds the browser configuration.
type Config struct {
	Theme    themes.Theme
	Source   string
	Accounts []model.Account
	Width    int
	Height   int
}

// Model is the statement browser state. Accounts are shown one at a time.
type Model struct {
	theme    themes.Theme
	source   string
	accounts []model.Account
	help     help.Model
	keymap   KeyMap
	table    table.Model
	current  int
	width    int
	height   int
	quitting bool
}

// chrome is the number of lines taken by everything except the table.
const chrome = 12

// minTableRows is the smallest number of transactions kept on screen.
const minTableRows = 3

// NewModel builds a browser over the parsed accounts.
func NewModel(cfg Config) Model {
	if cfg.Width == 0 {
		cfg.Width = 100
	}
	if cfg.Height == 0 {
		cfg.Height = 30
	}

	t := table.New(
		table.WithColumns(columns(cfg.Width)),
		table.WithFocused(true),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(cfg.Theme.Border).
		BorderBottom(true).
		Bold(false)
	s.Selected = cfg.Theme.Selected
	t.SetStyles(s)

	m := Model{
		theme:    cfg.Theme,
		source:   cfg.Source,
		accounts: cfg.Accounts,
		help:     help.New(),
		keymap:   DefaultKeyMap(),
		table:    t,
		width:    cfg.Width,
		height:   cfg.Height,
	}
	m.resizeTable()
	m.showAccount(0)
	return m
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keymap.Quit), key.Matches(msg, m.keymap.ForceQuit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keymap.ToggleHelp):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keymap.NextAccount):
			m.showAccount(m.current + 1)
			return m, nil
		case key.Matches(msg, m.keymap.PrevAccount):
			m.showAccount(m.current - 1)
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.handleResize()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// Current returns the index of the account on screen.
func (m Model) Current() int {
	return m.current
}

// Selected returns the transaction under the cursor, if any.
func (m Model) Selected() (model.Transaction, bool) {
	if len(m.accounts) == 0 {
		return model.Transaction{}, false
	}
	txns := m.accounts[m.current].Transactions
	i := m.table.Cursor()
	if i < 0 || i >= len(txns) {
		return model.Transaction{}, false
	}
	return txns[i], true
}

// showAccount switches to account i, wrapping around at either end.
func (m *Model) showAccount(i int) {
	n := len(m.accounts)
	if n == 0 {
		m.table.SetRows(nil)
		return
	}
	m.current = ((i % n) + n) % n
	m.table.SetRows(rows(m.accounts[m.current].Transactions))
	m.table.SetCursor(0)
}

func (m *Model) handleResize() {
	m.table.SetColumns(columns(m.width))
	m.resizeTable()
	m.help.Width = m.width
}

// resizeTable fits the table to the window. SetHeight includes the header
// lines, so they are measured and added back to keep rows data rows visible.
func (m *Model) resizeTable() {
	rows := max(m.height-chrome, minTableRows)
	m.table.SetHeight(rows)
	header := rows - m.table.Height()
	m.table.SetHeight(rows + header)
}

func columns(width int) []table.Column {
	// Date, type and amount are fixed; name and memo share the rest.
	fixed := 12 + 12 + 14
	rest := max(width-fixed-10, 20)
	return []table.Column{
		{Title: "Date", Width: 10},
		{Title: "Type", Width: 10},
		{Title: "Amount", Width: 12},
		{Title: "Name", Width: rest * 3 / 5},
		{Title: "Memo", Width: rest - rest*3/5},
	}
}

func rows(txns []model.Transaction) []table.Row {
	out := make([]table.Row, 0, len(txns))
	for _, txn := range txns {
		out = append(out, table.Row{
			txn.DatePosted.Format("2006-01-02"),
			txn.Type.DisplayName(),
			txn.Amount.StringFixed(2),
			txn.Name,
			txn.Memo,
		})
	}
	return out
}
