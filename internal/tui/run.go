package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run opens the browser and blocks until the user quits or ctx is canceled.
func Run(ctx context.Context, cfg Config, opts ...tea.ProgramOption) error {
	m := NewModel(cfg)
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)

	p := tea.NewProgram(m, opts...)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("statement browser failed: %w", err)
	}
	return nil
}
