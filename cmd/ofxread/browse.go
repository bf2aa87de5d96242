package main

import (
	"path/filepath"

	"github.com/Veraticus/ofxread/internal/tui"
	"github.com/Veraticus/ofxread/internal/tui/themes"
	"github.com/spf13/cobra"
)

func browseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse <file>",
		Short: "Browse a statement interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := a.parseFile(cmd, args[0])
			if err != nil {
				return err
			}

			theme, _ := cmd.Flags().GetString("theme")
			return tui.Run(cmd.Context(), tui.Config{
				Theme:    themes.ByName(theme),
				Source:   filepath.Base(args[0]),
				Accounts: accounts,
			})
		},
	}

	cmd.Flags().String("theme", "default", "color theme (default, catppuccin)")
	return cmd
}
