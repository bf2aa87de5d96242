package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/Veraticus/ofxread/internal/cli"
	"github.com/Veraticus/ofxread/internal/common"
	"github.com/Veraticus/ofxread/internal/compat"
	"github.com/spf13/cobra"
)

func verifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Cross-check a statement against the ofxgo parser",
		Long: `Parse a file with ofxread and with github.com/aclindsa/ofxgo and report every
field where the two disagree. Exits non-zero on any difference.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			engine, err := a.parseFile(cmd, path)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			reference, err := compat.Parse(cmd.Context(), bytes.NewReader(data))
			if err != nil {
				return common.NewUserError("ofxgo could not parse "+path, err)
			}

			w := cmd.OutOrStdout()
			diffs := compat.Diff(engine, reference)
			if len(diffs) == 0 {
				_, err := fmt.Fprintln(w, cli.FormatSuccess(fmt.Sprintf("%d account(s) match ofxgo", len(engine))))
				return err
			}

			for _, d := range diffs {
				if _, err := fmt.Fprintln(w, cli.FormatWarning(d.String())); err != nil {
					return err
				}
			}
			return common.NewUserError(
				fmt.Sprintf("%d difference(s) between ofxread and ofxgo", len(diffs)),
				common.ErrMismatch)
		},
	}
}
