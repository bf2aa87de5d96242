package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Veraticus/ofxread/internal/cli"
	"github.com/Veraticus/ofxread/internal/common"
	"github.com/Veraticus/ofxread/internal/config"
	"github.com/Veraticus/ofxread/internal/model"
	"github.com/Veraticus/ofxread/internal/ofx"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func parseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a statement and print its accounts",
		Long: `Parse an OFX or QFX file and print every account with its balance and
transactions.

Examples:
  ofxread parse ~/Downloads/checking.qfx
  ofxread parse --format yaml statement.ofx
  OFXREAD_OUTPUT_FORMAT=table ofxread parse statement.ofx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := a.parseFile(cmd, args[0])
			if err != nil {
				return err
			}
			return writeAccounts(cmd.OutOrStdout(), accounts, a.cfg.OutputFormat)
		},
	}

	cmd.Flags().StringP("format", "f", "", "output format (json, yaml, table)")
	_ = a.v.BindPFlag("output.format", cmd.Flags().Lookup("format"))
	return cmd
}

func showCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <file>",
		Short: "Show a styled summary of a statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := a.parseFile(cmd, args[0])
			if err != nil {
				return err
			}
			return cli.RenderAccounts(cmd.OutOrStdout(), accounts)
		},
	}
}

func typesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List account and transaction types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.RenderTypes(cmd.OutOrStdout())
		},
	}
}

func treeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree <file>",
		Short: "Print the element tree of a statement",
		Long: `Print the header and element tree exactly as the structural parser sees it.
Useful when a file fails to extract the way you expect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ofx.ReadDocument(args[0])
			if err != nil {
				return common.NewUserError("could not read "+args[0], err)
			}

			w := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(w, "# %s %s\n", doc.Header.Format(), doc.Header.Version()); err != nil {
				return err
			}
			return doc.Root.Dump(w)
		},
	}
}

// parseFile runs the engine over path with the configured time zone.
func (a *app) parseFile(cmd *cobra.Command, path string) ([]model.Account, error) {
	parser, err := a.parser()
	if err != nil {
		return nil, err
	}
	accounts, err := parser.ParseFile(cmd.Context(), path)
	if err != nil {
		return nil, common.NewUserError("could not parse "+path, err)
	}
	return accounts, nil
}

func writeAccounts(w io.Writer, accounts []model.Account, format string) error {
	switch format {
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(accounts); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	case config.FormatTable:
		return cli.RenderAccounts(w, accounts)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(accounts); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	}
}
