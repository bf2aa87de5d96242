package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/ofxread/internal/cli"
	"github.com/Veraticus/ofxread/internal/common"
	"github.com/Veraticus/ofxread/internal/ofx"
	"github.com/Veraticus/ofxread/internal/storage"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// importStatus is the outcome for one file.
type importStatus int

const (
	statusImported importStatus = iota
	statusDuplicate
	statusFailed
	statusParsed
)

type importResult struct {
	err          error
	path         string
	id           string
	accounts     int
	transactions int
	overlap      int
	status       importStatus
}

func importCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <files...>",
		Short: "Parse statements and archive them",
		Long: `Parse each OFX or QFX file on its own and store the result in the archive
database. Files that were already imported are skipped.

Examples:
  # Import single file
  ofxread import ~/Downloads/chase_jan_2024.qfx

  # Import all QFX files in a directory
  ofxread import ~/Downloads/*.qfx

  # Preview without saving
  ofxread import --dry-run ~/Downloads/Ally/*.ofx`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			return a.runImport(cmd, args, dryRun)
		},
	}

	cmd.Flags().BoolP("dry-run", "d", false, "Parse files without saving")
	return cmd
}

func (a *app) runImport(cmd *cobra.Command, args []string, dryRun bool) error {
	files, err := expandFiles(args)
	if err != nil {
		return err
	}

	parser, err := a.parser()
	if err != nil {
		return err
	}

	var store *storage.SQLiteStorage
	if !dryRun {
		store, err = a.openStorage(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				slog.Warn("Failed to close archive", "error", closeErr)
			}
		}()
	}

	errOut := cmd.ErrOrStderr()
	handler := cli.NewInterruptHandler(errOut)
	ctx := handler.HandleInterrupts(cmd.Context())
	defer handler.Stop()

	slog.Info("Importing OFX files", "file_count", len(files), "dry_run", dryRun)

	var bar *progressbar.ProgressBar
	if len(files) > 1 {
		bar = cli.NewProgressBar(errOut, len(files), "Importing statements...")
	}

	results := make([]importResult, 0, len(files))
	archived := 0
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}

		result := importFile(ctx, parser, store, path)
		results = append(results, result)
		if result.status == statusImported {
			archived++
			handler.Completed(archived)
		}

		if bar != nil {
			if err := bar.Add(1); err != nil {
				slog.Warn("Failed to update progress bar", "error", err)
			}
		}
	}

	if err := writeImportSummary(cmd.OutOrStdout(), results); err != nil {
		return err
	}

	if handler.WasInterrupted() {
		return common.NewUserError("import interrupted", context.Canceled)
	}
	failed := 0
	var firstErr error
	for _, r := range results {
		if r.status == statusFailed {
			failed++
			if firstErr == nil {
				firstErr = r.err
			}
		}
	}
	if failed > 0 {
		return common.NewUserError(fmt.Sprintf("%d of %d file(s) could not be imported", failed, len(results)), firstErr)
	}
	return nil
}

// importFile parses one file and, when store is set, archives it.
func importFile(ctx context.Context, parser *ofx.Parser, store *storage.SQLiteStorage, path string) importResult {
	result := importResult{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		result.status = statusFailed
		result.err = &ofx.FileNotFoundError{Path: path}
		return result
	}

	accounts, err := parser.ParseBytes(ctx, data)
	if err != nil {
		common.LogError(err, "Failed to parse OFX file", common.Fields{"file": path})
		result.status = statusFailed
		result.err = fmt.Errorf("failed to parse %s: %w", path, err)
		return result
	}

	result.accounts = len(accounts)
	for i := range accounts {
		result.transactions += accounts[i].TransactionCount()
	}

	if store == nil {
		result.status = statusParsed
		return result
	}

	id, err := store.SaveImport(ctx, path, fileDigest(data), accounts)
	switch {
	case errors.Is(err, storage.ErrDuplicateImport):
		slog.Info("Skipping file that was already imported", "file", path)
		result.status = statusDuplicate
		return result
	case err != nil:
		result.status = statusFailed
		result.err = fmt.Errorf("failed to archive %s: %w", path, err)
		return result
	}

	result.id = id
	result.status = statusImported
	overlap, err := store.Overlap(ctx, id)
	if err != nil {
		slog.Warn("Failed to check for overlapping transactions", "file", path, "error", err)
	}
	result.overlap = overlap

	slog.Debug("Archived file",
		"file", path,
		"import_id", id,
		"accounts", result.accounts,
		"transactions", result.transactions,
		"overlap", overlap)
	return result
}

func writeImportSummary(w io.Writer, results []importResult) error {
	for _, r := range results {
		name := filepath.Base(r.path)
		var line string
		switch r.status {
		case statusImported:
			line = cli.FormatSuccess(fmt.Sprintf("%s: %d account(s), %d transaction(s)", name, r.accounts, r.transactions))
			if r.overlap > 0 {
				line += "\n  " + cli.FormatInfo(fmt.Sprintf("%d transaction(s) also appear in earlier imports", r.overlap))
			}
		case statusParsed:
			line = cli.FormatInfo(fmt.Sprintf("%s: %d account(s), %d transaction(s) (dry run)", name, r.accounts, r.transactions))
		case statusDuplicate:
			line = cli.FormatWarning(name + ": already imported, skipped")
		case statusFailed:
			line = cli.FormatError(fmt.Sprintf("%s: %v", name, r.err))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// expandFiles expands glob patterns, keeping plain paths that exist.
func expandFiles(args []string) ([]string, error) {
	var files []string
	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			// If no glob matches, check if it's a direct file
			if _, err := os.Stat(pattern); err == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
			continue
		}
		files = append(files, matches...)
	}

	if len(files) == 0 {
		return nil, common.NewUserError("no files found to import", nil)
	}
	return files, nil
}

func fileDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// openStorage opens and migrates the configured archive.
func (a *app) openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(a.cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate archive: %w", err)
	}
	return store, nil
}

func importsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "imports [id]",
		Short: "List archived imports, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if len(args) == 0 {
				imports, err := store.ListImports(ctx)
				if err != nil {
					return fmt.Errorf("failed to list imports: %w", err)
				}
				return cli.RenderImports(cmd.OutOrStdout(), imports)
			}

			accounts, err := store.LoadImport(ctx, args[0])
			if errors.Is(err, storage.ErrNotFound) {
				return common.NewUserError("no import with id "+args[0], err)
			}
			if err != nil {
				return fmt.Errorf("failed to load import: %w", err)
			}
			return writeAccounts(cmd.OutOrStdout(), accounts, a.cfg.OutputFormat)
		},
	}
}
