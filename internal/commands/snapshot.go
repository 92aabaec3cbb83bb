package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/books/internal/audit"
	"github.com/cleared-dev/books/internal/gitops"
	"github.com/cleared-dev/books/internal/store"
)

func newSnapshotCommand(g *globalFlags) *cobra.Command {
	var message string
	var noCommit bool

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export the ledger as CSV and commit it to git",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				dir, err := a.writeSnapshot(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if noCommit {
					fmt.Fprintf(out, "Wrote snapshot to %s\n", dir)
					return nil
				}

				if !gitops.IsRepo(a.dir) {
					if err := gitops.Init(ctx, a.dir); err != nil {
						return err
					}
				}
				if message == "" {
					message = fmt.Sprintf("snapshot: %s %s", a.tenant, time.Now().UTC().Format(time.RFC3339))
				}
				hash, err := gitops.CommitAll(ctx, a.dir, message, a.cfg.Git.AuthorName, a.cfg.Git.AuthorEmail)
				if errors.Is(err, gitops.ErrNothingToCommit) {
					fmt.Fprintln(out, "Ledger unchanged since the last snapshot")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Committed snapshot %s\n", hash)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().BoolVar(&noCommit, "no-commit", false, "write the CSVs without committing")
	return cmd
}

// writeSnapshot writes the tenant's chart, transactions and audit log under
// the snapshot directory and returns that directory.
func (a *app) writeSnapshot(ctx context.Context) (string, error) {
	dir := a.cfg.Git.SnapshotDir
	if dir == "" {
		dir = "ledger"
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(a.dir, dir)
	}
	dir = filepath.Join(dir, a.tenant)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating snapshot dir: %w", err)
	}

	files := []struct {
		name  string
		write func(w io.Writer) error
	}{
		{"chart-of-accounts.csv", func(w io.Writer) error {
			return a.accounts.Export(ctx, a.tenant, w)
		}},
		{"transactions.csv", func(w io.Writer) error {
			return a.journal.Export(ctx, a.tenant, store.TransactionFilter{}, w)
		}},
		{"audit-log.csv", func(w io.Writer) error {
			entries, err := audit.List(ctx, a.db, a.tenant)
			if err != nil {
				return err
			}
			return audit.WriteCSV(w, entries)
		}},
	}
	for _, f := range files {
		if err := writeFile(filepath.Join(dir, f.name), f.write); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
