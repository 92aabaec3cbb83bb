package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/books/internal/accounts"
	"github.com/cleared-dev/books/internal/config"
	"github.com/cleared-dev/books/internal/gitops"
	"github.com/cleared-dev/books/internal/store"
)

func newInitCommand(g *globalFlags) *cobra.Command {
	var name string
	var useGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new books project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			tenant := g.tenant
			if tenant == "" {
				tenant = "default"
			}
			n, err := runInit(cmd.Context(), absDir, name, tenant, useGit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized books at %s (tenant %s, %d accounts)\n", absDir, tenant, n)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "business name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().BoolVar(&useGit, "git", false, "track the project in git and commit ledger snapshots")

	return cmd
}

func runInit(ctx context.Context, dir, name, tenant string, useGit bool) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return 0, fmt.Errorf("%s already exists", cfgPath)
	}

	// Write books.yaml.
	cfg := config.Default(name, tenant)
	if err := config.Save(cfgPath, cfg); err != nil {
		return 0, fmt.Errorf("writing config: %w", err)
	}

	// Create the database and install the default chart.
	db, err := store.Open(filepath.Join(dir, cfg.Database.Path))
	if err != nil {
		return 0, err
	}
	defer db.Close()

	n, err := accounts.NewService(db, zerolog.Nop()).SetupDefaults(ctx, tenant)
	if err != nil {
		return 0, fmt.Errorf("installing chart of accounts: %w", err)
	}

	// Write .gitignore.
	gitignore := "books.db\nbooks.db-*\n.env\nexports/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return 0, fmt.Errorf("writing .gitignore: %w", err)
	}

	if useGit {
		if err := gitops.Init(ctx, dir); err != nil {
			return 0, err
		}
		if _, err := gitops.CommitAll(ctx, dir, "init: Initialize "+name, cfg.Git.AuthorName, cfg.Git.AuthorEmail); err != nil {
			return 0, fmt.Errorf("initial commit: %w", err)
		}
	}

	return n, nil
}
