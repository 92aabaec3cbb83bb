package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/books/internal/accounts"
	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/store"
)

func newAccountCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the chart of accounts",
	}
	cmd.AddCommand(
		newAccountListCommand(g),
		newAccountAddCommand(g),
		newAccountUpdateCommand(g),
		newAccountSetupCommand(g),
		newAccountDeleteCommand(g),
		newAccountImportCommand(g),
		newAccountExportCommand(g),
	)
	return cmd
}

func newAccountListCommand(g *globalFlags) *cobra.Command {
	var accountType string
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts with their balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				accts, err := a.accounts.List(ctx, a.tenant, store.AccountFilter{
					Type:       model.AccountType(accountType),
					ActiveOnly: activeOnly,
				})
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CODE\tNAME\tTYPE\tBALANCE\tACTIVE")
				for _, acct := range accts {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", acct.Code, acct.Name, acct.Type, acct.Balance.StringFixed(2), acct.Active)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&accountType, "type", "", "only accounts of this type (ASSET, LIABILITY, EQUITY, REVENUE, EXPENSE)")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active accounts")
	return cmd
}

func newAccountAddCommand(g *globalFlags) *cobra.Command {
	var p accounts.CreateParams
	var accountType, opening string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Type = model.AccountType(accountType)
			if opening != "" {
				amt, err := decimal.NewFromString(opening)
				if err != nil {
					return fmt.Errorf("parsing --opening %q: %w", opening, err)
				}
				p.OpeningBalance = amt
			}
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				acct, err := a.accounts.Create(ctx, a.tenant, p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created account %s %s (%s)\n", acct.Code, acct.Name, acct.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&p.Code, "code", "", "account code")
	cmd.Flags().StringVar(&p.Name, "name", "", "account name (required)")
	cmd.Flags().StringVar(&accountType, "type", "", "account type (required)")
	cmd.Flags().StringVar(&p.SubType, "sub-type", "", "sub-type label")
	cmd.Flags().StringVar(&p.Description, "description", "", "description")
	cmd.Flags().StringVar(&opening, "opening", "", "opening balance")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newAccountUpdateCommand(g *globalFlags) *cobra.Command {
	var name, code, subType, description, accountType string
	var active bool

	cmd := &cobra.Command{
		Use:   "update <code|id>",
		Short: "Change an account's details or deactivate it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var p accounts.UpdateParams
			if flags.Changed("name") {
				p.Name = &name
			}
			if flags.Changed("code") {
				p.Code = &code
			}
			if flags.Changed("sub-type") {
				p.SubType = &subType
			}
			if flags.Changed("description") {
				p.Description = &description
			}
			if flags.Changed("type") {
				t := model.AccountType(accountType)
				p.Type = &t
			}
			if flags.Changed("active") {
				p.Active = &active
			}
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				acct, err := a.resolveAccount(ctx, args[0])
				if err != nil {
					return err
				}
				acct, err = a.accounts.Update(ctx, a.tenant, acct.ID, p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated account %s %s (active %t)\n", acct.Code, acct.Name, acct.Active)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "new name")
	f.StringVar(&code, "code", "", "new code")
	f.StringVar(&accountType, "type", "", "new type (only for accounts without postings)")
	f.StringVar(&subType, "sub-type", "", "new sub-type")
	f.StringVar(&description, "description", "", "new description")
	f.BoolVar(&active, "active", true, "whether the account accepts postings")
	return cmd
}

func newAccountSetupCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Install the default chart of accounts for a tenant without one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				n, err := a.accounts.SetupDefaults(ctx, a.tenant)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %d accounts\n", n)
				return nil
			})
		},
	}
}

func newAccountDeleteCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <code|id>",
		Short: "Delete an unused account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				acct, err := a.resolveAccount(ctx, args[0])
				if err != nil {
					return err
				}
				if err := a.accounts.Delete(ctx, a.tenant, acct.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted account %s\n", args[0])
				return nil
			})
		},
	}
}

func newAccountImportCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Create accounts from a chart-of-accounts CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				created, err := a.accounts.Import(ctx, a.tenant, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d accounts\n", len(created))
				return nil
			})
		},
	}
}

func newAccountExportCommand(g *globalFlags) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the chart of accounts as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := openOutput(cmd, out)
			if err != nil {
				return err
			}
			defer w.Close()
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				return a.accounts.Export(ctx, a.tenant, w)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "-", "output file")
	return cmd
}
