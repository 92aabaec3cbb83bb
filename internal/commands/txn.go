package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/books/internal/importer"
	"github.com/cleared-dev/books/internal/journal"
	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/store"
)

func newTxnCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "txn",
		Short: "Post and manage journal transactions",
	}
	cmd.AddCommand(
		newTxnAddCommand(g),
		newTxnListCommand(g),
		newTxnEditCommand(g),
		newTxnDeleteCommand(g),
		newTxnImportCommand(g),
		newTxnImportBankCommand(g),
		newTxnExportCommand(g),
	)
	return cmd
}

type txnFlags struct {
	date, description, reference, amount, debit, credit, category string
}

func newTxnAddCommand(g *globalFlags) *cobra.Command {
	var f txnFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Post a manual transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate(f.date)
			if err != nil {
				return err
			}
			if date.IsZero() {
				date = time.Now().UTC().Truncate(24 * time.Hour)
			}
			amount, err := decimal.NewFromString(f.amount)
			if err != nil {
				return fmt.Errorf("parsing --amount %q: %w", f.amount, err)
			}
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				debit, err := a.resolveAccount(ctx, f.debit)
				if err != nil {
					return fmt.Errorf("debit account: %w", err)
				}
				credit, err := a.resolveAccount(ctx, f.credit)
				if err != nil {
					return fmt.Errorf("credit account: %w", err)
				}
				txn, err := a.journal.Create(ctx, a.tenant, journal.PostParams{
					Date:            date,
					Description:     f.description,
					Reference:       f.reference,
					Amount:          amount,
					DebitAccountID:  debit.ID,
					CreditAccountID: credit.ID,
					CategoryID:      f.category,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Posted %s: Dr %s / Cr %s %s\n", txn.ID, debit.Name, credit.Name, txn.Amount.StringFixed(2))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.date, "date", "", "transaction date (default today)")
	cmd.Flags().StringVar(&f.description, "desc", "", "description (required)")
	cmd.Flags().StringVar(&f.reference, "ref", "", "reference")
	cmd.Flags().StringVar(&f.amount, "amount", "", "amount (required)")
	cmd.Flags().StringVar(&f.debit, "debit", "", "debit account code or ID (required)")
	cmd.Flags().StringVar(&f.credit, "credit", "", "credit account code or ID (required)")
	cmd.Flags().StringVar(&f.category, "category", "", "category ID")
	for _, name := range []string{"desc", "amount", "debit", "credit"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newTxnListCommand(g *globalFlags) *cobra.Command {
	var from, to, account, invoiceID, kind string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromDate, err := parseDate(from)
			if err != nil {
				return err
			}
			toDate, err := parseDate(to)
			if err != nil {
				return err
			}
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				accountID, err := a.resolveOptionalAccount(ctx, account)
				if err != nil {
					return err
				}
				txns, err := a.journal.List(ctx, a.tenant, store.TransactionFilter{
					From: fromDate, To: toDate, AccountID: accountID,
					InvoiceID: invoiceID, Kind: model.PostingKind(kind), Limit: limit,
				})
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tDATE\tDESCRIPTION\tAMOUNT\tKIND")
				for _, t := range txns {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Date.Format(time.DateOnly), t.Description, t.Amount.StringFixed(2), t.Kind)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first date")
	cmd.Flags().StringVar(&to, "to", "", "last date")
	cmd.Flags().StringVar(&account, "account", "", "only transactions touching this account")
	cmd.Flags().StringVar(&invoiceID, "invoice", "", "only transactions for this invoice")
	cmd.Flags().StringVar(&kind, "kind", "", "only this kind (manual, sale, payment, sale_reversal)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows")
	return cmd
}

func newTxnEditCommand(g *globalFlags) *cobra.Command {
	var f txnFlags

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a manual transaction, reapplying its balances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var p journal.EditParams
			if flags.Changed("date") {
				d, err := parseDate(f.date)
				if err != nil {
					return err
				}
				p.Date = &d
			}
			if flags.Changed("amount") {
				amt, err := decimal.NewFromString(f.amount)
				if err != nil {
					return fmt.Errorf("parsing --amount %q: %w", f.amount, err)
				}
				p.Amount = &amt
			}
			if flags.Changed("desc") {
				p.Description = &f.description
			}
			if flags.Changed("ref") {
				p.Reference = &f.reference
			}
			if flags.Changed("category") {
				p.CategoryID = &f.category
			}
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				if flags.Changed("debit") {
					acct, err := a.resolveAccount(ctx, f.debit)
					if err != nil {
						return fmt.Errorf("debit account: %w", err)
					}
					p.DebitAccountID = &acct.ID
				}
				if flags.Changed("credit") {
					acct, err := a.resolveAccount(ctx, f.credit)
					if err != nil {
						return fmt.Errorf("credit account: %w", err)
					}
					p.CreditAccountID = &acct.ID
				}
				txn, err := a.journal.Edit(ctx, a.tenant, args[0], p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %s\n", txn.ID, txn.Amount.StringFixed(2))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.date, "date", "", "new date")
	cmd.Flags().StringVar(&f.description, "desc", "", "new description")
	cmd.Flags().StringVar(&f.reference, "ref", "", "new reference")
	cmd.Flags().StringVar(&f.amount, "amount", "", "new amount")
	cmd.Flags().StringVar(&f.debit, "debit", "", "new debit account")
	cmd.Flags().StringVar(&f.credit, "credit", "", "new credit account")
	cmd.Flags().StringVar(&f.category, "category", "", "new category ID")
	return cmd
}

func newTxnDeleteCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a manual transaction, reversing its balances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				if err := a.journal.Delete(ctx, a.tenant, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newTxnImportCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Post every manual row of a transactions CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				n, err := a.journal.Import(ctx, a.tenant, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d transactions\n", n)
				return nil
			})
		},
	}
}

func newTxnImportBankCommand(g *globalFlags) *cobra.Command {
	var format, bank, income, expense string

	cmd := &cobra.Command{
		Use:   "import-bank <statement.csv>",
		Short: "Post a bank statement, skipping rows already in the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				if bank == "" {
					bank = a.cfg.Invoicing.CashCode
				}
				var accts importer.Accounts
				for _, leg := range []struct {
					ref string
					dst *string
				}{
					{bank, &accts.BankAccountID},
					{income, &accts.IncomeAccountID},
					{expense, &accts.ExpenseAccountID},
				} {
					acct, err := a.resolveAccount(ctx, leg.ref)
					if err != nil {
						return fmt.Errorf("account %q: %w", leg.ref, err)
					}
					*leg.dst = acct.ID
				}
				res, err := a.importer.ImportFile(ctx, a.tenant, importer.DefaultRegistry(), format, f, accts)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Posted %d, skipped %d already imported, %d zero-amount\n",
					res.Posted, res.Duplicates, res.Skipped)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "simple", "statement format (chase, simple)")
	cmd.Flags().StringVar(&bank, "bank", "", "bank account code or ID (default invoicing.cash_code)")
	cmd.Flags().StringVar(&income, "income", "4000", "account credited for deposits")
	cmd.Flags().StringVar(&expense, "expense", "6800", "account debited for withdrawals")
	return cmd
}

func newTxnExportCommand(g *globalFlags) *cobra.Command {
	var out, from, to string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write transactions as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromDate, err := parseDate(from)
			if err != nil {
				return err
			}
			toDate, err := parseDate(to)
			if err != nil {
				return err
			}
			w, err := openOutput(cmd, out)
			if err != nil {
				return err
			}
			defer w.Close()
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				return a.journal.Export(ctx, a.tenant, store.TransactionFilter{From: fromDate, To: toDate}, w)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "-", "output file")
	cmd.Flags().StringVar(&from, "from", "", "first date")
	cmd.Flags().StringVar(&to, "to", "", "last date")
	return cmd
}
