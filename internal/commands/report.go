package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/books/internal/audit"
	"github.com/cleared-dev/books/internal/model"
)

func newReportCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Financial reports",
	}

	summary := &cobra.Command{
		Use:   "summary",
		Short: "Account totals by type and the balance check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				s, err := a.reports.Summary(ctx, a.tenant)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, t := range model.AccountTypes {
					fmt.Fprintf(tw, "%s\t%s\n", t, s.Totals[t].StringFixed(2))
				}
				fmt.Fprintf(tw, "NET INCOME\t%s\n", s.NetIncome.StringFixed(2))
				fmt.Fprintf(tw, "CASH\t%s\n", s.Cash.StringFixed(2))
				fmt.Fprintf(tw, "TRANSACTIONS\t%d\n", s.Transactions)
				if err := tw.Flush(); err != nil {
					return err
				}
				if !s.Balanced() {
					return fmt.Errorf("books out of balance by %s", s.Imbalance.StringFixed(2))
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Books balance.")
				return nil
			})
		},
	}

	var from, to string
	pnl := &cobra.Command{
		Use:   "pnl",
		Short: "Profit and loss over a period",
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
				pl, err := a.reports.ProfitAndLoss(ctx, a.tenant, fromDate, toDate)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "REVENUE\t")
				for _, l := range pl.Revenue {
					fmt.Fprintf(tw, "  %s %s\t%s\n", l.Code, l.Name, l.Amount.StringFixed(2))
				}
				fmt.Fprintf(tw, "Total revenue\t%s\n", pl.TotalRevenue.StringFixed(2))
				fmt.Fprintln(tw, "EXPENSES\t")
				for _, l := range pl.Expenses {
					fmt.Fprintf(tw, "  %s %s\t%s\n", l.Code, l.Name, l.Amount.StringFixed(2))
				}
				fmt.Fprintf(tw, "Total expenses\t%s\n", pl.TotalExpenses.StringFixed(2))
				fmt.Fprintf(tw, "Net income\t%s\n", pl.NetIncome.StringFixed(2))
				return tw.Flush()
			})
		},
	}
	pnl.Flags().StringVar(&from, "from", "", "first date")
	pnl.Flags().StringVar(&to, "to", "", "last date")

	cmd.AddCommand(summary, pnl)
	return cmd
}

func newAuditCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit log",
	}

	var out string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the tenant's audit log as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := openOutput(cmd, out)
			if err != nil {
				return err
			}
			defer w.Close()
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				entries, err := audit.List(ctx, a.db, a.tenant)
				if err != nil {
					return err
				}
				return audit.WriteCSV(w, entries)
			})
		},
	}
	export.Flags().StringVarP(&out, "output", "o", "-", "output file")

	cmd.AddCommand(export)
	return cmd
}
