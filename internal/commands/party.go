package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/books/internal/directory"
)

func newCustomerCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customer",
		Short: "Manage customers",
	}

	var p directory.CustomerParams
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a customer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				c, err := a.directory.CreateCustomer(ctx, a.tenant, p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added customer %s (%s)\n", c.Name, c.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&p.Name, "name", "", "customer name (required)")
	add.Flags().StringVar(&p.Email, "email", "", "billing email")
	add.Flags().IntVar(&p.PaymentTerms, "terms", 0, "payment terms in days (default 30)")
	_ = add.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List customers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				cs, err := a.directory.ListCustomers(ctx, a.tenant)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tTERMS")
				for _, c := range cs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", c.ID, c.Name, c.Email, c.PaymentTerms)
				}
				return tw.Flush()
			})
		},
	}

	statement := &cobra.Command{
		Use:   "statement <id>",
		Short: "Show what a customer owes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				st, err := a.directory.CustomerStatement(ctx, a.tenant, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Customer:    %s\n", st.Customer.Name)
				fmt.Fprintf(out, "Invoices:    %d\n", st.Invoices)
				fmt.Fprintf(out, "Outstanding: %s\n", st.Outstanding.StringFixed(2))
				fmt.Fprintf(out, "Overdue:     %d\n", st.OverdueCount)
				return nil
			})
		},
	}

	cmd.AddCommand(add, list, statement)
	return cmd
}

func newCategoryCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage transaction categories",
	}

	var color string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				c, err := a.directory.CreateCategory(ctx, a.tenant, args[0], color)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added category %s (%s)\n", c.Name, c.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&color, "color", "", "display color, e.g. #10B981")

	list := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				cs, err := a.directory.ListCategories(ctx, a.tenant)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tCOLOR")
				for _, c := range cs {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Name, c.Color)
				}
				return tw.Flush()
			})
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}
