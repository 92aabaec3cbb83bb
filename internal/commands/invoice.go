package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/books/internal/gst"
	"github.com/cleared-dev/books/internal/invoice"
	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/store"
)

func newInvoiceCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Create invoices and record sales and payments",
	}
	cmd.AddCommand(
		newInvoiceCreateCommand(g),
		newInvoiceEditCommand(g),
		newInvoiceListCommand(g),
		newInvoiceShowCommand(g),
		newInvoiceSaleCommand(g),
		newInvoicePayCommand(g),
		newInvoiceSweepCommand(g),
		newInvoiceDeleteCommand(g),
		invoiceTransitionCommand(g, "send", "Mark an invoice as sent", (*invoice.Service).Send),
		invoiceTransitionCommand(g, "view", "Mark an invoice as viewed by the customer", (*invoice.Service).MarkViewed),
		invoiceTransitionCommand(g, "overdue", "Mark an invoice as overdue", (*invoice.Service).MarkOverdue),
		invoiceTransitionCommand(g, "cancel", "Cancel an invoice, reversing any unpaid sale", (*invoice.Service).Cancel),
	)
	return cmd
}

// parseItem reads "description:quantity:unit_price". The description may
// itself contain colons.
func parseItem(s string) (gst.Line, error) {
	priceAt := strings.LastIndex(s, ":")
	if priceAt < 0 {
		return gst.Line{}, fmt.Errorf("item %q must look like description:quantity:price", s)
	}
	qtyAt := strings.LastIndex(s[:priceAt], ":")
	if qtyAt < 0 {
		return gst.Line{}, fmt.Errorf("item %q must look like description:quantity:price", s)
	}
	qty, err := decimal.NewFromString(s[qtyAt+1 : priceAt])
	if err != nil {
		return gst.Line{}, fmt.Errorf("item %q: quantity: %w", s, err)
	}
	price, err := decimal.NewFromString(s[priceAt+1:])
	if err != nil {
		return gst.Line{}, fmt.Errorf("item %q: price: %w", s, err)
	}
	return gst.Line{Description: s[:qtyAt], Quantity: qty, UnitPrice: price}, nil
}

func newInvoiceCreateCommand(g *globalFlags) *cobra.Command {
	var (
		p                  invoice.CreateParams
		items              []string
		issue, due, rate   string
		exclusive, include bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft invoice",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range items {
				line, err := parseItem(s)
				if err != nil {
					return err
				}
				p.Items = append(p.Items, line)
			}
			var err error
			if p.IssueDate, err = parseDate(issue); err != nil {
				return err
			}
			if p.DueDate, err = parseDate(due); err != nil {
				return err
			}
			if rate != "" {
				r, err := decimal.NewFromString(rate)
				if err != nil {
					return fmt.Errorf("parsing --rate %q: %w", rate, err)
				}
				p.TaxRate = &r
			}
			switch {
			case exclusive && include:
				return errors.New("--exclusive and --inclusive are mutually exclusive")
			case exclusive:
				p.GSTInclusive = new(bool)
			case include:
				t := true
				p.GSTInclusive = &t
			}
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				inv, err := a.invoices.Create(ctx, a.tenant, p)
				if err != nil {
					return err
				}
				printInvoice(cmd.OutOrStdout(), inv)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.CustomerID, "customer", "", "customer ID (required)")
	f.StringArrayVar(&items, "item", nil, "line item as description:quantity:price (repeatable)")
	f.StringVar(&issue, "issue", "", "issue date (default today)")
	f.StringVar(&due, "due", "", "due date (default issue date plus the customer's terms)")
	f.StringVar(&rate, "rate", "", "GST rate as a fraction, e.g. 0.15")
	f.BoolVar(&exclusive, "exclusive", false, "prices exclude GST")
	f.BoolVar(&include, "inclusive", false, "prices include GST")
	f.BoolVar(&p.ExemptFromGST, "exempt", false, "no GST on this invoice")
	f.StringVar(&p.Notes, "notes", "", "notes shown on the invoice")
	f.StringVar(&p.Terms, "terms", "", "payment terms text")
	_ = cmd.MarkFlagRequired("customer")
	return cmd
}

func newInvoiceEditCommand(g *globalFlags) *cobra.Command {
	var (
		items                      []string
		customer, issue, due, rate string
		notes, terms               string
		inclusive, exempt          bool
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit an invoice; amounts can only change while it is a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var p invoice.EditParams
			for _, s := range items {
				line, err := parseItem(s)
				if err != nil {
					return err
				}
				p.Items = append(p.Items, line)
			}
			if flags.Changed("customer") {
				p.CustomerID = &customer
			}
			if flags.Changed("issue") {
				d, err := parseDate(issue)
				if err != nil {
					return err
				}
				p.IssueDate = &d
			}
			if flags.Changed("due") {
				d, err := parseDate(due)
				if err != nil {
					return err
				}
				p.DueDate = &d
			}
			if flags.Changed("rate") {
				r, err := decimal.NewFromString(rate)
				if err != nil {
					return fmt.Errorf("parsing --rate %q: %w", rate, err)
				}
				p.TaxRate = &r
			}
			if flags.Changed("inclusive") {
				p.GSTInclusive = &inclusive
			}
			if flags.Changed("exempt") {
				p.ExemptFromGST = &exempt
			}
			if flags.Changed("notes") {
				p.Notes = &notes
			}
			if flags.Changed("terms") {
				p.Terms = &terms
			}
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				inv, err := a.invoices.Edit(ctx, a.tenant, args[0], p)
				if err != nil {
					return err
				}
				printInvoice(cmd.OutOrStdout(), inv)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringArrayVar(&items, "item", nil, "replacement line items as description:quantity:price (repeatable)")
	f.StringVar(&customer, "customer", "", "new customer ID")
	f.StringVar(&issue, "issue", "", "new issue date")
	f.StringVar(&due, "due", "", "new due date")
	f.StringVar(&rate, "rate", "", "new GST rate")
	f.BoolVar(&inclusive, "inclusive", true, "prices include GST")
	f.BoolVar(&exempt, "exempt", false, "no GST on this invoice")
	f.StringVar(&notes, "notes", "", "new notes")
	f.StringVar(&terms, "terms", "", "new payment terms text")
	return cmd
}

func newInvoiceListCommand(g *globalFlags) *cobra.Command {
	var filter store.InvoiceFilter
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Status = model.InvoiceStatus(strings.ToUpper(status))
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				page, err := a.invoices.List(ctx, a.tenant, filter)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NUMBER\tID\tISSUED\tDUE\tSTATUS\tTOTAL\tOUTSTANDING")
				for _, inv := range page.Invoices {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", inv.Number, inv.ID,
						inv.IssueDate.Format(time.DateOnly), inv.DueDate.Format(time.DateOnly), inv.Status,
						inv.Total.StringFixed(2), inv.Outstanding().StringFixed(2))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d invoices\n", len(page.Invoices), page.Total)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&status, "status", "", "only invoices in this status")
	f.StringVar(&filter.CustomerID, "customer", "", "only this customer's invoices")
	f.StringVarP(&filter.Search, "query", "q", "", "match invoice number or customer name")
	f.IntVar(&filter.Limit, "limit", 0, "page size")
	f.IntVar(&filter.Offset, "offset", 0, "rows to skip")
	return cmd
}

func newInvoiceShowCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an invoice with its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				inv, err := a.invoices.Get(ctx, a.tenant, args[0])
				if err != nil {
					return err
				}
				printInvoice(cmd.OutOrStdout(), inv)
				return nil
			})
		},
	}
}

func newInvoiceSaleCommand(g *globalFlags) *cobra.Command {
	var receivable, revenue string
	cmd := &cobra.Command{
		Use:   "record-sale <id>",
		Short: "Post the invoice's sale to receivables and revenue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				var p invoice.SaleParams
				var err error
				if p.ReceivableAccountID, err = a.resolveOptionalAccount(ctx, receivable); err != nil {
					return err
				}
				if p.RevenueAccountID, err = a.resolveOptionalAccount(ctx, revenue); err != nil {
					return err
				}
				posting, err := a.invoices.RecordSale(ctx, a.tenant, args[0], p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded sale for %s: %s (%s)\n",
					posting.Invoice.Number, posting.Transaction.Amount.StringFixed(2), posting.Invoice.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&receivable, "receivable", "", "receivable account code or ID")
	cmd.Flags().StringVar(&revenue, "revenue", "", "revenue account code or ID")
	return cmd
}

func newInvoicePayCommand(g *globalFlags) *cobra.Command {
	var amount, date, cash, method string
	cmd := &cobra.Command{
		Use:   "pay <id>",
		Short: "Record a payment against an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p invoice.PaymentParams
			p.Method = method
			if amount != "" {
				amt, err := decimal.NewFromString(amount)
				if err != nil {
					return fmt.Errorf("parsing --amount %q: %w", amount, err)
				}
				p.Amount = &amt
			}
			var err error
			if p.Date, err = parseDate(date); err != nil {
				return err
			}
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				if p.CashAccountID, err = a.resolveOptionalAccount(ctx, cash); err != nil {
					return err
				}
				posting, err := a.invoices.RecordPayment(ctx, a.tenant, args[0], p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded payment of %s for %s; outstanding %s (%s)\n",
					posting.Transaction.Amount.StringFixed(2), posting.Invoice.Number,
					posting.Invoice.Outstanding().StringFixed(2), posting.Invoice.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "amount paid (default the outstanding amount)")
	cmd.Flags().StringVar(&date, "date", "", "payment date (default today)")
	cmd.Flags().StringVar(&cash, "account", "", "account the money went into")
	cmd.Flags().StringVar(&method, "method", "", "payment method, e.g. bank transfer")
	return cmd
}

func newInvoiceSweepCommand(g *globalFlags) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Mark sent invoices past their due date as overdue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := parseDate(asOf)
			if err != nil {
				return err
			}
			if when.IsZero() {
				when = time.Now()
			}
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				n, err := a.invoices.SweepOverdue(ctx, a.tenant, when)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d invoices now overdue\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "date to compare due dates against (default today)")
	return cmd
}

func newInvoiceDeleteCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a draft invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				if err := a.invoices.Delete(ctx, a.tenant, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted invoice %s\n", args[0])
				return nil
			})
		},
	}
}

type transitionFunc func(*invoice.Service, context.Context, string, string) (model.Invoice, error)

func invoiceTransitionCommand(g *globalFlags, use, short string, move transitionFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app) error {
				inv, err := move(a.invoices, ctx, a.tenant, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Invoice %s is now %s\n", inv.Number, inv.Status)
				return nil
			})
		},
	}
}

func printInvoice(w io.Writer, inv model.Invoice) {
	fmt.Fprintf(w, "Invoice %s (%s) %s\n", inv.Number, inv.ID, inv.Status)
	fmt.Fprintf(w, "Issued %s, due %s\n", inv.IssueDate.Format(time.DateOnly), inv.DueDate.Format(time.DateOnly))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DESCRIPTION\tQTY\tPRICE\tTOTAL\tGST")
	for _, it := range inv.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.Description, it.Quantity, it.UnitPrice.StringFixed(2),
			it.Total.StringFixed(2), it.TaxAmount.StringFixed(2))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "Subtotal: %s\n", inv.Subtotal.StringFixed(2))
	fmt.Fprintf(w, "GST:      %s\n", inv.TaxAmount.StringFixed(2))
	fmt.Fprintf(w, "Total:    %s\n", inv.Total.StringFixed(2))
	if !inv.PaidAmount.IsZero() {
		fmt.Fprintf(w, "Paid:     %s\n", inv.PaidAmount.StringFixed(2))
	}
}
