// Package invoice issues invoices and turns their sales and payments into
// ledger postings.
package invoice

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/books/internal/accounts"
	"github.com/cleared-dev/books/internal/apperr"
	"github.com/cleared-dev/books/internal/audit"
	"github.com/cleared-dev/books/internal/gst"
	"github.com/cleared-dev/books/internal/id"
	"github.com/cleared-dev/books/internal/journal"
	"github.com/cleared-dev/books/internal/logger"
	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/store"
)

// Accounts finds the accounts invoice postings debit and credit.
type Accounts interface {
	ResolveRoleTx(ctx context.Context, tx *store.Tx, tenantID string, role accounts.Role, codes accounts.RoleCodes) (model.Account, error)
	CheckRoleTx(ctx context.Context, tx *store.Tx, tenantID, accountID string, role accounts.Role) (model.Account, error)
}

// Poster records a posting inside an existing unit of work.
type Poster interface {
	PostTx(ctx context.Context, tx *store.Tx, tenantID string, p journal.PostParams) (model.Transaction, error)
}

// Settings holds invoicing defaults.
type Settings struct {
	DefaultTaxRate      decimal.Decimal
	GSTInclusive        bool
	NumberPrefix        string
	Roles               accounts.RoleCodes
	ReverseSaleOnCancel bool
}

// DefaultSettings returns 15% inclusive GST, INV- numbering and the
// default chart's account codes.
func DefaultSettings() Settings {
	return Settings{
		DefaultTaxRate:      gst.DefaultRate,
		GSTInclusive:        true,
		NumberPrefix:        id.DefaultInvoicePrefix,
		Roles:               accounts.RoleCodes{Receivable: "1100", Revenue: "4000", Cash: "1010"},
		ReverseSaleOnCancel: true,
	}
}

// Service manages the invoice lifecycle.
type Service struct {
	db       *store.DB
	accounts Accounts
	journal  Poster
	settings Settings
	log      zerolog.Logger
}

// NewService creates an invoice Service.
func NewService(db *store.DB, accts Accounts, poster Poster, settings Settings, log zerolog.Logger) *Service {
	return &Service{
		db:       db,
		accounts: accts,
		journal:  poster,
		settings: settings,
		log:      logger.WithComponent(log, "invoice"),
	}
}

// Quote computes GST for lines without storing anything. Nil rate or
// inclusive flag fall back to the configured defaults.
func (s *Service) Quote(lines []gst.Line, rate *decimal.Decimal, inclusive *bool, exempt bool) (gst.Result, error) {
	return gst.Calculate(lines, s.mode(rate, inclusive, exempt))
}

func (s *Service) mode(rate *decimal.Decimal, inclusive *bool, exempt bool) gst.Mode {
	mode := gst.Mode{Rate: s.settings.DefaultTaxRate, Inclusive: s.settings.GSTInclusive, Exempt: exempt}
	if rate != nil {
		mode.Rate = *rate
	}
	if inclusive != nil {
		mode.Inclusive = *inclusive
	}
	return mode
}

// CreateParams holds parameters for a new invoice.
type CreateParams struct {
	CustomerID    string
	IssueDate     time.Time // zero means today
	DueDate       time.Time // zero means issue date plus the customer's payment terms
	Items         []gst.Line
	TaxRate       *decimal.Decimal // nil means the configured default
	GSTInclusive  *bool            // nil means the configured default
	ExemptFromGST bool
	Notes         string
	Terms         string
}

// EditParams holds the fields to change on an invoice. Nil fields keep
// their current value. Everything except Notes and Terms may only change
// while the invoice is a draft.
type EditParams struct {
	CustomerID    *string
	IssueDate     *time.Time
	DueDate       *time.Time
	Items         []gst.Line // nil keeps the current items
	TaxRate       *decimal.Decimal
	GSTInclusive  *bool
	ExemptFromGST *bool
	Notes         *string
	Terms         *string
}

func (p EditParams) touchesAmounts() bool {
	return p.Items != nil || p.TaxRate != nil || p.GSTInclusive != nil || p.ExemptFromGST != nil
}

func (p EditParams) draftOnly() bool {
	return p.touchesAmounts() || p.CustomerID != nil || p.IssueDate != nil || p.DueDate != nil
}

// Page is one page of a filtered invoice listing.
type Page struct {
	Invoices []model.Invoice
	Total    int // matches across all pages
}

// Create issues a new draft invoice numbered from the tenant's sequence.
func (s *Service) Create(ctx context.Context, tenantID string, p CreateParams) (model.Invoice, error) {
	const op = "invoice.Create"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return model.Invoice{}, err
	}
	if p.CustomerID == "" {
		return model.Invoice{}, apperr.Validation(op, "customer is required")
	}

	mode := s.mode(p.TaxRate, p.GSTInclusive, p.ExemptFromGST)
	if err := storedRateValid(mode); err != nil {
		return model.Invoice{}, err
	}
	res, err := gst.Calculate(p.Items, mode)
	if err != nil {
		return model.Invoice{}, err
	}

	var inv model.Invoice
	err = s.db.InTx(ctx, func(tx *store.Tx) error {
		cust, err := tx.GetCustomer(ctx, tenantID, p.CustomerID)
		if err != nil {
			return store.Classify(op, err)
		}

		issue := p.IssueDate
		if issue.IsZero() {
			issue = today(tx.Now())
		}
		due := p.DueDate
		if due.IsZero() {
			due = issue.AddDate(0, 0, cust.PaymentTerms)
		}
		if due.Before(issue) {
			return apperr.Validation(op, "due date %s is before issue date %s", due.Format(time.DateOnly), issue.Format(time.DateOnly))
		}

		seq, err := tx.NextInvoiceNumber(ctx, tenantID)
		if err != nil {
			return err
		}

		now := tx.Now()
		inv = model.Invoice{
			ID:            id.New(),
			TenantID:      tenantID,
			Number:        id.FormatInvoiceNumber(s.settings.NumberPrefix, seq),
			CustomerID:    cust.ID,
			IssueDate:     issue,
			DueDate:       due,
			Status:        model.InvoiceDraft,
			GSTInclusive:  mode.Inclusive,
			ExemptFromGST: mode.Exempt,
			PaidAmount:    decimal.Zero,
			Notes:         p.Notes,
			Terms:         p.Terms,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		applyAmounts(&inv, mode, res)

		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return store.Classify(op, err)
		}
		return audit.Record(ctx, tx, tenantID, audit.InvoiceCreate, inv.ID, "number=%s customer=%s total=%s",
			inv.Number, inv.CustomerID, inv.Total.StringFixed(2))
	})
	if err != nil {
		s.log.Warn().Err(err).Str("tenant", tenantID).Msg("invoice create rejected")
		return model.Invoice{}, err
	}

	s.log.Info().Str("tenant", tenantID).Str("invoice", inv.ID).Str("number", inv.Number).
		Str("total", inv.Total.StringFixed(2)).Msg("invoice created")
	return inv, nil
}

// Edit changes an invoice, recomputing its amounts when items or tax
// settings change.
func (s *Service) Edit(ctx context.Context, tenantID, invoiceID string, p EditParams) (model.Invoice, error) {
	const op = "invoice.Edit"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return model.Invoice{}, err
	}

	var inv model.Invoice
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		inv, err = tx.GetInvoice(ctx, tenantID, invoiceID)
		if err != nil {
			return store.Classify(op, err)
		}
		if p.draftOnly() && inv.Status != model.InvoiceDraft {
			return apperr.Conflict(op, "invoice %s is %s; only drafts can change items, tax, customer or dates", inv.Number, inv.Status)
		}
		if (p.touchesAmounts() || p.CustomerID != nil) && inv.PaidAmount.IsPositive() {
			return apperr.Conflict(op, "invoice %s has %s paid; its amounts and customer are fixed", inv.Number, inv.PaidAmount.StringFixed(2))
		}

		if p.CustomerID != nil {
			cust, err := tx.GetCustomer(ctx, tenantID, *p.CustomerID)
			if err != nil {
				return store.Classify(op, err)
			}
			inv.CustomerID = cust.ID
		}
		if p.IssueDate != nil {
			inv.IssueDate = *p.IssueDate
		}
		if p.DueDate != nil {
			inv.DueDate = *p.DueDate
		}
		if inv.DueDate.Before(inv.IssueDate) {
			return apperr.Validation(op, "due date %s is before issue date %s",
				inv.DueDate.Format(time.DateOnly), inv.IssueDate.Format(time.DateOnly))
		}
		if p.Notes != nil {
			inv.Notes = *p.Notes
		}
		if p.Terms != nil {
			inv.Terms = *p.Terms
		}

		if p.touchesAmounts() {
			mode := gst.Mode{Rate: inv.TaxRate, Inclusive: inv.GSTInclusive, Exempt: inv.ExemptFromGST}
			if p.TaxRate != nil {
				mode.Rate = *p.TaxRate
			}
			if p.GSTInclusive != nil {
				mode.Inclusive = *p.GSTInclusive
			}
			if p.ExemptFromGST != nil {
				mode.Exempt = *p.ExemptFromGST
			}
			lines := p.Items
			if lines == nil {
				lines = linesOf(inv.Items)
			}
			if err := storedRateValid(mode); err != nil {
				return err
			}
			res, err := gst.Calculate(lines, mode)
			if err != nil {
				return err
			}
			inv.GSTInclusive = mode.Inclusive
			inv.ExemptFromGST = mode.Exempt
			applyAmounts(&inv, mode, res)
			if err := tx.ReplaceInvoiceItems(ctx, inv.ID, inv.Items); err != nil {
				return err
			}
		}

		inv.UpdatedAt = tx.Now()
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return store.Classify(op, err)
		}
		return audit.Record(ctx, tx, tenantID, audit.InvoiceEdit, inv.ID, "number=%s total=%s", inv.Number, inv.Total.StringFixed(2))
	})
	if err != nil {
		s.log.Warn().Err(err).Str("tenant", tenantID).Str("invoice", invoiceID).Msg("invoice edit rejected")
		return model.Invoice{}, err
	}

	s.log.Info().Str("tenant", tenantID).Str("invoice", inv.ID).Msg("invoice edited")
	return inv, nil
}

// Get returns one of the tenant's invoices with its items.
func (s *Service) Get(ctx context.Context, tenantID, invoiceID string) (model.Invoice, error) {
	const op = "invoice.Get"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return model.Invoice{}, err
	}
	var inv model.Invoice
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		inv, err = tx.GetInvoice(ctx, tenantID, invoiceID)
		return store.Classify(op, err)
	})
	return inv, err
}

// List returns a page of the tenant's invoices.
func (s *Service) List(ctx context.Context, tenantID string, f store.InvoiceFilter) (Page, error) {
	const op = "invoice.List"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return Page{}, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return Page{}, apperr.Validation(op, "unknown invoice status %q", f.Status)
	}
	if f.Limit < 0 || f.Offset < 0 {
		return Page{}, apperr.Validation(op, "limit and offset must not be negative")
	}
	var page Page
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		page.Invoices, page.Total, err = tx.ListInvoices(ctx, tenantID, f)
		return err
	})
	return page, err
}

// Delete removes a draft invoice that has no postings.
func (s *Service) Delete(ctx context.Context, tenantID, invoiceID string) error {
	const op = "invoice.Delete"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return err
	}

	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		inv, err := tx.GetInvoice(ctx, tenantID, invoiceID)
		if err != nil {
			return store.Classify(op, err)
		}
		if inv.Status != model.InvoiceDraft {
			return apperr.Conflict(op, "invoice %s is %s; only drafts can be deleted", inv.Number, inv.Status)
		}
		n, err := tx.CountInvoiceTransactions(ctx, inv.ID, "")
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict(op, "invoice %s has %d ledger postings", inv.Number, n)
		}
		if err := tx.DeleteInvoice(ctx, tenantID, inv.ID); err != nil {
			return store.Classify(op, err)
		}
		return audit.Record(ctx, tx, tenantID, audit.InvoiceDelete, inv.ID, "number=%s", inv.Number)
	})
	if err != nil {
		s.log.Warn().Err(err).Str("tenant", tenantID).Str("invoice", invoiceID).Msg("invoice delete rejected")
		return err
	}

	s.log.Info().Str("tenant", tenantID).Str("invoice", invoiceID).Msg("invoice deleted")
	return nil
}

// applyAmounts copies a calculation onto inv. The invoice keeps the entered
// rate even when exempt; items carry the rate actually charged.
func applyAmounts(inv *model.Invoice, mode gst.Mode, res gst.Result) {
	inv.TaxRate = mode.Rate
	inv.Subtotal = res.Subtotal
	inv.TaxAmount = res.TaxAmount
	inv.Total = res.Total
	inv.Items = make([]model.InvoiceItem, len(res.Lines))
	for i, l := range res.Lines {
		inv.Items[i] = model.InvoiceItem{
			ID:          id.New(),
			InvoiceID:   inv.ID,
			Position:    i + 1,
			Description: strings.TrimSpace(l.Description),
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Total:       l.Total,
			TaxRate:     l.TaxRate,
			TaxAmount:   l.TaxAmount,
		}
	}
}

// storedRateValid checks the rate kept on an invoice, which must stay usable
// even while the invoice is exempt.
func storedRateValid(mode gst.Mode) error {
	return gst.Mode{Rate: mode.Rate}.Validate()
}

func linesOf(items []model.InvoiceItem) []gst.Line {
	lines := make([]gst.Line, len(items))
	for i, it := range items {
		lines[i] = gst.Line{Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return lines
}

func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
