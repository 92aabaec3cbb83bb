package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/books/internal/accounts"
	"github.com/cleared-dev/books/internal/apperr"
	"github.com/cleared-dev/books/internal/audit"
	"github.com/cleared-dev/books/internal/journal"
	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/store"
)

// Posting is an invoice together with the ledger transaction an action
// recorded for it.
type Posting struct {
	Invoice     model.Invoice
	Transaction model.Transaction
}

// SaleParams overrides the accounts a sale posts to. Empty fields use the
// configured or name-matched accounts.
type SaleParams struct {
	ReceivableAccountID string
	RevenueAccountID    string
}

// PaymentParams describes a payment against an invoice.
type PaymentParams struct {
	Amount              *decimal.Decimal // nil means the outstanding amount
	Date                time.Time        // zero means today
	CashAccountID       string           // empty means the configured or name-matched bank account
	ReceivableAccountID string           // empty means the account the sale debited
	Method              string           // free text, kept in the audit log
}

// Send marks a draft invoice as sent.
func (s *Service) Send(ctx context.Context, tenantID, invoiceID string) (model.Invoice, error) {
	return s.transition(ctx, "invoice.Send", tenantID, invoiceID, model.InvoiceSent)
}

// MarkViewed records that the customer opened a sent invoice.
func (s *Service) MarkViewed(ctx context.Context, tenantID, invoiceID string) (model.Invoice, error) {
	return s.transition(ctx, "invoice.MarkViewed", tenantID, invoiceID, model.InvoiceViewed)
}

// MarkOverdue flags a sent or viewed invoice as overdue.
func (s *Service) MarkOverdue(ctx context.Context, tenantID, invoiceID string) (model.Invoice, error) {
	return s.transition(ctx, "invoice.MarkOverdue", tenantID, invoiceID, model.InvoiceOverdue)
}

func (s *Service) transition(ctx context.Context, op, tenantID, invoiceID string, to model.InvoiceStatus) (model.Invoice, error) {
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
		return s.moveTx(ctx, tx, op, &inv, to)
	})
	if err != nil {
		s.log.Warn().Err(err).Str("tenant", tenantID).Str("invoice", invoiceID).Str("to", string(to)).Msg("invoice transition rejected")
		return model.Invoice{}, err
	}

	s.log.Info().Str("tenant", tenantID).Str("invoice", inv.ID).Str("status", string(inv.Status)).Msg("invoice status changed")
	return inv, nil
}

// moveTx checks and applies a status change and saves the invoice.
func (s *Service) moveTx(ctx context.Context, tx *store.Tx, op string, inv *model.Invoice, to model.InvoiceStatus) error {
	from := inv.Status
	if !CanTransition(from, to) {
		return apperr.Conflict(op, "invoice %s cannot move from %s to %s", inv.Number, from, to)
	}
	inv.Status = to
	inv.UpdatedAt = tx.Now()
	if err := tx.UpdateInvoice(ctx, *inv); err != nil {
		return store.Classify(op, err)
	}
	return audit.Record(ctx, tx, inv.TenantID, audit.InvoiceTransition, inv.ID, "number=%s from=%s to=%s", inv.Number, from, to)
}

// SweepOverdue marks every sent or viewed invoice whose due date is before
// asOf as overdue. It returns the number of invoices changed.
func (s *Service) SweepOverdue(ctx context.Context, tenantID string, asOf time.Time) (int, error) {
	const op = "invoice.SweepOverdue"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return 0, err
	}
	cutoff := today(asOf)

	changed := 0
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		for _, status := range []model.InvoiceStatus{model.InvoiceSent, model.InvoiceViewed} {
			invs, _, err := tx.ListInvoices(ctx, tenantID, store.InvoiceFilter{Status: status})
			if err != nil {
				return err
			}
			for _, inv := range invs {
				if !inv.DueDate.Before(cutoff) {
					continue
				}
				if err := s.moveTx(ctx, tx, op, &inv, model.InvoiceOverdue); err != nil {
					return err
				}
				changed++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if changed > 0 {
		s.log.Info().Str("tenant", tenantID).Int("invoices", changed).Msg("overdue invoices flagged")
	}
	return changed, nil
}

// RecordSale posts the invoice total as Dr Accounts Receivable / Cr Revenue
// on the issue date and moves a draft to SENT. An invoice can be sold once.
func (s *Service) RecordSale(ctx context.Context, tenantID, invoiceID string, p SaleParams) (Posting, error) {
	const op = "invoice.RecordSale"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return Posting{}, err
	}

	var out Posting
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		inv, err := tx.GetInvoice(ctx, tenantID, invoiceID)
		if err != nil {
			return store.Classify(op, err)
		}
		if inv.Status == model.InvoiceCancelled {
			return apperr.Conflict(op, "invoice %s is cancelled", inv.Number)
		}
		n, err := tx.CountInvoiceTransactions(ctx, inv.ID, model.KindSale)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict(op, "sale already recorded for invoice %s", inv.Number)
		}

		ar, err := s.roleAccount(ctx, tx, tenantID, p.ReceivableAccountID, accounts.RoleReceivable)
		if err != nil {
			return err
		}
		revenue, err := s.roleAccount(ctx, tx, tenantID, p.RevenueAccountID, accounts.RoleRevenue)
		if err != nil {
			return err
		}
		cust, err := tx.GetCustomer(ctx, tenantID, inv.CustomerID)
		if err != nil {
			return store.Classify(op, err)
		}

		txn, err := s.journal.PostTx(ctx, tx, tenantID, journal.PostParams{
			Date:            inv.IssueDate,
			Description:     fmt.Sprintf("Invoice created %s - %s", inv.Number, cust.Name),
			Reference:       inv.Number,
			Amount:          inv.Total,
			DebitAccountID:  ar.ID,
			CreditAccountID: revenue.ID,
			InvoiceID:       inv.ID,
			Kind:            model.KindSale,
		})
		if err != nil {
			return err
		}

		if inv.Status == model.InvoiceDraft {
			if err := s.moveTx(ctx, tx, op, &inv, model.InvoiceSent); err != nil {
				return err
			}
		}
		out = Posting{Invoice: inv, Transaction: txn}
		return audit.Record(ctx, tx, tenantID, audit.InvoiceRecordSale, inv.ID, "number=%s txn=%s amount=%s",
			inv.Number, txn.ID, txn.Amount.StringFixed(2))
	})
	if err != nil {
		s.log.Warn().Err(err).Str("tenant", tenantID).Str("invoice", invoiceID).Msg("record sale rejected")
		return Posting{}, err
	}

	s.log.Info().Str("tenant", tenantID).Str("invoice", out.Invoice.ID).Str("txn", out.Transaction.ID).
		Str("amount", out.Transaction.Amount.StringFixed(2)).Msg("sale recorded")
	return out, nil
}

// RecordPayment posts a payment as Dr cash / Cr Accounts Receivable and adds
// it to the invoice's paid amount. The invoice becomes PAID once nothing is
// outstanding.
func (s *Service) RecordPayment(ctx context.Context, tenantID, invoiceID string, p PaymentParams) (Posting, error) {
	const op = "invoice.RecordPayment"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return Posting{}, err
	}

	var out Posting
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		inv, err := tx.GetInvoice(ctx, tenantID, invoiceID)
		if err != nil {
			return store.Classify(op, err)
		}
		if !Open(inv.Status) {
			return apperr.Conflict(op, "invoice %s is %s and cannot take payments", inv.Number, inv.Status)
		}

		outstanding := inv.Outstanding()
		amount := outstanding
		if p.Amount != nil {
			amount = *p.Amount
		}
		switch {
		case !amount.IsPositive():
			return apperr.Validation(op, "payment amount must be greater than zero, got %s", amount)
		case amount.GreaterThan(outstanding):
			return apperr.Validation(op, "payment %s exceeds outstanding %s on invoice %s",
				amount.StringFixed(2), outstanding.StringFixed(2), inv.Number)
		case !accounts.IsCents(amount):
			return apperr.Validation(op, "payment %s has more than 2 decimal places", amount)
		}

		date := p.Date
		if date.IsZero() {
			date = today(tx.Now())
		}

		cash, err := s.roleAccount(ctx, tx, tenantID, p.CashAccountID, accounts.RoleCash)
		if err != nil {
			return err
		}
		arID := p.ReceivableAccountID
		if arID == "" {
			sale, ok, err := s.saleFor(ctx, tx, inv)
			if err != nil {
				return err
			}
			if ok {
				arID = sale.DebitAccountID
			}
		}
		ar, err := s.roleAccount(ctx, tx, tenantID, arID, accounts.RoleReceivable)
		if err != nil {
			return err
		}
		cust, err := tx.GetCustomer(ctx, tenantID, inv.CustomerID)
		if err != nil {
			return store.Classify(op, err)
		}

		txn, err := s.journal.PostTx(ctx, tx, tenantID, journal.PostParams{
			Date:            date,
			Description:     fmt.Sprintf("Payment received for %s - %s", inv.Number, cust.Name),
			Reference:       inv.Number,
			Amount:          amount,
			DebitAccountID:  cash.ID,
			CreditAccountID: ar.ID,
			InvoiceID:       inv.ID,
			Kind:            model.KindPayment,
		})
		if err != nil {
			return err
		}

		inv.PaidAmount = inv.PaidAmount.Add(amount)
		if inv.PaidAmount.GreaterThanOrEqual(inv.Total) {
			paid := date
			inv.PaidDate = &paid
			if err := s.moveTx(ctx, tx, op, &inv, model.InvoicePaid); err != nil {
				return err
			}
		} else {
			inv.UpdatedAt = tx.Now()
			if err := tx.UpdateInvoice(ctx, inv); err != nil {
				return store.Classify(op, err)
			}
		}

		out = Posting{Invoice: inv, Transaction: txn}
		return audit.Record(ctx, tx, tenantID, audit.InvoiceRecordPayment, inv.ID, "number=%s txn=%s amount=%s method=%q",
			inv.Number, txn.ID, amount.StringFixed(2), p.Method)
	})
	if err != nil {
		s.log.Warn().Err(err).Str("tenant", tenantID).Str("invoice", invoiceID).Msg("record payment rejected")
		return Posting{}, err
	}

	s.log.Info().Str("tenant", tenantID).Str("invoice", out.Invoice.ID).Str("txn", out.Transaction.ID).
		Str("amount", out.Transaction.Amount.StringFixed(2)).Str("status", string(out.Invoice.Status)).Msg("payment recorded")
	return out, nil
}

// Cancel moves an unpaid invoice to CANCELLED. When sale reversal is enabled
// and a sale was recorded, the unpaid part of the sale is reversed with a
// Dr Revenue / Cr Accounts Receivable posting in the same unit of work.
func (s *Service) Cancel(ctx context.Context, tenantID, invoiceID string) (model.Invoice, error) {
	const op = "invoice.Cancel"
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
		if !CanTransition(inv.Status, model.InvoiceCancelled) {
			return apperr.Conflict(op, "invoice %s is %s and cannot be cancelled", inv.Number, inv.Status)
		}
		if inv.PaidAmount.IsPositive() {
			_, sold, err := s.saleFor(ctx, tx, inv)
			if err != nil {
				return err
			}
			if !sold {
				return apperr.Conflict(op, "invoice %s has payments but no recorded sale", inv.Number)
			}
		}

		if s.settings.ReverseSaleOnCancel {
			if err := s.reverseSaleTx(ctx, tx, inv); err != nil {
				return err
			}
		}
		return s.moveTx(ctx, tx, op, &inv, model.InvoiceCancelled)
	})
	if err != nil {
		s.log.Warn().Err(err).Str("tenant", tenantID).Str("invoice", invoiceID).Msg("invoice cancel rejected")
		return model.Invoice{}, err
	}

	s.log.Info().Str("tenant", tenantID).Str("invoice", inv.ID).Msg("invoice cancelled")
	return inv, nil
}

func (s *Service) reverseSaleTx(ctx context.Context, tx *store.Tx, inv model.Invoice) error {
	sale, ok, err := s.saleFor(ctx, tx, inv)
	if err != nil || !ok {
		return err
	}
	amount := inv.Outstanding()
	if !amount.IsPositive() {
		return nil
	}
	cust, err := tx.GetCustomer(ctx, inv.TenantID, inv.CustomerID)
	if err != nil {
		return store.Classify("invoice.Cancel", err)
	}
	_, err = s.journal.PostTx(ctx, tx, inv.TenantID, journal.PostParams{
		Date:            today(tx.Now()),
		Description:     fmt.Sprintf("Invoice cancelled %s - %s", inv.Number, cust.Name),
		Reference:       inv.Number,
		Amount:          amount,
		DebitAccountID:  sale.CreditAccountID,
		CreditAccountID: sale.DebitAccountID,
		InvoiceID:       inv.ID,
		Kind:            model.KindSaleReversal,
	})
	return err
}

// saleFor returns the invoice's sale posting, if one was recorded.
func (s *Service) saleFor(ctx context.Context, tx *store.Tx, inv model.Invoice) (model.Transaction, bool, error) {
	txns, err := tx.ListTransactions(ctx, inv.TenantID, store.TransactionFilter{InvoiceID: inv.ID, Kind: model.KindSale, Limit: 1})
	if err != nil {
		return model.Transaction{}, false, err
	}
	if len(txns) == 0 {
		return model.Transaction{}, false, nil
	}
	return txns[0], true, nil
}

// roleAccount checks an explicitly chosen account, or resolves the role
// from settings when accountID is empty.
func (s *Service) roleAccount(ctx context.Context, tx *store.Tx, tenantID, accountID string, role accounts.Role) (model.Account, error) {
	if accountID != "" {
		return s.accounts.CheckRoleTx(ctx, tx, tenantID, accountID, role)
	}
	return s.accounts.ResolveRoleTx(ctx, tx, tenantID, role, s.settings.Roles)
}
