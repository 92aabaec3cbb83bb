package journal

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/books/internal/apperr"
	"github.com/cleared-dev/books/internal/audit"
	"github.com/cleared-dev/books/internal/id"
	"github.com/cleared-dev/books/internal/logger"
	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/store"
)

// Ledger resolves accounts and applies posting effects to their balances.
type Ledger interface {
	ResolveTx(ctx context.Context, tx *store.Tx, tenantID, accountID string) (model.Account, error)
	PostTx(ctx context.Context, tx *store.Tx, debit, credit model.Account, amount decimal.Decimal) error
	ReverseTx(ctx context.Context, tx *store.Tx, debit, credit model.Account, amount decimal.Decimal) error
}

// Service records double-entry transactions and keeps account balances in
// step with them.
type Service struct {
	db     *store.DB
	ledger Ledger
	log    zerolog.Logger
}

// NewService creates a journal Service.
func NewService(db *store.DB, ledger Ledger, log zerolog.Logger) *Service {
	return &Service{db: db, ledger: ledger, log: logger.WithComponent(log, "journal")}
}

// PostParams holds parameters for a posting.
type PostParams struct {
	Date            time.Time
	Description     string
	Reference       string
	Amount          decimal.Decimal
	DebitAccountID  string
	CreditAccountID string
	CategoryID      string
	InvoiceID       string
	Kind            model.PostingKind
}

// EditParams holds the fields to change on a transaction. Nil fields keep
// their current value; an empty CategoryID clears the category.
type EditParams struct {
	Date            *time.Time
	Description     *string
	Reference       *string
	Amount          *decimal.Decimal
	DebitAccountID  *string
	CreditAccountID *string
	CategoryID      *string
}

// Create records a manual transaction and applies both legs to the account
// balances in one unit of work.
func (s *Service) Create(ctx context.Context, tenantID string, p PostParams) (model.Transaction, error) {
	const op = "journal.Create"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return model.Transaction{}, err
	}
	p.Kind = model.KindManual
	p.InvoiceID = ""

	var txn model.Transaction
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		txn, err = s.PostTx(ctx, tx, tenantID, p)
		return err
	})
	if err != nil {
		s.log.Warn().Err(err).Str("tenant", tenantID).Msg("transaction rejected")
		return model.Transaction{}, err
	}

	s.log.Info().Str("tenant", tenantID).Str("txn", txn.ID).Str("amount", txn.Amount.StringFixed(2)).
		Str("debit", txn.DebitAccountID).Str("credit", txn.CreditAccountID).Msg("transaction posted")
	return txn, nil
}

// PostTx records a posting inside an existing unit of work. Invoice
// actions use it to post sales and payments.
func (s *Service) PostTx(ctx context.Context, tx *store.Tx, tenantID string, p PostParams) (model.Transaction, error) {
	const op = "journal.Post"
	if p.Kind == "" {
		p.Kind = model.KindManual
	}
	if verrs := ValidatePosting(p); len(verrs) > 0 {
		return model.Transaction{}, validationFailure(op, verrs)
	}

	debit, credit, err := s.resolveLegs(ctx, tx, op, tenantID, p.DebitAccountID, p.CreditAccountID)
	if err != nil {
		return model.Transaction{}, err
	}
	if err := s.checkCategory(ctx, tx, op, tenantID, p.CategoryID); err != nil {
		return model.Transaction{}, err
	}

	now := tx.Now()
	txn := model.Transaction{
		ID:              id.New(),
		TenantID:        tenantID,
		Date:            p.Date,
		Description:     strings.TrimSpace(p.Description),
		Reference:       p.Reference,
		Amount:          p.Amount,
		DebitAccountID:  debit.ID,
		CreditAccountID: credit.ID,
		CategoryID:      p.CategoryID,
		InvoiceID:       p.InvoiceID,
		Kind:            p.Kind,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := tx.InsertTransaction(ctx, txn); err != nil {
		if errors.Is(err, store.ErrDuplicate) && p.Kind == model.KindSale {
			return model.Transaction{}, apperr.Conflict(op, "invoice %s already has a sale posting", p.InvoiceID)
		}
		return model.Transaction{}, store.Classify(op, err)
	}
	if err := s.ledger.PostTx(ctx, tx, debit, credit, txn.Amount); err != nil {
		return model.Transaction{}, err
	}
	if err := audit.Record(ctx, tx, tenantID, audit.TransactionCreate, txn.ID, "kind=%s amount=%s debit=%s credit=%s",
		txn.Kind, txn.Amount.StringFixed(2), txn.DebitAccountID, txn.CreditAccountID); err != nil {
		return model.Transaction{}, err
	}
	return txn, nil
}

// Edit changes a manual transaction. The old effect is reversed using the
// accounts' current types, the row is rewritten, and the new effect is
// applied, all in one unit of work.
func (s *Service) Edit(ctx context.Context, tenantID, txnID string, p EditParams) (model.Transaction, error) {
	const op = "journal.Edit"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return model.Transaction{}, err
	}

	var txn model.Transaction
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		existing, err := s.loadOwned(ctx, tx, op, tenantID, txnID)
		if err != nil {
			return err
		}
		if existing.InvoiceLinked() {
			return apperr.Conflict(op, "transaction %s was posted by invoice %s and cannot be edited", txnID, existing.InvoiceID)
		}

		oldDebit, oldCredit, err := s.resolveExistingLegs(ctx, tx, existing)
		if err != nil {
			return err
		}
		if err := s.ledger.ReverseTx(ctx, tx, oldDebit, oldCredit, existing.Amount); err != nil {
			return err
		}

		next := merge(existing, p)
		if verrs := ValidatePosting(toParams(next)); len(verrs) > 0 {
			return validationFailure(op, verrs)
		}
		debit, credit, err := s.resolveLegs(ctx, tx, op, tenantID, next.DebitAccountID, next.CreditAccountID)
		if err != nil {
			return err
		}
		if err := s.checkCategory(ctx, tx, op, tenantID, next.CategoryID); err != nil {
			return err
		}

		next.UpdatedAt = tx.Now()
		if err := tx.UpdateTransaction(ctx, next); err != nil {
			return store.Classify(op, err)
		}
		if err := s.ledger.PostTx(ctx, tx, debit, credit, next.Amount); err != nil {
			return err
		}
		txn = next
		return audit.Record(ctx, tx, tenantID, audit.TransactionEdit, txn.ID, "amount=%s->%s debit=%s->%s credit=%s->%s",
			existing.Amount.StringFixed(2), next.Amount.StringFixed(2),
			existing.DebitAccountID, next.DebitAccountID, existing.CreditAccountID, next.CreditAccountID)
	})
	if err != nil {
		s.log.Warn().Err(err).Str("tenant", tenantID).Str("txn", txnID).Msg("transaction edit rejected")
		return model.Transaction{}, err
	}

	s.log.Info().Str("tenant", tenantID).Str("txn", txn.ID).Str("amount", txn.Amount.StringFixed(2)).Msg("transaction edited")
	return txn, nil
}

// Delete removes a manual transaction and reverses its effect on both
// accounts in one unit of work.
func (s *Service) Delete(ctx context.Context, tenantID, txnID string) error {
	const op = "journal.Delete"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return err
	}

	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		existing, err := s.loadOwned(ctx, tx, op, tenantID, txnID)
		if err != nil {
			return err
		}
		if existing.InvoiceLinked() {
			return apperr.Conflict(op, "transaction %s was posted by invoice %s and cannot be deleted", txnID, existing.InvoiceID)
		}

		debit, credit, err := s.resolveExistingLegs(ctx, tx, existing)
		if err != nil {
			return err
		}
		if err := s.ledger.ReverseTx(ctx, tx, debit, credit, existing.Amount); err != nil {
			return err
		}
		if err := tx.DeleteTransaction(ctx, tenantID, txnID); err != nil {
			return store.Classify(op, err)
		}
		return audit.Record(ctx, tx, tenantID, audit.TransactionDelete, txnID, "amount=%s", existing.Amount.StringFixed(2))
	})
	if err != nil {
		s.log.Warn().Err(err).Str("tenant", tenantID).Str("txn", txnID).Msg("transaction delete rejected")
		return err
	}

	s.log.Info().Str("tenant", tenantID).Str("txn", txnID).Msg("transaction deleted")
	return nil
}

// Get returns one of the tenant's transactions.
func (s *Service) Get(ctx context.Context, tenantID, txnID string) (model.Transaction, error) {
	const op = "journal.Get"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return model.Transaction{}, err
	}
	var txn model.Transaction
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		txn, err = s.loadOwned(ctx, tx, op, tenantID, txnID)
		return err
	})
	return txn, err
}

// List returns the tenant's transactions, newest first.
func (s *Service) List(ctx context.Context, tenantID string, f store.TransactionFilter) ([]model.Transaction, error) {
	const op = "journal.List"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return nil, err
	}
	var txns []model.Transaction
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		txns, err = tx.ListTransactions(ctx, tenantID, f)
		return err
	})
	return txns, err
}

func (s *Service) loadOwned(ctx context.Context, tx *store.Tx, op, tenantID, txnID string) (model.Transaction, error) {
	txn, err := tx.GetTransaction(ctx, txnID)
	if err != nil {
		return model.Transaction{}, store.Classify(op, err)
	}
	if txn.TenantID != tenantID {
		return model.Transaction{}, apperr.Unauthorized(op, "transaction %s belongs to another tenant", txnID)
	}
	return txn, nil
}

func (s *Service) resolveLegs(ctx context.Context, tx *store.Tx, op, tenantID, debitID, creditID string) (debit, credit model.Account, err error) {
	debit, err = s.ledger.ResolveTx(ctx, tx, tenantID, debitID)
	if err != nil {
		return model.Account{}, model.Account{}, err
	}
	credit, err = s.ledger.ResolveTx(ctx, tx, tenantID, creditID)
	if err != nil {
		return model.Account{}, model.Account{}, err
	}
	if !debit.Active {
		return model.Account{}, model.Account{}, apperr.Validation(op, "debit account %s is inactive", debit.ID)
	}
	if !credit.Active {
		return model.Account{}, model.Account{}, apperr.Validation(op, "credit account %s is inactive", credit.ID)
	}
	return debit, credit, nil
}

func (s *Service) resolveExistingLegs(ctx context.Context, tx *store.Tx, txn model.Transaction) (debit, credit model.Account, err error) {
	debit, err = s.ledger.ResolveTx(ctx, tx, txn.TenantID, txn.DebitAccountID)
	if err != nil {
		return model.Account{}, model.Account{}, err
	}
	credit, err = s.ledger.ResolveTx(ctx, tx, txn.TenantID, txn.CreditAccountID)
	if err != nil {
		return model.Account{}, model.Account{}, err
	}
	return debit, credit, nil
}

func (s *Service) checkCategory(ctx context.Context, tx *store.Tx, op, tenantID, categoryID string) error {
	if categoryID == "" {
		return nil
	}
	if _, err := tx.GetCategory(ctx, tenantID, categoryID); err != nil {
		return store.Classify(op, err)
	}
	return nil
}

func merge(txn model.Transaction, p EditParams) model.Transaction {
	if p.Date != nil {
		txn.Date = *p.Date
	}
	if p.Description != nil {
		txn.Description = strings.TrimSpace(*p.Description)
	}
	if p.Reference != nil {
		txn.Reference = *p.Reference
	}
	if p.Amount != nil {
		txn.Amount = *p.Amount
	}
	if p.DebitAccountID != nil {
		txn.DebitAccountID = *p.DebitAccountID
	}
	if p.CreditAccountID != nil {
		txn.CreditAccountID = *p.CreditAccountID
	}
	if p.CategoryID != nil {
		txn.CategoryID = *p.CategoryID
	}
	return txn
}

func toParams(txn model.Transaction) PostParams {
	return PostParams{
		Date:            txn.Date,
		Description:     txn.Description,
		Reference:       txn.Reference,
		Amount:          txn.Amount,
		DebitAccountID:  txn.DebitAccountID,
		CreditAccountID: txn.CreditAccountID,
		CategoryID:      txn.CategoryID,
		InvoiceID:       txn.InvoiceID,
		Kind:            txn.Kind,
	}
}
