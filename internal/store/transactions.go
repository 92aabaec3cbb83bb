package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/books/internal/model"
)

const transactionColumns = `id, tenant_id, date, description, reference, amount, debit_account_id, credit_account_id, category_id, invoice_id, kind, created_at, updated_at`

// TransactionFilter narrows ListTransactions. Zero values match everything.
type TransactionFilter struct {
	From      time.Time // inclusive
	To        time.Time // inclusive
	AccountID string    // either leg
	InvoiceID string
	Kind      model.PostingKind
	Limit     int
	Offset    int
}

// InsertTransaction stores a new posting.
func (t *Tx) InsertTransaction(ctx context.Context, txn model.Transaction) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.TenantID, formatDate(txn.Date), txn.Description, txn.Reference, txn.Amount.String(),
		txn.DebitAccountID, txn.CreditAccountID, nullString(txn.CategoryID), nullString(txn.InvoiceID),
		string(txn.Kind), formatTime(txn.CreatedAt), formatTime(txn.UpdatedAt),
	)
	if err != nil {
		if isUnique(err) {
			return fmt.Errorf("transaction %s: %w", txn.ID, ErrDuplicate)
		}
		return fmt.Errorf("inserting transaction: %w", err)
	}
	return nil
}

// GetTransaction returns a posting by ID regardless of tenant, so callers
// can tell a missing posting from one owned by someone else.
func (t *Tx) GetTransaction(ctx context.Context, id string) (model.Transaction, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return txn, err
}

// UpdateTransaction rewrites a posting's fields.
func (t *Tx) UpdateTransaction(ctx context.Context, txn model.Transaction) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE transactions
		SET date = ?, description = ?, reference = ?, amount = ?, debit_account_id = ?, credit_account_id = ?,
		    category_id = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?`,
		formatDate(txn.Date), txn.Description, txn.Reference, txn.Amount.String(), txn.DebitAccountID, txn.CreditAccountID,
		nullString(txn.CategoryID), formatTime(txn.UpdatedAt),
		txn.TenantID, txn.ID,
	)
	if err != nil {
		return fmt.Errorf("updating transaction: %w", err)
	}
	return expectOne(res, "transaction", txn.ID)
}

// DeleteTransaction removes a posting.
func (t *Tx) DeleteTransaction(ctx context.Context, tenantID, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM transactions WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}
	return expectOne(res, "transaction", id)
}

// ListTransactions returns the tenant's postings, newest first.
func (t *Tx) ListTransactions(ctx context.Context, tenantID string, f TransactionFilter) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE tenant_id = ?`
	args := []any{tenantID}
	if !f.From.IsZero() {
		query += ` AND date >= ?`
		args = append(args, formatDate(f.From))
	}
	if !f.To.IsZero() {
		query += ` AND date <= ?`
		args = append(args, formatDate(f.To))
	}
	if f.AccountID != "" {
		query += ` AND (debit_account_id = ? OR credit_account_id = ?)`
		args = append(args, f.AccountID, f.AccountID)
	}
	if f.InvoiceID != "" {
		query += ` AND invoice_id = ?`
		args = append(args, f.InvoiceID)
	}
	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(f.Kind))
	}
	query += ` ORDER BY date DESC, created_at DESC, id`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

// CountInvoiceTransactions counts postings linked to an invoice. An empty
// kind counts every kind.
func (t *Tx) CountInvoiceTransactions(ctx context.Context, invoiceID string, kind model.PostingKind) (int, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE invoice_id = ?`
	args := []any{invoiceID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	var n int
	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting invoice transactions: %w", err)
	}
	return n, nil
}

// HasReference reports whether the tenant already has a posting with the
// given reference.
func (t *Tx) HasReference(ctx context.Context, tenantID, reference string) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE tenant_id = ? AND reference = ?`, tenantID, reference).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("looking up reference: %w", err)
	}
	return n > 0, nil
}

func scanTransaction(s scanner) (model.Transaction, error) {
	var (
		txn                  model.Transaction
		date, kind           string
		categoryID           sql.NullString
		invoiceID            sql.NullString
		createdAt, updatedAt string
	)
	if err := s.Scan(&txn.ID, &txn.TenantID, &date, &txn.Description, &txn.Reference, &txn.Amount,
		&txn.DebitAccountID, &txn.CreditAccountID, &categoryID, &invoiceID, &kind, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Transaction{}, err
		}
		return model.Transaction{}, fmt.Errorf("scanning transaction: %w", err)
	}
	txn.CategoryID = categoryID.String
	txn.InvoiceID = invoiceID.String
	txn.Kind = model.PostingKind(kind)

	var err error
	if txn.Date, err = parseDate(date); err != nil {
		return model.Transaction{}, err
	}
	if txn.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Transaction{}, err
	}
	if txn.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.Transaction{}, err
	}
	return txn, nil
}
