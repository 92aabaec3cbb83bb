package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/books/internal/model"
)

const accountColumns = `id, tenant_id, name, code, type, sub_type, description, balance, active, created_at, updated_at`

// AccountFilter narrows ListAccounts.
type AccountFilter struct {
	Type       model.AccountType
	ActiveOnly bool
}

// InsertAccount stores a new account.
func (t *Tx) InsertAccount(ctx context.Context, a model.Account) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TenantID, a.Name, nullString(a.Code), string(a.Type), a.SubType, a.Description,
		a.Balance.String(), boolInt(a.Active), formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		if isUnique(err) {
			return fmt.Errorf("account code %q: %w", a.Code, ErrDuplicate)
		}
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

// GetAccount returns an account owned by tenantID.
func (t *Tx) GetAccount(ctx context.Context, tenantID, id string) (model.Account, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id = ? AND id = ?`, tenantID, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return a, err
}

// FindAccountByCode returns the tenant's account with the given code.
func (t *Tx) FindAccountByCode(ctx context.Context, tenantID, code string) (model.Account, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id = ? AND code = ?`, tenantID, code)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, fmt.Errorf("account code %s: %w", code, ErrNotFound)
	}
	return a, err
}

// ListAccounts returns the tenant's accounts ordered by type, code and name.
func (t *Tx) ListAccounts(ctx context.Context, tenantID string, f AccountFilter) ([]model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE tenant_id = ?`
	args := []any{tenantID}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(f.Type))
	}
	if f.ActiveOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY CASE type
		WHEN 'ASSET' THEN 1 WHEN 'LIABILITY' THEN 2 WHEN 'EQUITY' THEN 3
		WHEN 'REVENUE' THEN 4 ELSE 5 END, COALESCE(code, ''), name`

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var accts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accts = append(accts, a)
	}
	return accts, rows.Err()
}

// CountAccounts returns how many accounts the tenant has.
func (t *Tx) CountAccounts(ctx context.Context, tenantID string) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE tenant_id = ?`, tenantID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return n, nil
}

// UpdateAccount rewrites the descriptive fields of an account. The balance
// is only changed through AddToBalance.
func (t *Tx) UpdateAccount(ctx context.Context, a model.Account) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE accounts
		SET name = ?, code = ?, type = ?, sub_type = ?, description = ?, active = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?`,
		a.Name, nullString(a.Code), string(a.Type), a.SubType, a.Description, boolInt(a.Active), formatTime(a.UpdatedAt),
		a.TenantID, a.ID,
	)
	if err != nil {
		if isUnique(err) {
			return fmt.Errorf("account code %q: %w", a.Code, ErrDuplicate)
		}
		return fmt.Errorf("updating account: %w", err)
	}
	return expectOne(res, "account", a.ID)
}

// AddToBalance adds delta to the account balance and returns the new
// balance. The surrounding transaction holds the write lock, so the
// read-modify-write cannot interleave with another writer.
func (t *Tx) AddToBalance(ctx context.Context, tenantID, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	var current decimal.Decimal
	err := t.tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE tenant_id = ? AND id = ?`, tenantID, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Decimal{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("reading balance: %w", err)
	}

	next := current.Add(delta)
	if _, err := t.tx.ExecContext(ctx, `UPDATE accounts SET balance = ?, updated_at = ? WHERE tenant_id = ? AND id = ?`,
		next.String(), formatTime(t.now), tenantID, id); err != nil {
		return decimal.Decimal{}, fmt.Errorf("writing balance: %w", err)
	}
	return next, nil
}

// DeleteAccount removes an account.
func (t *Tx) DeleteAccount(ctx context.Context, tenantID, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM accounts WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	return expectOne(res, "account", id)
}

// CountAccountReferences returns how many transactions post to the account.
func (t *Tx) CountAccountReferences(ctx context.Context, tenantID, id string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE tenant_id = ? AND (debit_account_id = ? OR credit_account_id = ?)`,
		tenantID, id, id,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting account references: %w", err)
	}
	return n, nil
}

func scanAccount(s scanner) (model.Account, error) {
	var (
		a                    model.Account
		code                 sql.NullString
		typ                  string
		active               int
		createdAt, updatedAt string
	)
	if err := s.Scan(&a.ID, &a.TenantID, &a.Name, &code, &typ, &a.SubType, &a.Description,
		&a.Balance, &active, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, err
		}
		return model.Account{}, fmt.Errorf("scanning account: %w", err)
	}
	a.Code = code.String
	a.Type = model.AccountType(typ)
	a.Active = active == 1

	var err error
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Account{}, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.Account{}, err
	}
	return a, nil
}

func expectOne(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking %s rows: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}
