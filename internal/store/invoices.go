package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/books/internal/model"
)

const invoiceColumns = `i.id, i.tenant_id, i.number, i.customer_id, i.issue_date, i.due_date, i.status, i.tax_rate,
	i.gst_inclusive, i.exempt_from_gst, i.subtotal, i.tax_amount, i.total, i.paid_amount, i.paid_date,
	i.notes, i.terms, i.created_at, i.updated_at`

// InvoiceFilter narrows ListInvoices.
type InvoiceFilter struct {
	Status     model.InvoiceStatus
	CustomerID string
	Search     string // matches invoice number or customer name
	Limit      int
	Offset     int
}

// NextInvoiceNumber atomically advances the tenant's invoice sequence and
// returns the new value. The first call for a tenant returns 1.
func (t *Tx) NextInvoiceNumber(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO invoice_sequences (tenant_id, last_number) VALUES (?, 1)
		ON CONFLICT (tenant_id) DO UPDATE SET last_number = last_number + 1
		RETURNING last_number`, tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("advancing invoice sequence: %w", err)
	}
	return n, nil
}

// InsertInvoice stores a new invoice and its items.
func (t *Tx) InsertInvoice(ctx context.Context, inv model.Invoice) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO invoices (id, tenant_id, number, customer_id, issue_date, due_date, status, tax_rate,
			gst_inclusive, exempt_from_gst, subtotal, tax_amount, total, paid_amount, paid_date,
			notes, terms, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.TenantID, inv.Number, inv.CustomerID, formatDate(inv.IssueDate), formatDate(inv.DueDate),
		string(inv.Status), inv.TaxRate.String(), boolInt(inv.GSTInclusive), boolInt(inv.ExemptFromGST),
		inv.Subtotal.String(), inv.TaxAmount.String(), inv.Total.String(), inv.PaidAmount.String(),
		nullDate(inv.PaidDate), inv.Notes, inv.Terms, formatTime(inv.CreatedAt), formatTime(inv.UpdatedAt),
	)
	if err != nil {
		if isUnique(err) {
			return fmt.Errorf("invoice number %s: %w", inv.Number, ErrDuplicate)
		}
		return fmt.Errorf("inserting invoice: %w", err)
	}
	return t.insertItems(ctx, inv.ID, inv.Items)
}

// GetInvoice returns a tenant's invoice with its items in position order.
func (t *Tx) GetInvoice(ctx context.Context, tenantID, id string) (model.Invoice, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices i WHERE i.tenant_id = ? AND i.id = ?`, tenantID, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Invoice{}, fmt.Errorf("invoice %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Invoice{}, err
	}

	inv.Items, err = t.listItems(ctx, inv.ID)
	if err != nil {
		return model.Invoice{}, err
	}
	return inv, nil
}

// UpdateInvoice rewrites an invoice header. Items are replaced separately.
func (t *Tx) UpdateInvoice(ctx context.Context, inv model.Invoice) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE invoices
		SET customer_id = ?, issue_date = ?, due_date = ?, status = ?, tax_rate = ?, gst_inclusive = ?,
		    exempt_from_gst = ?, subtotal = ?, tax_amount = ?, total = ?, paid_amount = ?, paid_date = ?,
		    notes = ?, terms = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?`,
		inv.CustomerID, formatDate(inv.IssueDate), formatDate(inv.DueDate), string(inv.Status), inv.TaxRate.String(),
		boolInt(inv.GSTInclusive), boolInt(inv.ExemptFromGST), inv.Subtotal.String(), inv.TaxAmount.String(),
		inv.Total.String(), inv.PaidAmount.String(), nullDate(inv.PaidDate), inv.Notes, inv.Terms,
		formatTime(inv.UpdatedAt), inv.TenantID, inv.ID,
	)
	if err != nil {
		return fmt.Errorf("updating invoice: %w", err)
	}
	return expectOne(res, "invoice", inv.ID)
}

// ReplaceInvoiceItems deletes an invoice's items and inserts the given set.
func (t *Tx) ReplaceInvoiceItems(ctx context.Context, invoiceID string, items []model.InvoiceItem) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = ?`, invoiceID); err != nil {
		return fmt.Errorf("clearing invoice items: %w", err)
	}
	return t.insertItems(ctx, invoiceID, items)
}

// DeleteInvoice removes an invoice; its items cascade.
func (t *Tx) DeleteInvoice(ctx context.Context, tenantID, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM invoices WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return fmt.Errorf("deleting invoice: %w", err)
	}
	return expectOne(res, "invoice", id)
}

// ListInvoices returns a page of the tenant's invoices, newest issue date
// first, along with the total number of matches. Items are not loaded.
func (t *Tx) ListInvoices(ctx context.Context, tenantID string, f InvoiceFilter) ([]model.Invoice, int, error) {
	where := ` FROM invoices i JOIN customers c ON c.id = i.customer_id WHERE i.tenant_id = ?`
	args := []any{tenantID}
	if f.Status != "" {
		where += ` AND i.status = ?`
		args = append(args, string(f.Status))
	}
	if f.CustomerID != "" {
		where += ` AND i.customer_id = ?`
		args = append(args, f.CustomerID)
	}
	if f.Search != "" {
		where += ` AND (i.number LIKE ? OR c.name LIKE ?)`
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}

	var total int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting invoices: %w", err)
	}

	query := `SELECT ` + invoiceColumns + where + ` ORDER BY i.issue_date DESC, i.number DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()

	var invs []model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invs = append(invs, inv)
	}
	return invs, total, rows.Err()
}

func (t *Tx) insertItems(ctx context.Context, invoiceID string, items []model.InvoiceItem) error {
	for i, it := range items {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO invoice_items (id, invoice_id, position, description, quantity, unit_price, total, tax_rate, tax_amount)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, invoiceID, it.Position, it.Description, it.Quantity.String(), it.UnitPrice.String(),
			it.Total.String(), it.TaxRate.String(), it.TaxAmount.String(),
		)
		if err != nil {
			return fmt.Errorf("inserting invoice item %d: %w", i, err)
		}
	}
	return nil
}

func (t *Tx) listItems(ctx context.Context, invoiceID string) ([]model.InvoiceItem, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, invoice_id, position, description, quantity, unit_price, total, tax_rate, tax_amount
		FROM invoice_items WHERE invoice_id = ? ORDER BY position`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("listing invoice items: %w", err)
	}
	defer rows.Close()

	var items []model.InvoiceItem
	for rows.Next() {
		var it model.InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Position, &it.Description, &it.Quantity, &it.UnitPrice,
			&it.Total, &it.TaxRate, &it.TaxAmount); err != nil {
			return nil, fmt.Errorf("scanning invoice item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanInvoice(s scanner) (model.Invoice, error) {
	var (
		inv                  model.Invoice
		issueDate, dueDate   string
		status               string
		gstInclusive, exempt int
		paidDate             sql.NullString
		createdAt, updatedAt string
	)
	if err := s.Scan(&inv.ID, &inv.TenantID, &inv.Number, &inv.CustomerID, &issueDate, &dueDate, &status,
		&inv.TaxRate, &gstInclusive, &exempt, &inv.Subtotal, &inv.TaxAmount, &inv.Total, &inv.PaidAmount,
		&paidDate, &inv.Notes, &inv.Terms, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Invoice{}, err
		}
		return model.Invoice{}, fmt.Errorf("scanning invoice: %w", err)
	}
	inv.Status = model.InvoiceStatus(status)
	inv.GSTInclusive = gstInclusive == 1
	inv.ExemptFromGST = exempt == 1

	var err error
	if inv.IssueDate, err = parseDate(issueDate); err != nil {
		return model.Invoice{}, err
	}
	if inv.DueDate, err = parseDate(dueDate); err != nil {
		return model.Invoice{}, err
	}
	if paidDate.Valid {
		d, err := parseDate(paidDate.String)
		if err != nil {
			return model.Invoice{}, err
		}
		inv.PaidDate = &d
	}
	if inv.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Invoice{}, err
	}
	if inv.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.Invoice{}, err
	}
	return inv, nil
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(*t), Valid: true}
}
