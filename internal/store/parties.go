package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cleared-dev/books/internal/model"
)

// InsertCustomer stores a customer.
func (t *Tx) InsertCustomer(ctx context.Context, c model.Customer) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO customers (id, tenant_id, name, email, payment_terms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, c.Name, c.Email, c.PaymentTerms, formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting customer: %w", err)
	}
	return nil
}

// GetCustomer returns a tenant's customer.
func (t *Tx) GetCustomer(ctx context.Context, tenantID, id string) (model.Customer, error) {
	var (
		c         model.Customer
		createdAt string
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, email, payment_terms, created_at
		FROM customers WHERE tenant_id = ? AND id = ?`, tenantID, id,
	).Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.PaymentTerms, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Customer{}, fmt.Errorf("customer %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Customer{}, fmt.Errorf("reading customer: %w", err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Customer{}, err
	}
	return c, nil
}

// ListCustomers returns the tenant's customers by name.
func (t *Tx) ListCustomers(ctx context.Context, tenantID string) ([]model.Customer, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, tenant_id, name, email, payment_terms, created_at
		FROM customers WHERE tenant_id = ? ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", err)
	}
	defer rows.Close()

	var customers []model.Customer
	for rows.Next() {
		var (
			c         model.Customer
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.PaymentTerms, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning customer: %w", err)
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// InsertCategory stores a category. Names are unique per tenant.
func (t *Tx) InsertCategory(ctx context.Context, c model.Category) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO categories (id, tenant_id, name, color, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, c.Name, c.Color, formatTime(c.CreatedAt),
	)
	if err != nil {
		if isUnique(err) {
			return fmt.Errorf("category %q: %w", c.Name, ErrDuplicate)
		}
		return fmt.Errorf("inserting category: %w", err)
	}
	return nil
}

// GetCategory returns a tenant's category.
func (t *Tx) GetCategory(ctx context.Context, tenantID, id string) (model.Category, error) {
	var (
		c         model.Category
		createdAt string
	)
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, color, created_at
		FROM categories WHERE tenant_id = ? AND id = ?`, tenantID, id,
	).Scan(&c.ID, &c.TenantID, &c.Name, &c.Color, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Category{}, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Category{}, fmt.Errorf("reading category: %w", err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Category{}, err
	}
	return c, nil
}

// ListCategories returns the tenant's categories by name.
func (t *Tx) ListCategories(ctx context.Context, tenantID string) ([]model.Category, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, tenant_id, name, color, created_at
		FROM categories WHERE tenant_id = ? ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var cats []model.Category
	for rows.Next() {
		var (
			c         model.Category
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Color, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}
