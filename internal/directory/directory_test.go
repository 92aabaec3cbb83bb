package directory

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/books/internal/apperr"
	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "books.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(db, zerolog.Nop()), db
}

func TestCreateCustomer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.CreateCustomer(ctx, "t1", CustomerParams{Name: " Acme Ltd ", Email: "ap@acme.test"})
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", c.Name)
	assert.Equal(t, DefaultPaymentTerms, c.PaymentTerms)

	got, err := svc.GetCustomer(ctx, "t1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, "ap@acme.test", got.Email)

	_, err = svc.GetCustomer(ctx, "t2", c.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateCustomer_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateCustomer(ctx, "t1", CustomerParams{Name: ""})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.CreateCustomer(ctx, "t1", CustomerParams{Name: "x", Email: "not an email"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.CreateCustomer(ctx, "t1", CustomerParams{Name: "x", PaymentTerms: -1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.CreateCustomer(ctx, "", CustomerParams{Name: "x"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestListCustomers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, name := range []string{"Zed", "Acme", "Globex"} {
		_, err := svc.CreateCustomer(ctx, "t1", CustomerParams{Name: name, PaymentTerms: 14})
		require.NoError(t, err)
	}
	_, err := svc.CreateCustomer(ctx, "t2", CustomerParams{Name: "Other"})
	require.NoError(t, err)

	cs, err := svc.ListCustomers(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, cs, 3)
	assert.Equal(t, "Acme", cs[0].Name)
	assert.Equal(t, 14, cs[0].PaymentTerms)
}

func TestCustomerStatement(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	c, err := svc.CreateCustomer(ctx, "t1", CustomerParams{Name: "Acme"})
	require.NoError(t, err)

	statuses := []model.InvoiceStatus{model.InvoiceDraft, model.InvoiceSent, model.InvoiceOverdue, model.InvoicePaid}
	require.NoError(t, db.InTx(ctx, func(tx *store.Tx) error {
		for i, s := range statuses {
			now := tx.Now()
			inv := model.Invoice{
				ID: fmt.Sprintf("inv%d", i), TenantID: "t1", Number: fmt.Sprintf("INV-%03d", i+1), CustomerID: c.ID,
				IssueDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), DueDate: time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
				Status: s, TaxRate: decimal.Zero, Subtotal: decimal.NewFromInt(100), TaxAmount: decimal.Zero,
				Total: decimal.NewFromInt(100), PaidAmount: decimal.NewFromInt(25), CreatedAt: now, UpdatedAt: now,
			}
			if err := tx.InsertInvoice(ctx, inv); err != nil {
				return err
			}
		}
		return nil
	}))

	st, err := svc.CustomerStatement(ctx, "t1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, st.Invoices)
	assert.Equal(t, 1, st.OverdueCount)
	assert.True(t, st.Outstanding.Equal(decimal.NewFromInt(150)), "outstanding %s", st.Outstanding)

	_, err = svc.CustomerStatement(ctx, "t1", "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCategories(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateCategory(ctx, "t1", "Travel", "#F59E0B")
	require.NoError(t, err)
	_, err = svc.CreateCategory(ctx, "t1", "Office", "")
	require.NoError(t, err)

	_, err = svc.CreateCategory(ctx, "t1", "Travel", "#000000")
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = svc.CreateCategory(ctx, "t1", "  ", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// Names are unique per tenant only.
	_, err = svc.CreateCategory(ctx, "t2", "Travel", "")
	require.NoError(t, err)

	cats, err := svc.ListCategories(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Office", cats[0].Name)
	assert.Equal(t, "#F59E0B", cats[1].Color)
}
