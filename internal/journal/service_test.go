package journal

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/books/internal/accounts"
	"github.com/cleared-dev/books/internal/apperr"
	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/store"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	db    *store.DB
	accts *accounts.Service
	svc   *Service

	bank, ar, revenue, rent, loan model.Account
}

func newFixture(t *testing.T, tenant string) *fixture {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "books.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	accts := accounts.NewService(db, zerolog.Nop())
	f := &fixture{db: db, accts: accts, svc: NewService(db, accts, zerolog.Nop())}
	f.bank = f.account(t, tenant, "1010", "Business Bank Account", model.AccountTypeAsset)
	f.ar = f.account(t, tenant, "1100", "Accounts Receivable", model.AccountTypeAsset)
	f.revenue = f.account(t, tenant, "4000", "Sales Revenue", model.AccountTypeRevenue)
	f.rent = f.account(t, tenant, "6100", "Rent Expense", model.AccountTypeExpense)
	f.loan = f.account(t, tenant, "2500", "Bank Loan", model.AccountTypeLiability)
	return f
}

func (f *fixture) account(t *testing.T, tenant, code, name string, typ model.AccountType) model.Account {
	t.Helper()
	acct, err := f.accts.Create(context.Background(), tenant, accounts.CreateParams{Code: code, Name: name, Type: typ})
	require.NoError(t, err)
	return acct
}

func (f *fixture) balance(t *testing.T, tenant string, acct model.Account) decimal.Decimal {
	t.Helper()
	got, err := f.accts.Get(context.Background(), tenant, acct.ID)
	require.NoError(t, err)
	return got.Balance
}

func (f *fixture) assertBalance(t *testing.T, tenant string, acct model.Account, want string) {
	t.Helper()
	got := f.balance(t, tenant, acct)
	assert.True(t, got.Equal(dec(want)), "%s balance: want %s, got %s", acct.Name, want, got)
}

// identity returns assets - liabilities - equity - (revenue - expenses).
func (f *fixture) identity(t *testing.T, tenant string) decimal.Decimal {
	t.Helper()
	all, err := f.accts.List(context.Background(), tenant, store.AccountFilter{})
	require.NoError(t, err)
	sum := decimal.Zero
	for _, a := range all {
		switch a.Type {
		case model.AccountTypeAsset, model.AccountTypeExpense:
			sum = sum.Add(a.Balance)
		default:
			sum = sum.Sub(a.Balance)
		}
	}
	return sum
}

// seedInvoice stores a bare invoice so invoice postings satisfy their
// foreign key.
func (f *fixture) seedInvoice(t *testing.T, tenant, invoiceID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.db.InTx(ctx, func(tx *store.Tx) error {
		cust := model.Customer{ID: "cust-" + invoiceID, TenantID: tenant, Name: "Acme Ltd", PaymentTerms: 30, CreatedAt: tx.Now()}
		if err := tx.InsertCustomer(ctx, cust); err != nil {
			return err
		}
		return tx.InsertInvoice(ctx, model.Invoice{
			ID: invoiceID, TenantID: tenant, Number: "INV-" + invoiceID, CustomerID: cust.ID,
			IssueDate: date(2025, 3, 1), DueDate: date(2025, 3, 31), Status: model.InvoiceDraft,
			TaxRate: dec("0.15"), Subtotal: dec("3000"), TaxAmount: dec("450"), Total: dec("3450"),
			PaidAmount: decimal.Zero, CreatedAt: tx.Now(), UpdatedAt: tx.Now(),
		})
	}))
}

func manual(debit, credit model.Account, amount string) PostParams {
	return PostParams{
		Date:            date(2025, 3, 1),
		Description:     "test posting",
		Amount:          dec(amount),
		DebitAccountID:  debit.ID,
		CreditAccountID: credit.ID,
	}
}

func TestCreate_AppliesBothLegs(t *testing.T) {
	f := newFixture(t, "t1")
	ctx := context.Background()

	txn, err := f.svc.Create(ctx, "t1", PostParams{
		Date:            date(2025, 3, 1),
		Description:     "  Consulting  ",
		Reference:       "R-1",
		Amount:          dec("1000"),
		DebitAccountID:  f.bank.ID,
		CreditAccountID: f.revenue.ID,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, txn.ID)
	assert.Equal(t, "Consulting", txn.Description)
	assert.Equal(t, model.KindManual, txn.Kind)

	f.assertBalance(t, "t1", f.bank, "1000")
	f.assertBalance(t, "t1", f.revenue, "1000")

	got, err := f.svc.Get(ctx, "t1", txn.ID)
	require.NoError(t, err)
	assert.Equal(t, "R-1", got.Reference)
	assert.True(t, got.Amount.Equal(dec("1000")))
}

func TestCreate_ForcesManualKind(t *testing.T) {
	f := newFixture(t, "t1")
	p := manual(f.ar, f.revenue, "10")
	p.Kind = model.KindSale
	p.InvoiceID = "inv-1"

	txn, err := f.svc.Create(context.Background(), "t1", p)
	require.NoError(t, err)
	assert.Equal(t, model.KindManual, txn.Kind)
	assert.Empty(t, txn.InvoiceID)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t, "t1")
	ctx := context.Background()

	tests := []struct {
		name string
		edit func(*PostParams)
	}{
		{"zero amount", func(p *PostParams) { p.Amount = decimal.Zero }},
		{"negative amount", func(p *PostParams) { p.Amount = dec("-5") }},
		{"sub-cent amount", func(p *PostParams) { p.Amount = dec("1.005") }},
		{"same account", func(p *PostParams) { p.CreditAccountID = p.DebitAccountID }},
		{"missing debit", func(p *PostParams) { p.DebitAccountID = "" }},
		{"missing description", func(p *PostParams) { p.Description = " " }},
		{"missing date", func(p *PostParams) { p.Date = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := manual(f.bank, f.revenue, "10")
			tt.edit(&p)
			_, err := f.svc.Create(ctx, "t1", p)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	f.assertBalance(t, "t1", f.bank, "0")
	f.assertBalance(t, "t1", f.revenue, "0")
}

func TestCreate_UnknownAccount(t *testing.T) {
	f := newFixture(t, "t1")
	p := manual(f.bank, f.revenue, "10")
	p.CreditAccountID = "missing"

	_, err := f.svc.Create(context.Background(), "t1", p)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	f.assertBalance(t, "t1", f.bank, "0")
}

func TestCreate_OtherTenantsAccountIsNotFound(t *testing.T) {
	f := newFixture(t, "t1")
	other := f.account(t, "t2", "1010", "Other Bank", model.AccountTypeAsset)

	_, err := f.svc.Create(context.Background(), "t1", manual(other, f.revenue, "10"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	f.assertBalance(t, "t2", other, "0")
}

func TestCreate_InactiveAccount(t *testing.T) {
	f := newFixture(t, "t1")
	ctx := context.Background()
	inactive := false
	_, err := f.accts.Update(ctx, "t1", f.rent.ID, accounts.UpdateParams{Active: &inactive})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, "t1", manual(f.rent, f.bank, "10"))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreate_RequiresTenant(t *testing.T) {
	f := newFixture(t, "t1")
	_, err := f.svc.Create(context.Background(), "", manual(f.bank, f.revenue, "10"))
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestCreate_UnknownCategory(t *testing.T) {
	f := newFixture(t, "t1")
	p := manual(f.rent, f.bank, "10")
	p.CategoryID = "nope"
	_, err := f.svc.Create(context.Background(), "t1", p)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreate_WithCategory(t *testing.T) {
	f := newFixture(t, "t1")
	ctx := context.Background()

	var cat model.Category
	require.NoError(t, f.db.InTx(ctx, func(tx *store.Tx) error {
		cat = model.Category{ID: "cat-1", TenantID: "t1", Name: "Office", CreatedAt: tx.Now()}
		return tx.InsertCategory(ctx, cat)
	}))

	p := manual(f.rent, f.bank, "10")
	p.CategoryID = cat.ID
	txn, err := f.svc.Create(ctx, "t1", p)
	require.NoError(t, err)
	assert.Equal(t, cat.ID, txn.CategoryID)
}

func TestAccountingIdentityHoldsAfterRandomPostings(t *testing.T) {
	f := newFixture(t, "t1")
	ctx := context.Background()
	all := []model.Account{f.bank, f.ar, f.revenue, f.rent, f.loan}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 60; i++ {
		d := all[rng.Intn(len(all))]
		c := all[rng.Intn(len(all))]
		if d.ID == c.ID {
			continue
		}
		amount := decimal.New(int64(rng.Intn(100000)+1), -2)
		_, err := f.svc.Create(ctx, "t1", PostParams{
			Date: date(2025, 1, 1+i%28), Description: fmt.Sprintf("posting %d", i),
			Amount: amount, DebitAccountID: d.ID, CreditAccountID: c.ID,
		})
		require.NoError(t, err)
		off := f.identity(t, "t1")
		require.True(t, off.IsZero(), "identity off by %s after posting %d", off, i)
	}
}

func TestEdit_AppliesNetDifference(t *testing.T) {
	f := newFixture(t, "t1")
	ctx := context.Background()
	txn, err := f.svc.Create(ctx, "t1", manual(f.bank, f.revenue, "1000"))
	require.NoError(t, err)

	amount := dec("1200")
	edited, err := f.svc.Edit(ctx, "t1", txn.ID, EditParams{Amount: &amount})
	require.NoError(t, err)
	assert.True(t, edited.Amount.Equal(amount))

	f.assertBalance(t, "t1", f.bank, "1200")
	f.assertBalance(t, "t1", f.revenue, "1200")
}

func TestEdit_MovesLegToAnotherAccount(t *testing.T) {
	f := newFixture(t, "t1")
	ctx := context.Background()
	txn, err := f.svc.Create(ctx, "t1", manual(f.rent, f.bank, "300"))
	require.NoError(t, err)

	credit := f.loan.ID
	desc := "Rent paid on loan"
	_, err = f.svc.Edit(ctx, "t1", txn.ID, EditParams{CreditAccountID: &credit, Description: &desc})
	require.NoError(t, err)

	f.assertBalance(t, "t1", f.rent, "300")
	f.assertBalance(t, "t1", f.bank, "0")
	f.assertBalance(t, "t1", f.loan, "300")

	got, err := f.svc.Get(ctx, "t1", txn.ID)
	require.NoError(t, err)
	assert.Equal(t, desc, got.Description)
	assert.Equal(t, f.loan.ID, got.CreditAccountID)
}

func TestEdit_InvalidLeavesBalancesUntouched(t *testing.T) {
	f := newFixture(t, "t1")
	ctx := context.Background()
	txn, err := f.svc.Create(ctx, "t1", manual(f.bank, f.revenue, "500"))
	require.NoError(t, err)

	zero := decimal.Zero
	_, err = f.svc.Edit(ctx, "t1", txn.ID, EditParams{Amount: &zero})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	missing := "missing"
	_, err = f.svc.Edit(ctx, "t1", txn.ID, EditParams{DebitAccountID: &missing})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	f.assertBalance(t, "t1", f.bank, "500")
	f.assertBalance(t, "t1", f.revenue, "500")
	got, err := f.svc.Get(ctx, "t1", txn.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec("500")))
}

func TestEdit_OtherTenantIsUnauthorized(t *testing.T) {
	f := newFixture(t, "t1")
	ctx := context.Background()
	txn, err := f.svc.Create(ctx, "t1", manual(f.bank, f.revenue, "50"))
	require.NoError(t, err)

	amount := dec("1")
	_, err = f.svc.Edit(ctx, "t2", txn.ID, EditParams{Amount: &amount})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.ErrorIs(t, f.svc.Delete(ctx, "t2", txn.ID), apperr.ErrUnauthorized)
	_, err = f.svc.Get(ctx, "t2", txn.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	f.assertBalance(t, "t1", f.bank, "50")
}

func TestEdit_NotFound(t *testing.T) {
	f := newFixture(t, "t1")
	desc := "x"
	_, err := f.svc.Edit(context.Background(), "t1", "missing", EditParams{Description: &desc})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestInvoicePostingsAreLocked(t *testing.T) {
	f := newFixture(t, "t1")
	ctx := context.Background()
	f.seedInvoice(t, "t1", "inv-1")

	var txn model.Transaction
	require.NoError(t, f.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		txn, err = f.svc.PostTx(ctx, tx, "t1", PostParams{
			Date: date(2025, 3, 1), Description: "Invoice created INV-001 - Acme", Reference: "INV-001",
			Amount: dec("3450"), DebitAccountID: f.ar.ID, CreditAccountID: f.revenue.ID,
			InvoiceID: "inv-1", Kind: model.KindSale,
		})
		return err
	}))
	f.assertBalance(t, "t1", f.ar, "3450")

	amount := dec("1")
	_, err := f.svc.Edit(ctx, "t1", txn.ID, EditParams{Amount: &amount})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.ErrorIs(t, f.svc.Delete(ctx, "t1", txn.ID), apperr.ErrConflict)
	f.assertBalance(t, "t1", f.ar, "3450")
}

func TestPostTx_SecondSaleIsConflict(t *testing.T) {
	f := newFixture(t, "t1")
	ctx := context.Background()
	f.seedInvoice(t, "t1", "inv-1")
	sale := PostParams{
		Date: date(2025, 3, 1), Description: "sale", Amount: dec("10"),
		DebitAccountID: f.ar.ID, CreditAccountID: f.revenue.ID, InvoiceID: "inv-1", Kind: model.KindSale,
	}
	post := func() error {
		return f.db.InTx(ctx, func(tx *store.Tx) error {
			_, err := f.svc.PostTx(ctx, tx, "t1", sale)
			return err
		})
	}
	require.NoError(t, post())
	assert.ErrorIs(t, post(), apperr.ErrConflict)
	f.assertBalance(t, "t1", f.ar, "10")
}

func TestPostTx_InvoiceKindNeedsInvoice(t *testing.T) {
	f := newFixture(t, "t1")
	ctx := context.Background()
	err := f.db.InTx(ctx, func(tx *store.Tx) error {
		p := manual(f.bank, f.ar, "10")
		p.Kind = model.KindPayment
		_, err := f.svc.PostTx(ctx, tx, "t1", p)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDelete_RestoresBalances(t *testing.T) {
	f := newFixture(t, "t1")
	ctx := context.Background()

	a, err := f.svc.Create(ctx, "t1", manual(f.bank, f.revenue, "1000"))
	require.NoError(t, err)
	b, err := f.svc.Create(ctx, "t1", manual(f.rent, f.bank, "250.50"))
	require.NoError(t, err)
	c, err := f.svc.Create(ctx, "t1", manual(f.bank, f.loan, "5000"))
	require.NoError(t, err)

	// Delete out of creation order.
	for _, id := range []string{b.ID, c.ID, a.ID} {
		require.NoError(t, f.svc.Delete(ctx, "t1", id))
	}

	for _, acct := range []model.Account{f.bank, f.revenue, f.rent, f.loan} {
		f.assertBalance(t, "t1", acct, "0")
	}
	txns, err := f.svc.List(ctx, "t1", store.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txns)

	_, err = f.svc.Get(ctx, "t1", a.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestList_FiltersByAccount(t *testing.T) {
	f := newFixture(t, "t1")
	ctx := context.Background()
	_, err := f.svc.Create(ctx, "t1", manual(f.bank, f.revenue, "1"))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, "t1", manual(f.rent, f.loan, "2"))
	require.NoError(t, err)

	txns, err := f.svc.List(ctx, "t1", store.TransactionFilter{AccountID: f.rent.ID})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.True(t, txns[0].Amount.Equal(dec("2")))

	other, err := f.svc.List(ctx, "t2", store.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestCreate_Timeout(t *testing.T) {
	f := newFixture(t, "t1")
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := f.svc.Create(ctx, "t1", manual(f.bank, f.revenue, "10"))
	assert.ErrorIs(t, err, apperr.ErrTimeout)
	f.assertBalance(t, "t1", f.bank, "0")
}

func TestCreate_ConcurrentPostingsKeepBalances(t *testing.T) {
	f := newFixture(t, "t1")
	ctx := context.Background()

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			_, err := f.svc.Create(ctx, "t1", manual(f.bank, f.revenue, "12.34"))
			return err
		})
	}
	require.NoError(t, g.Wait())

	f.assertBalance(t, "t1", f.bank, "246.80")
	f.assertBalance(t, "t1", f.revenue, "246.80")
	assert.True(t, f.identity(t, "t1").IsZero())
}
