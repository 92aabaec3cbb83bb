package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/books/internal/apperr"
	"github.com/cleared-dev/books/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "books.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func testAccount(id, tenant, code string, typ model.AccountType) model.Account {
	now := time.Now().UTC()
	return model.Account{
		ID: id, TenantID: tenant, Name: "Account " + id, Code: code, Type: typ,
		Balance: decimal.Zero, Active: true, CreatedAt: now, UpdatedAt: now,
	}
}

func TestAccountRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	acct := testAccount("a1", "t1", "1010", model.AccountTypeAsset)
	acct.SubType = "Current Asset"
	acct.Balance = dec("125.50")
	require.NoError(t, db.InTx(ctx, func(tx *Tx) error {
		return tx.InsertAccount(ctx, acct)
	}))

	require.NoError(t, db.InTx(ctx, func(tx *Tx) error {
		got, err := tx.GetAccount(ctx, "t1", "a1")
		require.NoError(t, err)
		assert.Equal(t, "1010", got.Code)
		assert.Equal(t, model.AccountTypeAsset, got.Type)
		assert.Equal(t, "Current Asset", got.SubType)
		assert.True(t, got.Balance.Equal(dec("125.50")))
		assert.True(t, got.Active)

		byCode, err := tx.FindAccountByCode(ctx, "t1", "1010")
		require.NoError(t, err)
		assert.Equal(t, "a1", byCode.ID)

		_, err = tx.GetAccount(ctx, "t2", "a1")
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	}))
}

func TestAccountCodeUniquePerTenant(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.InTx(ctx, func(tx *Tx) error {
		require.NoError(t, tx.InsertAccount(ctx, testAccount("a1", "t1", "1010", model.AccountTypeAsset)))
		require.NoError(t, tx.InsertAccount(ctx, testAccount("a2", "t2", "1010", model.AccountTypeAsset)))
		// Empty codes never collide.
		require.NoError(t, tx.InsertAccount(ctx, testAccount("a3", "t1", "", model.AccountTypeAsset)))
		require.NoError(t, tx.InsertAccount(ctx, testAccount("a4", "t1", "", model.AccountTypeAsset)))
		return tx.InsertAccount(ctx, testAccount("a5", "t1", "1010", model.AccountTypeAsset))
	})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestAddToBalance(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.InTx(ctx, func(tx *Tx) error {
		return tx.InsertAccount(ctx, testAccount("a1", "t1", "", model.AccountTypeAsset))
	}))

	require.NoError(t, db.InTx(ctx, func(tx *Tx) error {
		bal, err := tx.AddToBalance(ctx, "t1", "a1", dec("100.25"))
		require.NoError(t, err)
		assert.True(t, bal.Equal(dec("100.25")))

		bal, err = tx.AddToBalance(ctx, "t1", "a1", dec("-40.05"))
		require.NoError(t, err)
		assert.True(t, bal.Equal(dec("60.20")))

		_, err = tx.AddToBalance(ctx, "t2", "a1", dec("1"))
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	}))
}

func TestInTx_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.InTx(ctx, func(tx *Tx) error {
		require.NoError(t, tx.InsertAccount(ctx, testAccount("a1", "t1", "", model.AccountTypeAsset)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, db.InTx(ctx, func(tx *Tx) error {
		n, err := tx.CountAccounts(ctx, "t1")
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	}))
}

func TestInTx_RollsBackOnPanic(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = db.InTx(ctx, func(tx *Tx) error {
			_ = tx.InsertAccount(ctx, testAccount("a1", "t1", "", model.AccountTypeAsset))
			panic("kaboom")
		})
	})

	require.NoError(t, db.InTx(ctx, func(tx *Tx) error {
		n, err := tx.CountAccounts(ctx, "t1")
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	}))
}

func TestInTx_ExpiredContext(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	called := false
	err := db.InTx(ctx, func(tx *Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, apperr.ErrTimeout)
	assert.False(t, called)
}

func TestInTx_CanceledMidway(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := db.InTx(ctx, func(tx *Tx) error {
		if err := tx.InsertAccount(ctx, testAccount("a1", "t1", "", model.AccountTypeAsset)); err != nil {
			return err
		}
		cancel()
		_, err := tx.AddToBalance(ctx, "t1", "a1", dec("10"))
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrTimeout)

	require.NoError(t, db.InTx(context.Background(), func(tx *Tx) error {
		n, err := tx.CountAccounts(context.Background(), "t1")
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	}))
}

func TestNextInvoiceNumber_PerTenant(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var got []int
	for _, tenant := range []string{"t1", "t1", "t2", "t1", "t2"} {
		require.NoError(t, db.InTx(ctx, func(tx *Tx) error {
			n, err := tx.NextInvoiceNumber(ctx, tenant)
			got = append(got, n)
			return err
		}))
	}
	assert.Equal(t, []int{1, 2, 1, 3, 2}, got)
}

func TestNextInvoiceNumber_RolledBackNumberIsReused(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_ = db.InTx(ctx, func(tx *Tx) error {
		_, _ = tx.NextInvoiceNumber(ctx, "t1")
		return errors.New("abort")
	})

	require.NoError(t, db.InTx(ctx, func(tx *Tx) error {
		n, err := tx.NextInvoiceNumber(ctx, "t1")
		assert.Equal(t, 1, n)
		return err
	}))
}

func seedInvoice(t *testing.T, db *DB) model.Invoice {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	inv := model.Invoice{
		ID: "inv1", TenantID: "t1", Number: "INV-001", CustomerID: "c1",
		IssueDate: date(2025, 3, 1), DueDate: date(2025, 3, 31), Status: model.InvoiceDraft,
		TaxRate: dec("0.15"), GSTInclusive: false,
		Subtotal: dec("3000"), TaxAmount: dec("450"), Total: dec("3450"), PaidAmount: decimal.Zero,
		CreatedAt: now, UpdatedAt: now,
		Items: []model.InvoiceItem{
			{ID: "it1", Position: 0, Description: "Design", Quantity: dec("2"), UnitPrice: dec("1000"), Total: dec("2000"), TaxRate: dec("0.15"), TaxAmount: dec("300")},
			{ID: "it2", Position: 1, Description: "Build", Quantity: dec("1"), UnitPrice: dec("1000"), Total: dec("1000"), TaxRate: dec("0.15"), TaxAmount: dec("150")},
		},
	}
	require.NoError(t, db.InTx(ctx, func(tx *Tx) error {
		if err := tx.InsertCustomer(ctx, model.Customer{ID: "c1", TenantID: "t1", Name: "Acme Ltd", PaymentTerms: 30, CreatedAt: now}); err != nil {
			return err
		}
		return tx.InsertInvoice(ctx, inv)
	}))
	return inv
}

func TestInvoiceRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedInvoice(t, db)

	require.NoError(t, db.InTx(ctx, func(tx *Tx) error {
		got, err := tx.GetInvoice(ctx, "t1", "inv1")
		require.NoError(t, err)
		assert.Equal(t, "INV-001", got.Number)
		assert.True(t, got.Total.Equal(dec("3450")))
		assert.Nil(t, got.PaidDate)
		require.Len(t, got.Items, 2)
		assert.Equal(t, "Design", got.Items[0].Description)
		assert.True(t, got.Items[1].TaxAmount.Equal(dec("150")))

		paid := date(2025, 3, 20)
		got.PaidAmount = got.Total
		got.PaidDate = &paid
		got.Status = model.InvoicePaid
		require.NoError(t, tx.UpdateInvoice(ctx, got))

		again, err := tx.GetInvoice(ctx, "t1", "inv1")
		require.NoError(t, err)
		require.NotNil(t, again.PaidDate)
		assert.Equal(t, paid, *again.PaidDate)
		assert.Equal(t, model.InvoicePaid, again.Status)

		_, err = tx.GetInvoice(ctx, "t2", "inv1")
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	}))
}

func TestInvoiceDeleteCascadesItems(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedInvoice(t, db)

	require.NoError(t, db.InTx(ctx, func(tx *Tx) error {
		require.NoError(t, tx.DeleteInvoice(ctx, "t1", "inv1"))
		items, err := tx.listItems(ctx, "inv1")
		require.NoError(t, err)
		assert.Empty(t, items)
		return nil
	}))
}

func TestListInvoices_Search(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedInvoice(t, db)

	require.NoError(t, db.InTx(ctx, func(tx *Tx) error {
		invs, total, err := tx.ListInvoices(ctx, "t1", InvoiceFilter{Search: "acme"})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, invs, 1)

		_, total, err = tx.ListInvoices(ctx, "t1", InvoiceFilter{Status: model.InvoicePaid})
		require.NoError(t, err)
		assert.Zero(t, total)
		return nil
	}))
}

func TestSalePostingUniquePerInvoice(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedInvoice(t, db)

	now := time.Now().UTC()
	sale := func(id string) model.Transaction {
		return model.Transaction{
			ID: id, TenantID: "t1", Date: date(2025, 3, 1), Description: "sale", Amount: dec("3450"),
			DebitAccountID: "ar", CreditAccountID: "rev", InvoiceID: "inv1", Kind: model.KindSale,
			CreatedAt: now, UpdatedAt: now,
		}
	}

	require.NoError(t, db.InTx(ctx, func(tx *Tx) error {
		require.NoError(t, tx.InsertAccount(ctx, testAccount("ar", "t1", "1100", model.AccountTypeAsset)))
		require.NoError(t, tx.InsertAccount(ctx, testAccount("rev", "t1", "4000", model.AccountTypeRevenue)))
		return tx.InsertTransaction(ctx, sale("s1"))
	}))

	err := db.InTx(ctx, func(tx *Tx) error {
		return tx.InsertTransaction(ctx, sale("s2"))
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, db.InTx(ctx, func(tx *Tx) error {
		n, err := tx.CountInvoiceTransactions(ctx, "inv1", model.KindSale)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		refs, err := tx.CountAccountReferences(ctx, "t1", "ar")
		require.NoError(t, err)
		assert.Equal(t, 1, refs)
		return nil
	}))
}

func TestListTransactions_Filters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, db.InTx(ctx, func(tx *Tx) error {
		require.NoError(t, tx.InsertAccount(ctx, testAccount("bank", "t1", "", model.AccountTypeAsset)))
		require.NoError(t, tx.InsertAccount(ctx, testAccount("rent", "t1", "", model.AccountTypeExpense)))
		for i, d := range []time.Time{date(2025, 1, 5), date(2025, 2, 5), date(2025, 3, 5)} {
			err := tx.InsertTransaction(ctx, model.Transaction{
				ID: string(rune('a' + i)), TenantID: "t1", Date: d, Description: "rent", Amount: dec("100"),
				DebitAccountID: "rent", CreditAccountID: "bank", Kind: model.KindManual,
				CreatedAt: now, UpdatedAt: now,
			})
			require.NoError(t, err)
		}
		return nil
	}))

	require.NoError(t, db.InTx(ctx, func(tx *Tx) error {
		txns, err := tx.ListTransactions(ctx, "t1", TransactionFilter{From: date(2025, 2, 1), To: date(2025, 3, 31)})
		require.NoError(t, err)
		require.Len(t, txns, 2)
		assert.Equal(t, date(2025, 3, 5), txns[0].Date)

		txns, err = tx.ListTransactions(ctx, "t1", TransactionFilter{Limit: 1, Offset: 2})
		require.NoError(t, err)
		require.Len(t, txns, 1)
		assert.Equal(t, date(2025, 1, 5), txns[0].Date)

		txns, err = tx.ListTransactions(ctx, "t2", TransactionFilter{})
		require.NoError(t, err)
		assert.Empty(t, txns)
		return nil
	}))
}

func TestAuditLog(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.InTx(ctx, func(tx *Tx) error {
		require.NoError(t, tx.InsertAuditEntry(ctx, model.AuditEntry{TenantID: "t1", Timestamp: tx.Now(), Action: "account.create", EntityID: "a1"}))
		require.NoError(t, tx.InsertAuditEntry(ctx, model.AuditEntry{TenantID: "t2", Timestamp: tx.Now(), Action: "account.create", EntityID: "a2"}))
		return nil
	}))

	require.NoError(t, db.InTx(ctx, func(tx *Tx) error {
		entries, err := tx.ListAuditEntries(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "a1", entries[0].EntityID)
		return nil
	}))
}
