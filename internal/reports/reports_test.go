package reports

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/books/internal/accounts"
	"github.com/cleared-dev/books/internal/apperr"
	"github.com/cleared-dev/books/internal/journal"
	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	reporter *Reporter
	accts    *accounts.Service
	journal  *journal.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "books.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	accts := accounts.NewService(db, zerolog.Nop())
	_, err = accts.SetupDefaults(context.Background(), "t1")
	require.NoError(t, err)
	return &fixture{reporter: New(db), accts: accts, journal: journal.NewService(db, accts, zerolog.Nop())}
}

func (f *fixture) post(t *testing.T, day time.Time, debitCode, creditCode, amount string) {
	t.Helper()
	ctx := context.Background()
	d, err := f.accts.FindByCode(ctx, "t1", debitCode)
	require.NoError(t, err)
	c, err := f.accts.FindByCode(ctx, "t1", creditCode)
	require.NoError(t, err)
	_, err = f.journal.Create(ctx, "t1", journal.PostParams{
		Date: day, Description: "test", Amount: dec(amount), DebitAccountID: d.ID, CreditAccountID: c.ID,
	})
	require.NoError(t, err)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	f.post(t, date(2025, 1, 5), "1010", "3000", "10000") // owner investment
	f.post(t, date(2025, 1, 10), "1010", "4000", "1000") // cash sale
	f.post(t, date(2025, 2, 1), "6100", "1010", "300")   // rent
	f.post(t, date(2025, 2, 3), "1500", "2100", "2000")  // equipment on card

	sum, err := f.reporter.Summary(context.Background(), "t1")
	require.NoError(t, err)

	assert.True(t, sum.Totals[model.AccountTypeAsset].Equal(dec("12700")))
	assert.True(t, sum.Totals[model.AccountTypeLiability].Equal(dec("2000")))
	assert.True(t, sum.Totals[model.AccountTypeEquity].Equal(dec("10000")))
	assert.True(t, sum.NetIncome.Equal(dec("700")))
	assert.True(t, sum.Cash.Equal(dec("10700")))
	assert.Equal(t, 4, sum.Transactions)
	assert.True(t, sum.Balanced(), "imbalance %s", sum.Imbalance)
}

func TestSummary_EmptyTenant(t *testing.T) {
	f := newFixture(t)
	sum, err := f.reporter.Summary(context.Background(), "t2")
	require.NoError(t, err)
	assert.True(t, sum.Balanced())
	assert.Zero(t, sum.Transactions)
	assert.True(t, sum.Totals[model.AccountTypeRevenue].IsZero())
}

func TestProfitAndLoss(t *testing.T) {
	f := newFixture(t)
	f.post(t, date(2025, 1, 10), "1010", "4000", "1000")
	f.post(t, date(2025, 2, 10), "1100", "4100", "500")
	f.post(t, date(2025, 2, 12), "6100", "1010", "300")
	f.post(t, date(2025, 2, 20), "1010", "6100", "50") // rent refund
	f.post(t, date(2025, 3, 1), "6000", "1010", "80")

	pl, err := f.reporter.ProfitAndLoss(context.Background(), "t1", date(2025, 2, 1), date(2025, 2, 28))
	require.NoError(t, err)

	require.Len(t, pl.Revenue, 1)
	assert.Equal(t, "4100", pl.Revenue[0].Code)
	assert.True(t, pl.TotalRevenue.Equal(dec("500")))
	require.Len(t, pl.Expenses, 1)
	assert.True(t, pl.Expenses[0].Amount.Equal(dec("250")))
	assert.True(t, pl.NetIncome.Equal(dec("250")))

	all, err := f.reporter.ProfitAndLoss(context.Background(), "t1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.True(t, all.TotalRevenue.Equal(dec("1500")))
	assert.True(t, all.TotalExpenses.Equal(dec("330")))
}

func TestProfitAndLoss_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.reporter.ProfitAndLoss(context.Background(), "t1", date(2025, 3, 1), date(2025, 2, 1))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.reporter.Summary(context.Background(), "")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}
