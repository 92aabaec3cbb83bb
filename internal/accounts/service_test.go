package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/books/internal/apperr"
	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(t *testing.T) (*Service, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "books.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(db, zerolog.Nop()), db
}

func TestLogsCarryComponent(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "books.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	var buf bytes.Buffer
	svc := NewService(db, zerolog.New(&buf))

	mustCreate(t, svc, "t1", "1010", "Bank", model.AccountTypeAsset)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "accounts", line["component"])
	assert.Equal(t, "account created", line["message"])
}

func mustCreate(t *testing.T, svc *Service, tenant, code, name string, typ model.AccountType) model.Account {
	t.Helper()
	acct, err := svc.Create(context.Background(), tenant, CreateParams{Code: code, Name: name, Type: typ})
	require.NoError(t, err)
	return acct
}

// insertPosting stores a transaction row without touching balances so
// reference checks have something to find.
func insertPosting(t *testing.T, db *store.DB, tenant, debitID, creditID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.InTx(ctx, func(tx *store.Tx) error {
		return tx.InsertTransaction(ctx, model.Transaction{
			ID: "txn-" + debitID + "-" + creditID, TenantID: tenant,
			Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Description: "ref", Amount: dec("1.00"),
			DebitAccountID: debitID, CreditAccountID: creditID, Kind: model.KindManual,
			CreatedAt: tx.Now(), UpdatedAt: tx.Now(),
		})
	}))
}

func TestBalanceEffect(t *testing.T) {
	amt := dec("100.00")
	tests := []struct {
		typ    model.AccountType
		debit  string
		credit string
	}{
		{model.AccountTypeAsset, "100", "-100"},
		{model.AccountTypeExpense, "100", "-100"},
		{model.AccountTypeLiability, "-100", "100"},
		{model.AccountTypeEquity, "-100", "100"},
		{model.AccountTypeRevenue, "-100", "100"},
	}
	for _, tt := range tests {
		assert.True(t, BalanceEffect(tt.typ, true, amt).Equal(dec(tt.debit)), "%s debit", tt.typ)
		assert.True(t, BalanceEffect(tt.typ, false, amt).Equal(dec(tt.credit)), "%s credit", tt.typ)
	}
}

func TestPostingEffects_BankAndRevenue(t *testing.T) {
	d, c := PostingEffects(model.AccountTypeAsset, model.AccountTypeRevenue, dec("1000"))
	assert.True(t, d.Equal(dec("1000")))
	assert.True(t, c.Equal(dec("1000")))
}

func TestIsCents(t *testing.T) {
	assert.True(t, IsCents(dec("10")))
	assert.True(t, IsCents(dec("10.5")))
	assert.True(t, IsCents(dec("10.55")))
	assert.True(t, IsCents(dec("-3.10")))
	assert.False(t, IsCents(dec("10.555")))
}

func TestCreate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	acct, err := svc.Create(ctx, "t1", CreateParams{
		Code: "1010", Name: " Business Bank Account ", Type: model.AccountTypeAsset,
		SubType: "Current Asset", OpeningBalance: dec("500.00"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, acct.ID)
	assert.Equal(t, "Business Bank Account", acct.Name)
	assert.True(t, acct.Active)

	got, err := svc.Get(ctx, "t1", acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("500")))
	assert.Equal(t, "Current Asset", got.SubType)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		p    CreateParams
	}{
		{"empty name", CreateParams{Name: "  ", Type: model.AccountTypeAsset}},
		{"bad type", CreateParams{Name: "X", Type: "asset"}},
		{"sub-cent opening balance", CreateParams{Name: "X", Type: model.AccountTypeAsset, OpeningBalance: dec("1.001")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "t1", tt.p)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	_, err := svc.Create(ctx, "", CreateParams{Name: "X", Type: model.AccountTypeAsset})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestCreate_DuplicateCode(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreate(t, svc, "t1", "1010", "Bank", model.AccountTypeAsset)

	_, err := svc.Create(context.Background(), "t1", CreateParams{Code: "1010", Name: "Other", Type: model.AccountTypeAsset})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// Same code under another tenant is fine.
	mustCreate(t, svc, "t2", "1010", "Bank", model.AccountTypeAsset)
}

func TestGet_TenantIsolation(t *testing.T) {
	svc, _ := newTestService(t)
	acct := mustCreate(t, svc, "t1", "1010", "Bank", model.AccountTypeAsset)

	_, err := svc.Get(context.Background(), "t2", acct.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.ApplyDelta(context.Background(), "t2", acct.ID, dec("10"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListAndByType(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustCreate(t, svc, "t1", "4000", "Sales", model.AccountTypeRevenue)
	mustCreate(t, svc, "t1", "1010", "Bank", model.AccountTypeAsset)
	mustCreate(t, svc, "t1", "1000", "Cash", model.AccountTypeAsset)
	mustCreate(t, svc, "t2", "1000", "Cash", model.AccountTypeAsset)

	all, err := svc.List(ctx, "t1", store.AccountFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "1000", all[0].Code)
	assert.Equal(t, "1010", all[1].Code)
	assert.Equal(t, "4000", all[2].Code)

	assets, err := svc.ByType(ctx, "t1", model.AccountTypeAsset)
	require.NoError(t, err)
	assert.Len(t, assets, 2)
}

func TestApplyDelta(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	acct := mustCreate(t, svc, "t1", "1010", "Bank", model.AccountTypeAsset)

	bal, err := svc.ApplyDelta(ctx, "t1", acct.ID, dec("250.00"))
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec("250")))

	bal, err = svc.ApplyDelta(ctx, "t1", acct.ID, dec("-75.50"))
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec("174.50")))

	_, err = svc.ApplyDelta(ctx, "t1", "missing", dec("1"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestApplyDelta_ConcurrentIncrementsAreNotLost(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	acct := mustCreate(t, svc, "t1", "1010", "Bank", model.AccountTypeAsset)

	const workers = 25
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			_, err := svc.ApplyDelta(ctx, "t1", acct.ID, dec("1.01"))
			return err
		})
	}
	require.NoError(t, g.Wait())

	got, err := svc.Get(ctx, "t1", acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("25.25")), "balance %s", got.Balance)
}

func TestApplyDelta_Timeout(t *testing.T) {
	svc, _ := newTestService(t)
	acct := mustCreate(t, svc, "t1", "1010", "Bank", model.AccountTypeAsset)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.ApplyDelta(ctx, "t1", acct.ID, dec("10"))
	assert.ErrorIs(t, err, apperr.ErrTimeout)

	got, err := svc.Get(context.Background(), "t1", acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())
}

func TestPostAndReverse(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	bank := mustCreate(t, svc, "t1", "1010", "Bank", model.AccountTypeAsset)
	rent := mustCreate(t, svc, "t1", "6100", "Rent", model.AccountTypeExpense)

	require.NoError(t, db.InTx(ctx, func(tx *store.Tx) error {
		return svc.PostTx(ctx, tx, rent, bank, dec("1200"))
	}))
	gotBank, _ := svc.Get(ctx, "t1", bank.ID)
	gotRent, _ := svc.Get(ctx, "t1", rent.ID)
	assert.True(t, gotBank.Balance.Equal(dec("-1200")))
	assert.True(t, gotRent.Balance.Equal(dec("1200")))

	require.NoError(t, db.InTx(ctx, func(tx *store.Tx) error {
		return svc.ReverseTx(ctx, tx, rent, bank, dec("1200"))
	}))
	gotBank, _ = svc.Get(ctx, "t1", bank.ID)
	gotRent, _ = svc.Get(ctx, "t1", rent.ID)
	assert.True(t, gotBank.Balance.IsZero())
	assert.True(t, gotRent.Balance.IsZero())
}

func TestUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	acct := mustCreate(t, svc, "t1", "1010", "Bank", model.AccountTypeAsset)

	name := "Main Bank"
	typ := model.AccountTypeLiability
	got, err := svc.Update(ctx, "t1", acct.ID, UpdateParams{Name: &name, Type: &typ})
	require.NoError(t, err)
	assert.Equal(t, "Main Bank", got.Name)
	assert.Equal(t, model.AccountTypeLiability, got.Type)

	empty := ""
	_, err = svc.Update(ctx, "t1", acct.ID, UpdateParams{Name: &empty})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Update(ctx, "t2", acct.ID, UpdateParams{Name: &name})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdate_ReferencedAccount(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	bank := mustCreate(t, svc, "t1", "1010", "Bank", model.AccountTypeAsset)
	rent := mustCreate(t, svc, "t1", "6100", "Rent", model.AccountTypeExpense)
	insertPosting(t, db, "t1", rent.ID, bank.ID)

	typ := model.AccountTypeEquity
	_, err := svc.Update(ctx, "t1", bank.ID, UpdateParams{Type: &typ})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	inactive := false
	_, err = svc.Update(ctx, "t1", bank.ID, UpdateParams{Active: &inactive})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// Renaming a referenced account is fine.
	name := "Operating Account"
	_, err = svc.Update(ctx, "t1", bank.ID, UpdateParams{Name: &name})
	require.NoError(t, err)
}

func TestDelete(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	bank := mustCreate(t, svc, "t1", "1010", "Bank", model.AccountTypeAsset)
	rent := mustCreate(t, svc, "t1", "6100", "Rent", model.AccountTypeExpense)
	spare := mustCreate(t, svc, "t1", "6800", "General", model.AccountTypeExpense)
	insertPosting(t, db, "t1", rent.ID, bank.ID)

	err := svc.Delete(ctx, "t1", bank.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	require.NoError(t, svc.Delete(ctx, "t1", spare.ID))
	_, err = svc.Get(ctx, "t1", spare.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = svc.Delete(ctx, "t1", spare.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSetupDefaults(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	n, err := svc.SetupDefaults(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 24, n)

	n, err = svc.SetupDefaults(ctx, "t1")
	require.NoError(t, err)
	assert.Zero(t, n)

	accts, err := svc.List(ctx, "t1", store.AccountFilter{})
	require.NoError(t, err)
	assert.Len(t, accts, 24)

	ar, err := svc.FindByCode(ctx, "t1", "1100")
	require.NoError(t, err)
	assert.Equal(t, "Accounts Receivable", ar.Name)
	assert.Equal(t, model.AccountTypeAsset, ar.Type)

	require.NoError(t, db.InTx(ctx, func(tx *store.Tx) error {
		cats, err := tx.ListCategories(ctx, "t1")
		require.NoError(t, err)
		assert.Len(t, cats, 6)
		return nil
	}))
}

func TestDefaultChart_TypesValid(t *testing.T) {
	seen := make(map[string]bool)
	for _, p := range DefaultChart() {
		assert.True(t, p.Type.Valid(), p.Name)
		assert.False(t, seen[p.Code], "duplicate code %s", p.Code)
		seen[p.Code] = true
	}
}

func TestResolveRole(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	_, err := svc.SetupDefaults(ctx, "t1")
	require.NoError(t, err)

	require.NoError(t, db.InTx(ctx, func(tx *store.Tx) error {
		ar, err := svc.ResolveRoleTx(ctx, tx, "t1", RoleReceivable, RoleCodes{})
		require.NoError(t, err)
		assert.Equal(t, "1100", ar.Code)

		rev, err := svc.ResolveRoleTx(ctx, tx, "t1", RoleRevenue, RoleCodes{})
		require.NoError(t, err)
		assert.Equal(t, "4000", rev.Code)

		cash, err := svc.ResolveRoleTx(ctx, tx, "t1", RoleCash, RoleCodes{})
		require.NoError(t, err)
		assert.Equal(t, "1010", cash.Code)

		// A configured code wins over name matching.
		rev, err = svc.ResolveRoleTx(ctx, tx, "t1", RoleRevenue, RoleCodes{Revenue: "4100"})
		require.NoError(t, err)
		assert.Equal(t, "Service Revenue", rev.Name)

		// A code naming the wrong type falls back to name matching.
		cash, err = svc.ResolveRoleTx(ctx, tx, "t1", RoleCash, RoleCodes{Cash: "4000"})
		require.NoError(t, err)
		assert.Equal(t, "1010", cash.Code)

		_, err = svc.ResolveRoleTx(ctx, tx, "t2", RoleReceivable, RoleCodes{})
		assert.ErrorIs(t, err, apperr.ErrValidation)
		return nil
	}))
}

func TestCheckRole(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	bank := mustCreate(t, svc, "t1", "1010", "Bank", model.AccountTypeAsset)
	rent := mustCreate(t, svc, "t1", "6100", "Rent", model.AccountTypeExpense)

	require.NoError(t, db.InTx(ctx, func(tx *store.Tx) error {
		_, err := svc.CheckRoleTx(ctx, tx, "t1", bank.ID, RoleCash)
		require.NoError(t, err)

		_, err = svc.CheckRoleTx(ctx, tx, "t1", rent.ID, RoleCash)
		assert.ErrorIs(t, err, apperr.ErrValidation)

		_, err = svc.CheckRoleTx(ctx, tx, "t1", "missing", RoleCash)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		return nil
	}))
}
