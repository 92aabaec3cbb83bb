// Package reports derives read-only financial summaries from the ledger.
package reports

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/books/internal/accounts"
	"github.com/cleared-dev/books/internal/apperr"
	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/store"
)

// Reporter builds reports for a tenant.
type Reporter struct {
	db *store.DB
}

// New creates a Reporter.
func New(db *store.DB) *Reporter {
	return &Reporter{db: db}
}

// Summary is a point-in-time view of a tenant's books.
type Summary struct {
	Totals       map[model.AccountType]decimal.Decimal
	NetIncome    decimal.Decimal // revenue - expenses
	Cash         decimal.Decimal // cash and bank accounts
	Transactions int
	// Imbalance is assets - liabilities - equity - net income. It is zero
	// when the books balance.
	Imbalance decimal.Decimal
}

// Balanced reports whether the accounting identity holds.
func (s Summary) Balanced() bool {
	return s.Imbalance.IsZero()
}

// Summary totals every account balance by type.
func (r *Reporter) Summary(ctx context.Context, tenantID string) (Summary, error) {
	const op = "reports.Summary"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return Summary{}, err
	}

	sum := Summary{Totals: make(map[model.AccountType]decimal.Decimal, len(model.AccountTypes)), Cash: decimal.Zero}
	for _, t := range model.AccountTypes {
		sum.Totals[t] = decimal.Zero
	}
	err := r.db.InTx(ctx, func(tx *store.Tx) error {
		accts, err := tx.ListAccounts(ctx, tenantID, store.AccountFilter{})
		if err != nil {
			return err
		}
		for _, a := range accts {
			sum.Totals[a.Type] = sum.Totals[a.Type].Add(a.Balance)
			if a.Type == model.AccountTypeAsset && isCash(a.Name) {
				sum.Cash = sum.Cash.Add(a.Balance)
			}
		}
		txns, err := tx.ListTransactions(ctx, tenantID, store.TransactionFilter{})
		if err != nil {
			return err
		}
		sum.Transactions = len(txns)
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	sum.NetIncome = sum.Totals[model.AccountTypeRevenue].Sub(sum.Totals[model.AccountTypeExpense])
	sum.Imbalance = sum.Totals[model.AccountTypeAsset].
		Sub(sum.Totals[model.AccountTypeLiability]).
		Sub(sum.Totals[model.AccountTypeEquity]).
		Sub(sum.NetIncome)
	return sum, nil
}

func isCash(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "cash") || strings.Contains(n, "bank")
}

// Line is one account's activity in a period.
type Line struct {
	AccountID string
	Code      string
	Name      string
	Amount    decimal.Decimal
}

// ProfitAndLoss is revenue and expense activity over a period.
type ProfitAndLoss struct {
	From, To      time.Time
	Revenue       []Line
	Expenses      []Line
	TotalRevenue  decimal.Decimal
	TotalExpenses decimal.Decimal
	NetIncome     decimal.Decimal
}

// ProfitAndLoss sums the effect of postings dated within [from, to] on
// revenue and expense accounts. Zero bounds are open.
func (r *Reporter) ProfitAndLoss(ctx context.Context, tenantID string, from, to time.Time) (ProfitAndLoss, error) {
	const op = "reports.ProfitAndLoss"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return ProfitAndLoss{}, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return ProfitAndLoss{}, apperr.Validation(op, "period end %s is before start %s", to.Format(time.DateOnly), from.Format(time.DateOnly))
	}

	pl := ProfitAndLoss{From: from, To: to, TotalRevenue: decimal.Zero, TotalExpenses: decimal.Zero}
	err := r.db.InTx(ctx, func(tx *store.Tx) error {
		accts, err := tx.ListAccounts(ctx, tenantID, store.AccountFilter{})
		if err != nil {
			return err
		}
		byID := make(map[string]model.Account, len(accts))
		for _, a := range accts {
			byID[a.ID] = a
		}

		txns, err := tx.ListTransactions(ctx, tenantID, store.TransactionFilter{From: from, To: to})
		if err != nil {
			return err
		}
		activity := make(map[string]decimal.Decimal)
		for _, t := range txns {
			for _, leg := range []struct {
				id    string
				debit bool
			}{{t.DebitAccountID, true}, {t.CreditAccountID, false}} {
				a := byID[leg.id]
				if a.Type != model.AccountTypeRevenue && a.Type != model.AccountTypeExpense {
					continue
				}
				activity[a.ID] = activity[a.ID].Add(accounts.BalanceEffect(a.Type, leg.debit, t.Amount))
			}
		}

		// accts is ordered by code within each type.
		for _, a := range accts {
			amt, ok := activity[a.ID]
			if !ok {
				continue
			}
			line := Line{AccountID: a.ID, Code: a.Code, Name: a.Name, Amount: amt}
			if a.Type == model.AccountTypeRevenue {
				pl.Revenue = append(pl.Revenue, line)
				pl.TotalRevenue = pl.TotalRevenue.Add(amt)
			} else {
				pl.Expenses = append(pl.Expenses, line)
				pl.TotalExpenses = pl.TotalExpenses.Add(amt)
			}
		}
		return nil
	})
	if err != nil {
		return ProfitAndLoss{}, err
	}
	pl.NetIncome = pl.TotalRevenue.Sub(pl.TotalExpenses)
	return pl, nil
}
