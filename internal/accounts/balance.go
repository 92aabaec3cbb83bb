package accounts

import (
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/books/internal/model"
)

// BalanceEffect returns the signed change a posting leg makes to an account
// of type t. Debits increase ASSET and EXPENSE accounts and decrease the
// rest; credits do the opposite. Every balance mutation in the system goes
// through this function.
func BalanceEffect(t model.AccountType, isDebitLeg bool, amount decimal.Decimal) decimal.Decimal {
	if t.DebitNormal() == isDebitLeg {
		return amount
	}
	return amount.Neg()
}

// PostingEffects returns the balance changes a posting of amount makes to
// its debit and credit accounts.
func PostingEffects(debit, credit model.AccountType, amount decimal.Decimal) (debitDelta, creditDelta decimal.Decimal) {
	return BalanceEffect(debit, true, amount), BalanceEffect(credit, false, amount)
}
