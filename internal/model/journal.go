package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PostingKind records why a transaction exists.
type PostingKind string

const (
	KindManual       PostingKind = "manual"
	KindSale         PostingKind = "sale"
	KindPayment      PostingKind = "payment"
	KindSaleReversal PostingKind = "sale_reversal"
)

// Valid reports whether k is a known posting kind.
func (k PostingKind) Valid() bool {
	switch k {
	case KindManual, KindSale, KindPayment, KindSaleReversal:
		return true
	}
	return false
}

// Transaction is a single double-entry posting: one debit leg and one
// credit leg of the same amount.
type Transaction struct {
	ID              string
	TenantID        string
	Date            time.Time
	Description     string
	Reference       string
	Amount          decimal.Decimal // always > 0
	DebitAccountID  string
	CreditAccountID string
	CategoryID      string // optional
	InvoiceID       string // set when an invoice action created the posting
	Kind            PostingKind
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// InvoiceLinked reports whether an invoice action created this posting.
func (t Transaction) InvoiceLinked() bool {
	return t.InvoiceID != "" || (t.Kind != "" && t.Kind != KindManual)
}
