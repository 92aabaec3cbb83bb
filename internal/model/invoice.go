package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "DRAFT"
	InvoiceSent      InvoiceStatus = "SENT"
	InvoiceViewed    InvoiceStatus = "VIEWED"
	InvoiceOverdue   InvoiceStatus = "OVERDUE"
	InvoicePaid      InvoiceStatus = "PAID"
	InvoiceCancelled InvoiceStatus = "CANCELLED"
)

// Valid reports whether s is a known invoice status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoiceViewed, InvoiceOverdue, InvoicePaid, InvoiceCancelled:
		return true
	}
	return false
}

// Invoice is a bill issued to a customer.
type Invoice struct {
	ID            string
	TenantID      string
	Number        string // "INV-001", unique per tenant
	CustomerID    string
	IssueDate     time.Time
	DueDate       time.Time
	Status        InvoiceStatus
	Items         []InvoiceItem
	TaxRate       decimal.Decimal // 0 when exempt
	GSTInclusive  bool
	ExemptFromGST bool
	Subtotal      decimal.Decimal
	TaxAmount     decimal.Decimal
	Total         decimal.Decimal
	PaidAmount    decimal.Decimal
	PaidDate      *time.Time
	Notes         string
	Terms         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Outstanding returns the unpaid remainder of the invoice.
func (inv Invoice) Outstanding() decimal.Decimal {
	return inv.Total.Sub(inv.PaidAmount)
}

// InvoiceItem is one line on an invoice.
type InvoiceItem struct {
	ID          string
	InvoiceID   string
	Position    int
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal // quantity x unit price, rounded to cents
	TaxRate     decimal.Decimal
	TaxAmount   decimal.Decimal
}
