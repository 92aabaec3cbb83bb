package model

import "time"

// Customer is the minimal customer record invoices reference.
type Customer struct {
	ID           string
	TenantID     string
	Name         string
	Email        string
	PaymentTerms int // days until an invoice falls due
	CreatedAt    time.Time
}

// Category is an optional label on a transaction.
type Category struct {
	ID        string
	TenantID  string
	Name      string
	Color     string
	CreatedAt time.Time
}

// AuditEntry is one row in the tenant's audit log.
type AuditEntry struct {
	Seq       int64
	TenantID  string
	Timestamp time.Time
	Action    string // e.g. "invoice.record_payment"
	EntityID  string
	Details   string
}
