package invoice

import "github.com/cleared-dev/books/internal/model"

// transitions lists the statuses each status may move to. PAID is reached
// only through payments and CANCELLED is terminal.
var transitions = map[model.InvoiceStatus][]model.InvoiceStatus{
	model.InvoiceDraft:   {model.InvoiceSent, model.InvoicePaid, model.InvoiceCancelled},
	model.InvoiceSent:    {model.InvoiceViewed, model.InvoiceOverdue, model.InvoicePaid, model.InvoiceCancelled},
	model.InvoiceViewed:  {model.InvoiceOverdue, model.InvoicePaid, model.InvoiceCancelled},
	model.InvoiceOverdue: {model.InvoicePaid, model.InvoiceCancelled},
}

// CanTransition reports whether an invoice may move from one status to
// another.
func CanTransition(from, to model.InvoiceStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Open reports whether an invoice in status s can still take payments.
func Open(s model.InvoiceStatus) bool {
	return CanTransition(s, model.InvoicePaid)
}
