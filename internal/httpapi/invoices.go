package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/books/internal/gst"
	"github.com/cleared-dev/books/internal/invoice"
	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/store"
)

// LineJSON is one invoice line as sent by clients.
type LineJSON struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// ItemJSON is one stored invoice line with its computed amounts.
type ItemJSON struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
}

// InvoiceJSON is the wire form of an invoice.
type InvoiceJSON struct {
	ID            string              `json:"id"`
	Number        string              `json:"number"`
	CustomerID    string              `json:"customer_id"`
	IssueDate     Date                `json:"issue_date"`
	DueDate       Date                `json:"due_date"`
	Status        model.InvoiceStatus `json:"status"`
	Items         []ItemJSON          `json:"items"`
	TaxRate       decimal.Decimal     `json:"tax_rate"`
	GSTInclusive  bool                `json:"gst_inclusive"`
	ExemptFromGST bool                `json:"exempt_from_gst"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	TaxAmount     decimal.Decimal     `json:"tax_amount"`
	Total         decimal.Decimal     `json:"total"`
	PaidAmount    decimal.Decimal     `json:"paid_amount"`
	Outstanding   decimal.Decimal     `json:"outstanding"`
	PaidDate      *Date               `json:"paid_date,omitempty"`
	Notes         string              `json:"notes,omitempty"`
	Terms         string              `json:"terms,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func toInvoiceJSON(inv model.Invoice) InvoiceJSON {
	out := InvoiceJSON{
		ID: inv.ID, Number: inv.Number, CustomerID: inv.CustomerID,
		IssueDate: dateOf(inv.IssueDate), DueDate: dateOf(inv.DueDate), Status: inv.Status,
		Items:   make([]ItemJSON, len(inv.Items)),
		TaxRate: inv.TaxRate, GSTInclusive: inv.GSTInclusive, ExemptFromGST: inv.ExemptFromGST,
		Subtotal: inv.Subtotal, TaxAmount: inv.TaxAmount, Total: inv.Total,
		PaidAmount: inv.PaidAmount, Outstanding: inv.Outstanding(),
		Notes: inv.Notes, Terms: inv.Terms, CreatedAt: inv.CreatedAt, UpdatedAt: inv.UpdatedAt,
	}
	for i, it := range inv.Items {
		out.Items[i] = ItemJSON{
			Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPrice,
			Total: it.Total, TaxRate: it.TaxRate, TaxAmount: it.TaxAmount,
		}
	}
	if inv.PaidDate != nil {
		d := dateOf(*inv.PaidDate)
		out.PaidDate = &d
	}
	return out
}

func toLines(in []LineJSON) []gst.Line {
	if in == nil {
		return nil
	}
	lines := make([]gst.Line, len(in))
	for i, l := range in {
		lines[i] = gst.Line{Description: l.Description, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return lines
}

// CreateInvoiceRequest is the body of POST /invoices.
type CreateInvoiceRequest struct {
	CustomerID    string           `json:"customer_id"`
	IssueDate     Date             `json:"issue_date"`
	DueDate       Date             `json:"due_date"`
	Items         []LineJSON       `json:"items"`
	TaxRate       *decimal.Decimal `json:"tax_rate"`
	GSTInclusive  *bool            `json:"gst_inclusive"`
	ExemptFromGST bool             `json:"exempt_from_gst"`
	Notes         string           `json:"notes"`
	Terms         string           `json:"terms"`
}

// EditInvoiceRequest is the body of PATCH /invoices/{id}.
type EditInvoiceRequest struct {
	CustomerID    *string          `json:"customer_id"`
	IssueDate     *Date            `json:"issue_date"`
	DueDate       *Date            `json:"due_date"`
	Items         []LineJSON       `json:"items"`
	TaxRate       *decimal.Decimal `json:"tax_rate"`
	GSTInclusive  *bool            `json:"gst_inclusive"`
	ExemptFromGST *bool            `json:"exempt_from_gst"`
	Notes         *string          `json:"notes"`
	Terms         *string          `json:"terms"`
}

// RecordSaleRequest is the optional body of POST /invoices/{id}/record-sale.
type RecordSaleRequest struct {
	ReceivableAccountID string `json:"receivable_account_id"`
	RevenueAccountID    string `json:"revenue_account_id"`
}

// RecordPaymentRequest is the body of POST /invoices/{id}/payments.
type RecordPaymentRequest struct {
	Amount              *decimal.Decimal `json:"amount"`
	Date                Date             `json:"date"`
	CashAccountID       string           `json:"cash_account_id"`
	ReceivableAccountID string           `json:"receivable_account_id"`
	Method              string           `json:"method"`
}

// SweepRequest is the optional body of POST /invoices/sweep-overdue.
type SweepRequest struct {
	AsOf Date `json:"as_of"`
}

// PostingJSON pairs an invoice with the transaction an action posted.
type PostingJSON struct {
	Invoice     InvoiceJSON     `json:"invoice"`
	Transaction TransactionJSON `json:"transaction"`
}

func (h *handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.InvoiceFilter{
		Status:     model.InvoiceStatus(q.Get("status")),
		CustomerID: q.Get("customer_id"),
		Search:     q.Get("q"),
	}
	var err error
	if f.Limit, err = queryInt(r, "limit"); err == nil {
		f.Offset, err = queryInt(r, "offset")
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.svc.Invoices.List(r.Context(), TenantFrom(r.Context()), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]InvoiceJSON, len(page.Invoices))
	for i, inv := range page.Invoices {
		out[i] = toInvoiceJSON(inv)
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": out, "total": page.Total})
}

func (h *handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if !decode(w, r, &req) {
		return
	}
	inv, err := h.svc.Invoices.Create(r.Context(), TenantFrom(r.Context()), invoice.CreateParams{
		CustomerID:    req.CustomerID,
		IssueDate:     req.IssueDate.Time,
		DueDate:       req.DueDate.Time,
		Items:         toLines(req.Items),
		TaxRate:       req.TaxRate,
		GSTInclusive:  req.GSTInclusive,
		ExemptFromGST: req.ExemptFromGST,
		Notes:         req.Notes,
		Terms:         req.Terms,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"invoice": toInvoiceJSON(inv)})
}

func (h *handler) sweepOverdue(w http.ResponseWriter, r *http.Request) {
	var req SweepRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	asOf := req.AsOf.Time
	if asOf.IsZero() {
		asOf = time.Now()
	}
	n, err := h.svc.Invoices.SweepOverdue(r.Context(), TenantFrom(r.Context()), asOf)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"flagged": n})
}

func (h *handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Invoices.Get(r.Context(), TenantFrom(r.Context()), chi.URLParam(r, "id"))
	h.respondInvoice(w, r, http.StatusOK, inv, err)
}

func (h *handler) editInvoice(w http.ResponseWriter, r *http.Request) {
	var req EditInvoiceRequest
	if !decode(w, r, &req) {
		return
	}
	inv, err := h.svc.Invoices.Edit(r.Context(), TenantFrom(r.Context()), chi.URLParam(r, "id"), invoice.EditParams{
		CustomerID:    req.CustomerID,
		IssueDate:     datePtr(req.IssueDate),
		DueDate:       datePtr(req.DueDate),
		Items:         toLines(req.Items),
		TaxRate:       req.TaxRate,
		GSTInclusive:  req.GSTInclusive,
		ExemptFromGST: req.ExemptFromGST,
		Notes:         req.Notes,
		Terms:         req.Terms,
	})
	h.respondInvoice(w, r, http.StatusOK, inv, err)
}

func (h *handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Invoices.Delete(r.Context(), TenantFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) sendInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Invoices.Send(r.Context(), TenantFrom(r.Context()), chi.URLParam(r, "id"))
	h.respondInvoice(w, r, http.StatusOK, inv, err)
}

func (h *handler) markInvoiceViewed(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Invoices.MarkViewed(r.Context(), TenantFrom(r.Context()), chi.URLParam(r, "id"))
	h.respondInvoice(w, r, http.StatusOK, inv, err)
}

func (h *handler) markInvoiceOverdue(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Invoices.MarkOverdue(r.Context(), TenantFrom(r.Context()), chi.URLParam(r, "id"))
	h.respondInvoice(w, r, http.StatusOK, inv, err)
}

func (h *handler) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Invoices.Cancel(r.Context(), TenantFrom(r.Context()), chi.URLParam(r, "id"))
	h.respondInvoice(w, r, http.StatusOK, inv, err)
}

func (h *handler) recordSale(w http.ResponseWriter, r *http.Request) {
	var req RecordSaleRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	p, err := h.svc.Invoices.RecordSale(r.Context(), TenantFrom(r.Context()), chi.URLParam(r, "id"), invoice.SaleParams{
		ReceivableAccountID: req.ReceivableAccountID,
		RevenueAccountID:    req.RevenueAccountID,
	})
	h.respondPosting(w, r, p, err)
}

func (h *handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	p, err := h.svc.Invoices.RecordPayment(r.Context(), TenantFrom(r.Context()), chi.URLParam(r, "id"), invoice.PaymentParams{
		Amount:              req.Amount,
		Date:                req.Date.Time,
		CashAccountID:       req.CashAccountID,
		ReceivableAccountID: req.ReceivableAccountID,
		Method:              req.Method,
	})
	h.respondPosting(w, r, p, err)
}

func (h *handler) respondInvoice(w http.ResponseWriter, r *http.Request, status int, inv model.Invoice, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, status, map[string]any{"invoice": toInvoiceJSON(inv)})
}

func (h *handler) respondPosting(w http.ResponseWriter, r *http.Request, p invoice.Posting, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, PostingJSON{
		Invoice:     toInvoiceJSON(p.Invoice),
		Transaction: toTransactionJSON(p.Transaction),
	})
}

