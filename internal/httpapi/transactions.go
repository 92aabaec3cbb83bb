package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/books/internal/journal"
	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/store"
)

// TransactionJSON is the wire form of a transaction.
type TransactionJSON struct {
	ID              string            `json:"id"`
	Date            Date              `json:"date"`
	Description     string            `json:"description"`
	Reference       string            `json:"reference,omitempty"`
	Amount          decimal.Decimal   `json:"amount"`
	DebitAccountID  string            `json:"debit_account_id"`
	CreditAccountID string            `json:"credit_account_id"`
	CategoryID      string            `json:"category_id,omitempty"`
	InvoiceID       string            `json:"invoice_id,omitempty"`
	Kind            model.PostingKind `json:"kind"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func toTransactionJSON(t model.Transaction) TransactionJSON {
	return TransactionJSON{
		ID: t.ID, Date: dateOf(t.Date), Description: t.Description, Reference: t.Reference, Amount: t.Amount,
		DebitAccountID: t.DebitAccountID, CreditAccountID: t.CreditAccountID, CategoryID: t.CategoryID,
		InvoiceID: t.InvoiceID, Kind: t.Kind, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	}
}

// CreateTransactionRequest is the body of POST /transactions.
type CreateTransactionRequest struct {
	Date            Date            `json:"date"`
	Description     string          `json:"description"`
	Reference       string          `json:"reference"`
	Amount          decimal.Decimal `json:"amount"`
	DebitAccountID  string          `json:"debit_account_id"`
	CreditAccountID string          `json:"credit_account_id"`
	CategoryID      string          `json:"category_id"`
}

// EditTransactionRequest is the body of PATCH /transactions/{id}.
type EditTransactionRequest struct {
	Date            *Date            `json:"date"`
	Description     *string          `json:"description"`
	Reference       *string          `json:"reference"`
	Amount          *decimal.Decimal `json:"amount"`
	DebitAccountID  *string          `json:"debit_account_id"`
	CreditAccountID *string          `json:"credit_account_id"`
	CategoryID      *string          `json:"category_id"`
}

func (h *handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	var (
		f   store.TransactionFilter
		err error
	)
	q := r.URL.Query()
	f.AccountID = q.Get("account_id")
	f.InvoiceID = q.Get("invoice_id")
	f.Kind = model.PostingKind(q.Get("kind"))
	if f.From, err = queryDate(r, "from"); err == nil {
		if f.To, err = queryDate(r, "to"); err == nil {
			if f.Limit, err = queryInt(r, "limit"); err == nil {
				f.Offset, err = queryInt(r, "offset")
			}
		}
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	txns, err := h.svc.Journal.List(r.Context(), TenantFrom(r.Context()), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]TransactionJSON, len(txns))
	for i, t := range txns {
		out[i] = toTransactionJSON(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

func (h *handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if !decode(w, r, &req) {
		return
	}
	txn, err := h.svc.Journal.Create(r.Context(), TenantFrom(r.Context()), journal.PostParams{
		Date: req.Date.Time, Description: req.Description, Reference: req.Reference, Amount: req.Amount,
		DebitAccountID: req.DebitAccountID, CreditAccountID: req.CreditAccountID, CategoryID: req.CategoryID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"transaction": toTransactionJSON(txn)})
}

func (h *handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := h.svc.Journal.Get(r.Context(), TenantFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": toTransactionJSON(txn)})
}

func (h *handler) editTransaction(w http.ResponseWriter, r *http.Request) {
	var req EditTransactionRequest
	if !decode(w, r, &req) {
		return
	}
	txn, err := h.svc.Journal.Edit(r.Context(), TenantFrom(r.Context()), chi.URLParam(r, "id"), journal.EditParams{
		Date: datePtr(req.Date), Description: req.Description, Reference: req.Reference, Amount: req.Amount,
		DebitAccountID: req.DebitAccountID, CreditAccountID: req.CreditAccountID, CategoryID: req.CategoryID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": toTransactionJSON(txn)})
}

func (h *handler) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Journal.Delete(r.Context(), TenantFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
