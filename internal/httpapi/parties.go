package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/books/internal/directory"
	"github.com/cleared-dev/books/internal/model"
)

// CustomerJSON is the wire form of a customer.
type CustomerJSON struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	PaymentTerms int       `json:"payment_terms"`
	CreatedAt    time.Time `json:"created_at"`
}

func toCustomerJSON(c model.Customer) CustomerJSON {
	return CustomerJSON{ID: c.ID, Name: c.Name, Email: c.Email, PaymentTerms: c.PaymentTerms, CreatedAt: c.CreatedAt}
}

// CategoryJSON is the wire form of a category.
type CategoryJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateCustomerRequest is the body of POST /customers.
type CreateCustomerRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	PaymentTerms int    `json:"payment_terms"`
}

// CreateCategoryRequest is the body of POST /categories.
type CreateCategoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// StatementJSON is the wire form of a customer statement.
type StatementJSON struct {
	Customer     CustomerJSON    `json:"customer"`
	Invoices     int             `json:"invoices"`
	Outstanding  decimal.Decimal `json:"outstanding"`
	OverdueCount int             `json:"overdue_count"`
}

func (h *handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	cs, err := h.svc.Directory.ListCustomers(r.Context(), TenantFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]CustomerJSON, len(cs))
	for i, c := range cs {
		out[i] = toCustomerJSON(c)
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": out})
}

func (h *handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.svc.Directory.CreateCustomer(r.Context(), TenantFrom(r.Context()), directory.CustomerParams{
		Name: req.Name, Email: req.Email, PaymentTerms: req.PaymentTerms,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"customer": toCustomerJSON(c)})
}

func (h *handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Directory.GetCustomer(r.Context(), TenantFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": toCustomerJSON(c)})
}

func (h *handler) customerStatement(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Directory.CustomerStatement(r.Context(), TenantFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatementJSON{
		Customer:     toCustomerJSON(st.Customer),
		Invoices:     st.Invoices,
		Outstanding:  st.Outstanding,
		OverdueCount: st.OverdueCount,
	})
}

func (h *handler) listCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.svc.Directory.ListCategories(r.Context(), TenantFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]CategoryJSON, len(cs))
	for i, c := range cs {
		out[i] = CategoryJSON{ID: c.ID, Name: c.Name, Color: c.Color, CreatedAt: c.CreatedAt}
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (h *handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.svc.Directory.CreateCategory(r.Context(), TenantFrom(r.Context()), req.Name, req.Color)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"category": CategoryJSON{ID: c.ID, Name: c.Name, Color: c.Color, CreatedAt: c.CreatedAt},
	})
}
