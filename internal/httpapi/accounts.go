package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/books/internal/accounts"
	"github.com/cleared-dev/books/internal/apperr"
	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/store"
)

// AccountJSON is the wire form of an account.
type AccountJSON struct {
	ID          string            `json:"id"`
	Code        string            `json:"code"`
	Name        string            `json:"name"`
	Type        model.AccountType `json:"type"`
	SubType     string            `json:"sub_type,omitempty"`
	Description string            `json:"description,omitempty"`
	Balance     decimal.Decimal   `json:"balance"`
	Active      bool              `json:"active"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func toAccountJSON(a model.Account) AccountJSON {
	return AccountJSON{
		ID: a.ID, Code: a.Code, Name: a.Name, Type: a.Type, SubType: a.SubType, Description: a.Description,
		Balance: a.Balance, Active: a.Active, CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
	}
}

// CreateAccountRequest is the body of POST /accounts.
type CreateAccountRequest struct {
	Code           string            `json:"code"`
	Name           string            `json:"name"`
	Type           model.AccountType `json:"type"`
	SubType        string            `json:"sub_type"`
	Description    string            `json:"description"`
	OpeningBalance decimal.Decimal   `json:"opening_balance"`
}

// UpdateAccountRequest is the body of PATCH /accounts/{id}.
type UpdateAccountRequest struct {
	Code        *string            `json:"code"`
	Name        *string            `json:"name"`
	Type        *model.AccountType `json:"type"`
	SubType     *string            `json:"sub_type"`
	Description *string            `json:"description"`
	Active      *bool              `json:"active"`
}

func (h *handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	f := store.AccountFilter{
		Type:       model.AccountType(r.URL.Query().Get("type")),
		ActiveOnly: r.URL.Query().Get("active") == "true",
	}
	if f.Type != "" && !f.Type.Valid() {
		h.writeError(w, r, apperr.Validation("httpapi.listAccounts", "unknown account type %q", f.Type))
		return
	}
	accts, err := h.svc.Accounts.List(r.Context(), TenantFrom(r.Context()), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]AccountJSON, len(accts))
	for i, a := range accts {
		out[i] = toAccountJSON(a)
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": out})
}

func (h *handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !decode(w, r, &req) {
		return
	}
	acct, err := h.svc.Accounts.Create(r.Context(), TenantFrom(r.Context()), accounts.CreateParams{
		Code: req.Code, Name: req.Name, Type: req.Type, SubType: req.SubType,
		Description: req.Description, OpeningBalance: req.OpeningBalance,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"account": toAccountJSON(acct)})
}

func (h *handler) setupAccounts(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Accounts.SetupDefaults(r.Context(), TenantFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"created": n})
}

func (h *handler) getAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.svc.Accounts.Get(r.Context(), TenantFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": toAccountJSON(acct)})
}

func (h *handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	var req UpdateAccountRequest
	if !decode(w, r, &req) {
		return
	}
	acct, err := h.svc.Accounts.Update(r.Context(), TenantFrom(r.Context()), chi.URLParam(r, "id"), accounts.UpdateParams{
		Name: req.Name, Code: req.Code, Type: req.Type, SubType: req.SubType, Description: req.Description, Active: req.Active,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": toAccountJSON(acct)})
}

func (h *handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Accounts.Delete(r.Context(), TenantFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
