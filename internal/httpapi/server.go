// Package httpapi exposes the books services as a JSON API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cleared-dev/books/internal/accounts"
	"github.com/cleared-dev/books/internal/directory"
	"github.com/cleared-dev/books/internal/invoice"
	"github.com/cleared-dev/books/internal/journal"
	"github.com/cleared-dev/books/internal/logger"
	"github.com/cleared-dev/books/internal/reports"
)

// TenantHeader carries the tenant every API request acts for.
const TenantHeader = "X-Tenant-ID"

// DefaultTimeout bounds each request's unit of work.
const DefaultTimeout = 30 * time.Second

// Services are the domain services the API serves.
type Services struct {
	Accounts  *accounts.Service
	Journal   *journal.Service
	Invoices  *invoice.Service
	Directory *directory.Service
	Reports   *reports.Reporter
}

type handler struct {
	svc Services
	log zerolog.Logger
}

// NewRouter builds the API router. Requests under /api/v1 must carry the
// X-Tenant-ID header.
func NewRouter(svc Services, log zerolog.Logger, timeout time.Duration) http.Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	h := &handler{svc: svc, log: logger.WithComponent(log, "httpapi")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requireTenant)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.listAccounts)
			r.Post("/", h.createAccount)
			r.Post("/setup", h.setupAccounts)
			r.Get("/{id}", h.getAccount)
			r.Patch("/{id}", h.updateAccount)
			r.Delete("/{id}", h.deleteAccount)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.listTransactions)
			r.Post("/", h.createTransaction)
			r.Get("/{id}", h.getTransaction)
			r.Patch("/{id}", h.editTransaction)
			r.Delete("/{id}", h.deleteTransaction)
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.listInvoices)
			r.Post("/", h.createInvoice)
			r.Post("/sweep-overdue", h.sweepOverdue)
			r.Get("/{id}", h.getInvoice)
			r.Patch("/{id}", h.editInvoice)
			r.Delete("/{id}", h.deleteInvoice)
			r.Post("/{id}/send", h.sendInvoice)
			r.Post("/{id}/viewed", h.markInvoiceViewed)
			r.Post("/{id}/overdue", h.markInvoiceOverdue)
			r.Post("/{id}/cancel", h.cancelInvoice)
			r.Post("/{id}/record-sale", h.recordSale)
			r.Post("/{id}/payments", h.recordPayment)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.listCustomers)
			r.Post("/", h.createCustomer)
			r.Get("/{id}", h.getCustomer)
			r.Get("/{id}/statement", h.customerStatement)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.listCategories)
			r.Post("/", h.createCategory)
		})

		r.Get("/reports/summary", h.summary)
		r.Get("/reports/profit-and-loss", h.profitAndLoss)
		r.Post("/gst/calculate", h.calculateGST)
	})

	return r
}

type tenantKey struct{}

// requireTenant rejects requests without a tenant header and stores the
// tenant in the request context.
func requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := r.Header.Get(TenantHeader)
		if tenant == "" {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing "+TenantHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantKey{}, tenant)))
	})
}

// TenantFrom returns the tenant stored by the tenant middleware.
func TenantFrom(ctx context.Context) string {
	tenant, _ := ctx.Value(tenantKey{}).(string)
	return tenant
}

func (h *handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
