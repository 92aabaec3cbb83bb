// Package directory keeps the customers and categories that invoices and
// transactions point at.
package directory

import (
	"context"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/books/internal/apperr"
	"github.com/cleared-dev/books/internal/audit"
	"github.com/cleared-dev/books/internal/id"
	"github.com/cleared-dev/books/internal/logger"
	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/store"
)

// DefaultPaymentTerms is the number of days a customer has to pay when no
// terms are given.
const DefaultPaymentTerms = 30

// Service manages customers and categories.
type Service struct {
	db  *store.DB
	log zerolog.Logger
}

// NewService creates a directory Service.
func NewService(db *store.DB, log zerolog.Logger) *Service {
	return &Service{db: db, log: logger.WithComponent(log, "directory")}
}

// CustomerParams holds parameters for creating a customer.
type CustomerParams struct {
	Name         string
	Email        string
	PaymentTerms int // days; zero means DefaultPaymentTerms
}

// CreateCustomer adds a customer.
func (s *Service) CreateCustomer(ctx context.Context, tenantID string, p CustomerParams) (model.Customer, error) {
	const op = "directory.CreateCustomer"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return model.Customer{}, err
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return model.Customer{}, apperr.Validation(op, "customer name is required")
	}
	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			return model.Customer{}, apperr.Validation(op, "invalid email %q", p.Email)
		}
	}
	if p.PaymentTerms < 0 {
		return model.Customer{}, apperr.Validation(op, "payment terms must not be negative, got %d", p.PaymentTerms)
	}
	terms := p.PaymentTerms
	if terms == 0 {
		terms = DefaultPaymentTerms
	}

	var c model.Customer
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		c = model.Customer{
			ID:           id.New(),
			TenantID:     tenantID,
			Name:         name,
			Email:        p.Email,
			PaymentTerms: terms,
			CreatedAt:    tx.Now(),
		}
		if err := tx.InsertCustomer(ctx, c); err != nil {
			return store.Classify(op, err)
		}
		return audit.Record(ctx, tx, tenantID, audit.CustomerCreate, c.ID, "name=%q terms=%d", c.Name, c.PaymentTerms)
	})
	if err != nil {
		return model.Customer{}, err
	}
	s.log.Info().Str("tenant", tenantID).Str("customer", c.ID).Msg("customer created")
	return c, nil
}

// GetCustomer returns one of the tenant's customers.
func (s *Service) GetCustomer(ctx context.Context, tenantID, customerID string) (model.Customer, error) {
	const op = "directory.GetCustomer"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return model.Customer{}, err
	}
	var c model.Customer
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		c, err = tx.GetCustomer(ctx, tenantID, customerID)
		return store.Classify(op, err)
	})
	return c, err
}

// ListCustomers returns the tenant's customers by name.
func (s *Service) ListCustomers(ctx context.Context, tenantID string) ([]model.Customer, error) {
	const op = "directory.ListCustomers"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return nil, err
	}
	var cs []model.Customer
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		cs, err = tx.ListCustomers(ctx, tenantID)
		return err
	})
	return cs, err
}

// Statement summarises what a customer owes.
type Statement struct {
	Customer     model.Customer
	Invoices     int
	Outstanding  decimal.Decimal // unpaid total on SENT, VIEWED and OVERDUE invoices
	OverdueCount int
}

// CustomerStatement totals the customer's open invoices.
func (s *Service) CustomerStatement(ctx context.Context, tenantID, customerID string) (Statement, error) {
	const op = "directory.CustomerStatement"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return Statement{}, err
	}
	st := Statement{Outstanding: decimal.Zero}
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		st.Customer, err = tx.GetCustomer(ctx, tenantID, customerID)
		if err != nil {
			return store.Classify(op, err)
		}
		invs, total, err := tx.ListInvoices(ctx, tenantID, store.InvoiceFilter{CustomerID: customerID})
		if err != nil {
			return err
		}
		st.Invoices = total
		for _, inv := range invs {
			switch inv.Status {
			case model.InvoiceOverdue:
				st.OverdueCount++
				st.Outstanding = st.Outstanding.Add(inv.Outstanding())
			case model.InvoiceSent, model.InvoiceViewed:
				st.Outstanding = st.Outstanding.Add(inv.Outstanding())
			}
		}
		return nil
	})
	return st, err
}

// CreateCategory adds a transaction category. Names are unique per tenant.
func (s *Service) CreateCategory(ctx context.Context, tenantID, name, color string) (model.Category, error) {
	const op = "directory.CreateCategory"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return model.Category{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Category{}, apperr.Validation(op, "category name is required")
	}

	var c model.Category
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		c = model.Category{ID: id.New(), TenantID: tenantID, Name: name, Color: color, CreatedAt: tx.Now()}
		if err := tx.InsertCategory(ctx, c); err != nil {
			return store.Classify(op, err)
		}
		return audit.Record(ctx, tx, tenantID, audit.CategoryCreate, c.ID, "name=%q", c.Name)
	})
	if err != nil {
		return model.Category{}, err
	}
	s.log.Info().Str("tenant", tenantID).Str("category", c.ID).Msg("category created")
	return c, nil
}

// ListCategories returns the tenant's categories by name.
func (s *Service) ListCategories(ctx context.Context, tenantID string) ([]model.Category, error) {
	const op = "directory.ListCategories"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return nil, err
	}
	var cs []model.Category
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		cs, err = tx.ListCategories(ctx, tenantID)
		return err
	})
	return cs, err
}
