package accounts

import (
	"context"

	"github.com/cleared-dev/books/internal/apperr"
	"github.com/cleared-dev/books/internal/audit"
	"github.com/cleared-dev/books/internal/id"
	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/store"
)

// DefaultChart returns the starter chart of accounts for a small business.
func DefaultChart() []CreateParams {
	return []CreateParams{
		{Code: "1000", Name: "Cash on Hand", Type: model.AccountTypeAsset, SubType: "Current Asset", Description: "Physical cash"},
		{Code: "1010", Name: "Business Bank Account", Type: model.AccountTypeAsset, SubType: "Current Asset", Description: "Primary business bank account"},
		{Code: "1100", Name: "Accounts Receivable", Type: model.AccountTypeAsset, SubType: "Current Asset", Description: "Money owed by customers"},
		{Code: "1200", Name: "Inventory", Type: model.AccountTypeAsset, SubType: "Current Asset", Description: "Goods held for sale"},
		{Code: "1300", Name: "Prepaid Expenses", Type: model.AccountTypeAsset, SubType: "Current Asset", Description: "Expenses paid in advance"},
		{Code: "1500", Name: "Equipment", Type: model.AccountTypeAsset, SubType: "Fixed Asset", Description: "Business equipment and machinery"},
		{Code: "2000", Name: "Accounts Payable", Type: model.AccountTypeLiability, SubType: "Current Liability", Description: "Money owed to suppliers"},
		{Code: "2100", Name: "Credit Card", Type: model.AccountTypeLiability, SubType: "Current Liability", Description: "Business credit card balance"},
		{Code: "2200", Name: "GST Payable", Type: model.AccountTypeLiability, SubType: "Current Liability", Description: "GST collected and owed"},
		{Code: "3000", Name: "Owner's Equity", Type: model.AccountTypeEquity, SubType: "Owner's Equity", Description: "Owner's investment in the business"},
		{Code: "3100", Name: "Retained Earnings", Type: model.AccountTypeEquity, SubType: "Retained Earnings", Description: "Accumulated profits"},
		{Code: "4000", Name: "Sales Revenue", Type: model.AccountTypeRevenue, SubType: "Operating Revenue", Description: "Revenue from sales"},
		{Code: "4100", Name: "Service Revenue", Type: model.AccountTypeRevenue, SubType: "Operating Revenue", Description: "Revenue from services"},
		{Code: "4500", Name: "Interest Income", Type: model.AccountTypeRevenue, SubType: "Other Revenue", Description: "Interest earned"},
		{Code: "5000", Name: "Cost of Goods Sold", Type: model.AccountTypeExpense, SubType: "Cost of Sales", Description: "Direct costs of goods sold"},
		{Code: "6000", Name: "Office Supplies", Type: model.AccountTypeExpense, SubType: "Operating Expense", Description: "Office supplies and stationery"},
		{Code: "6100", Name: "Rent Expense", Type: model.AccountTypeExpense, SubType: "Operating Expense", Description: "Office or shop rent"},
		{Code: "6200", Name: "Utilities", Type: model.AccountTypeExpense, SubType: "Operating Expense", Description: "Power, water and internet"},
		{Code: "6300", Name: "Insurance", Type: model.AccountTypeExpense, SubType: "Operating Expense", Description: "Business insurance"},
		{Code: "6400", Name: "Professional Fees", Type: model.AccountTypeExpense, SubType: "Operating Expense", Description: "Accounting and legal fees"},
		{Code: "6500", Name: "Marketing & Advertising", Type: model.AccountTypeExpense, SubType: "Operating Expense", Description: "Marketing and advertising costs"},
		{Code: "6600", Name: "Travel & Entertainment", Type: model.AccountTypeExpense, SubType: "Operating Expense", Description: "Business travel and client entertainment"},
		{Code: "6700", Name: "Bank Fees", Type: model.AccountTypeExpense, SubType: "Operating Expense", Description: "Bank charges and fees"},
		{Code: "6800", Name: "General Expenses", Type: model.AccountTypeExpense, SubType: "Operating Expense", Description: "Miscellaneous business expenses"},
	}
}

// DefaultCategories returns the starter transaction categories.
func DefaultCategories() []model.Category {
	return []model.Category{
		{Name: "Sales", Color: "#10B981"},
		{Name: "Office Expenses", Color: "#EF4444"},
		{Name: "Travel", Color: "#F59E0B"},
		{Name: "Marketing", Color: "#8B5CF6"},
		{Name: "Professional Services", Color: "#3B82F6"},
		{Name: "Utilities", Color: "#6B7280"},
	}
}

// SetupDefaults installs the default chart and categories for a tenant
// that has no accounts yet. It returns the number of accounts created,
// which is zero when the tenant already has a chart.
func (s *Service) SetupDefaults(ctx context.Context, tenantID string) (int, error) {
	const op = "accounts.SetupDefaults"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return 0, err
	}

	created := 0
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		n, err := tx.CountAccounts(ctx, tenantID)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		for _, p := range DefaultChart() {
			if _, err := s.CreateTx(ctx, tx, tenantID, p); err != nil {
				return err
			}
			created++
		}

		existing, err := tx.ListCategories(ctx, tenantID)
		if err != nil {
			return err
		}
		have := make(map[string]bool, len(existing))
		for _, c := range existing {
			have[c.Name] = true
		}
		for _, c := range DefaultCategories() {
			if have[c.Name] {
				continue
			}
			c.ID = id.New()
			c.TenantID = tenantID
			c.CreatedAt = tx.Now()
			if err := tx.InsertCategory(ctx, c); err != nil {
				return store.Classify(op, err)
			}
		}
		return audit.Record(ctx, tx, tenantID, audit.ChartSetup, tenantID, "accounts=%d", created)
	})
	if err != nil {
		return 0, err
	}

	if created > 0 {
		s.log.Info().Str("tenant", tenantID).Int("accounts", created).Msg("default chart installed")
	}
	return created, nil
}
