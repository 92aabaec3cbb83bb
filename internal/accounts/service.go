package accounts

import (
	"context"
	"fmt"
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

// Service manages a tenant's chart of accounts and account balances.
type Service struct {
	db  *store.DB
	log zerolog.Logger
}

// NewService creates an account Service.
func NewService(db *store.DB, log zerolog.Logger) *Service {
	return &Service{db: db, log: logger.WithComponent(log, "accounts")}
}

// CreateParams holds parameters for creating an account.
type CreateParams struct {
	Name           string
	Code           string
	Type           model.AccountType
	SubType        string
	Description    string
	OpeningBalance decimal.Decimal
}

// UpdateParams holds the fields to change on an account. Nil fields are
// left alone. Balances are never edited directly.
type UpdateParams struct {
	Name        *string
	Code        *string
	Type        *model.AccountType
	SubType     *string
	Description *string
	Active      *bool
}

// Create adds an account to the tenant's chart.
func (s *Service) Create(ctx context.Context, tenantID string, p CreateParams) (model.Account, error) {
	const op = "accounts.Create"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return model.Account{}, err
	}

	var acct model.Account
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		acct, err = s.CreateTx(ctx, tx, tenantID, p)
		return err
	})
	if err != nil {
		s.log.Warn().Err(err).Str("tenant", tenantID).Str("name", p.Name).Msg("account create rejected")
		return model.Account{}, err
	}

	s.log.Info().Str("tenant", tenantID).Str("account", acct.ID).Str("type", string(acct.Type)).Msg("account created")
	return acct, nil
}

// CreateTx creates an account inside an existing unit of work.
func (s *Service) CreateTx(ctx context.Context, tx *store.Tx, tenantID string, p CreateParams) (model.Account, error) {
	const op = "accounts.Create"
	if err := validateCreate(op, p); err != nil {
		return model.Account{}, err
	}

	now := tx.Now()
	acct := model.Account{
		ID:          id.New(),
		TenantID:    tenantID,
		Name:        strings.TrimSpace(p.Name),
		Code:        strings.TrimSpace(p.Code),
		Type:        p.Type,
		SubType:     p.SubType,
		Description: p.Description,
		Balance:     p.OpeningBalance,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.InsertAccount(ctx, acct); err != nil {
		return model.Account{}, store.Classify(op, err)
	}
	if err := audit.Record(ctx, tx, tenantID, audit.AccountCreate, acct.ID, "code=%s type=%s opening=%s",
		acct.Code, acct.Type, acct.Balance.StringFixed(2)); err != nil {
		return model.Account{}, err
	}
	return acct, nil
}

func validateCreate(op string, p CreateParams) error {
	if strings.TrimSpace(p.Name) == "" {
		return apperr.Validation(op, "name is required")
	}
	if !p.Type.Valid() {
		return apperr.Validation(op, "invalid account type %q", p.Type)
	}
	if !IsCents(p.OpeningBalance) {
		return apperr.Validation(op, "opening balance %s has more than 2 decimal places", p.OpeningBalance)
	}
	return nil
}

// Get returns one of the tenant's accounts.
func (s *Service) Get(ctx context.Context, tenantID, accountID string) (model.Account, error) {
	var acct model.Account
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		acct, err = s.ResolveTx(ctx, tx, tenantID, accountID)
		return err
	})
	return acct, err
}

// ResolveTx loads an account owned by tenantID inside an existing unit of
// work. Accounts of other tenants are reported as not found.
func (s *Service) ResolveTx(ctx context.Context, tx *store.Tx, tenantID, accountID string) (model.Account, error) {
	const op = "accounts.Resolve"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return model.Account{}, err
	}
	if accountID == "" {
		return model.Account{}, apperr.Validation(op, "account id is required")
	}
	acct, err := tx.GetAccount(ctx, tenantID, accountID)
	if err != nil {
		return model.Account{}, store.Classify(op, err)
	}
	return acct, nil
}

// FindByCode returns the tenant's account with the given code.
func (s *Service) FindByCode(ctx context.Context, tenantID, code string) (model.Account, error) {
	const op = "accounts.FindByCode"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return model.Account{}, err
	}
	var acct model.Account
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		acct, err = tx.FindAccountByCode(ctx, tenantID, code)
		return store.Classify(op, err)
	})
	return acct, err
}

// List returns the tenant's accounts ordered by type, code and name.
func (s *Service) List(ctx context.Context, tenantID string, f store.AccountFilter) ([]model.Account, error) {
	const op = "accounts.List"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return nil, err
	}
	var accts []model.Account
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		accts, err = tx.ListAccounts(ctx, tenantID, f)
		return err
	})
	return accts, err
}

// ByType returns all of the tenant's accounts of the given type.
func (s *Service) ByType(ctx context.Context, tenantID string, accountType model.AccountType) ([]model.Account, error) {
	return s.List(ctx, tenantID, store.AccountFilter{Type: accountType})
}

// Update changes descriptive fields of an account. Changing the type of,
// or deactivating, an account that any transaction references is a
// conflict.
func (s *Service) Update(ctx context.Context, tenantID, accountID string, p UpdateParams) (model.Account, error) {
	const op = "accounts.Update"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return model.Account{}, err
	}

	var acct model.Account
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		acct, err = s.ResolveTx(ctx, tx, tenantID, accountID)
		if err != nil {
			return err
		}

		typeChange := p.Type != nil && *p.Type != acct.Type
		deactivate := p.Active != nil && !*p.Active && acct.Active
		if typeChange || deactivate {
			refs, err := tx.CountAccountReferences(ctx, tenantID, accountID)
			if err != nil {
				return err
			}
			if refs > 0 && typeChange {
				return apperr.Conflict(op, "account %s type cannot change while %d transactions reference it", accountID, refs)
			}
			if refs > 0 && deactivate {
				return apperr.Conflict(op, "account %s cannot be deactivated while %d transactions reference it", accountID, refs)
			}
		}

		if p.Name != nil {
			if strings.TrimSpace(*p.Name) == "" {
				return apperr.Validation(op, "name is required")
			}
			acct.Name = strings.TrimSpace(*p.Name)
		}
		if p.Code != nil {
			acct.Code = strings.TrimSpace(*p.Code)
		}
		if p.Type != nil {
			if !p.Type.Valid() {
				return apperr.Validation(op, "invalid account type %q", *p.Type)
			}
			acct.Type = *p.Type
		}
		if p.SubType != nil {
			acct.SubType = *p.SubType
		}
		if p.Description != nil {
			acct.Description = *p.Description
		}
		if p.Active != nil {
			acct.Active = *p.Active
		}
		acct.UpdatedAt = tx.Now()

		if err := tx.UpdateAccount(ctx, acct); err != nil {
			return store.Classify(op, err)
		}
		return audit.Record(ctx, tx, tenantID, audit.AccountUpdate, acct.ID, "name=%s code=%s type=%s active=%t",
			acct.Name, acct.Code, acct.Type, acct.Active)
	})
	if err != nil {
		s.log.Warn().Err(err).Str("tenant", tenantID).Str("account", accountID).Msg("account update rejected")
		return model.Account{}, err
	}
	return acct, nil
}

// Delete removes an account that no transaction references.
func (s *Service) Delete(ctx context.Context, tenantID, accountID string) error {
	const op = "accounts.Delete"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return err
	}

	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		if _, err := s.ResolveTx(ctx, tx, tenantID, accountID); err != nil {
			return err
		}
		refs, err := tx.CountAccountReferences(ctx, tenantID, accountID)
		if err != nil {
			return err
		}
		if refs > 0 {
			return apperr.Conflict(op, "account %s is referenced by %d transactions", accountID, refs)
		}
		if err := tx.DeleteAccount(ctx, tenantID, accountID); err != nil {
			return store.Classify(op, err)
		}
		return audit.Record(ctx, tx, tenantID, audit.AccountDelete, accountID, "")
	})
	if err != nil {
		s.log.Warn().Err(err).Str("tenant", tenantID).Str("account", accountID).Msg("account delete rejected")
		return err
	}

	s.log.Info().Str("tenant", tenantID).Str("account", accountID).Msg("account deleted")
	return nil
}

// ApplyDelta atomically adds a signed amount to an account's balance in its
// own unit of work and returns the new balance.
func (s *Service) ApplyDelta(ctx context.Context, tenantID, accountID string, delta decimal.Decimal) (decimal.Decimal, error) {
	const op = "accounts.ApplyDelta"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return decimal.Decimal{}, err
	}

	var balance decimal.Decimal
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		balance, err = s.ApplyDeltaTx(ctx, tx, tenantID, accountID, delta)
		if err != nil {
			return err
		}
		return audit.Record(ctx, tx, tenantID, audit.AccountAdjust, accountID, "delta=%s", delta.StringFixed(2))
	})
	if err != nil {
		return decimal.Decimal{}, err
	}

	s.log.Debug().Str("tenant", tenantID).Str("account", accountID).Str("delta", delta.String()).Msg("balance adjusted")
	return balance, nil
}

// ApplyDeltaTx adds a signed amount to an account's balance inside an
// existing unit of work.
func (s *Service) ApplyDeltaTx(ctx context.Context, tx *store.Tx, tenantID, accountID string, delta decimal.Decimal) (decimal.Decimal, error) {
	const op = "accounts.ApplyDelta"
	balance, err := tx.AddToBalance(ctx, tenantID, accountID, delta)
	if err != nil {
		return decimal.Decimal{}, store.Classify(op, err)
	}
	return balance, nil
}

// PostTx applies both legs of a posting to the given accounts.
func (s *Service) PostTx(ctx context.Context, tx *store.Tx, debit, credit model.Account, amount decimal.Decimal) error {
	debitDelta, creditDelta := PostingEffects(debit.Type, credit.Type, amount)
	if _, err := s.ApplyDeltaTx(ctx, tx, debit.TenantID, debit.ID, debitDelta); err != nil {
		return fmt.Errorf("debit leg: %w", err)
	}
	if _, err := s.ApplyDeltaTx(ctx, tx, credit.TenantID, credit.ID, creditDelta); err != nil {
		return fmt.Errorf("credit leg: %w", err)
	}
	return nil
}

// ReverseTx undoes a posting previously applied with PostTx.
func (s *Service) ReverseTx(ctx context.Context, tx *store.Tx, debit, credit model.Account, amount decimal.Decimal) error {
	debitDelta, creditDelta := PostingEffects(debit.Type, credit.Type, amount)
	if _, err := s.ApplyDeltaTx(ctx, tx, debit.TenantID, debit.ID, debitDelta.Neg()); err != nil {
		return fmt.Errorf("reversing debit leg: %w", err)
	}
	if _, err := s.ApplyDeltaTx(ctx, tx, credit.TenantID, credit.ID, creditDelta.Neg()); err != nil {
		return fmt.Errorf("reversing credit leg: %w", err)
	}
	return nil
}

// IsCents reports whether d has at most two decimal places.
func IsCents(d decimal.Decimal) bool {
	hundred := decimal.NewFromInt(100)
	scaled := d.Mul(hundred)
	return scaled.Equal(scaled.Truncate(0))
}
