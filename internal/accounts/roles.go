package accounts

import (
	"context"
	"errors"
	"strings"

	"github.com/cleared-dev/books/internal/apperr"
	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/store"
)

// Role names an account an invoice posting needs.
type Role string

const (
	RoleReceivable Role = "accounts receivable"
	RoleRevenue    Role = "revenue"
	RoleCash       Role = "cash"
)

// RoleCodes maps roles to configured account codes. Empty codes fall back
// to matching account names.
type RoleCodes struct {
	Receivable string
	Revenue    string
	Cash       string
}

type roleRule struct {
	typ      model.AccountType
	keywords []string
}

var roleRules = map[Role]roleRule{
	RoleReceivable: {typ: model.AccountTypeAsset, keywords: []string{"receivable"}},
	RoleRevenue:    {typ: model.AccountTypeRevenue, keywords: []string{"sales", "service", "revenue"}},
	RoleCash:       {typ: model.AccountTypeAsset, keywords: []string{"bank", "cash"}},
}

func (c RoleCodes) code(r Role) string {
	switch r {
	case RoleReceivable:
		return c.Receivable
	case RoleRevenue:
		return c.Revenue
	case RoleCash:
		return c.Cash
	}
	return ""
}

// ResolveRoleTx finds the tenant's account for a role. A configured code
// wins when it names an active account of the right type; otherwise the
// first active account of that type whose name contains one of the role's
// keywords is used, trying keywords in order. No match is a validation
// error.
func (s *Service) ResolveRoleTx(ctx context.Context, tx *store.Tx, tenantID string, role Role, codes RoleCodes) (model.Account, error) {
	const op = "accounts.ResolveRole"
	rule, ok := roleRules[role]
	if !ok {
		return model.Account{}, apperr.Validation(op, "unknown account role %q", role)
	}

	if code := codes.code(role); code != "" {
		acct, err := tx.FindAccountByCode(ctx, tenantID, code)
		switch {
		case err == nil && acct.Type == rule.typ && acct.Active:
			return acct, nil
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return model.Account{}, err
		}
	}

	candidates, err := tx.ListAccounts(ctx, tenantID, store.AccountFilter{Type: rule.typ, ActiveOnly: true})
	if err != nil {
		return model.Account{}, err
	}
	for _, kw := range rule.keywords {
		for _, acct := range candidates {
			if strings.Contains(strings.ToLower(acct.Name), kw) {
				return acct, nil
			}
		}
	}
	return model.Account{}, apperr.Validation(op, "no %s account found", role)
}

// CheckRoleTx verifies that an explicitly chosen account can serve a role.
func (s *Service) CheckRoleTx(ctx context.Context, tx *store.Tx, tenantID, accountID string, role Role) (model.Account, error) {
	const op = "accounts.CheckRole"
	rule, ok := roleRules[role]
	if !ok {
		return model.Account{}, apperr.Validation(op, "unknown account role %q", role)
	}
	acct, err := s.ResolveTx(ctx, tx, tenantID, accountID)
	if err != nil {
		return model.Account{}, err
	}
	if acct.Type != rule.typ {
		return model.Account{}, apperr.Validation(op, "%s account must be %s, got %s", role, rule.typ, acct.Type)
	}
	if !acct.Active {
		return model.Account{}, apperr.Validation(op, "%s account %s is inactive", role, acct.ID)
	}
	return acct, nil
}
