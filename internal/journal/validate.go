package journal

import (
	"fmt"
	"strings"

	"github.com/cleared-dev/books/internal/accounts"
	"github.com/cleared-dev/books/internal/apperr"
	"github.com/cleared-dev/books/internal/model"
)

// ValidationError describes a single problem with a posting.
type ValidationError struct {
	Field       string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// ValidatePosting checks the shape of a posting before any account is
// touched. Account existence and tenancy are checked by the service.
func ValidatePosting(p PostParams) []ValidationError {
	var errs []ValidationError

	if p.Date.IsZero() {
		errs = append(errs, ValidationError{Field: "date", Description: "is required"})
	}
	if strings.TrimSpace(p.Description) == "" {
		errs = append(errs, ValidationError{Field: "description", Description: "is required"})
	}

	if !p.Amount.IsPositive() {
		errs = append(errs, ValidationError{Field: "amount", Description: fmt.Sprintf("must be positive, got %s", p.Amount)})
	} else if !accounts.IsCents(p.Amount) {
		errs = append(errs, ValidationError{Field: "amount", Description: fmt.Sprintf("%s has more than 2 decimal places", p.Amount)})
	}

	if p.DebitAccountID == "" {
		errs = append(errs, ValidationError{Field: "debit_account", Description: "is required"})
	}
	if p.CreditAccountID == "" {
		errs = append(errs, ValidationError{Field: "credit_account", Description: "is required"})
	}
	if p.DebitAccountID != "" && p.DebitAccountID == p.CreditAccountID {
		errs = append(errs, ValidationError{Field: "credit_account", Description: "must differ from the debit account"})
	}

	if p.Kind != "" && !p.Kind.Valid() {
		errs = append(errs, ValidationError{Field: "kind", Description: fmt.Sprintf("unknown posting kind %q", p.Kind)})
	}
	if p.Kind.Valid() && p.Kind != model.KindManual && p.InvoiceID == "" {
		errs = append(errs, ValidationError{Field: "invoice", Description: fmt.Sprintf("%s postings must reference an invoice", p.Kind)})
	}

	return errs
}

func validationFailure(op string, verrs []ValidationError) error {
	msgs := make([]string, len(verrs))
	for i, ve := range verrs {
		msgs[i] = ve.Error()
	}
	return apperr.Validation(op, "%s", strings.Join(msgs, "; "))
}
