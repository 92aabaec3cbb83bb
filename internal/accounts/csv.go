package accounts

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/books/internal/apperr"
	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/store"
)

const (
	numFields  = 6
	colCode    = 0
	colName    = 1
	colType    = 2
	colSubType = 3
	colDesc    = 4
	colBalance = 5
)

var csvHeader = []string{"code", "name", "type", "sub_type", "description", "balance"}

// ReadAccounts reads a chart-of-accounts CSV. The balance column is read as
// the opening balance.
func ReadAccounts(r io.Reader) ([]CreateParams, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var params []CreateParams
	for i, rec := range records[1:] {
		p, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		params = append(params, p)
	}
	return params, nil
}

// WriteAccounts writes a chart-of-accounts CSV including current balances.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(acct model.Account) []string {
	row := make([]string, numFields)
	row[colCode] = acct.Code
	row[colName] = acct.Name
	row[colType] = string(acct.Type)
	row[colSubType] = acct.SubType
	row[colDesc] = acct.Description
	row[colBalance] = acct.Balance.StringFixed(2)
	return row
}

// UnmarshalAccount converts a CSV row to account creation parameters.
func UnmarshalAccount(record []string) (CreateParams, error) {
	if len(record) != numFields {
		return CreateParams{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	typ := model.AccountType(record[colType])
	if !typ.Valid() {
		return CreateParams{}, fmt.Errorf("invalid account type %q", record[colType])
	}

	balance := decimal.Zero
	if record[colBalance] != "" {
		var err error
		balance, err = decimal.NewFromString(record[colBalance])
		if err != nil {
			return CreateParams{}, fmt.Errorf("parsing balance %q: %w", record[colBalance], err)
		}
	}

	return CreateParams{
		Code:           record[colCode],
		Name:           record[colName],
		Type:           typ,
		SubType:        record[colSubType],
		Description:    record[colDesc],
		OpeningBalance: balance,
	}, nil
}

// Export writes the tenant's chart of accounts as CSV.
func (s *Service) Export(ctx context.Context, tenantID string, w io.Writer) error {
	accts, err := s.List(ctx, tenantID, store.AccountFilter{})
	if err != nil {
		return err
	}
	return WriteAccounts(w, accts)
}

// Import creates every account in a chart CSV in one unit of work. Any bad
// row or duplicate code aborts the whole import.
func (s *Service) Import(ctx context.Context, tenantID string, r io.Reader) ([]model.Account, error) {
	const op = "accounts.Import"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return nil, err
	}

	params, err := ReadAccounts(r)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, op, err)
	}

	var created []model.Account
	err = s.db.InTx(ctx, func(tx *store.Tx) error {
		for i, p := range params {
			acct, err := s.CreateTx(ctx, tx, tenantID, p)
			if err != nil {
				return fmt.Errorf("row %d: %w", i+2, err)
			}
			created = append(created, acct)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("tenant", tenantID).Int("accounts", len(created)).Msg("chart imported")
	return created, nil
}
