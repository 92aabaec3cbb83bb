package journal

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/books/internal/apperr"
	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/store"
)

// Header is the CSV header for exported transactions.
const Header = "date,description,reference,amount,debit_account,credit_account,category_id,kind,invoice_id,id"

const (
	numFields  = 10
	dateFormat = "2006-01-02"
	colDate    = 0
	colDesc    = 1
	colRef     = 2
	colAmount  = 3
	colDebit   = 4
	colCredit  = 5
	colCat     = 6
	colKind    = 7
	colInvoice = 8
	colID      = 9
)

// Row is one CSV line. Account columns hold an account code when the
// account has one and its ID otherwise.
type Row struct {
	Date          time.Time
	Description   string
	Reference     string
	Amount        decimal.Decimal
	DebitAccount  string
	CreditAccount string
	CategoryID    string
	Kind          model.PostingKind
	InvoiceID     string
	ID            string
}

// ReadRows reads all rows from a transactions CSV.
func ReadRows(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading transactions CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var rows []Row
	for i, rec := range records[1:] {
		row, err := UnmarshalRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteRows writes rows to a CSV writer (including header).
func WriteRows(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, row := range rows {
		if err := cw.Write(MarshalRow(row)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalRow converts a Row to CSV fields.
func MarshalRow(row Row) []string {
	rec := make([]string, numFields)
	rec[colDate] = row.Date.Format(dateFormat)
	rec[colDesc] = row.Description
	rec[colRef] = row.Reference
	rec[colAmount] = row.Amount.StringFixed(2)
	rec[colDebit] = row.DebitAccount
	rec[colCredit] = row.CreditAccount
	rec[colCat] = row.CategoryID
	rec[colKind] = string(row.Kind)
	rec[colInvoice] = row.InvoiceID
	rec[colID] = row.ID
	return rec
}

// UnmarshalRow converts CSV fields to a Row.
func UnmarshalRow(record []string) (Row, error) {
	if len(record) != numFields {
		return Row{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return Row{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return Row{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	kind := model.PostingKind(record[colKind])
	if kind == "" {
		kind = model.KindManual
	}

	return Row{
		Date:          date,
		Description:   record[colDesc],
		Reference:     record[colRef],
		Amount:        amount,
		DebitAccount:  record[colDebit],
		CreditAccount: record[colCredit],
		CategoryID:    record[colCat],
		Kind:          kind,
		InvoiceID:     record[colInvoice],
		ID:            record[colID],
	}, nil
}

// Export writes the tenant's transactions matching f as CSV.
func (s *Service) Export(ctx context.Context, tenantID string, f store.TransactionFilter, w io.Writer) error {
	const op = "journal.Export"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return err
	}

	var rows []Row
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		accts, err := tx.ListAccounts(ctx, tenantID, store.AccountFilter{})
		if err != nil {
			return err
		}
		ref := make(map[string]string, len(accts))
		for _, a := range accts {
			ref[a.ID] = a.ID
			if a.Code != "" {
				ref[a.ID] = a.Code
			}
		}

		txns, err := tx.ListTransactions(ctx, tenantID, f)
		if err != nil {
			return err
		}
		for _, t := range txns {
			rows = append(rows, Row{
				Date:          t.Date,
				Description:   t.Description,
				Reference:     t.Reference,
				Amount:        t.Amount,
				DebitAccount:  ref[t.DebitAccountID],
				CreditAccount: ref[t.CreditAccountID],
				CategoryID:    t.CategoryID,
				Kind:          t.Kind,
				InvoiceID:     t.InvoiceID,
				ID:            t.ID,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	return WriteRows(w, rows)
}

// Import posts every manual row of a transactions CSV in one unit of work.
// Invoice postings are skipped since they belong to invoice actions. Any
// invalid row aborts the whole import.
func (s *Service) Import(ctx context.Context, tenantID string, r io.Reader) (int, error) {
	const op = "journal.Import"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return 0, err
	}

	rows, err := ReadRows(r)
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrValidation, op, err)
	}

	posted := 0
	err = s.db.InTx(ctx, func(tx *store.Tx) error {
		for i, row := range rows {
			if row.Kind != model.KindManual {
				continue
			}
			debitID, err := resolveAccountRef(ctx, tx, op, tenantID, row.DebitAccount)
			if err != nil {
				return fmt.Errorf("row %d: %w", i+2, err)
			}
			creditID, err := resolveAccountRef(ctx, tx, op, tenantID, row.CreditAccount)
			if err != nil {
				return fmt.Errorf("row %d: %w", i+2, err)
			}
			_, err = s.PostTx(ctx, tx, tenantID, PostParams{
				Date:            row.Date,
				Description:     row.Description,
				Reference:       row.Reference,
				Amount:          row.Amount,
				DebitAccountID:  debitID,
				CreditAccountID: creditID,
				CategoryID:      row.CategoryID,
				Kind:            model.KindManual,
			})
			if err != nil {
				return fmt.Errorf("row %d: %w", i+2, err)
			}
			posted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Info().Str("tenant", tenantID).Int("transactions", posted).Msg("transactions imported")
	return posted, nil
}

// resolveAccountRef maps an account code, or failing that an account ID,
// to the tenant's account ID.
func resolveAccountRef(ctx context.Context, tx *store.Tx, op, tenantID, ref string) (string, error) {
	if ref == "" {
		return "", apperr.Validation(op, "account is required")
	}
	acct, err := tx.FindAccountByCode(ctx, tenantID, ref)
	if err == nil {
		return acct.ID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}
	acct, err = tx.GetAccount(ctx, tenantID, ref)
	if err != nil {
		return "", store.Classify(op, err)
	}
	return acct.ID, nil
}
