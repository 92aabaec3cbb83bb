// Package audit records every ledger and invoice mutation in the same unit
// of work as the mutation itself.
package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/store"
)

// Actions.
const (
	AccountCreate        = "account.create"
	AccountUpdate        = "account.update"
	AccountDelete        = "account.delete"
	AccountAdjust        = "account.adjust"
	TransactionCreate    = "transaction.create"
	TransactionEdit      = "transaction.edit"
	TransactionDelete    = "transaction.delete"
	InvoiceCreate        = "invoice.create"
	InvoiceEdit          = "invoice.edit"
	InvoiceTransition    = "invoice.transition"
	InvoiceRecordSale    = "invoice.record_sale"
	InvoiceRecordPayment = "invoice.record_payment"
	InvoiceDelete        = "invoice.delete"
	ChartSetup           = "chart.setup"
	CustomerCreate       = "customer.create"
	CategoryCreate       = "category.create"
)

// Header is the CSV header for exported audit logs.
const Header = "seq,timestamp,tenant_id,action,entity_id,details"

const (
	numFields   = 6
	colSeq      = 0
	colTime     = 1
	colTenant   = 2
	colAction   = 3
	colEntityID = 4
	colDetails  = 5
)

// Record appends an audit entry inside tx.
func Record(ctx context.Context, tx *store.Tx, tenantID, action, entityID, format string, args ...any) error {
	e := model.AuditEntry{
		TenantID:  tenantID,
		Timestamp: tx.Now(),
		Action:    action,
		EntityID:  entityID,
		Details:   fmt.Sprintf(format, args...),
	}
	if err := tx.InsertAuditEntry(ctx, e); err != nil {
		return fmt.Errorf("recording %s: %w", action, err)
	}
	return nil
}

// List returns a tenant's audit entries in the order they were recorded.
func List(ctx context.Context, db *store.DB, tenantID string) ([]model.AuditEntry, error) {
	var entries []model.AuditEntry
	err := db.InTx(ctx, func(tx *store.Tx) error {
		var err error
		entries, err = tx.ListAuditEntries(ctx, tenantID)
		return err
	})
	return entries, err
}

// MarshalEntry converts an entry to a CSV row.
func MarshalEntry(e model.AuditEntry) []string {
	row := make([]string, numFields)
	row[colSeq] = strconv.FormatInt(e.Seq, 10)
	row[colTime] = e.Timestamp.Format(time.RFC3339)
	row[colTenant] = e.TenantID
	row[colAction] = e.Action
	row[colEntityID] = e.EntityID
	row[colDetails] = e.Details
	return row
}

// UnmarshalEntry converts a CSV row to an entry.
func UnmarshalEntry(record []string) (model.AuditEntry, error) {
	if len(record) != numFields {
		return model.AuditEntry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	seq, err := strconv.ParseInt(record[colSeq], 10, 64)
	if err != nil {
		return model.AuditEntry{}, fmt.Errorf("parsing seq %q: %w", record[colSeq], err)
	}

	ts, err := time.Parse(time.RFC3339, record[colTime])
	if err != nil {
		return model.AuditEntry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTime], err)
	}

	return model.AuditEntry{
		Seq:       seq,
		TenantID:  record[colTenant],
		Timestamp: ts,
		Action:    record[colAction],
		EntityID:  record[colEntityID],
		Details:   record[colDetails],
	}, nil
}

// WriteCSV writes entries with a header row.
func WriteCSV(w io.Writer, entries []model.AuditEntry) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads entries written by WriteCSV.
func ReadCSV(r io.Reader) ([]model.AuditEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []model.AuditEntry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
