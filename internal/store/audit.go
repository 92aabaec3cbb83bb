package store

import (
	"context"
	"fmt"

	"github.com/cleared-dev/books/internal/model"
)

// InsertAuditEntry appends a row to the audit log.
func (t *Tx) InsertAuditEntry(ctx context.Context, e model.AuditEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO audit_log (tenant_id, timestamp, action, entity_id, details)
		VALUES (?, ?, ?, ?, ?)`,
		e.TenantID, formatTime(e.Timestamp), e.Action, e.EntityID, e.Details,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// ListAuditEntries returns the tenant's audit log in insertion order.
func (t *Tx) ListAuditEntries(ctx context.Context, tenantID string) ([]model.AuditEntry, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, tenant_id, timestamp, action, entity_id, details
		FROM audit_log WHERE tenant_id = ? ORDER BY id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing audit log: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var (
			e  model.AuditEntry
			ts string
		)
		if err := rows.Scan(&e.Seq, &e.TenantID, &ts, &e.Action, &e.EntityID, &e.Details); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
