// Package store persists the ledger in SQLite. Every service operation runs
// inside one InTx call so that balance updates, postings and invoice state
// commit or roll back together.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/cleared-dev/books/internal/apperr"
)

var (
	// ErrNotFound is returned when a row does not exist for the tenant.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("store: duplicate")
)

const (
	dateFormat = "2006-01-02"
	timeFormat = time.RFC3339Nano
)

// DB manages the SQLite connection pool.
type DB struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens (creating if needed) the database at path and applies the
// schema. Write transactions take the database lock on BEGIN so concurrent
// balance updates serialize instead of losing increments.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer at a time; callers queue on the pool and honor their deadline.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &DB{db: db, path: path, now: time.Now}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Now returns the current time, truncated to the microsecond.
func (d *DB) Now() time.Time {
	return d.now().UTC().Truncate(time.Microsecond)
}

// SetClock replaces the clock used for created/updated timestamps.
func (d *DB) SetClock(now func() time.Time) {
	d.now = now
}

// Tx is one unit of work.
type Tx struct {
	tx  *sql.Tx
	now time.Time
}

// Now returns the timestamp shared by every write in this unit of work.
func (t *Tx) Now() time.Time {
	return t.now
}

// InTx runs fn inside a transaction. The transaction commits when fn returns
// nil and rolls back on error or panic. Context cancellation or deadline
// expiry at any point rolls back and yields apperr.ErrTimeout.
func (d *DB) InTx(ctx context.Context, fn func(*Tx) error) error {
	if err := ctx.Err(); err != nil {
		return apperr.FromContext("store.InTx", err)
	}

	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.FromContext("store.InTx", fmt.Errorf("beginning transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: sqlTx, now: d.Now()}); err != nil {
		rbErr := sqlTx.Rollback()
		if ctxErr := ctx.Err(); ctxErr != nil {
			// database/sql may surface ErrTxDone instead of the context error.
			return apperr.Wrap(apperr.ErrTimeout, "store.InTx", fmt.Errorf("%w (%v)", ctxErr, err))
		}
		if rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", apperr.FromContext("store.InTx", err), rbErr)
		}
		return apperr.FromContext("store.InTx", err)
	}

	if err := ctx.Err(); err != nil {
		_ = sqlTx.Rollback()
		return apperr.FromContext("store.InTx", err)
	}

	if err := sqlTx.Commit(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return apperr.FromContext("store.InTx", ctxErr)
		}
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Classify attaches the matching apperr kind to store errors: ErrNotFound
// becomes apperr.ErrNotFound and ErrDuplicate becomes apperr.ErrConflict.
// Other errors pass through unchanged.
func Classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return apperr.Wrap(apperr.ErrNotFound, op, err)
	case errors.Is(err, ErrDuplicate):
		return apperr.Wrap(apperr.ErrConflict, op, err)
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func isUnique(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatDate(t time.Time) string {
	return t.Format(dateFormat)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
