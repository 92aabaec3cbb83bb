// Package importer turns bank statement CSVs into journal postings.
package importer

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/books/internal/apperr"
	"github.com/cleared-dev/books/internal/journal"
	"github.com/cleared-dev/books/internal/logger"
	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/store"
)

// Line is one row of a bank statement. Amount is signed from the bank
// account's point of view: deposits are positive.
type Line struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Reference   string // stable per row, used to skip rows already imported
	Type        string
}

// Parser converts a bank CSV file into statement lines.
type Parser interface {
	Parse(r io.Reader) ([]Line, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// Formats lists the registered format names.
func (r *Registry) Formats() []string {
	names := make([]string, 0, len(r.parsers))
	for name := range r.parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	r.Register(&SimpleParser{})
	return r
}

// Poster posts a journal entry inside a unit of work.
type Poster interface {
	PostTx(ctx context.Context, tx *store.Tx, tenantID string, p journal.PostParams) (model.Transaction, error)
}

// Accounts says where each side of a statement line is posted.
type Accounts struct {
	BankAccountID    string // the account the statement belongs to
	IncomeAccountID  string // credited for deposits
	ExpenseAccountID string // debited for withdrawals
}

// Result summarises an import.
type Result struct {
	Posted     int
	Duplicates int // rows whose reference was already in the ledger
	Skipped    int // zero-amount rows
}

// Service posts parsed statements to the journal.
type Service struct {
	db     *store.DB
	poster Poster
	log    zerolog.Logger
}

// NewService creates an importer Service.
func NewService(db *store.DB, poster Poster, log zerolog.Logger) *Service {
	return &Service{db: db, poster: poster, log: logger.WithComponent(log, "importer")}
}

// Import posts every new line in one unit of work. Deposits debit the bank
// account and credit income; withdrawals debit expenses and credit the bank.
// Lines whose reference is already in the ledger are skipped, so importing
// the same statement twice posts nothing the second time.
func (s *Service) Import(ctx context.Context, tenantID string, lines []Line, accts Accounts) (Result, error) {
	const op = "importer.Import"
	if err := apperr.RequireTenant(op, tenantID); err != nil {
		return Result{}, err
	}
	if accts.BankAccountID == "" || accts.IncomeAccountID == "" || accts.ExpenseAccountID == "" {
		return Result{}, apperr.Validation(op, "bank, income and expense accounts are required")
	}

	var res Result
	err := s.db.InTx(ctx, func(tx *store.Tx) error {
		seen := make(map[string]bool, len(lines))
		for i, line := range lines {
			if line.Amount.IsZero() {
				res.Skipped++
				continue
			}
			if line.Reference != "" {
				dup, err := tx.HasReference(ctx, tenantID, line.Reference)
				if err != nil {
					return err
				}
				if dup || seen[line.Reference] {
					res.Duplicates++
					continue
				}
				seen[line.Reference] = true
			}

			p := journal.PostParams{
				Date:        line.Date,
				Description: line.Description,
				Reference:   line.Reference,
				Amount:      line.Amount.Abs(),
				Kind:        model.KindManual,
			}
			if line.Amount.IsPositive() {
				p.DebitAccountID, p.CreditAccountID = accts.BankAccountID, accts.IncomeAccountID
			} else {
				p.DebitAccountID, p.CreditAccountID = accts.ExpenseAccountID, accts.BankAccountID
			}
			if _, err := s.poster.PostTx(ctx, tx, tenantID, p); err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			res.Posted++
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.log.Info().Str("tenant", tenantID).Int("posted", res.Posted).Int("duplicates", res.Duplicates).
		Msg("bank statement imported")
	return res, nil
}

// ImportFile parses r with the named format and imports the result.
func (s *Service) ImportFile(ctx context.Context, tenantID string, reg *Registry, format string, r io.Reader, accts Accounts) (Result, error) {
	const op = "importer.ImportFile"
	p := reg.Get(format)
	if p == nil {
		return Result{}, apperr.Validation(op, "unknown statement format %q (known: %s)", format, strings.Join(reg.Formats(), ", "))
	}
	lines, err := p.Parse(r)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.ErrValidation, op, err)
	}
	return s.Import(ctx, tenantID, lines, accts)
}

// makeRef creates a reference like chase_20250103_GITHUBPRO_-4.00. Two rows
// on the same day with the same description and amount share a reference.
func makeRef(source string, date time.Time, desc string, amount decimal.Decimal) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, desc)
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	return fmt.Sprintf("%s_%s_%s_%s", source, date.Format("20060102"), prefix, amount.StringFixed(2))
}
