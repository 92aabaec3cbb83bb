package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/books/internal/accounts"
	"github.com/cleared-dev/books/internal/config"
	"github.com/cleared-dev/books/internal/directory"
	"github.com/cleared-dev/books/internal/httpapi"
	"github.com/cleared-dev/books/internal/importer"
	"github.com/cleared-dev/books/internal/invoice"
	"github.com/cleared-dev/books/internal/journal"
	"github.com/cleared-dev/books/internal/logger"
	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/reports"
	"github.com/cleared-dev/books/internal/store"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
	tenant     string
	timeout    time.Duration
}

// app is an opened books project.
type app struct {
	cfg    *config.Config
	dir    string // directory holding the config file
	log    zerolog.Logger
	closer io.Closer
	db     *store.DB
	tenant string

	accounts  *accounts.Service
	journal   *journal.Service
	invoices  *invoice.Service
	directory *directory.Service
	reports   *reports.Reporter
	importer  *importer.Service
}

// openApp loads configuration, opens the database and wires the services.
func openApp(g *globalFlags) (*app, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no %s at %s; run books init first", config.FileName, g.configPath)
		}
		return nil, err
	}
	if err := cfg.ApplyEnv(g.envFile); err != nil {
		return nil, err
	}
	if g.tenant != "" {
		cfg.Business.Tenant = g.tenant
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	lc := logger.DefaultConfig()
	lc.Level, lc.Format, lc.Output = cfg.Log.Level, cfg.Log.Format, cfg.Log.Output
	log, closer, err := logger.New(lc)
	if err != nil {
		return nil, err
	}

	dbPath := cfg.Database.Path
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(filepath.Dir(g.configPath), dbPath)
	}
	db, err := store.Open(dbPath)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	settings, err := invoiceSettings(cfg)
	if err != nil {
		_ = db.Close()
		_ = closer.Close()
		return nil, err
	}

	a := &app{cfg: cfg, dir: filepath.Dir(g.configPath), log: log, closer: closer, db: db, tenant: cfg.Business.Tenant}
	a.accounts = accounts.NewService(db, log)
	a.journal = journal.NewService(db, a.accounts, log)
	a.invoices = invoice.NewService(db, a.accounts, a.journal, settings, log)
	a.directory = directory.NewService(db, log)
	a.reports = reports.New(db)
	a.importer = importer.NewService(db, a.journal, log)
	return a, nil
}

func invoiceSettings(cfg *config.Config) (invoice.Settings, error) {
	s := invoice.DefaultSettings()
	rate, err := cfg.TaxRate()
	if err != nil {
		return invoice.Settings{}, err
	}
	s.DefaultTaxRate = rate
	s.GSTInclusive = cfg.Tax.GSTInclusive
	s.ReverseSaleOnCancel = cfg.Invoicing.ReverseSaleOnCancel
	if cfg.Invoicing.NumberPrefix != "" {
		s.NumberPrefix = cfg.Invoicing.NumberPrefix
	}
	if cfg.Invoicing.ReceivableCode != "" {
		s.Roles.Receivable = cfg.Invoicing.ReceivableCode
	}
	if cfg.Invoicing.RevenueCode != "" {
		s.Roles.Revenue = cfg.Invoicing.RevenueCode
	}
	if cfg.Invoicing.CashCode != "" {
		s.Roles.Cash = cfg.Invoicing.CashCode
	}
	return s, nil
}

func (a *app) services() httpapi.Services {
	return httpapi.Services{
		Accounts:  a.accounts,
		Journal:   a.journal,
		Invoices:  a.invoices,
		Directory: a.directory,
		Reports:   a.reports,
	}
}

func (a *app) Close() error {
	err := a.db.Close()
	_ = a.closer.Close()
	return err
}

// withApp opens the project for the duration of fn with a bounded context.
func withApp(cmd *cobra.Command, g *globalFlags, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(g)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return fn(ctx, a)
}

// resolveAccount accepts an account code or ID.
func (a *app) resolveAccount(ctx context.Context, ref string) (model.Account, error) {
	if ref == "" {
		return model.Account{}, errors.New("account is required")
	}
	acct, err := a.accounts.FindByCode(ctx, a.tenant, ref)
	if err == nil {
		return acct, nil
	}
	return a.accounts.Get(ctx, a.tenant, ref)
}

// resolveOptionalAccount is resolveAccount that passes empty refs through.
func (a *app) resolveOptionalAccount(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	acct, err := a.resolveAccount(ctx, ref)
	if err != nil {
		return "", err
	}
	return acct.ID, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("dates must look like 2006-01-02, got %q", s)
	}
	return t, nil
}

func openOutput(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{cmd.OutOrStdout()}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
