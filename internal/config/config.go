package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// FileName is the default config file name.
const FileName = "books.yaml"

// Config represents the top-level books.yaml configuration.
type Config struct {
	Business  BusinessConfig  `yaml:"business"`
	Database  DatabaseConfig  `yaml:"database"`
	Tax       TaxConfig       `yaml:"tax"`
	Invoicing InvoicingConfig `yaml:"invoicing"`
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Git       GitConfig       `yaml:"git"`
}

// BusinessConfig identifies the business and the tenant it books under.
type BusinessConfig struct {
	Name   string `yaml:"name"`
	Tenant string `yaml:"tenant"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// TaxConfig holds GST defaults for new invoices.
type TaxConfig struct {
	DefaultRate  string `yaml:"default_rate"` // decimal string, e.g. "0.15"
	GSTInclusive bool   `yaml:"gst_inclusive"`
}

// InvoicingConfig controls numbering and which accounts invoice postings use.
type InvoicingConfig struct {
	NumberPrefix        string `yaml:"number_prefix"`
	ReceivableCode      string `yaml:"receivable_code"`
	RevenueCode         string `yaml:"revenue_code"`
	CashCode            string `yaml:"cash_code"`
	ReverseSaleOnCancel bool   `yaml:"reverse_sale_on_cancel"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
	Output string `yaml:"output"` // stdout, stderr or a file path
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// GitConfig controls ledger snapshots committed to git.
type GitConfig struct {
	SnapshotDir string `yaml:"snapshot_dir"` // relative to the config file
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a books.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new business.
func Default(businessName, tenant string) *Config {
	return &Config{
		Business: BusinessConfig{
			Name:   businessName,
			Tenant: tenant,
		},
		Database: DatabaseConfig{
			Path: "books.db",
		},
		Tax: TaxConfig{
			DefaultRate:  "0.15",
			GSTInclusive: true,
		},
		Invoicing: InvoicingConfig{
			NumberPrefix:        "INV",
			ReceivableCode:      "1100",
			RevenueCode:         "4000",
			CashCode:            "1010",
			ReverseSaleOnCancel: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Git: GitConfig{
			SnapshotDir: "ledger",
			AuthorName:  "Books",
			AuthorEmail: "books@localhost",
		},
	}
}

// Environment overrides, applied after the file is loaded.
const (
	EnvDBPath    = "BOOKS_DB_PATH"
	EnvTenant    = "BOOKS_TENANT"
	EnvLogLevel  = "BOOKS_LOG_LEVEL"
	EnvLogFormat = "BOOKS_LOG_FORMAT"
	EnvAddr      = "BOOKS_ADDR"
	EnvTaxRate   = "BOOKS_TAX_RATE"
)

// ApplyEnv loads envFile (if it exists) into the process environment and
// then overrides config fields from BOOKS_* variables. Variables already set
// in the environment win over the file.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	c.Database.Path = getEnvOrDefault(EnvDBPath, c.Database.Path)
	c.Business.Tenant = getEnvOrDefault(EnvTenant, c.Business.Tenant)
	c.Log.Level = getEnvOrDefault(EnvLogLevel, c.Log.Level)
	c.Log.Format = getEnvOrDefault(EnvLogFormat, c.Log.Format)
	c.Server.Addr = getEnvOrDefault(EnvAddr, c.Server.Addr)
	c.Tax.DefaultRate = getEnvOrDefault(EnvTaxRate, c.Tax.DefaultRate)
	return nil
}

// TaxRate returns the default GST rate as a decimal.
func (c *Config) TaxRate() (decimal.Decimal, error) {
	if c.Tax.DefaultRate == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(c.Tax.DefaultRate)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing tax.default_rate %q: %w", c.Tax.DefaultRate, err)
	}
	return rate, nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.Business.Tenant == "" {
		return errors.New("business.tenant is required")
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	rate, err := c.TaxRate()
	if err != nil {
		return err
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("tax.default_rate %s must be in [0, 1)", rate)
	}
	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
