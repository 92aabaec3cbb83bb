package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default("Test Biz", "acme")
	cfg.Invoicing.NumberPrefix = "ACME"
	cfg.Tax.GSTInclusive = false

	path := filepath.Join(t.TempDir(), FileName)
	err := Save(path, cfg)
	require.NoError(t, err)

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg.Business, got.Business)
	assert.Equal(t, cfg.Database.Path, got.Database.Path)
	assert.Equal(t, cfg.Tax, got.Tax)
	assert.Equal(t, "ACME", got.Invoicing.NumberPrefix)
	assert.Equal(t, cfg.Invoicing, got.Invoicing)
	assert.Equal(t, cfg.Log, got.Log)
	assert.Equal(t, cfg.Server.Addr, got.Server.Addr)
}

func TestDefaults(t *testing.T) {
	cfg := Default("My Company", "my-co")

	assert.Equal(t, "My Company", cfg.Business.Name)
	assert.Equal(t, "my-co", cfg.Business.Tenant)
	assert.Equal(t, "books.db", cfg.Database.Path)
	assert.Equal(t, "0.15", cfg.Tax.DefaultRate)
	assert.True(t, cfg.Tax.GSTInclusive)
	assert.Equal(t, "INV", cfg.Invoicing.NumberPrefix)
	assert.Equal(t, "1100", cfg.Invoicing.ReceivableCode)
	assert.Equal(t, "4000", cfg.Invoicing.RevenueCode)
	assert.Equal(t, "1010", cfg.Invoicing.CashCode)
	assert.True(t, cfg.Invoicing.ReverseSaleOnCancel)
	require.NoError(t, cfg.Validate())

	rate, err := cfg.TaxRate()
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.15")))
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestYAMLFormat(t *testing.T) {
	cfg := Default("Test Biz", "test-biz")
	path := filepath.Join(t.TempDir(), FileName)
	err := Save(path, cfg)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "name: Test Biz")
	assert.Contains(t, contents, "tenant: test-biz")
	assert.Contains(t, contents, `default_rate: "0.15"`)
	assert.Contains(t, contents, "gst_inclusive: true")
	assert.Contains(t, contents, "number_prefix: INV")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing tenant", func(c *Config) { c.Business.Tenant = "" }},
		{"missing db path", func(c *Config) { c.Database.Path = "" }},
		{"bad rate", func(c *Config) { c.Tax.DefaultRate = "fifteen" }},
		{"negative rate", func(c *Config) { c.Tax.DefaultRate = "-0.1" }},
		{"rate of one", func(c *Config) { c.Tax.DefaultRate = "1" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("Biz", "biz")
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestApplyEnv_ProcessEnvironment(t *testing.T) {
	t.Setenv(EnvDBPath, "/tmp/other.db")
	t.Setenv(EnvTaxRate, "0.10")

	cfg := Default("Biz", "biz")
	require.NoError(t, cfg.ApplyEnv(""))

	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, "0.10", cfg.Tax.DefaultRate)
	assert.Equal(t, "biz", cfg.Business.Tenant)
}

func TestApplyEnv_DotEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("BOOKS_TENANT=from-dotenv\nBOOKS_LOG_LEVEL=debug\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv(EnvTenant)
		os.Unsetenv(EnvLogLevel)
	})

	cfg := Default("Biz", "biz")
	require.NoError(t, cfg.ApplyEnv(envFile))

	assert.Equal(t, "from-dotenv", cfg.Business.Tenant)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestApplyEnv_MissingFileIgnored(t *testing.T) {
	cfg := Default("Biz", "biz")
	require.NoError(t, cfg.ApplyEnv(filepath.Join(t.TempDir(), ".env")))
	assert.Equal(t, "books.db", cfg.Database.Path)
}
