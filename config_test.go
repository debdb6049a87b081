package cryptotax

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, FIFO, cfg.Method)
	assert.Equal(t, "EUR", cfg.Currency)
	assert.Equal(t, "Europe/Rome", cfg.Timezone)
	assert.Equal(t, Daily, cfg.Granularity)
	assert.Equal(t, MissingPriceIncomplete, cfg.MissingPrice)
	assert.Equal(t, InterpolateNone, cfg.Interpolation)
	assert.Equal(t, 24*time.Hour, cfg.GetStaleAfter())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ctax.toml")
	content := `
method = "lifo"
timezone = "UTC"
granularity = "monthly"
missing_price = "skip"
interpolation = "linear"
stale_after = "72h"
workers = 3

[files]
transactions = "2025.jsonl"

[prices]
rate_limit = 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(filepath.Join(dir, "missing.toml"), path)
	require.NoError(t, err)
	assert.Equal(t, LIFO, cfg.Method)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, Monthly, cfg.Granularity)
	assert.Equal(t, MissingPriceSkip, cfg.MissingPrice)
	assert.Equal(t, InterpolateLinear, cfg.Interpolation)
	assert.Equal(t, 72*time.Hour, cfg.GetStaleAfter())
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "2025.jsonl", cfg.Files.Transactions)
	assert.Equal(t, "prices.jsonl", cfg.Files.Prices, "unset keys keep their default")
	assert.Equal(t, 5, cfg.Prices.RateLimit)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CRYPTOTAX_METHOD", "AVERAGE")
	t.Setenv("CRYPTOTAX_TIMEZONE", "UTC")
	t.Setenv("CRYPTOTAX_WORKERS", "7")
	t.Setenv("EODHD_API_KEY", "from-env")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, AverageCost, cfg.Method)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, 7, cfg.Workers)
	assert.Equal(t, "from-env", cfg.Prices.EODHDKey)
}

func TestLoadConfig_MalformedEnv(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"workers", "CRYPTOTAX_WORKERS", "many"},
		{"method", "CRYPTOTAX_METHOD", "hifo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown method", `method = "hifo"`},
		{"unknown currency", `currency = "XYZ"`},
		{"unknown timezone", `timezone = "Mars/Olympus"`},
		{"invalid duration", `stale_after = "soon"`},
		{"yearly sampling", `granularity = "yearly"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ctax.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestConfig_MarketOptions(t *testing.T) {
	cfg := NewConfig()
	cfg.StaleAfter = "1h"
	m := NewMarket(cfg.Currency, cfg.MarketOptions()...)
	m.Add("BTC", ts("2025-01-01T00:00:00Z"), newDecimal(1))
	q, err := m.PriceAt("BTC", ts("2025-01-01T02:00:00Z"))
	require.NoError(t, err)
	assert.True(t, q.Stale)
}
