package cryptotax

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	toml "github.com/pelletier/go-toml/v2"
)

// DefaultCurrency is the reporting currency of Italian filings.
const DefaultCurrency = "EUR"

// DefaultTimezone is the civil calendar of Italian fiscal years.
const DefaultTimezone = "Europe/Rome"

// MissingPricePolicy decides what the holding average does when a sample
// cannot be priced.
type MissingPricePolicy int

const (
	// MissingPriceIncomplete flags the average as incomplete and does not report it.
	MissingPriceIncomplete MissingPricePolicy = iota
	// MissingPriceSkip averages over the priced samples only.
	MissingPriceSkip
)

func (p MissingPricePolicy) String() string {
	switch p {
	case MissingPriceIncomplete:
		return "incomplete"
	case MissingPriceSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// ParseMissingPricePolicy parses "incomplete" or "skip".
func ParseMissingPricePolicy(s string) (MissingPricePolicy, error) {
	switch s {
	case "incomplete":
		return MissingPriceIncomplete, nil
	case "skip":
		return MissingPriceSkip, nil
	default:
		return 0, fmt.Errorf("unknown missing price policy: %q", s)
	}
}

func (p MissingPricePolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *MissingPricePolicy) UnmarshalText(text []byte) (err error) {
	*p, err = ParseMissingPricePolicy(string(text))
	return err
}

// Config holds everything a run depends on. It is passed explicitly, nothing
// is read from global state during a run.
type Config struct {
	Method        CostBasisMethod    `toml:"method"`
	Currency      string             `toml:"currency"`
	Timezone      string             `toml:"timezone"`
	Granularity   Period             `toml:"granularity"`
	MissingPrice  MissingPricePolicy `toml:"missing_price"`
	Interpolation Interpolation      `toml:"interpolation"`
	StaleAfter    string             `toml:"stale_after"` // duration string, default "24h"
	Workers       int                `toml:"workers"`
	Files         FilesConfig        `toml:"files"`
	Prices        PricesConfig       `toml:"prices"`
	Gemini        GeminiConfig       `toml:"gemini"`
	Logging       LoggingConfig      `toml:"logging"`

	// Logger receives the run's logs. Nil means silent.
	Logger *Logger `toml:"-"`
}

// FilesConfig holds the default input files.
type FilesConfig struct {
	Transactions string `toml:"transactions"`
	Prices       string `toml:"prices"`
}

// PricesConfig holds the price providers configuration.
type PricesConfig struct {
	EODHDKey     string `toml:"eodhd_api_key"`
	EODHDURL     string `toml:"eodhd_url"`
	CoinGeckoURL string `toml:"coingecko_url"`
	RateLimit    int    `toml:"rate_limit"` // requests per second
}

// GeminiConfig holds the assistant configuration.
type GeminiConfig struct {
	Model string `toml:"model"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `toml:"level"`
}

// NewConfig returns a Config with the Italian defaults.
func NewConfig() *Config {
	return &Config{
		Method:        FIFO,
		Currency:      DefaultCurrency,
		Timezone:      DefaultTimezone,
		Granularity:   Daily,
		MissingPrice:  MissingPriceIncomplete,
		Interpolation: InterpolateNone,
		StaleAfter:    "24h",
		Workers:       runtime.NumCPU(),
		Files: FilesConfig{
			Transactions: "transactions.jsonl",
			Prices:       "prices.jsonl",
		},
		Prices: PricesConfig{
			EODHDURL:     "https://eodhd.com/api",
			CoinGeckoURL: "https://api.coingecko.com/api/v3",
			RateLimit:    2,
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Missing files are skipped, later files override earlier ones.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) error {
	if v := os.Getenv("CRYPTOTAX_METHOD"); v != "" {
		m, err := ParseCostBasisMethod(strings.ToLower(v))
		if err != nil {
			return fmt.Errorf("CRYPTOTAX_METHOD: %w", err)
		}
		config.Method = m
	}
	if v := os.Getenv("CRYPTOTAX_TIMEZONE"); v != "" {
		config.Timezone = v
	}
	if v := os.Getenv("CRYPTOTAX_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CRYPTOTAX_WORKERS: %w", err)
		}
		config.Workers = n
	}
	if v := os.Getenv("CRYPTOTAX_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("EODHD_API_KEY"); v != "" && config.Prices.EODHDKey == "" {
		config.Prices.EODHDKey = v
	}
	return nil
}

// Validate checks that the configuration can be used for a run.
func (c *Config) Validate() error {
	if money.GetCurrency(c.Currency) == nil {
		return fmt.Errorf("unknown currency %q", c.Currency)
	}
	if _, err := c.Calendar(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if _, err := time.ParseDuration(c.StaleAfter); err != nil {
		return fmt.Errorf("invalid stale_after %q: %w", c.StaleAfter, err)
	}
	if c.Granularity > Quarterly {
		return fmt.Errorf("granularity %s is too coarse for holding averages", c.Granularity)
	}
	return nil
}

// Calendar returns the fiscal calendar of the configured time zone.
func (c *Config) Calendar() (Calendar, error) { return NewCalendar(c.Timezone) }

// GetStaleAfter parses and returns the staleness threshold.
func (c *Config) GetStaleAfter() time.Duration {
	d, err := time.ParseDuration(c.StaleAfter)
	if err != nil {
		return DefaultStaleAfter
	}
	return d
}

// MarketOptions returns the price oracle options matching the configuration.
func (c *Config) MarketOptions() []MarketOption {
	return []MarketOption{WithStaleAfter(c.GetStaleAfter()), WithInterpolation(c.Interpolation)}
}

func (c *Config) logger() *Logger {
	if c.Logger == nil {
		return NewSilentLogger()
	}
	return c.Logger
}
