// Package cmd implements the CLI application to compute crypto taxes.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/cryptotax"
	"github.com/google/subcommands"
	"github.com/joho/godotenv"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&reportCmd{}, "reports")
	c.Register(&gainsCmd{}, "reports")
	c.Register(&holdingCmd{}, "reports")
	c.Register(&AssistCmd{}, "reports")

	c.Register(&fetchCmd{}, "data")
	c.Register(&fmtCmd{}, "data")

	c.Register(&topicCmd{}, "help")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var configFile = flag.String("config", "cryptotax.toml", "Path to the TOML configuration file")
var transactionsFile = flag.String("transactions", "", "Path to the normalized transactions file (JSONL format). Overrides the configuration.")
var pricesFile = flag.String("prices", "", "Path to the prices file (JSONL format), or to a folder of <ASSET>.csv files. Overrides the configuration.")
var logLevel = flag.String("log-level", "", "Log level (debug, info, warn, error). Overrides the configuration.")

// LoadConfig reads the .env file, the configuration file and the global flags.
func LoadConfig() (*cryptotax.Config, error) {
	// .env is optional, it only feeds the environment overrides.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("cannot load .env: %w", err)
	}
	cfg, err := cryptotax.LoadConfig(*configFile)
	if err != nil {
		return nil, err
	}
	if *transactionsFile != "" {
		cfg.Files.Transactions = *transactionsFile
	}
	if *pricesFile != "" {
		cfg.Files.Prices = *pricesFile
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	cfg.Logger = cryptotax.NewLogger(cfg.Logging.Level)
	return cfg, nil
}

// DecodeTransactions reads the configured transactions file.
func DecodeTransactions(cfg *cryptotax.Config) ([]cryptotax.Transaction, error) {
	f, err := os.Open(cfg.Files.Transactions)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	txs, err := cryptotax.DecodeTransactions(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Files.Transactions, err)
	}
	return txs, nil
}

// DecodeMarket reads the configured prices: a JSONL file, or a folder of
// per asset CSV files named after the asset. A missing prices file yields an
// empty market.
func DecodeMarket(cfg *cryptotax.Config) (*cryptotax.Market, error) {
	m := cryptotax.NewMarket(cfg.Currency, cfg.MarketOptions()...)
	path := cfg.Files.Prices
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg.Logger.Warn().Str("path", path).Msg("prices file does not exist, using an empty market")
		return m, nil
	}
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := cryptotax.DecodeMarket(m, f); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return m, nil
	}

	files, err := filepath.Glob(filepath.Join(path, "*.csv"))
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		asset := strings.ToUpper(strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)))
		if err := decodeCSV(m, asset, file); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func decodeCSV(m *cryptotax.Market, asset, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := cryptotax.DecodePriceCSV(m, asset, f); err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	return nil
}

// EncodeMarket writes the market into the configured JSONL prices file.
func EncodeMarket(cfg *cryptotax.Config, m *cryptotax.Market) error {
	return writeFile(cfg.Files.Prices, func(f *os.File) error { return cryptotax.EncodeMarket(f, m) })
}

// writeFile replaces filename with the content written by encode, through a
// temporary file in the same folder.
func writeFile(filename string, encode func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := encode(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filename)
}

// NewBook loads the transactions and prices and runs the engines.
func NewBook(ctx context.Context, cfg *cryptotax.Config) (*cryptotax.Book, error) {
	txs, err := DecodeTransactions(cfg)
	if err != nil {
		return nil, fmt.Errorf("cannot load transactions: %w", err)
	}
	market, err := DecodeMarket(cfg)
	if err != nil {
		return nil, fmt.Errorf("cannot load prices: %w", err)
	}
	return cryptotax.Run(ctx, cfg, market, txs)
}

// NewReport loads everything and builds the report of a fiscal year.
func NewReport(ctx context.Context, cfg *cryptotax.Config, year int) (*cryptotax.FiscalYearReport, error) {
	book, err := NewBook(ctx, cfg)
	if err != nil {
		return nil, err
	}
	for _, asset := range book.Failed() {
		cfg.Logger.Error().Str("asset", asset).Err(book.Asset(asset).Err).Msg("asset excluded from the report")
	}
	return book.FiscalYearReport(year)
}

// lastYear is the default fiscal year: the one being filed.
func lastYear() int { return cryptotax.Today().Year() - 1 }

// printMarkdown renders markdown for the terminal, or prints it raw when it
// cannot.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(140))
	if err != nil {
		fmt.Print(md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}
