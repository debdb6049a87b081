package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/cryptotax"
	"github.com/google/subcommands"
)

type fetchCmd struct {
	asset  string
	from   string
	to     string
	source string
	id     string
}

func (*fetchCmd) Name() string     { return "fetch" }
func (*fetchCmd) Synopsis() string { return "fetches daily prices from an external provider" }
func (*fetchCmd) Usage() string {
	return `ctax fetch -asset <asset> [-from <date>] [-to <date>] [-source <provider>] [-id <coin id>]

Fetches daily fiat prices of an asset and merges them into the prices file.
Fetched points replace existing ones at the same instant.

By default the range starts at the asset's first transaction and ends today.

Supported providers:
  - eodhd:     EOD Historical Data, ticker <ASSET>-<CURRENCY>.CC. Requires an
               API key in the configuration or the EODHD_API_KEY environment
               variable.
  - coingecko: CoinGecko market charts. Requires the CoinGecko coin id, like
               "bitcoin", with -id.
`
}

func (c *fetchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asset, "asset", "", "Asset symbol, like BTC")
	f.StringVar(&c.from, "from", "", "First date to fetch (YYYY-MM-DD). Defaults to the asset's first transaction.")
	f.StringVar(&c.to, "to", cryptotax.Today().String(), "Last date to fetch (YYYY-MM-DD)")
	f.StringVar(&c.source, "source", "eodhd", "Price provider (eodhd, coingecko)")
	f.StringVar(&c.id, "id", "", "CoinGecko coin id, required with -source coingecko")
}

func (c *fetchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.asset == "" {
		fmt.Fprintln(os.Stderr, "-asset is required")
		return subcommands.ExitUsageError
	}
	asset := strings.ToUpper(c.asset)
	if c.source == "coingecko" && c.id == "" {
		fmt.Fprintln(os.Stderr, "-id is required with -source coingecko")
		return subcommands.ExitUsageError
	}

	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
	if info, err := os.Stat(cfg.Files.Prices); err == nil && info.IsDir() {
		fmt.Fprintf(os.Stderr, "Error: %q is a folder, fetch only writes JSONL prices files\n", cfg.Files.Prices)
		return subcommands.ExitFailure
	}

	to, err := cryptotax.ParseDate(c.to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing end date: %v\n", err)
		return subcommands.ExitUsageError
	}
	from, err := c.start(cfg, asset)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	market, err := DecodeMarket(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading prices: %v\n", err)
		return subcommands.ExitFailure
	}

	fetcher := cryptotax.NewPriceFetcher(cfg)
	var series *cryptotax.PriceSeries
	switch c.source {
	case "eodhd":
		series, err = fetcher.FetchEODHD(ctx, asset, from, to)
	case "coingecko":
		series, err = fetcher.FetchCoinGecko(ctx, asset, c.id, from, to)
	default:
		fmt.Fprintf(os.Stderr, "unknown provider %q\n", c.source)
		return subcommands.ExitUsageError
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching %s prices from %s: %v\n", asset, c.source, err)
		return subcommands.ExitFailure
	}

	market.Merge(asset, series)
	if err := EncodeMarket(cfg, market); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing prices file %q: %v\n", cfg.Files.Prices, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(os.Stderr, "Fetched %d %s prices from %s to %s into %s\n", series.Len(), asset, from, to, cfg.Files.Prices)
	return subcommands.ExitSuccess
}

// start returns the -from date, or the local date of the asset's first
// transaction.
func (c *fetchCmd) start(cfg *cryptotax.Config, asset string) (cryptotax.Date, error) {
	if c.from != "" {
		d, err := cryptotax.ParseDate(c.from)
		if err != nil {
			return d, fmt.Errorf("cannot parse start date: %w", err)
		}
		return d, nil
	}
	txs, err := DecodeTransactions(cfg)
	if err != nil {
		return cryptotax.Date{}, fmt.Errorf("cannot find the first %s transaction: %w", asset, err)
	}
	cal, err := cfg.Calendar()
	if err != nil {
		return cryptotax.Date{}, err
	}
	var first cryptotax.Date
	for _, tx := range txs {
		if tx.Asset != asset {
			continue
		}
		if d := cal.DateOf(tx.Time); first.IsZero() || d.Before(first) {
			first = d
		}
	}
	if first.IsZero() {
		return first, fmt.Errorf("no %s transaction, use -from", asset)
	}
	return first, nil
}
