package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/cryptotax"
	"github.com/etnz/cryptotax/renderer"
	"github.com/google/subcommands"
)

// holdingCmd holds the flags for the 'holding' subcommand.
type holdingCmd struct {
	year        int
	granularity string
	daily       string
}

func (*holdingCmd) Name() string     { return "holding" }
func (*holdingCmd) Synopsis() string { return "average holdings, days held and quadro W values" }
func (*holdingCmd) Usage() string {
	return `ctax holding [-y <year>] [-g <granularity>] [-daily <asset>]

  Displays the yearly holding figures of every asset. With -daily, displays
  the sampled holdings of one asset instead.
`
}

func (c *holdingCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "y", lastYear(), "Fiscal year")
	f.StringVar(&c.granularity, "g", "", "Sampling granularity (day, week, month, quarter). Overrides the configuration.")
	f.StringVar(&c.daily, "daily", "", "Asset whose sampled holdings to display")
}

func (c *holdingCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
	if c.granularity != "" {
		p, err := cryptotax.ParsePeriod(c.granularity)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing granularity: %v\n", err)
			return subcommands.ExitUsageError
		}
		cfg.Granularity = p
		if err := cfg.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
	}

	if c.daily == "" {
		report, err := NewReport(ctx, cfg, c.year)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating holding report: %v\n", err)
			return subcommands.ExitFailure
		}
		printMarkdown(renderer.HoldingMarkdown(report))
		return subcommands.ExitSuccess
	}

	asset := strings.ToUpper(c.daily)
	txs, err := DecodeTransactions(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading transactions: %v\n", err)
		return subcommands.ExitFailure
	}
	market, err := DecodeMarket(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading prices: %v\n", err)
		return subcommands.ExitFailure
	}
	book, err := cryptotax.Run(ctx, cfg, market, txs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running the accounting: %v\n", err)
		return subcommands.ExitFailure
	}
	ab := book.Asset(asset)
	if ab == nil {
		fmt.Fprintf(os.Stderr, "No transaction for asset %q\n", asset)
		return subcommands.ExitFailure
	}
	if ab.Err != nil {
		fmt.Fprintf(os.Stderr, "Error accounting for %s: %v\n", asset, ab.Err)
		return subcommands.ExitFailure
	}

	aggregator, err := cryptotax.NewHoldingAggregator(cfg, market)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating holding aggregator: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.SnapshotsMarkdown(asset, aggregator.Snapshots(asset, ab.Timeline, c.year)))
	return subcommands.ExitSuccess
}
