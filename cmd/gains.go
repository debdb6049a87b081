package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/cryptotax"
	"github.com/etnz/cryptotax/renderer"
	"github.com/google/subcommands"
)

// gainsCmd holds the flags for the 'gains' subcommand.
type gainsCmd struct {
	year   int
	method string
}

func (*gainsCmd) Name() string     { return "gains" }
func (*gainsCmd) Synopsis() string { return "realized gains with the audit of every disposal" }
func (*gainsCmd) Usage() string {
	return `ctax gains [-y <year>] [-method <method>]

  Displays the realized capital gains per asset and, for each disposal, the
  lots it consumed.
`
}

func (c *gainsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "y", lastYear(), "Fiscal year")
	f.StringVar(&c.method, "method", "", "Cost basis method (fifo, lifo, average). Overrides the configuration.")
}

func (c *gainsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}

	// Parse cost basis method
	if c.method != "" {
		method, err := cryptotax.ParseCostBasisMethod(c.method)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing cost basis method: %v\n", err)
			return subcommands.ExitUsageError
		}
		cfg.Method = method
	}

	report, err := NewReport(ctx, cfg, c.year)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error calculating gains: %v\n", err)
		return subcommands.ExitFailure
	}

	printMarkdown(renderer.GainsMarkdown(report))
	return subcommands.ExitSuccess
}
