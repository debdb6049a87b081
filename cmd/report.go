package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/cryptotax"
	"github.com/etnz/cryptotax/renderer"
	"github.com/google/subcommands"
)

// reportCmd holds the flags for the 'report' subcommand.
type reportCmd struct {
	year   int
	json   bool
	method string
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "full fiscal year report: capital gains, rewards and holdings" }
func (*reportCmd) Usage() string {
	return `ctax report [-y <year>] [-json] [-method <method>]

  Computes the capital gains, the rewards income and the average holdings of
  a fiscal year. The JSON output is byte identical for the same inputs.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "y", lastYear(), "Fiscal year")
	f.BoolVar(&c.json, "json", false, "Print the report as JSON")
	f.StringVar(&c.method, "method", "", "Cost basis method (fifo, lifo, average). Overrides the configuration.")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
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
		fmt.Fprintf(os.Stderr, "Error computing report: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.json {
		data, err := json.Marshal(report)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding report: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Println(string(data))
		return subcommands.ExitSuccess
	}

	printMarkdown(renderer.ReportMarkdown(report))
	return subcommands.ExitSuccess
}
