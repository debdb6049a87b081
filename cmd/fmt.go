package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/cryptotax"
	"github.com/google/subcommands"
)

type fmtCmd struct {
	check bool
}

func (*fmtCmd) Name() string { return "fmt" }
func (*fmtCmd) Synopsis() string {
	return "validates and formats the transactions file into a canonical form"
}
func (*fmtCmd) Usage() string {
	return `ctax fmt [-check]

  Validates and formats the transactions file. This command reads all
  transactions, validates them, sorts them by timestamp (keeping the file
  order for equal timestamps), and writes them back in a canonical JSONL
  format.

Usage Examples:
# Formats the default transactions file in place.
$ ctax fmt

# Only reports the invalid transactions.
$ ctax fmt -check
`
}

func (p *fmtCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&p.check, "check", false, "Only validate, do not rewrite the file")
}

func (p *fmtCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
	txs, err := DecodeTransactions(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not load transactions: %v\n", err)
		return subcommands.ExitFailure
	}

	if errs := cryptotax.ValidateTransactions(cfg.Currency, txs); len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, err)
		}
		fmt.Fprintf(os.Stderr, "%d invalid transactions in %q\n", len(errs), cfg.Files.Transactions)
		return subcommands.ExitFailure
	}
	if p.check {
		fmt.Fprintf(os.Stderr, "%d valid transactions in %q\n", len(txs), cfg.Files.Transactions)
		return subcommands.ExitSuccess
	}

	cryptotax.SortTransactions(txs)
	err = writeFile(cfg.Files.Transactions, func(f *os.File) error { return cryptotax.EncodeTransactions(f, txs) })
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error saving formatted transactions %q: %v\n", cfg.Files.Transactions, err)
		return subcommands.ExitFailure
	}

	fmt.Fprintf(os.Stderr, "✅ Successfully formatted %d transactions.\n", len(txs))
	return subcommands.ExitSuccess
}
