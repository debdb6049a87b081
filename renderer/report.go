// Package renderer formats fiscal year reports as markdown.
package renderer

import (
	"fmt"
	"io"
	"strings"

	"github.com/etnz/cryptotax"
)

// ReportMarkdown renders the full fiscal year report: the figures to file,
// then the details per asset.
func ReportMarkdown(r *cryptotax.FiscalYearReport) string {
	var b strings.Builder
	header(&b, "Crypto Tax Report", r)
	summary(&b, r)
	gainsTable(&b, r)
	holdingTable(&b, r)
	rewards(&b, r)
	transfers(&b, r)
	missingPrices(&b, r)
	failures(&b, r)
	return b.String()
}

func summary(w io.Writer, r *cryptotax.FiscalYearReport) {
	t := r.Totals
	fmt.Fprint(w, "## Summary\n\n")
	row(w, "Figure", "Amount")
	fmt.Fprintln(w, "|:---|---:|")
	row(w, "Proceeds", t.Proceeds.String())
	row(w, "Cost basis", t.CostBasis.String())
	row(w, "Gains", t.Gains.String())
	row(w, "Losses", t.Losses.String())
	row(w, bold("Net capital gain"), bold(t.Net.SignedString()))
	row(w, "Income from rewards", t.Income.String())
	if t.HoldingIncomplete {
		row(w, "Average holding value", "n/a")
	} else {
		row(w, "Average holding value", t.AverageValue.String())
	}
	row(w, "Quadro W initial value", value(t.InitialValue, t.InitialMissing))
	row(w, "Quadro W final value", value(t.FinalValue, t.FinalMissing))
	if t.Gaps > 0 {
		row(w, "Skipped transactions", fmt.Sprintf("%d", t.Gaps))
	}
	fmt.Fprintln(w)
}

func rewards(w io.Writer, r *cryptotax.FiscalYearReport) {
	ConditionalBlock(w, func(w io.Writer) bool {
		fmt.Fprint(w, "## Rewards\n\n")
		row(w, "Asset", "Date", "Quantity", "Unit Price", "Value")
		fmt.Fprintln(w, "|:---|:---|---:|---:|---:|")
		found := false
		for _, a := range r.Assets {
			for _, i := range a.Income {
				found = true
				row(w, a.Asset, local(i.Time, r.Timezone), i.Quantity.String(), i.UnitPrice.String(), i.Value.String())
			}
		}
		fmt.Fprintln(w)
		return found
	})
}

// transfers lists the movements that left the ledger without a disposal.
func transfers(w io.Writer, r *cryptotax.FiscalYearReport) {
	ConditionalBlock(w, func(w io.Writer) bool {
		fmt.Fprint(w, "## Transfers and Fees\n\n")
		row(w, "Asset", "Transaction", "Date", "Kind", "Quantity", "Cost Basis")
		fmt.Fprintln(w, "|:---|:---|:---|:---|---:|---:|")
		found := false
		for _, a := range r.Assets {
			for _, t := range a.Transfers {
				found = true
				row(w, a.Asset, t.TxID, local(t.Time, r.Timezone), "own wallet", t.Quantity.String(), t.CostBasis.String())
			}
			for _, f := range a.FeeAdjustments {
				found = true
				row(w, a.Asset, f.TxID, local(f.Time, r.Timezone), "fee", f.Quantity.String(), f.CostBasis.String())
			}
		}
		fmt.Fprintln(w)
		return found
	})
}
