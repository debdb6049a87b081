package renderer

import (
	"fmt"
	"io"
	"strings"

	"github.com/etnz/cryptotax"
)

// GainsMarkdown renders the realized gains of a fiscal year with the audit of
// every disposal and the lots it consumed.
func GainsMarkdown(r *cryptotax.FiscalYearReport) string {
	var b strings.Builder
	header(&b, "Capital Gains Report", r)
	gainsTable(&b, r)

	for _, a := range r.Assets {
		if a.Failed() || len(a.Disposals) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s Disposals\n\n", a.Asset)
		row(&b, "Date", "Type", "Quantity", "Proceeds", "Cost Basis", "Gain", "Lots")
		fmt.Fprintln(&b, "|:---|:---|---:|---:|---:|---:|:---|")
		for _, d := range a.Disposals {
			lots := make([]string, 0, len(d.Lots))
			for _, f := range d.Lots {
				lots = append(lots, fmt.Sprintf("%s × %s", f.Quantity, f.Origin))
			}
			proceeds := d.Proceeds.String()
			if d.StalePrice {
				proceeds += " (stale)"
			}
			row(&b,
				local(d.Time, r.Timezone),
				string(d.Kind),
				d.Quantity.String(),
				proceeds,
				d.CostBasis.String(),
				d.Gain().SignedString(),
				strings.Join(lots, ", "),
			)
		}
		fmt.Fprintln(&b)
	}
	failures(&b, r)
	return b.String()
}

// gainsTable prints the realized gains per asset and their total.
func gainsTable(w io.Writer, r *cryptotax.FiscalYearReport) {
	ConditionalBlock(w, func(w io.Writer) bool {
		fmt.Fprint(w, "## Capital Gains per Asset\n\n")
		row(w, "Asset", "Proceeds", "Cost Basis", "Gains", "Losses", "Net")
		fmt.Fprintln(w, "|:---|---:|---:|---:|---:|---:|")
		printed := false
		for _, a := range r.Assets {
			if a.Failed() || len(a.Disposals) == 0 {
				continue
			}
			printed = true
			row(w, a.Asset, a.Proceeds.String(), a.CostBasis.String(), a.Gains.String(), a.Losses.String(), a.Net.SignedString())
		}
		t := r.Totals
		row(w, bold("Total"), bold(t.Proceeds.String()), bold(t.CostBasis.String()), bold(t.Gains.String()), bold(t.Losses.String()), bold(t.Net.SignedString()))
		fmt.Fprintln(w)
		return printed
	})
}

// failures prints the assets that could not be accounted for, and the
// transactions skipped for lack of a price.
func failures(w io.Writer, r *cryptotax.FiscalYearReport) {
	ConditionalBlock(w, func(w io.Writer) bool {
		fmt.Fprint(w, "## Failures\n\n")
		for _, a := range r.Assets {
			if a.Failed() {
				fmt.Fprintf(w, "* %s: %v\n", a.Asset, a.Err)
			}
		}
		fmt.Fprintln(w)
		return len(r.Failures) > 0
	})
	ConditionalBlock(w, func(w io.Writer) bool {
		fmt.Fprint(w, "## Skipped Transactions\n\n")
		row(w, "Asset", "Transaction", "Date", "Type", "Reason")
		fmt.Fprintln(w, "|:---|:---|:---|:---|:---|")
		skipped := false
		for _, a := range r.Assets {
			for _, g := range a.Gaps {
				skipped = true
				row(w, a.Asset, g.TxID, local(g.Time, r.Timezone), string(g.Kind), reason(g))
			}
		}
		fmt.Fprintln(w)
		return skipped
	})
}
