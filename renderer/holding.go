package renderer

import (
	"fmt"
	"io"
	"strings"

	"github.com/etnz/cryptotax"
)

// HoldingMarkdown renders the holding figures of a fiscal year: average
// value, days held and the quadro W values.
func HoldingMarkdown(r *cryptotax.FiscalYearReport) string {
	var b strings.Builder
	header(&b, "Holdings Report", r)
	holdingTable(&b, r)
	missingPrices(&b, r)
	failures(&b, r)
	return b.String()
}

func holdingTable(w io.Writer, r *cryptotax.FiscalYearReport) {
	ConditionalBlock(w, func(w io.Writer) bool {
		fmt.Fprint(w, "## Holdings per Asset\n\n")
		row(w, "Asset", "Opening", "Closing", "Days Held", "Average Value", "Initial Value", "Final Value")
		fmt.Fprintln(w, "|:---|---:|---:|---:|---:|---:|---:|")
		printed := false
		for _, a := range r.Assets {
			if a.Failed() {
				continue
			}
			printed = true
			h := a.Holding
			row(w,
				a.Asset,
				h.Opening.String(),
				h.Closing.String(),
				fmt.Sprintf("%d", h.DaysHeld),
				average(h),
				value(h.InitialValue, h.InitialMissing),
				value(h.FinalValue, h.FinalMissing),
			)
		}
		t := r.Totals
		avg := t.AverageValue.String()
		if t.HoldingIncomplete {
			avg = "n/a"
		}
		row(w, bold("Total"), "", "", "", bold(avg), bold(value(t.InitialValue, t.InitialMissing)), bold(value(t.FinalValue, t.FinalMissing)))
		fmt.Fprintln(w)
		return printed
	})
}

// missingPrices lists, per asset, the sample dates that could not be priced.
func missingPrices(w io.Writer, r *cryptotax.FiscalYearReport) {
	ConditionalBlock(w, func(w io.Writer) bool {
		fmt.Fprint(w, "## Missing Prices\n\n")
		missing := false
		for _, a := range r.Assets {
			h := a.Holding
			if len(h.Missing) == 0 {
				continue
			}
			missing = true
			fmt.Fprintf(w, "* %s: %d of %d samples, from %s to %s\n", a.Asset, len(h.Missing), h.Samples, h.Missing[0], h.Missing[len(h.Missing)-1])
		}
		fmt.Fprintln(w)
		return missing
	})
}

// SnapshotsMarkdown renders the sampled holdings of one asset.
func SnapshotsMarkdown(asset string, snapshots []cryptotax.HoldingSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s Daily Holdings\n\n", asset)
	row(&b, "Date", "Quantity", "Price", "Value")
	fmt.Fprintln(&b, "|:---|---:|---:|---:|")
	for _, s := range snapshots {
		if s.Quantity.IsZero() {
			continue
		}
		v := s.Value.String()
		switch {
		case s.Missing:
			v = "missing price"
		case s.Stale:
			v += " (stale)"
		}
		row(&b, s.On.String(), s.Quantity.String(), s.Price.String(), v)
	}
	return b.String()
}
