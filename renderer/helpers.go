package renderer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/etnz/cryptotax"
)

// ConditionalBlock let you fully write a block and decide at the end to print it or not.
// If the block function returns true, the content is printed to w, otherwise it is discarded.
func ConditionalBlock(w io.Writer, block func(io.Writer) bool) {
	bw := &bytes.Buffer{}
	if block(bw) {
		io.Copy(w, bw)
	}
}

// row prints a markdown table row.
func row(w io.Writer, cells ...string) {
	fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
}

// bold wraps a cell in markdown bold.
func bold(s string) string { return "**" + s + "**" }

// local formats an instant in the report's time zone.
func local(t time.Time, tz string) string {
	if t.IsZero() {
		return "n/a"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02 15:04")
}

// average renders a holding average, or a marker when it could not be computed.
func average(h cryptotax.HoldingSummary) string {
	if h.Incomplete {
		return "n/a"
	}
	return h.AverageValue.String()
}

// value renders an amount, or a marker when it could not be priced.
func value(m cryptotax.Money, missing bool) string {
	if missing {
		return "n/a"
	}
	return m.String()
}

// reason explains why a transaction was skipped.
func reason(g cryptotax.Gap) string {
	if errors.Is(g.Err, cryptotax.ErrInvalidTransaction) {
		return g.Err.Error()
	}
	return "no price available"
}

// header prints the common title and parameters of every report.
func header(w io.Writer, title string, r *cryptotax.FiscalYearReport) {
	fmt.Fprintf(w, "# %s %d\n\n", title, r.Year)
	fmt.Fprintf(w, "Method: %s, currency: %s, time zone: %s, prices: `%s`\n\n", r.Method, r.Currency, r.Timezone, r.PriceVersion)
	if r.Incomplete() {
		fmt.Fprint(w, "> **Incomplete report**: some figures could not be computed, see the failures, missing prices and skipped transactions below.\n\n")
	}
}
