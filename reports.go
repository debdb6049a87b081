package cryptotax

import (
	"time"
)

// AssetReport holds the figures of one asset for a fiscal year.
type AssetReport struct {
	Asset string

	Disposals []Disposal
	Proceeds  Money
	CostBasis Money
	Gains     Money // Gains is the sum of the positive gains.
	Losses    Money // Losses is the sum of the losses, as a negative amount.
	Net       Money

	Income      []Income
	IncomeTotal Money

	FeeAdjustments []FeeAdjustment
	FeesCostBasis  Money
	Transfers      []Transfer
	Gaps           []Gap

	Holding HoldingSummary

	// Err is set when the asset's engine halted. No figure is reported then.
	Err error
}

// Failed reports whether the asset could not be accounted for.
func (r *AssetReport) Failed() bool { return r.Err != nil }

func (r *AssetReport) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("asset", r.Asset)
	if r.Err != nil {
		w.Append("error", r.Err.Error())
		return w.MarshalJSON()
	}
	w.Append("proceeds", r.Proceeds)
	w.Append("cost_basis", r.CostBasis)
	w.Append("gains", r.Gains)
	w.Append("losses", r.Losses)
	w.Append("net", r.Net)
	w.Append("income", r.IncomeTotal)
	w.Append("fees_cost_basis", r.FeesCostBasis)
	w.Append("holding", r.Holding)
	w.Optional("disposals", r.Disposals)
	w.Optional("rewards", r.Income)
	w.Optional("fee_adjustments", r.FeeAdjustments)
	w.Optional("transfers", r.Transfers)
	w.Optional("gaps", r.Gaps)
	return w.MarshalJSON()
}

// ReportTotals sums the asset reports that did not fail.
type ReportTotals struct {
	Proceeds  Money
	CostBasis Money
	Gains     Money
	Losses    Money
	Net       Money
	Income    Money

	AverageValue      Money // AverageValue is the total average holding value.
	HoldingIncomplete bool  // HoldingIncomplete is set when an asset's average could not be computed.
	InitialValue      Money
	InitialMissing    bool // InitialMissing is set when an asset's initial value could not be priced.
	FinalValue        Money
	FinalMissing      bool // FinalMissing is set when an asset's final value could not be priced.

	// Gaps counts the transactions skipped for lack of a price or rejected as
	// invalid: their gains or income are missing from the figures above.
	Gaps int
}

func (t ReportTotals) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("proceeds", t.Proceeds)
	w.Append("cost_basis", t.CostBasis)
	w.Append("gains", t.Gains)
	w.Append("losses", t.Losses)
	w.Append("net", t.Net)
	w.Append("income", t.Income)
	if t.HoldingIncomplete {
		w.Append("holding_incomplete", true)
	} else {
		w.Append("average_value", t.AverageValue)
	}
	if t.InitialMissing {
		w.Append("initial_value_missing", true)
	} else {
		w.Append("initial_value", t.InitialValue)
	}
	if t.FinalMissing {
		w.Append("final_value_missing", true)
	} else {
		w.Append("final_value", t.FinalValue)
	}
	w.Optional("gaps", t.Gaps)
	return w.MarshalJSON()
}

// FiscalYearReport groups a Book's records by fiscal year. It only sorts,
// filters and sums: two reports of the same book and year are identical.
type FiscalYearReport struct {
	Year         int
	Currency     string
	Method       CostBasisMethod
	Timezone     string
	Granularity  Period
	MissingPrice MissingPricePolicy
	PriceVersion string

	Assets   []*AssetReport // Assets is sorted by symbol.
	Totals   ReportTotals
	Failures []string // Failures lists the assets whose engine halted.
}

// Incomplete reports whether some figures are missing from the report.
func (r *FiscalYearReport) Incomplete() bool {
	t := r.Totals
	return len(r.Failures) > 0 || t.HoldingIncomplete || t.InitialMissing || t.FinalMissing || t.Gaps > 0
}

func (r *FiscalYearReport) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("year", r.Year)
	w.Append("currency", r.Currency)
	w.Append("method", r.Method)
	w.Append("timezone", r.Timezone)
	w.Append("granularity", r.Granularity)
	w.Append("missing_price", r.MissingPrice)
	w.Append("prices", r.PriceVersion)
	w.Append("totals", r.Totals)
	w.Optional("failures", r.Failures)
	w.Append("assets", r.Assets)
	return w.MarshalJSON()
}

// Asset returns the report of an asset, or nil.
func (r *FiscalYearReport) Asset(asset string) *AssetReport {
	for _, a := range r.Assets {
		if a.Asset == asset {
			return a
		}
	}
	return nil
}

// within returns the records of a slice whose timestamp falls in the year.
func within[T any](records []T, year int, cal Calendar, at func(T) time.Time) []T {
	var out []T
	for _, r := range records {
		if cal.YearOf(at(r)) == year {
			out = append(out, r)
		}
	}
	return out
}

// gapTime returns the time a gap is reported at. A record rejected for its
// missing timestamp belongs to every year.
func (b *Book) gapTime(year int) func(Gap) time.Time {
	return func(g Gap) time.Time {
		if g.Time.IsZero() {
			return b.calendar.EndOfDay(b.calendar.FiscalYear(year).From)
		}
		return g.Time
	}
}

// FiscalYearReport builds the report of a fiscal year. Assets with neither
// records nor holdings during the year are left out.
func (b *Book) FiscalYearReport(year int) (*FiscalYearReport, error) {
	agg, err := NewHoldingAggregator(b.cfg, b.oracle)
	if err != nil {
		return nil, err
	}
	zero := M(0, b.Currency)
	r := &FiscalYearReport{
		Year:         year,
		Currency:     b.Currency,
		Method:       b.Method,
		Timezone:     b.calendar.Location().String(),
		Granularity:  b.cfg.Granularity,
		MissingPrice: b.cfg.MissingPrice,
		PriceVersion: b.PriceVersion,
		Totals: ReportTotals{
			Proceeds:     zero,
			CostBasis:    zero,
			Gains:        zero,
			Losses:       zero,
			Net:          zero,
			Income:       zero,
			AverageValue: zero,
			InitialValue: zero,
			FinalValue:   zero,
		},
	}

	for _, asset := range b.Assets() {
		ab := b.assets[asset]
		if ab.Err != nil {
			r.Assets = append(r.Assets, &AssetReport{Asset: asset, Err: ab.Err})
			r.Failures = append(r.Failures, asset)
			continue
		}

		a := &AssetReport{
			Asset:          asset,
			Disposals:      within(ab.Disposals, year, b.calendar, func(d Disposal) time.Time { return d.Time }),
			Income:         within(ab.Income, year, b.calendar, func(i Income) time.Time { return i.Time }),
			FeeAdjustments: within(ab.FeeAdjustments, year, b.calendar, func(f FeeAdjustment) time.Time { return f.Time }),
			Transfers:      within(ab.Transfers, year, b.calendar, func(t Transfer) time.Time { return t.Time }),
			Gaps:           within(ab.Gaps, year, b.calendar, b.gapTime(year)),
			Holding:        agg.Aggregate(asset, ab.Timeline, year),
			Proceeds:       zero,
			CostBasis:      zero,
			Gains:          zero,
			Losses:         zero,
			IncomeTotal:    zero,
			FeesCostBasis:  zero,
		}
		active := len(a.Disposals)+len(a.Income)+len(a.FeeAdjustments)+len(a.Transfers)+len(a.Gaps) > 0
		if !active && a.Holding.DaysHeld == 0 && a.Holding.Opening.IsZero() {
			continue
		}

		for _, d := range a.Disposals {
			a.Proceeds = a.Proceeds.Add(d.Proceeds)
			a.CostBasis = a.CostBasis.Add(d.CostBasis)
			if g := d.Gain(); g.IsNegative() {
				a.Losses = a.Losses.Add(g)
			} else {
				a.Gains = a.Gains.Add(g)
			}
		}
		a.Net = a.Gains.Add(a.Losses)
		for _, i := range a.Income {
			a.IncomeTotal = a.IncomeTotal.Add(i.Value)
		}
		for _, f := range a.FeeAdjustments {
			a.FeesCostBasis = a.FeesCostBasis.Add(f.CostBasis)
		}
		r.Assets = append(r.Assets, a)

		t := &r.Totals
		t.Proceeds = t.Proceeds.Add(a.Proceeds)
		t.CostBasis = t.CostBasis.Add(a.CostBasis)
		t.Gains = t.Gains.Add(a.Gains)
		t.Losses = t.Losses.Add(a.Losses)
		t.Net = t.Net.Add(a.Net)
		t.Income = t.Income.Add(a.IncomeTotal)
		t.InitialValue = t.InitialValue.Add(a.Holding.InitialValue)
		t.InitialMissing = t.InitialMissing || a.Holding.InitialMissing
		t.FinalValue = t.FinalValue.Add(a.Holding.FinalValue)
		t.FinalMissing = t.FinalMissing || a.Holding.FinalMissing
		t.Gaps += len(a.Gaps)
		if a.Holding.Incomplete {
			t.HoldingIncomplete = true
		} else {
			t.AverageValue = t.AverageValue.Add(a.Holding.AverageValue)
		}
	}
	return r, nil
}
