package cryptotax

import (
	"sort"
	"time"
)

// HoldingSnapshot is the holding of an asset sampled on a date.
type HoldingSnapshot struct {
	Asset    string
	On       Date
	Quantity Quantity
	Price    Money // Price is zero when the quantity is zero or the price is missing.
	Value    Money
	Missing  bool // Missing is set when a held quantity could not be priced.
	Stale    bool
}

func (s HoldingSnapshot) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("on", s.On)
	w.Append("quantity", s.Quantity)
	w.Append("price", s.Price)
	w.Append("value", s.Value)
	w.Optional("missing", s.Missing)
	w.Optional("stale", s.Stale)
	return w.MarshalJSON()
}

// HoldingSummary is the yearly holding figures of one asset.
type HoldingSummary struct {
	Asset       string
	Year        int
	Granularity Period

	Samples    int    // Samples is the number of sample dates in the year.
	Missing    []Date // Missing lists the held samples that could not be priced.
	Stale      int    // Stale counts the samples priced with a stale price.
	Incomplete bool   // Incomplete is set when AverageValue could not be computed.

	AverageValue    Money    // AverageValue is the mean fiat value over the samples, unset when Incomplete.
	AverageQuantity Quantity // AverageQuantity is the mean quantity over the samples.
	DaysHeld        int      // DaysHeld counts the days ending with a positive holding.

	Opening      Quantity // Opening is the quantity held at the start of January 1st.
	Closing      Quantity // Closing is the quantity held at the end of December 31st.
	ClosingValue Money

	// Quadro W values: at January 1st, or at the first acquisition of the
	// year; at December 31st, or at the last outflow of the year. A value
	// whose price is missing is unset and flagged.
	InitialQuantity Quantity
	InitialValue    Money
	InitialMissing  bool
	FinalQuantity   Quantity
	FinalValue      Money
	FinalMissing    bool
}

// QuadroWIncomplete reports whether a quadro W value could not be priced.
func (h HoldingSummary) QuadroWIncomplete() bool { return h.InitialMissing || h.FinalMissing }

func (h HoldingSummary) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("granularity", h.Granularity)
	w.Append("samples", h.Samples)
	w.Optional("missing", h.Missing)
	w.Optional("stale", h.Stale)
	if h.Incomplete {
		w.Append("incomplete", true)
	} else {
		w.Append("average_value", h.AverageValue)
	}
	w.Append("average_quantity", h.AverageQuantity)
	w.Append("days_held", h.DaysHeld)
	w.Append("opening", h.Opening)
	w.Append("closing", h.Closing)
	if !h.FinalMissing || !h.Closing.IsPositive() {
		w.Append("closing_value", h.ClosingValue)
	}
	w.Append("initial_quantity", h.InitialQuantity)
	if h.InitialMissing {
		w.Append("initial_value_missing", true)
	} else {
		w.Append("initial_value", h.InitialValue)
	}
	w.Append("final_quantity", h.FinalQuantity)
	if h.FinalMissing {
		w.Append("final_value_missing", true)
	} else {
		w.Append("final_value", h.FinalValue)
	}
	return w.MarshalJSON()
}

// HoldingAggregator samples a holdings timeline against a price oracle.
type HoldingAggregator struct {
	Oracle      PriceOracle
	Calendar    Calendar
	Granularity Period
	Policy      MissingPricePolicy
	Currency    string
}

// NewHoldingAggregator returns the aggregator matching a configuration.
func NewHoldingAggregator(cfg *Config, oracle PriceOracle) (*HoldingAggregator, error) {
	cal, err := cfg.Calendar()
	if err != nil {
		return nil, err
	}
	return &HoldingAggregator{
		Oracle:      oracle,
		Calendar:    cal,
		Granularity: cfg.Granularity,
		Policy:      cfg.MissingPrice,
		Currency:    cfg.Currency,
	}, nil
}

// quantityAt returns the quantity held at t, zero before the first point.
func quantityAt(timeline []HoldingPoint, t time.Time) Quantity {
	i := sort.Search(len(timeline), func(i int) bool { return timeline[i].Time.After(t) })
	if i == 0 {
		return Quantity{}
	}
	return timeline[i-1].Quantity
}

// sampleDates returns the dates sampled in the year: every day, or the end of
// each period clipped to the year.
func (a *HoldingAggregator) sampleDates(year int) []Date {
	fy := a.Calendar.FiscalYear(year)
	var dates []Date
	if a.Granularity == Daily {
		for d := range fy.Days() {
			dates = append(dates, d)
		}
		return dates
	}
	for r := range fy.Periods(a.Granularity) {
		on := r.To
		if on.After(fy.To) {
			on = fy.To
		}
		dates = append(dates, on)
	}
	return dates
}

// Snapshot values the holding at the end of day on.
func (a *HoldingAggregator) Snapshot(asset string, timeline []HoldingPoint, on Date) HoldingSnapshot {
	at := a.Calendar.EndOfDay(on)
	s := HoldingSnapshot{
		Asset:    asset,
		On:       on,
		Quantity: quantityAt(timeline, at),
		Price:    M(0, a.Currency),
		Value:    M(0, a.Currency),
	}
	if s.Quantity.IsZero() {
		return s
	}
	q, err := a.Oracle.PriceAt(asset, at)
	if err != nil {
		s.Missing = true
		return s
	}
	s.Price = q.Price
	s.Value = q.Price.Mul(s.Quantity)
	s.Stale = q.Stale
	return s
}

// Snapshots returns the holding at every sample date of the year.
func (a *HoldingAggregator) Snapshots(asset string, timeline []HoldingPoint, year int) []HoldingSnapshot {
	dates := a.sampleDates(year)
	snapshots := make([]HoldingSnapshot, 0, len(dates))
	for _, on := range dates {
		snapshots = append(snapshots, a.Snapshot(asset, timeline, on))
	}
	return snapshots
}

// Aggregate computes the yearly holding figures of an asset. Samples before
// the first acquisition or after the last disposal count as zero.
func (a *HoldingAggregator) Aggregate(asset string, timeline []HoldingPoint, year int) HoldingSummary {
	h := HoldingSummary{
		Asset:        asset,
		Year:         year,
		Granularity:  a.Granularity,
		AverageValue: M(0, a.Currency),
		ClosingValue: M(0, a.Currency),
		InitialValue: M(0, a.Currency),
		FinalValue:   M(0, a.Currency),
	}

	sum := M(0, a.Currency)
	var sumQuantity Quantity
	for _, s := range a.Snapshots(asset, timeline, year) {
		h.Samples++
		sumQuantity = sumQuantity.Add(s.Quantity)
		if s.Missing {
			h.Missing = append(h.Missing, s.On)
			continue
		}
		if s.Stale {
			h.Stale++
		}
		sum = sum.Add(s.Value)
	}
	if h.Samples == 0 {
		return h
	}
	h.AverageQuantity = sumQuantity.Div(Q(h.Samples))

	priced := h.Samples - len(h.Missing)
	switch {
	case len(h.Missing) > 0 && a.Policy == MissingPriceIncomplete:
		h.Incomplete = true
	case priced == 0:
		h.Incomplete = true
	default:
		h.AverageValue = sum.Div(Q(priced))
	}

	fy := a.Calendar.FiscalYear(year)
	for d := range fy.Days() {
		if quantityAt(timeline, a.Calendar.EndOfDay(d)).IsPositive() {
			h.DaysHeld++
		}
	}

	start := a.Calendar.StartOfDay(fy.From)
	end := a.Calendar.EndOfDay(fy.To)
	h.Opening = quantityAt(timeline, start.Add(-time.Nanosecond))
	closing := a.Snapshot(asset, timeline, fy.To)
	h.Closing, h.ClosingValue = closing.Quantity, closing.Value

	if h.Opening.IsPositive() {
		h.InitialQuantity = h.Opening
		h.InitialValue, h.InitialMissing = a.valueOn(asset, fy.From, h.Opening)
	} else if p, delta, ok := firstChange(timeline, start, end, true); ok {
		h.InitialQuantity = delta
		h.InitialValue, h.InitialMissing = a.valueOn(asset, a.Calendar.DateOf(p.Time), delta)
	}

	if h.Closing.IsPositive() {
		h.FinalQuantity, h.FinalValue, h.FinalMissing = h.Closing, h.ClosingValue, closing.Missing
	} else if p, delta, ok := firstChange(timeline, start, end, false); ok {
		h.FinalQuantity = delta
		h.FinalValue, h.FinalMissing = a.valueOn(asset, a.Calendar.DateOf(p.Time), delta)
	}
	return h
}

// valueOn values quantity at the end of day on. It reports missing, with a
// zero value, when the oracle has no price.
func (a *HoldingAggregator) valueOn(asset string, on Date, quantity Quantity) (value Money, missing bool) {
	q, err := a.Oracle.PriceAt(asset, a.Calendar.EndOfDay(on))
	if err != nil {
		return M(0, a.Currency), true
	}
	return q.Price.Mul(quantity), false
}

// firstChange finds, within [start, end], the first increase of the holding
// (forward) or the last decrease (backward), and returns its absolute size.
func firstChange(timeline []HoldingPoint, start, end time.Time, forward bool) (HoldingPoint, Quantity, bool) {
	delta := func(i int) Quantity {
		var prev Quantity
		if i > 0 {
			prev = timeline[i-1].Quantity
		}
		return timeline[i].Quantity.Sub(prev)
	}
	in := func(p HoldingPoint) bool { return !p.Time.Before(start) && !p.Time.After(end) }

	if forward {
		for i, p := range timeline {
			if d := delta(i); in(p) && d.IsPositive() {
				return p, d, true
			}
		}
		return HoldingPoint{}, Quantity{}, false
	}
	for i := len(timeline) - 1; i >= 0; i-- {
		p := timeline[i]
		if d := delta(i); in(p) && d.IsNegative() {
			return p, Q(0).Sub(d), true
		}
	}
	return HoldingPoint{}, Quantity{}, false
}
