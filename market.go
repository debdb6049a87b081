package cryptotax

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"iter"
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// PriceOracle answers fiat price lookups. Implementations must be safe for
// concurrent readers, they are shared by all the per-asset engines of a run.
type PriceOracle interface {
	// PriceAt returns the price of asset at t, or a *PriceUnavailableError.
	PriceAt(asset string, t time.Time) (Quote, error)
	// Has reports whether the oracle has a price series for asset.
	Has(asset string) bool
	// Version identifies the price data used, for audit.
	Version() string
}

// Quote is a price returned by a PriceOracle.
type Quote struct {
	Price        Money     // Price is the fiat unit price.
	At           time.Time // At is the instant of the point used (the earlier one when interpolated).
	Stale        bool      // Stale is set when the closest point is older than the staleness threshold.
	Interpolated bool
}

// Interpolation selects how a PriceOracle fills the gaps between points.
type Interpolation int

const (
	// InterpolateNone uses the last known price.
	InterpolateNone Interpolation = iota
	// InterpolateLinear interpolates between the surrounding points, when both exist.
	InterpolateLinear
)

func (i Interpolation) String() string {
	switch i {
	case InterpolateNone:
		return "none"
	case InterpolateLinear:
		return "linear"
	default:
		return "unknown"
	}
}

// ParseInterpolation parses "none" or "linear".
func ParseInterpolation(s string) (Interpolation, error) {
	switch s {
	case "none", "":
		return InterpolateNone, nil
	case "linear":
		return InterpolateLinear, nil
	default:
		return 0, fmt.Errorf("unknown interpolation: %q", s)
	}
}

func (i Interpolation) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *Interpolation) UnmarshalText(text []byte) (err error) {
	*i, err = ParseInterpolation(string(text))
	return err
}

// DefaultStaleAfter is the default staleness threshold for daily series.
const DefaultStaleAfter = 24 * time.Hour

// pricePoint is a single observation of a series.
type pricePoint struct {
	At    time.Time
	Price decimal.Decimal
}

// PriceSeries is a time-ordered series of fiat prices of one asset.
type PriceSeries struct {
	points []pricePoint
}

func comparePoints(p pricePoint, t time.Time) int { return p.At.Compare(t) }

// Append adds a point to the series. An existing point at the same instant is
// overwritten.
func (s *PriceSeries) Append(at time.Time, price decimal.Decimal) *PriceSeries {
	at = at.UTC()
	i, found := slices.BinarySearchFunc(s.points, at, comparePoints)
	if found {
		s.points[i].Price = price
		return s
	}
	s.points = slices.Insert(s.points, i, pricePoint{At: at, Price: price})
	return s
}

// Len returns the number of points.
func (s *PriceSeries) Len() int { return len(s.points) }

// Values returns an iterator over all points in chronological order.
func (s *PriceSeries) Values() iter.Seq2[time.Time, decimal.Decimal] {
	return func(yield func(time.Time, decimal.Decimal) bool) {
		for _, p := range s.points {
			if !yield(p.At, p.Price) {
				return
			}
		}
	}
}

// around returns the index of the last point at or before t, and whether it exists.
func (s *PriceSeries) around(t time.Time) (int, bool) {
	i, found := slices.BinarySearchFunc(s.points, t, comparePoints)
	if found {
		return i, true
	}
	// i is where t would be inserted, the point we want is just before.
	return i - 1, i > 0
}

// Market is the in-memory PriceOracle: a set of price series keyed by asset,
// all in a single fiat currency. It must not be modified once a run started.
type Market struct {
	currency      string
	series        map[string]*PriceSeries
	staleAfter    time.Duration
	interpolation Interpolation
}

// MarketOption configures a Market.
type MarketOption func(*Market)

// WithStaleAfter sets the age after which a last known price is flagged stale.
func WithStaleAfter(d time.Duration) MarketOption {
	return func(m *Market) { m.staleAfter = d }
}

// WithInterpolation sets the interpolation used between points.
func WithInterpolation(i Interpolation) MarketOption {
	return func(m *Market) { m.interpolation = i }
}

// NewMarket returns an empty market in the given fiat currency.
func NewMarket(currency string, opts ...MarketOption) *Market {
	m := &Market{
		currency:   currency,
		series:     make(map[string]*PriceSeries),
		staleAfter: DefaultStaleAfter,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Currency returns the fiat currency of all prices.
func (m *Market) Currency() string { return m.currency }

// Add records the price of asset at an instant.
func (m *Market) Add(asset string, at time.Time, price decimal.Decimal) {
	s, ok := m.series[asset]
	if !ok {
		s = new(PriceSeries)
		m.series[asset] = s
	}
	s.Append(at, price)
}

// AddDaily records a daily price, stamped at midnight UTC of day.
func (m *Market) AddDaily(asset string, day Date, price decimal.Decimal) {
	m.Add(asset, day.time(), price)
}

// Has reports whether there is a price series for asset.
func (m *Market) Has(asset string) bool {
	s, ok := m.series[asset]
	return ok && s.Len() > 0
}

// Series returns the series of an asset, or nil.
func (m *Market) Series(asset string) *PriceSeries { return m.series[asset] }

// Assets returns the assets in alphabetical order.
func (m *Market) Assets() []string {
	return slices.Sorted(maps.Keys(m.series))
}

// PriceAt returns the last known price at or before t. When linear
// interpolation is enabled and a later point exists, the price is
// interpolated between the two surrounding points.
func (m *Market) PriceAt(asset string, t time.Time) (Quote, error) {
	s, ok := m.series[asset]
	if !ok {
		return Quote{}, &PriceUnavailableError{TxRef: TxRef{Asset: asset, Time: t}}
	}
	i, ok := s.around(t)
	if !ok {
		return Quote{}, &PriceUnavailableError{TxRef: TxRef{Asset: asset, Time: t}}
	}
	p := s.points[i]
	q := Quote{
		Price: M(p.Price, m.currency).exact(),
		At:    p.At,
		Stale: t.Sub(p.At) > m.staleAfter,
	}
	if m.interpolation != InterpolateLinear || p.At.Equal(t) || i+1 >= len(s.points) {
		return q, nil
	}

	next := s.points[i+1]
	span := decimal.NewFromInt(int64(next.At.Sub(p.At) / time.Second))
	elapsed := decimal.NewFromInt(int64(t.Sub(p.At) / time.Second))
	if span.IsZero() {
		return q, nil
	}
	ratio := elapsed.DivRound(span, divisionPrecision)
	price := p.Price.Add(next.Price.Sub(p.Price).Mul(ratio))
	q.Price = M(price, m.currency).exact()
	q.Interpolated = true
	q.Stale = min(t.Sub(p.At), next.At.Sub(t)) > m.staleAfter
	return q, nil
}

// Version returns a digest of every point of every series. Two markets with
// the same data have the same version.
func (m *Market) Version() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n", m.currency)
	for _, asset := range m.Assets() {
		for at, price := range m.series[asset].Values() {
			fmt.Fprintf(h, "%s\t%s\t%s\n", asset, at.Format(time.RFC3339), price.String())
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
