package cryptotax

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestMarket_PriceAt(t *testing.T) {
	m := NewMarket("EUR")
	m.AddDaily("BTC", NewDate(2025, 1, 1), decimal.NewFromInt(90000))
	m.AddDaily("BTC", NewDate(2025, 1, 2), decimal.NewFromInt(91000))
	m.AddDaily("BTC", NewDate(2025, 1, 10), decimal.NewFromInt(95000))

	tests := []struct {
		name      string
		asset     string
		at        string
		want      Money
		wantStale bool
		wantErr   error
	}{
		{"exact point", "BTC", "2025-01-02T00:00:00Z", EUR(91000), false, nil},
		{"last known", "BTC", "2025-01-02T23:00:00Z", EUR(91000), false, nil},
		{"exactly 24h old", "BTC", "2025-01-03T00:00:00Z", EUR(91000), false, nil},
		{"stale", "BTC", "2025-01-05T00:00:00Z", EUR(91000), true, nil},
		{"after the last point", "BTC", "2025-02-01T00:00:00Z", EUR(95000), true, nil},
		{"before the first point", "BTC", "2024-12-31T23:00:00Z", Money{}, false, ErrPriceUnavailable},
		{"unknown asset", "ETH", "2025-01-02T00:00:00Z", Money{}, false, ErrPriceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := m.PriceAt(tt.asset, ts(tt.at))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("PriceAt() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if !q.Price.Equal(tt.want) {
				t.Errorf("PriceAt() = %v, want %v", q.Price, tt.want)
			}
			if q.Stale != tt.wantStale {
				t.Errorf("PriceAt() stale = %v, want %v", q.Stale, tt.wantStale)
			}
			if q.Interpolated {
				t.Error("PriceAt() interpolated without interpolation")
			}
		})
	}
}

func TestMarket_PriceAtInterpolated(t *testing.T) {
	m := NewMarket("EUR", WithInterpolation(InterpolateLinear), WithStaleAfter(36*time.Hour))
	m.AddDaily("ETH", NewDate(2025, 3, 1), decimal.NewFromInt(2000))
	m.AddDaily("ETH", NewDate(2025, 3, 5), decimal.NewFromInt(3000))

	q, err := m.PriceAt("ETH", ts("2025-03-02T00:00:00Z"))
	if err != nil {
		t.Fatal(err)
	}
	if !q.Price.Equal(EUR(2250)) || !q.Interpolated {
		t.Errorf("PriceAt() = %v interpolated %v, want %v interpolated", q.Price, q.Interpolated, EUR(2250))
	}
	if q.Stale {
		t.Errorf("PriceAt() stale = %v, want false at 24h from a point", q.Stale)
	}

	q, err = m.PriceAt("ETH", ts("2025-03-03T00:00:00Z"))
	if err != nil {
		t.Fatal(err)
	}
	if !q.Price.Equal(EUR(2500)) || !q.Stale {
		t.Errorf("PriceAt() = %v stale %v, want %v stale", q.Price, q.Stale, EUR(2500))
	}

	// no later point: the last known price is used as is.
	q, err = m.PriceAt("ETH", ts("2025-03-06T00:00:00Z"))
	if err != nil {
		t.Fatal(err)
	}
	if !q.Price.Equal(EUR(3000)) || q.Interpolated {
		t.Errorf("PriceAt() = %v interpolated %v, want %v", q.Price, q.Interpolated, EUR(3000))
	}
}

func TestPriceSeries_AppendOverwrites(t *testing.T) {
	var s PriceSeries
	at := ts("2025-01-01T00:00:00Z")
	s.Append(at.Add(time.Hour), decimal.NewFromInt(2))
	s.Append(at, decimal.NewFromInt(1))
	s.Append(at, decimal.NewFromInt(3))
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	var got []string
	for _, p := range s.Values() {
		got = append(got, p.String())
	}
	if got[0] != "3" || got[1] != "2" {
		t.Errorf("Values() = %v, want [3 2]", got)
	}
}

func TestMarket_Version(t *testing.T) {
	build := func(p int64) *Market {
		m := NewMarket("EUR")
		m.AddDaily("BTC", NewDate(2025, 1, 1), decimal.NewFromInt(p))
		m.AddDaily("ETH", NewDate(2025, 1, 1), decimal.NewFromInt(3000))
		return m
	}
	if build(1).Version() != build(1).Version() {
		t.Error("Version() differs for the same data")
	}
	if build(1).Version() == build(2).Version() {
		t.Error("Version() is the same for different data")
	}
	if !build(1).Has("ETH") || build(1).Has("SOL") {
		t.Error("Has() mismatch")
	}
}
