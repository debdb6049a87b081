package cryptotax

import (
	"time"
)

// EUR is a helper for test to create euro money from const
func EUR(v float64) Money { return M(v, "EUR") }

// ts parses an RFC3339 timestamp or panics.
func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

// price returns a pointer to a euro unit price.
func price(v float64) *Money {
	p := EUR(v)
	return &p
}

func buy(id, asset, at string, quantity, unitPrice float64) Transaction {
	return Transaction{ID: id, Asset: asset, Time: ts(at), Kind: Buy, Quantity: Q(quantity), Price: price(unitPrice)}
}

func sell(id, asset, at string, quantity, unitPrice float64) Transaction {
	return Transaction{ID: id, Asset: asset, Time: ts(at), Kind: Sell, Quantity: Q(quantity), Price: price(unitPrice)}
}

// testConfig returns the default configuration with a cost basis method.
func testConfig(method CostBasisMethod) *Config {
	cfg := NewConfig()
	cfg.Method = method
	cfg.Workers = 2
	return cfg
}

// flatMarket returns a market where each asset has the same daily price for
// every day of a year.
func flatMarket(year int, prices map[string]float64) *Market {
	m := NewMarket("EUR")
	cal := Calendar{}
	for d := range cal.FiscalYear(year).Days() {
		for asset, p := range prices {
			m.AddDaily(asset, d, newDecimal(p))
		}
	}
	return m
}

// example returns the three transactions of the reference scenario: two
// buys at 20,000 and 30,000, then a sale of 1.2 BTC at 40,000.
func example() []Transaction {
	return []Transaction{
		buy("b1", "BTC", "2025-01-10T10:00:00Z", 1.0, 20000),
		buy("b2", "BTC", "2025-06-01T10:00:00Z", 1.0, 30000),
		sell("s1", "BTC", "2025-09-01T10:00:00Z", 1.2, 40000),
	}
}
