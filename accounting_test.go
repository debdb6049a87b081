package cryptotax

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

// apply runs transactions through a fresh engine and fails on any error.
func apply(t *testing.T, cfg *Config, oracle PriceOracle, txs ...Transaction) *Engine {
	t.Helper()
	e := NewEngine(txs[0].Asset, cfg, oracle)
	for _, tx := range txs {
		if err := e.Apply(tx); err != nil {
			t.Fatalf("Apply(%s) error = %v", tx.ID, err)
		}
	}
	return e
}

func TestEngine_CostBasisMethods(t *testing.T) {
	tests := []struct {
		method   CostBasisMethod
		wantCost Money
		wantGain Money
	}{
		{FIFO, EUR(26000), EUR(22000)},
		{LIFO, EUR(34000), EUR(14000)},
		{AverageCost, EUR(30000), EUR(18000)},
	}
	for _, tt := range tests {
		t.Run(tt.method.String(), func(t *testing.T) {
			e := apply(t, testConfig(tt.method), NewMarket("EUR"), example()...)
			book := e.Book()
			if len(book.Disposals) != 1 {
				t.Fatalf("got %d disposals, want 1", len(book.Disposals))
			}
			d := book.Disposals[0]
			if !d.Proceeds.Equal(EUR(48000)) {
				t.Errorf("Proceeds = %v, want %v", d.Proceeds, EUR(48000))
			}
			if !d.CostBasis.Equal(tt.wantCost) {
				t.Errorf("CostBasis = %v, want %v", d.CostBasis, tt.wantCost)
			}
			if !d.Gain().Equal(tt.wantGain) {
				t.Errorf("Gain() = %v, want %v", d.Gain(), tt.wantGain)
			}
			if !e.Ledger().TotalQuantity().Equal(Q(0.8)) {
				t.Errorf("TotalQuantity() = %v, want 0.8", e.Ledger().TotalQuantity())
			}
		})
	}
}

// With rising prices, FIFO consumes the cheapest lots and LIFO the dearest:
// the average cost basis lies between them.
func TestEngine_AverageBetweenFIFOAndLIFO(t *testing.T) {
	tests := []struct {
		name  string
		buys  []float64 // unit prices of one unit bought each month
		sells []float64 // quantities sold after the buys
	}{
		{"two buys", []float64{100, 200}, []float64{1}},
		{"steep rise", []float64{10, 1000, 100000}, []float64{1.5}},
		{"flat then rise", []float64{500, 500, 500, 900}, []float64{2}},
		{"several sales", []float64{1000, 1100, 1300, 1600, 2000}, []float64{0.7, 1.1, 1.9}},
		{"everything sold", []float64{3, 5, 8}, []float64{3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var txs []Transaction
			for i, p := range tt.buys {
				txs = append(txs, buy(fmt.Sprintf("b%d", i), "BTC", fmt.Sprintf("2025-%02d-01T10:00:00Z", i+1), 1, p))
			}
			for i, q := range tt.sells {
				txs = append(txs, sell(fmt.Sprintf("s%d", i), "BTC", fmt.Sprintf("2025-12-%02dT10:00:00Z", i+1), q, 5000))
			}

			cost := make(map[CostBasisMethod]Money)
			for _, method := range []CostBasisMethod{FIFO, LIFO, AverageCost} {
				total := EUR(0)
				for _, d := range apply(t, testConfig(method), NewMarket("EUR"), txs...).Book().Disposals {
					total = total.Add(d.CostBasis)
				}
				cost[method] = total
			}
			if !cost[AverageCost].GreaterThanOrEqual(cost[FIFO]) || !cost[LIFO].GreaterThanOrEqual(cost[AverageCost]) {
				t.Errorf("cost basis FIFO = %v, average = %v, LIFO = %v, want FIFO <= average <= LIFO", cost[FIFO], cost[AverageCost], cost[LIFO])
			}
		})
	}
}

func TestEngine_UnorderedInput(t *testing.T) {
	e := NewEngine("BTC", testConfig(FIFO), NewMarket("EUR"))
	if err := e.Apply(buy("b1", "BTC", "2025-02-01T10:00:00Z", 1, 100)); err != nil {
		t.Fatal(err)
	}
	err := e.Apply(buy("b0", "BTC", "2025-01-01T10:00:00Z", 1, 100))
	if !errors.Is(err, ErrUnorderedInput) {
		t.Fatalf("Apply() error = %v, want %v", err, ErrUnorderedInput)
	}
	var ue *UnorderedInputError
	if !errors.As(err, &ue) || ue.TxID != "b0" || ue.Asset != "BTC" {
		t.Errorf("Apply() error = %#v, want the offending transaction", err)
	}
	// the engine is halted: later transactions are rejected with the same error.
	if err2 := e.Apply(buy("b2", "BTC", "2025-03-01T10:00:00Z", 1, 100)); err2 != err {
		t.Errorf("Apply() after halt = %v, want %v", err2, err)
	}
	if !e.Ledger().TotalQuantity().Equal(Q(1)) {
		t.Errorf("TotalQuantity() = %v, want 1", e.Ledger().TotalQuantity())
	}
}

func TestEngine_SameTimestampKeepsInputOrder(t *testing.T) {
	at := "2025-02-01T10:00:00Z"
	e := apply(t, testConfig(FIFO), NewMarket("EUR"),
		buy("b1", "BTC", at, 1, 100),
		sell("s1", "BTC", at, 1, 150),
	)
	if got := e.Book().Disposals[0].Gain(); !got.Equal(EUR(50)) {
		t.Errorf("Gain() = %v, want %v", got, EUR(50))
	}
}

func TestEngine_InsufficientHoldings(t *testing.T) {
	e := NewEngine("BTC", testConfig(FIFO), NewMarket("EUR"))
	if err := e.Apply(buy("b1", "BTC", "2025-01-10T10:00:00Z", 1, 20000)); err != nil {
		t.Fatal(err)
	}
	tx := sell("s1", "BTC", "2025-02-10T10:00:00Z", 1.5, 30000)
	err := e.Apply(tx)
	var ih *InsufficientHoldingsError
	if !errors.As(err, &ih) {
		t.Fatalf("Apply() error = %v, want *InsufficientHoldingsError", err)
	}
	if ih.TxID != "s1" || !ih.Time.Equal(tx.Time) || !ih.Requested.Equal(Q(1.5)) || !ih.Available.Equal(Q(1)) {
		t.Errorf("Apply() error = %v", ih)
	}
	book := e.Book()
	if len(book.Disposals) != 0 {
		t.Errorf("got %d disposals, want none", len(book.Disposals))
	}
	if book.Err != err {
		t.Errorf("Book().Err = %v, want %v", book.Err, err)
	}
	if !e.Ledger().TotalCostBasis().Equal(EUR(20000)) {
		t.Errorf("TotalCostBasis() = %v, want %v", e.Ledger().TotalCostBasis(), EUR(20000))
	}
}

func TestEngine_OwnFeeIsAtomic(t *testing.T) {
	e := NewEngine("BTC", testConfig(FIFO), NewMarket("EUR"))
	if err := e.Apply(buy("b1", "BTC", "2025-01-10T10:00:00Z", 1, 20000)); err != nil {
		t.Fatal(err)
	}
	tx := sell("s1", "BTC", "2025-02-10T10:00:00Z", 1, 30000)
	tx.FeeQuantity, tx.FeeAsset = Q(0.01), "BTC"
	if err := e.Apply(tx); !errors.Is(err, ErrInsufficientHoldings) {
		t.Fatalf("Apply() error = %v, want %v", err, ErrInsufficientHoldings)
	}
	if !e.Ledger().TotalQuantity().Equal(Q(1)) {
		t.Errorf("TotalQuantity() = %v, want 1: the sale must not be half applied", e.Ledger().TotalQuantity())
	}
}

func TestEngine_InvalidTransaction(t *testing.T) {
	tests := []struct {
		name string
		tx   Transaction
	}{
		{"negative quantity", Transaction{ID: "x", Asset: "BTC", Time: ts("2025-01-01T00:00:00Z"), Kind: Buy, Quantity: Q(-1), Price: price(1)}},
		{"unknown kind", Transaction{ID: "x", Asset: "BTC", Time: ts("2025-01-01T00:00:00Z"), Kind: "SWAP", Quantity: Q(1), Price: price(1)}},
		{"buy without price", Transaction{ID: "x", Asset: "BTC", Time: ts("2025-01-01T00:00:00Z"), Kind: Buy, Quantity: Q(1)}},
		{"missing id", Transaction{Asset: "BTC", Time: ts("2025-01-01T00:00:00Z"), Kind: Buy, Quantity: Q(1), Price: price(1)}},
		{"price in another currency", Transaction{ID: "x", Asset: "BTC", Time: ts("2025-01-01T00:00:00Z"), Kind: Buy, Quantity: Q(1), Price: func() *Money { p := M(1, "USD"); return &p }()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine("BTC", testConfig(FIFO), NewMarket("EUR"))
			err := e.Apply(tt.tx)
			if !errors.Is(err, ErrInvalidTransaction) {
				t.Errorf("Apply() error = %v, want %v", err, ErrInvalidTransaction)
			}
			if e.Err() != nil {
				t.Errorf("Err() = %v, want the record rejected without halting", e.Err())
			}
			if err := e.Apply(buy("b1", "BTC", "2025-01-02T00:00:00Z", 1, 20000)); err != nil {
				t.Errorf("Apply() after a rejected record error = %v", err)
			}
			b := e.Book()
			if len(b.Gaps) != 1 || !errors.Is(b.Gaps[0].Err, ErrInvalidTransaction) {
				t.Errorf("Gaps = %v, want the rejected record", b.Gaps)
			}
			if !e.Ledger().TotalQuantity().Equal(Q(1)) {
				t.Errorf("TotalQuantity() = %v, want 1", e.Ledger().TotalQuantity())
			}
		})
	}

	t.Run("wrong asset", func(t *testing.T) {
		e := NewEngine("BTC", testConfig(FIFO), NewMarket("EUR"))
		if err := e.Apply(buy("e1", "ETH", "2025-01-01T00:00:00Z", 1, 2000)); !errors.Is(err, ErrInvalidTransaction) {
			t.Errorf("Apply() error = %v, want %v", err, ErrInvalidTransaction)
		}
		if e.Err() == nil {
			t.Error("Err() = nil, want the engine halted")
		}
	})
}

func TestEngine_Fees(t *testing.T) {
	t.Run("fiat fees", func(t *testing.T) {
		b := buy("b1", "BTC", "2025-01-10T10:00:00Z", 1, 20000)
		b.FeeQuantity, b.FeeAsset = Q(15), "EUR"
		s := sell("s1", "BTC", "2025-03-10T10:00:00Z", 1, 25000)
		s.FeeQuantity, s.FeeAsset = Q(10), "EUR"
		d := apply(t, testConfig(FIFO), NewMarket("EUR"), b, s).Book().Disposals[0]
		if !d.CostBasis.Equal(EUR(20015)) {
			t.Errorf("CostBasis = %v, want %v", d.CostBasis, EUR(20015))
		}
		if !d.Proceeds.Equal(EUR(24990)) {
			t.Errorf("Proceeds = %v, want %v", d.Proceeds, EUR(24990))
		}
	})

	t.Run("same asset fee", func(t *testing.T) {
		b := buy("b1", "BTC", "2025-01-10T10:00:00Z", 1, 20000)
		b.FeeQuantity, b.FeeAsset = Q(0.001), "BTC"
		e := apply(t, testConfig(FIFO), NewMarket("EUR"), b)
		book := e.Book()
		if len(book.Disposals) != 0 {
			t.Errorf("a same asset fee is not a disposal, got %v", book.Disposals)
		}
		if len(book.FeeAdjustments) != 1 || !book.FeeAdjustments[0].CostBasis.Equal(EUR(20)) {
			t.Errorf("FeeAdjustments = %v, want one of %v", book.FeeAdjustments, EUR(20))
		}
		if !e.Ledger().TotalQuantity().Equal(Q(0.999)) {
			t.Errorf("TotalQuantity() = %v, want 0.999", e.Ledger().TotalQuantity())
		}
	})

	t.Run("fee paying for another asset", func(t *testing.T) {
		m := NewMarket("EUR")
		m.Add("BNB", ts("2025-01-01T00:00:00Z"), decimal.NewFromInt(500))
		fee := Transaction{ID: "s1#fee", Asset: "BNB", Time: ts("2025-03-10T10:00:00Z"), Kind: Fee, Quantity: Q(0.01), PaysFor: "BTC"}
		e := apply(t, testConfig(FIFO), m, buy("b1", "BNB", "2025-01-10T10:00:00Z", 1, 400), fee)
		book := e.Book()
		if len(book.Disposals) != 1 {
			t.Fatalf("got %d disposals, want 1", len(book.Disposals))
		}
		d := book.Disposals[0]
		if !d.Proceeds.Equal(EUR(5)) || !d.CostBasis.Equal(EUR(4)) {
			t.Errorf("Disposal = %v / %v, want %v / %v", d.Proceeds, d.CostBasis, EUR(5), EUR(4))
		}
		if !d.StalePrice {
			t.Error("StalePrice = false, want true for a price 68 days old")
		}
	})
}

func TestEngine_Transfers(t *testing.T) {
	m := NewMarket("EUR")
	m.Add("ETH", ts("2025-04-01T00:00:00Z"), decimal.NewFromInt(2000))
	m.Add("ETH", ts("2025-05-01T00:00:00Z"), decimal.NewFromInt(3000))

	in := Transaction{ID: "in", Asset: "ETH", Time: ts("2025-04-01T12:00:00Z"), Kind: TransferIn, Quantity: Q(2)}
	self := Transaction{ID: "self", Asset: "ETH", Time: ts("2025-04-10T12:00:00Z"), Kind: TransferOut, Quantity: Q(0.5), Self: true}
	out := Transaction{ID: "out", Asset: "ETH", Time: ts("2025-05-01T12:00:00Z"), Kind: TransferOut, Quantity: Q(1)}

	e := apply(t, testConfig(FIFO), m, in, self, out)
	book := e.Book()

	if len(book.Transfers) != 1 || !book.Transfers[0].CostBasis.Equal(EUR(1000)) {
		t.Errorf("Transfers = %v, want one of cost basis %v", book.Transfers, EUR(1000))
	}
	if len(book.Disposals) != 1 {
		t.Fatalf("got %d disposals, want 1", len(book.Disposals))
	}
	d := book.Disposals[0]
	if d.Kind != TransferOut || !d.Proceeds.Equal(EUR(3000)) || !d.Gain().Equal(EUR(1000)) {
		t.Errorf("Disposal = %s %v gain %v, want TRANSFER_OUT %v gain %v", d.Kind, d.Proceeds, d.Gain(), EUR(3000), EUR(1000))
	}
	if d.StalePrice {
		t.Error("StalePrice = true, want false")
	}
}

func TestEngine_Reward(t *testing.T) {
	m := NewMarket("EUR")
	m.Add("ADA", ts("2025-02-01T00:00:00Z"), decimal.RequireFromString("0.75"))
	r := Transaction{ID: "r1", Asset: "ADA", Time: ts("2025-02-01T08:00:00Z"), Kind: Reward, Quantity: Q(100)}
	e := apply(t, testConfig(FIFO), m, r)
	book := e.Book()
	if len(book.Income) != 1 || !book.Income[0].Value.Equal(EUR(75)) {
		t.Fatalf("Income = %v, want one of %v", book.Income, EUR(75))
	}
	if !e.Ledger().TotalCostBasis().Equal(EUR(75)) {
		t.Errorf("TotalCostBasis() = %v, want %v", e.Ledger().TotalCostBasis(), EUR(75))
	}
}

func TestEngine_PriceUnavailable(t *testing.T) {
	m := NewMarket("EUR")
	m.Add("SOL", ts("2025-06-01T00:00:00Z"), decimal.NewFromInt(150))

	e := NewEngine("SOL", testConfig(FIFO), m)
	early := Transaction{ID: "in", Asset: "SOL", Time: ts("2025-05-01T12:00:00Z"), Kind: TransferIn, Quantity: Q(3)}
	err := e.Apply(early)
	if !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("Apply() error = %v, want %v", err, ErrPriceUnavailable)
	}
	var pu *PriceUnavailableError
	if !errors.As(err, &pu) || pu.TxID != "in" {
		t.Errorf("Apply() error = %v, want the offending transaction", err)
	}
	if e.Err() != nil {
		t.Errorf("Err() = %v, a missing price must not halt the engine", e.Err())
	}
	if err := e.Apply(buy("b1", "SOL", "2025-06-02T12:00:00Z", 1, 160)); err != nil {
		t.Fatalf("Apply() after a gap error = %v", err)
	}
	book := e.Book()
	if len(book.Gaps) != 1 || book.Gaps[0].TxID != "in" {
		t.Errorf("Gaps = %v, want the skipped transfer", book.Gaps)
	}
	if !e.Ledger().TotalQuantity().Equal(Q(1)) {
		t.Errorf("TotalQuantity() = %v, want 1", e.Ledger().TotalQuantity())
	}
}

func TestEngine_Timeline(t *testing.T) {
	e := apply(t, testConfig(FIFO), NewMarket("EUR"), example()...)
	tl := e.Book().Timeline
	want := []Quantity{Q(1), Q(2), Q(0.8)}
	if len(tl) != len(want) {
		t.Fatalf("Timeline has %d points, want %d", len(tl), len(want))
	}
	for i, p := range tl {
		if !p.Quantity.Equal(want[i]) {
			t.Errorf("Timeline[%d] = %v, want %v", i, p.Quantity, want[i])
		}
	}
}
