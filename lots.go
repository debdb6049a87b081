package cryptotax

import (
	"iter"
	"slices"
	"time"
)

// Lot is an open acquisition of an asset, used for cost basis calculations.
type Lot struct {
	Asset    string
	Seq      int       // Seq is the acquisition sequence number within the ledger.
	OpenedAt time.Time // OpenedAt is the timestamp of the acquisition.
	Origin   string    // Origin is the id of the transaction that opened the lot.
	Quantity Quantity  // Quantity is the remaining quantity, always positive.
	Cost     Money     // Cost is the remaining cost basis of the lot.
}

// UnitCost returns the fiat cost of one unit of the lot.
func (l Lot) UnitCost() Money { return l.Cost.Div(l.Quantity) }

// Fragment is the part of a lot taken by a consumption.
type Fragment struct {
	Seq       int       `json:"seq"`
	Origin    string    `json:"origin"`
	OpenedAt  time.Time `json:"opened"`
	Quantity  Quantity  `json:"quantity"`
	CostBasis Money     `json:"cost_basis"`
}

// LotLedger is the ordered set of open lots of one asset.
//
// The cost basis method is fixed at construction. Lots are consumed in
// sequence order (FIFO), reverse sequence order (LIFO), or, for AverageCost,
// in sequence order with every unit priced at the pool's average cost.
// Closed lots are removed.
type LotLedger struct {
	asset    string
	method   CostBasisMethod
	currency string
	lots     []*Lot // in acquisition order
	seq      int

	// pool is the total cost of all open lots, maintained for AverageCost.
	pool Money
}

// NewLotLedger returns an empty ledger.
func NewLotLedger(asset string, method CostBasisMethod, currency string) *LotLedger {
	return &LotLedger{asset: asset, method: method, currency: currency, pool: M(0, currency)}
}

// Method returns the cost basis method of the ledger.
func (l *LotLedger) Method() CostBasisMethod { return l.method }

// OpenLot appends a new lot of quantity units at unitCost each.
func (l *LotLedger) OpenLot(quantity Quantity, unitCost Money, at time.Time, origin string) *Lot {
	return l.OpenLotCost(quantity, unitCost.Mul(quantity), at, origin)
}

// OpenLotCost appends a new lot of quantity units for a total cost. Lots are
// never merged.
func (l *LotLedger) OpenLotCost(quantity Quantity, cost Money, at time.Time, origin string) *Lot {
	l.seq++
	lot := &Lot{
		Asset:    l.asset,
		Seq:      l.seq,
		OpenedAt: at,
		Origin:   origin,
		Quantity: quantity,
		Cost:     cost,
	}
	l.lots = append(l.lots, lot)
	l.pool = l.pool.Add(cost)
	return lot
}

// Consume removes exactly quantity units from the open lots and returns the
// fragments taken. If quantity exceeds the holdings, the ledger is left
// untouched and an *InsufficientHoldingsError is returned.
func (l *LotLedger) Consume(quantity Quantity) ([]Fragment, error) {
	if !quantity.IsPositive() {
		return nil, nil
	}
	total := l.TotalQuantity()
	if quantity.GreaterThan(total) {
		return nil, &InsufficientHoldingsError{
			TxRef:     TxRef{Asset: l.asset},
			Requested: quantity,
			Available: total,
		}
	}

	order := slices.Clone(l.lots)
	if l.method == LIFO {
		slices.Reverse(order)
	}

	var fragments []Fragment
	remaining := quantity
	for _, lot := range order {
		if remaining.IsZero() {
			break
		}
		take := lot.Quantity
		if remaining.LessThan(take) {
			take = remaining
		}

		cost := portion(lot.Cost, take, lot.Quantity)
		if l.method == AverageCost {
			// priced at the pool average, the lot cost is kept for audit only.
			cost = portion(l.pool, take, total)
			total = total.Sub(take)
		}
		l.pool = l.pool.Sub(cost)
		lot.Cost = lot.Cost.Sub(portion(lot.Cost, take, lot.Quantity))
		lot.Quantity = lot.Quantity.Sub(take)
		remaining = remaining.Sub(take)

		fragments = append(fragments, Fragment{
			Seq:       lot.Seq,
			Origin:    lot.Origin,
			OpenedAt:  lot.OpenedAt,
			Quantity:  take,
			CostBasis: cost,
		})
	}

	l.lots = slices.DeleteFunc(l.lots, func(lot *Lot) bool { return lot.Quantity.IsZero() })
	if len(l.lots) == 0 {
		// nothing left, drop any division residue.
		l.pool = M(0, l.currency)
	}
	return fragments, nil
}

// portion returns the share of cost for take units out of of units. Taking
// everything returns the exact cost.
func portion(cost Money, take, of Quantity) Money {
	if take.Equal(of) {
		return cost
	}
	return cost.Mul(take).Div(of)
}

// TotalQuantity returns the sum of the remaining quantities.
func (l *LotLedger) TotalQuantity() Quantity {
	var total Quantity
	for _, lot := range l.lots {
		total = total.Add(lot.Quantity)
	}
	return total
}

// TotalCostBasis returns the cost basis of all open lots.
func (l *LotLedger) TotalCostBasis() Money {
	if l.method == AverageCost {
		return l.pool
	}
	total := M(0, l.currency)
	for _, lot := range l.lots {
		total = total.Add(lot.Cost)
	}
	return total
}

// AverageUnitCost returns the pool's average unit cost, zero when empty.
func (l *LotLedger) AverageUnitCost() Money {
	total := l.TotalQuantity()
	if total.IsZero() {
		return M(0, l.currency)
	}
	return l.TotalCostBasis().Div(total)
}

// Lots returns an iterator over copies of the open lots, in acquisition order.
func (l *LotLedger) Lots() iter.Seq[Lot] {
	return func(yield func(Lot) bool) {
		for _, lot := range l.lots {
			if !yield(*lot) {
				return
			}
		}
	}
}

// Len returns the number of open lots.
func (l *LotLedger) Len() int { return len(l.lots) }
