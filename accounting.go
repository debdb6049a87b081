package cryptotax

import (
	"errors"
	"slices"
	"time"
)

// Disposal is a realized event: units of an asset left the filer's holdings
// for a fiat value.
type Disposal struct {
	Asset      string
	TxID       string
	Time       time.Time
	Kind       Kind
	Quantity   Quantity
	Proceeds   Money      // Proceeds is net of fiat fees.
	CostBasis  Money      // CostBasis is the sum of the fragments' cost basis.
	Lots       []Fragment // Lots is the provenance of the units sold.
	StalePrice bool       // StalePrice is set when the proceeds used a stale oracle price.
}

// Gain returns the realized gain, negative for a loss.
func (d Disposal) Gain() Money { return d.Proceeds.Sub(d.CostBasis) }

// MarshalJSON implements the json.Marshaler interface.
func (d Disposal) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("tx", d.TxID)
	w.Append("time", d.Time.UTC().Format(time.RFC3339))
	w.Append("type", d.Kind)
	w.Append("quantity", d.Quantity)
	w.Append("proceeds", d.Proceeds)
	w.Append("cost_basis", d.CostBasis)
	w.Append("gain", d.Gain())
	w.Optional("stale_price", d.StalePrice)
	w.Append("lots", d.Lots)
	return w.MarshalJSON()
}

// Income is a reward recognized at its fiat value on receipt.
type Income struct {
	Asset      string
	TxID       string
	Time       time.Time
	Quantity   Quantity
	UnitPrice  Money
	Value      Money
	StalePrice bool
}

func (i Income) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("tx", i.TxID)
	w.Append("time", i.Time.UTC().Format(time.RFC3339))
	w.Append("quantity", i.Quantity)
	w.Append("unit_price", i.UnitPrice)
	w.Append("value", i.Value)
	w.Optional("stale_price", i.StalePrice)
	return w.MarshalJSON()
}

// FeeAdjustment records units paid as a fee in the same asset. The units
// leave the ledger without a disposal.
type FeeAdjustment struct {
	Asset     string
	TxID      string
	Time      time.Time
	Quantity  Quantity
	CostBasis Money
}

func (f FeeAdjustment) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("tx", f.TxID)
	w.Append("time", f.Time.UTC().Format(time.RFC3339))
	w.Append("quantity", f.Quantity)
	w.Append("cost_basis", f.CostBasis)
	return w.MarshalJSON()
}

// Transfer records units moved out to one of the filer's own wallets that
// is not tracked. The lots leave with their cost basis, no gain is realized.
type Transfer struct {
	Asset     string
	TxID      string
	Time      time.Time
	Quantity  Quantity
	CostBasis Money
}

func (t Transfer) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("tx", t.TxID)
	w.Append("time", t.Time.UTC().Format(time.RFC3339))
	w.Append("quantity", t.Quantity)
	w.Append("cost_basis", t.CostBasis)
	return w.MarshalJSON()
}

// Gap is a transaction skipped because no price was available, or rejected as
// invalid.
type Gap struct {
	Asset string
	TxID  string
	Time  time.Time
	Kind  Kind
	Err   error
}

func (g Gap) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("tx", g.TxID)
	if !g.Time.IsZero() {
		w.Append("time", g.Time.UTC().Format(time.RFC3339))
	}
	w.Append("type", g.Kind)
	w.Append("error", g.Err.Error())
	return w.MarshalJSON()
}

// HoldingPoint is the quantity held right after a transaction.
type HoldingPoint struct {
	Time     time.Time
	Quantity Quantity
}

// Engine is the accounting state machine of a single asset. Transactions are
// applied one at a time in chronological order; an engine is not safe for
// concurrent use and shares no mutable state with other engines.
type Engine struct {
	asset    string
	currency string
	oracle   PriceOracle
	ledger   *LotLedger
	log      *Logger

	started bool
	last    time.Time
	halted  error

	disposals []Disposal
	income    []Income
	fees      []FeeAdjustment
	transfers []Transfer
	gaps      []Gap
	timeline  []HoldingPoint
}

// NewEngine returns the engine of asset.
func NewEngine(asset string, cfg *Config, oracle PriceOracle) *Engine {
	return &Engine{
		asset:    asset,
		currency: cfg.Currency,
		oracle:   oracle,
		ledger:   NewLotLedger(asset, cfg.Method, cfg.Currency),
		log:      cfg.logger().forAsset(asset),
	}
}

// Ledger returns the engine's lot ledger.
func (e *Engine) Ledger() *LotLedger { return e.ledger }

// Err returns the error that halted the engine, if any.
func (e *Engine) Err() error { return e.halted }

func (e *Engine) halt(err error) error {
	e.halted = err
	e.log.Error().Err(err).Msg("engine halted")
	return err
}

// Apply processes one transaction.
//
// Ordering and holdings errors halt the engine: the error is returned and
// every later call returns it again. An invalid transaction or a
// *PriceUnavailableError only skips the transaction, which is recorded as a
// Gap.
//
// A fee paid in another crypto asset is not handled here: it belongs to that
// asset's stream, see Run.
func (e *Engine) Apply(tx Transaction) error {
	if e.halted != nil {
		return e.halted
	}
	if tx.Asset != e.asset {
		return e.halt(tx.invalid("asset %q sent to the %q engine", tx.Asset, e.asset))
	}
	if err := tx.Validate(e.currency); err != nil {
		e.gaps = append(e.gaps, Gap{Asset: e.asset, TxID: tx.ID, Time: tx.Time, Kind: tx.Kind, Err: err})
		e.log.Warn().Str("tx", tx.ID).Err(err).Msg("invalid transaction rejected")
		return err
	}
	if e.started && tx.Time.Before(e.last) {
		return e.halt(&UnorderedInputError{TxRef: tx.ref(), Previous: e.last})
	}
	e.started, e.last = true, tx.Time

	e.log.Debug().Str("tx", tx.ID).Str("type", string(tx.Kind)).Stringer("quantity", tx.Quantity).Msg("apply")

	var err error
	switch tx.Kind {
	case Buy, TransferIn:
		err = e.acquire(tx)
	case Reward:
		err = e.reward(tx)
	case Sell:
		err = e.dispose(tx, *tx.Price, false)
	case TransferOut:
		err = e.transferOut(tx)
	case Fee:
		err = e.fee(tx)
	}

	if errors.Is(err, ErrPriceUnavailable) {
		e.gaps = append(e.gaps, Gap{Asset: e.asset, TxID: tx.ID, Time: tx.Time, Kind: tx.Kind, Err: err})
		e.log.Warn().Str("tx", tx.ID).Err(err).Msg("transaction skipped")
		return err
	}
	if err != nil {
		var ih *InsufficientHoldingsError
		if errors.As(err, &ih) {
			ih.TxRef = tx.ref()
		}
		return e.halt(err)
	}

	e.timeline = append(e.timeline, HoldingPoint{Time: tx.Time, Quantity: e.ledger.TotalQuantity()})
	return nil
}

// price returns the transaction's price, or the oracle's one at its timestamp.
func (e *Engine) price(tx Transaction) (Quote, error) {
	if tx.Price != nil {
		return Quote{Price: *tx.Price, At: tx.Time}, nil
	}
	q, err := e.oracle.PriceAt(tx.Asset, tx.Time)
	if err != nil {
		var pu *PriceUnavailableError
		if errors.As(err, &pu) {
			pu.TxRef = tx.ref()
		}
		return Quote{}, err
	}
	return q, nil
}

// fiatFee returns the fee paid in the reporting currency, zero otherwise.
func (e *Engine) fiatFee(tx Transaction) Money {
	if tx.FeeAsset == e.currency {
		return M(tx.FeeQuantity.value, e.currency)
	}
	return M(0, e.currency)
}

// ownFee returns the fee paid in units of the asset itself.
func (e *Engine) ownFee(tx Transaction) Quantity {
	if tx.FeeAsset == e.asset {
		return tx.FeeQuantity
	}
	return Quantity{}
}

// ensure fails with *InsufficientHoldingsError if quantity is not held.
func (e *Engine) ensure(tx Transaction, quantity Quantity) error {
	if held := e.ledger.TotalQuantity(); quantity.GreaterThan(held) {
		return &InsufficientHoldingsError{TxRef: tx.ref(), Requested: quantity, Available: held}
	}
	return nil
}

// acquire opens a lot at the transaction's price, or at the market price for
// transfers received without a known cost. Fiat fees are capitalized.
func (e *Engine) acquire(tx Transaction) error {
	q, err := e.price(tx)
	if err != nil {
		return err
	}
	cost := q.Price.Mul(tx.Quantity).Add(e.fiatFee(tx))
	e.ledger.OpenLotCost(tx.Quantity, cost, tx.Time, tx.ID)
	if q.Stale {
		e.log.Warn().Str("tx", tx.ID).Time("price_at", q.At).Msg("cost basis from a stale price")
	}
	return e.payOwnFee(tx)
}

// reward opens a lot at the fiat value on receipt and records the income.
func (e *Engine) reward(tx Transaction) error {
	q, err := e.price(tx)
	if err != nil {
		return err
	}
	value := q.Price.Mul(tx.Quantity)
	e.ledger.OpenLotCost(tx.Quantity, value.Add(e.fiatFee(tx)), tx.Time, tx.ID)
	e.income = append(e.income, Income{
		Asset:      e.asset,
		TxID:       tx.ID,
		Time:       tx.Time,
		Quantity:   tx.Quantity,
		UnitPrice:  q.Price,
		Value:      value,
		StalePrice: q.Stale,
	})
	return e.payOwnFee(tx)
}

func (e *Engine) transferOut(tx Transaction) error {
	if tx.Self {
		if err := e.ensure(tx, tx.Quantity.Add(e.ownFee(tx))); err != nil {
			return err
		}
		fragments, err := e.ledger.Consume(tx.Quantity)
		if err != nil {
			return err
		}
		e.transfers = append(e.transfers, Transfer{
			Asset:     e.asset,
			TxID:      tx.ID,
			Time:      tx.Time,
			Quantity:  tx.Quantity,
			CostBasis: costOf(fragments, e.currency),
		})
		return e.payOwnFee(tx)
	}
	q, err := e.price(tx)
	if err != nil {
		return err
	}
	return e.dispose(tx, q.Price, q.Stale)
}

// dispose consumes the lots sold and records the disposal.
func (e *Engine) dispose(tx Transaction, unitPrice Money, stale bool) error {
	if err := e.ensure(tx, tx.Quantity.Add(e.ownFee(tx))); err != nil {
		return err
	}
	fragments, err := e.ledger.Consume(tx.Quantity)
	if err != nil {
		return err
	}
	e.disposals = append(e.disposals, Disposal{
		Asset:      e.asset,
		TxID:       tx.ID,
		Time:       tx.Time,
		Kind:       tx.Kind,
		Quantity:   tx.Quantity,
		Proceeds:   unitPrice.Mul(tx.Quantity).Sub(e.fiatFee(tx)),
		CostBasis:  costOf(fragments, e.currency),
		Lots:       fragments,
		StalePrice: stale,
	})
	return e.payOwnFee(tx)
}

// fee handles a standalone FEE. Paid for an operation on the same asset it
// is a cost adjustment, paid for another asset it is a micro-disposal.
func (e *Engine) fee(tx Transaction) error {
	if tx.PaysFor == "" || tx.PaysFor == e.asset {
		if err := e.ensure(tx, tx.Quantity); err != nil {
			return err
		}
		return e.adjust(tx, tx.Quantity)
	}
	q, err := e.price(tx)
	if err != nil {
		return err
	}
	return e.dispose(tx, q.Price, q.Stale)
}

func (e *Engine) payOwnFee(tx Transaction) error {
	if fee := e.ownFee(tx); fee.IsPositive() {
		return e.adjust(tx, fee)
	}
	return nil
}

func (e *Engine) adjust(tx Transaction, quantity Quantity) error {
	fragments, err := e.ledger.Consume(quantity)
	if err != nil {
		return err
	}
	e.fees = append(e.fees, FeeAdjustment{
		Asset:     e.asset,
		TxID:      tx.ID,
		Time:      tx.Time,
		Quantity:  quantity,
		CostBasis: costOf(fragments, e.currency),
	})
	return nil
}

func costOf(fragments []Fragment, currency string) Money {
	total := M(0, currency)
	for _, f := range fragments {
		total = total.Add(f.CostBasis)
	}
	return total
}

// Book returns everything the engine produced so far.
func (e *Engine) Book() *AssetBook {
	return &AssetBook{
		Asset:          e.asset,
		Method:         e.ledger.Method(),
		Disposals:      e.disposals,
		Income:         e.income,
		FeeAdjustments: e.fees,
		Transfers:      e.transfers,
		Gaps:           e.gaps,
		Timeline:       e.timeline,
		OpenLots:       slices.Collect(e.ledger.Lots()),
		Err:            e.halted,
	}
}
