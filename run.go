package cryptotax

import (
	"context"
	"errors"
	"maps"
	"slices"

	"golang.org/x/sync/errgroup"
)

// AssetBook is everything an engine produced for one asset.
type AssetBook struct {
	Asset          string
	Method         CostBasisMethod
	Disposals      []Disposal
	Income         []Income
	FeeAdjustments []FeeAdjustment
	Transfers      []Transfer
	Gaps           []Gap
	Timeline       []HoldingPoint
	OpenLots       []Lot

	// Err is the error that halted the asset's engine. The records above are
	// then partial: they stop at the failing transaction.
	Err error
}

// Book is the result of a run over all assets.
type Book struct {
	Currency     string
	Method       CostBasisMethod
	PriceVersion string

	cfg      *Config
	calendar Calendar
	oracle   PriceOracle
	assets   map[string]*AssetBook
}

// Asset returns the book of an asset, or nil.
func (b *Book) Asset(asset string) *AssetBook { return b.assets[asset] }

// Assets returns the assets of the book in alphabetical order.
func (b *Book) Assets() []string { return slices.Sorted(maps.Keys(b.assets)) }

// Calendar returns the fiscal calendar of the run.
func (b *Book) Calendar() Calendar { return b.calendar }

// Failed returns the assets whose engine halted, in alphabetical order.
func (b *Book) Failed() []string {
	var failed []string
	for _, asset := range b.Assets() {
		if b.assets[asset].Err != nil {
			failed = append(failed, asset)
		}
	}
	return failed
}

// Partition splits transactions into one stream per asset, keeping the input
// order. A fee paid in another crypto asset is added to that asset's stream as
// a FEE paying for the original asset, at its timestamp.
func Partition(currency string, txs []Transaction) (map[string][]Transaction, error) {
	streams := make(map[string][]Transaction)
	seen := make(map[string]bool, len(txs))
	var fees []Transaction
	for _, tx := range txs {
		if tx.Asset == "" {
			return nil, tx.invalid("missing asset")
		}
		if seen[tx.ID] {
			return nil, tx.invalid("duplicate id")
		}
		seen[tx.ID] = true
		streams[tx.Asset] = append(streams[tx.Asset], tx)

		if tx.FeeQuantity.IsPositive() && tx.FeeAsset != "" && tx.FeeAsset != currency && tx.FeeAsset != tx.Asset {
			fees = append(fees, Transaction{
				ID:       tx.ID + "#fee",
				Asset:    tx.FeeAsset,
				Time:     tx.Time,
				Kind:     Fee,
				Quantity: tx.FeeQuantity,
				PaysFor:  tx.Asset,
				Memo:     tx.Memo,
			})
		}
	}
	// fees are placed once every stream is complete: an earlier acquisition of
	// the fee asset may come after the paying transaction in the input.
	for _, fee := range fees {
		streams[fee.Asset] = insertByTime(streams[fee.Asset], fee)
	}
	return streams, nil
}

// insertByTime inserts tx after the last transaction of stream not later than
// it. The rest of the stream keeps its order, out of order input included.
func insertByTime(stream []Transaction, tx Transaction) []Transaction {
	i := len(stream)
	for i > 0 && stream[i-1].Time.After(tx.Time) {
		i--
	}
	return slices.Insert(stream, i, tx)
}

// Run applies the transactions with one engine per asset, in parallel.
//
// Transactions must be ordered by timestamp. Run fails fast when an asset has
// no price series in the oracle, or when the input cannot be partitioned.
// Otherwise an engine failure only affects its own asset, see AssetBook.Err.
// A cancelled context discards all results.
func Run(ctx context.Context, cfg *Config, oracle PriceOracle, txs []Transaction) (*Book, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	calendar, err := cfg.Calendar()
	if err != nil {
		return nil, err
	}
	log := cfg.logger()

	streams, err := Partition(cfg.Currency, txs)
	if err != nil {
		return nil, err
	}
	assets := slices.Sorted(maps.Keys(streams))

	var missing []error
	for _, asset := range assets {
		if !oracle.Has(asset) {
			missing = append(missing, &MissingPriceSeriesError{Asset: asset})
		}
	}
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}

	books := make([]*AssetBook, len(assets))
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}
	for i, asset := range assets {
		g.Go(func() error {
			e := NewEngine(asset, cfg, oracle)
			for _, tx := range streams[asset] {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := e.Apply(tx); err != nil && e.Err() != nil {
					break
				}
			}
			books[i] = e.Book()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	book := &Book{
		Currency:     cfg.Currency,
		Method:       cfg.Method,
		PriceVersion: oracle.Version(),
		cfg:          cfg,
		calendar:     calendar,
		oracle:       oracle,
		assets:       make(map[string]*AssetBook, len(assets)),
	}
	for _, b := range books {
		book.assets[b.Asset] = b
	}
	log.Info().Int("assets", len(assets)).Int("transactions", len(txs)).Strs("failed", book.Failed()).Msg("run complete")
	return book, nil
}
