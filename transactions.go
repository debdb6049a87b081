package cryptotax

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies the type of a transaction.
type Kind string

// Transaction kinds, as produced by the normalizer.
const (
	Buy         Kind = "BUY"
	Sell        Kind = "SELL"
	TransferIn  Kind = "TRANSFER_IN"
	TransferOut Kind = "TRANSFER_OUT"
	Reward      Kind = "REWARD"
	Fee         Kind = "FEE"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case Buy, Sell, TransferIn, TransferOut, Reward, Fee:
		return true
	}
	return false
}

// Transaction is a normalized exchange record. It is immutable once normalized.
type Transaction struct {
	ID       string    // ID is unique within a run.
	Asset    string    // Asset is the crypto symbol, like "BTC".
	Time     time.Time // Time is the UTC timestamp, with second precision.
	Kind     Kind
	Quantity Quantity // Quantity is always positive, the Kind gives the direction.
	Price    *Money   // Price is the fiat unit price, nil when unknown.

	FeeQuantity Quantity // FeeQuantity is the fee charged for this transaction, in FeeAsset units.
	FeeAsset    string   // FeeAsset is the fiat currency, this Asset or another crypto asset.

	PaysFor string // PaysFor is, for a FEE, the asset whose operation the fee paid for.
	Self    bool   // Self marks a transfer between the filer's own wallets.
	Memo    string
}

// ref returns the error location of the transaction.
func (tx Transaction) ref() TxRef { return TxRef{Asset: tx.Asset, TxID: tx.ID, Time: tx.Time} }

func (tx Transaction) invalid(format string, args ...any) error {
	return &InvalidTransactionError{TxRef: tx.ref(), Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the structural validity of the transaction for a reporting
// currency. It returns an *InvalidTransactionError.
func (tx Transaction) Validate(currency string) error {
	switch {
	case tx.ID == "":
		return tx.invalid("missing id")
	case tx.Asset == "":
		return tx.invalid("missing asset")
	case tx.Asset == currency:
		return tx.invalid("asset %q is the reporting currency", tx.Asset)
	case tx.Time.IsZero():
		return tx.invalid("missing timestamp")
	case !tx.Kind.Valid():
		return tx.invalid("unknown type %q", tx.Kind)
	case !tx.Quantity.IsPositive():
		return tx.invalid("quantity must be positive, got %s", tx.Quantity)
	case tx.FeeQuantity.IsNegative():
		return tx.invalid("fee must not be negative, got %s", tx.FeeQuantity)
	case tx.FeeQuantity.IsPositive() && tx.FeeAsset == "":
		return tx.invalid("fee without a fee asset")
	}

	if tx.Price != nil {
		if tx.Price.IsNegative() {
			return tx.invalid("price must not be negative, got %s", tx.Price.Decimal())
		}
		if tx.Price.Currency() != currency {
			return tx.invalid("price in %s, want %s", tx.Price.Currency(), currency)
		}
	}

	switch tx.Kind {
	case Buy, Sell:
		if tx.Price == nil {
			return tx.invalid("%s requires a price", tx.Kind)
		}
	case Fee:
		if tx.FeeQuantity.IsPositive() {
			return tx.invalid("a FEE cannot carry a fee")
		}
	}
	if tx.PaysFor != "" && tx.Kind != Fee {
		return tx.invalid("pays_for is only valid on FEE")
	}
	if tx.Self && tx.Kind != TransferIn && tx.Kind != TransferOut {
		return tx.invalid("self is only valid on transfers")
	}
	return nil
}

// MarshalJSON implements the json.Marshaler interface, with a stable field order.
func (tx Transaction) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("id", tx.ID)
	w.Append("asset", tx.Asset)
	w.Append("time", tx.Time.UTC().Format(time.RFC3339))
	w.Append("type", tx.Kind)
	w.Append("quantity", tx.Quantity)
	if tx.Price != nil {
		w.Append("price", tx.Price.Decimal())
		w.Append("currency", tx.Price.Currency())
	}
	if !tx.FeeQuantity.IsZero() {
		w.Append("fee", tx.FeeQuantity)
		w.Append("fee_asset", tx.FeeAsset)
	}
	w.Optional("pays_for", tx.PaysFor)
	w.Optional("self", tx.Self)
	w.Optional("memo", tx.Memo)
	return w.MarshalJSON()
}

type jsonTransaction struct {
	ID       string           `json:"id"`
	Asset    string           `json:"asset"`
	Time     time.Time        `json:"time"`
	Kind     Kind             `json:"type"`
	Quantity Quantity         `json:"quantity"`
	Price    *decimal.Decimal `json:"price"`
	Currency string           `json:"currency"`
	Fee      Quantity         `json:"fee"`
	FeeAsset string           `json:"fee_asset"`
	PaysFor  string           `json:"pays_for"`
	Self     bool             `json:"self"`
	Memo     string           `json:"memo"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. A price without a
// currency is in DefaultCurrency.
func (tx *Transaction) UnmarshalJSON(data []byte) error {
	var j jsonTransaction
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*tx = Transaction{
		ID:          j.ID,
		Asset:       j.Asset,
		Time:        j.Time.UTC(),
		Kind:        j.Kind,
		Quantity:    j.Quantity,
		FeeQuantity: j.Fee,
		FeeAsset:    j.FeeAsset,
		PaysFor:     j.PaysFor,
		Self:        j.Self,
		Memo:        j.Memo,
	}
	if j.Price != nil {
		currency := j.Currency
		if currency == "" {
			currency = DefaultCurrency
		}
		p := M(*j.Price, currency).exact()
		tx.Price = &p
	}
	return nil
}
