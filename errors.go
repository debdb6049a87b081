package cryptotax

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors, matched with errors.Is against the typed errors below.
var (
	ErrInvalidTransaction   = errors.New("invalid transaction")
	ErrUnorderedInput       = errors.New("unordered input")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrPriceUnavailable     = errors.New("price unavailable")
	ErrMissingPriceSeries   = errors.New("missing price series")
)

// TxRef locates an error: the asset, the offending transaction and its timestamp.
type TxRef struct {
	Asset string
	TxID  string
	Time  time.Time
}

func (r TxRef) GetAsset() string         { return r.Asset }
func (r TxRef) GetTransactionID() string { return r.TxID }
func (r TxRef) GetTime() time.Time       { return r.Time }

func (r TxRef) location() string {
	if r.TxID == "" {
		return fmt.Sprintf("%s at %s", r.Asset, r.Time.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("%s tx %q at %s", r.Asset, r.TxID, r.Time.UTC().Format(time.RFC3339))
}

// InvalidTransactionError is returned when a transaction is structurally
// invalid: negative quantity, unknown kind, missing required fields.
type InvalidTransactionError struct {
	TxRef
	Reason string
}

func (e *InvalidTransactionError) Error() string {
	return fmt.Sprintf("%s: invalid transaction: %s", e.location(), e.Reason)
}

func (e *InvalidTransactionError) Is(target error) bool { return target == ErrInvalidTransaction }

// UnorderedInputError is returned when a transaction's timestamp is before
// the previous transaction of the same asset.
type UnorderedInputError struct {
	TxRef
	Previous time.Time // timestamp of the last processed transaction
}

func (e *UnorderedInputError) Error() string {
	return fmt.Sprintf("%s: transaction is before the previous one (%s)", e.location(), e.Previous.UTC().Format(time.RFC3339))
}

func (e *UnorderedInputError) Is(target error) bool { return target == ErrUnorderedInput }

// InsufficientHoldingsError is returned when a consumption exceeds the open lots.
type InsufficientHoldingsError struct {
	TxRef
	Requested Quantity
	Available Quantity
}

func (e *InsufficientHoldingsError) Error() string {
	return fmt.Sprintf("%s: cannot consume %s, only %s held", e.location(), e.Requested, e.Available)
}

func (e *InsufficientHoldingsError) Is(target error) bool { return target == ErrInsufficientHoldings }

// PriceUnavailableError is returned when no price is known at or before the
// requested instant.
type PriceUnavailableError struct {
	TxRef
}

func (e *PriceUnavailableError) Error() string {
	return fmt.Sprintf("%s: no price available", e.location())
}

func (e *PriceUnavailableError) Is(target error) bool { return target == ErrPriceUnavailable }

// MissingPriceSeriesError is returned when transactions reference an asset
// the price oracle has no series for.
type MissingPriceSeriesError struct {
	Asset string
}

func (e *MissingPriceSeriesError) Error() string {
	return fmt.Sprintf("no price series for asset %q", e.Asset)
}

func (e *MissingPriceSeriesError) Is(target error) bool { return target == ErrMissingPriceSeries }
