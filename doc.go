// Package cryptotax turns a normalized stream of crypto-exchange transactions
// into the figures an Italian resident needs for the yearly tax return:
// realized capital gains, average annual holdings and reward income.
//
// The core functionalities include:
//   - Price Oracle: read-only, versioned daily price series per asset, with
//     last-known lookups and an explicit stale flag.
//   - Lot Ledger: open acquisition lots per asset, consumed according to a
//     fixed cost basis method (FIFO, LIFO or average cost).
//   - Accounting Engine: one state machine per asset that applies
//     transactions in chronological order and emits disposals, reward income
//     and a holdings timeline.
//   - Holding Aggregator: daily sampling of holdings valued in fiat to compute
//     the average holding value of a fiscal year ("giacenza media") and the
//     quadro W initial and final values.
//   - Fiscal Year Report: a pure grouping of the above, serialized
//     deterministically.
//
// Assets are processed independently and in parallel by [Run]. The resulting
// [Book] is then queried per fiscal year with [Book.FiscalYearReport].
//
// This package is the foundation of the `ctax` command-line tool.
package cryptotax
