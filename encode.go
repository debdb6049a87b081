package cryptotax

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
)

// DecodeTransactions decodes normalized transactions from a stream of JSONL
// data, one transaction per line, keeping the input order.
func DecodeTransactions(r io.Reader) ([]Transaction, error) {
	var txs []Transaction
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		lineBytes := bytes.TrimSpace(scanner.Bytes())
		if len(lineBytes) == 0 {
			continue // Skip empty lines
		}
		var tx Transaction
		if err := json.Unmarshal(lineBytes, &tx); err != nil {
			return nil, fmt.Errorf("line %d: cannot decode transaction %q: %w", line, string(lineBytes), err)
		}
		txs = append(txs, tx)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading from input: %w", err)
	}
	return txs, nil
}

// EncodeTransaction marshals a single transaction to JSON and writes it to the
// writer, followed by a newline, in JSONL format.
func EncodeTransaction(w io.Writer, tx Transaction) error {
	jsonData, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}
	if _, err := w.Write(append(jsonData, '\n')); err != nil {
		return fmt.Errorf("failed to write transaction: %w", err)
	}
	return nil
}

// EncodeTransactions writes transactions in JSONL format, in the given order.
func EncodeTransactions(w io.Writer, txs []Transaction) error {
	for _, tx := range txs {
		if err := EncodeTransaction(w, tx); err != nil {
			return err
		}
	}
	return nil
}

// SortTransactions sorts transactions chronologically. The sort is stable:
// transactions with the same timestamp keep their relative order.
func SortTransactions(txs []Transaction) {
	slices.SortStableFunc(txs, func(a, b Transaction) int { return a.Time.Compare(b.Time) })
}

// ValidateTransactions checks every transaction and returns all the errors found.
func ValidateTransactions(currency string, txs []Transaction) []error {
	var errs []error
	for _, tx := range txs {
		if err := tx.Validate(currency); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := Partition(currency, txs); err != nil {
		errs = append(errs, err)
	}
	return errs
}
