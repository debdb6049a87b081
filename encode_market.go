package cryptotax

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const attrOn = "on"

// Market data is persisted as JSONL, one line per instant, in a way that is
// still human-readable and git-friendly:
//
//	{"on":"2025-01-01","BTC":"90123.45","ETH":"3210.5"}
//
// "on" is a date (midnight UTC) or an RFC3339 instant.

// parseInstant parses a date or an RFC3339 timestamp.
func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	d, err := ParseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	return d.time(), nil
}

// formatInstant writes midnight UTC as a date, anything else as RFC3339.
func formatInstant(t time.Time) string {
	t = t.UTC()
	if t.Equal(NewDate(t.Date()).time()) {
		return t.Format(DateFormat)
	}
	return t.Format(time.RFC3339)
}

// DecodeMarket reads JSONL market data into m.
func DecodeMarket(m *Market, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		lineBytes := bytes.TrimSpace(scanner.Bytes())
		if len(lineBytes) == 0 {
			continue
		}
		var jline map[string]json.RawMessage
		if err := json.Unmarshal(lineBytes, &jline); err != nil {
			return fmt.Errorf("format error on line %d %q: %w", line, string(lineBytes), err)
		}
		var on string
		if err := json.Unmarshal(jline[attrOn], &on); err != nil {
			return fmt.Errorf("format error on line %d: missing %q: %w", line, attrOn, err)
		}
		at, err := parseInstant(on)
		if err != nil {
			return fmt.Errorf("format error on line %d: %w", line, err)
		}
		for asset, raw := range jline {
			if asset == attrOn {
				continue
			}
			var price decimal.Decimal
			if err := price.UnmarshalJSON(raw); err != nil {
				return fmt.Errorf("format error on line %d: price of %s: %w", line, asset, err)
			}
			if price.IsNegative() {
				return fmt.Errorf("format error on line %d: negative price of %s", line, asset)
			}
			m.Add(asset, at, price)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading from input: %w", err)
	}
	return nil
}

// EncodeMarket writes m as JSONL, one line per instant in chronological
// order, assets in alphabetical order.
func EncodeMarket(w io.Writer, m *Market) error {
	rows := make(map[time.Time]map[string]decimal.Decimal)
	for _, asset := range m.Assets() {
		for at, price := range m.Series(asset).Values() {
			if rows[at] == nil {
				rows[at] = make(map[string]decimal.Decimal)
			}
			rows[at][asset] = price
		}
	}
	instants := make([]time.Time, 0, len(rows))
	for at := range rows {
		instants = append(instants, at)
	}
	slices.SortFunc(instants, time.Time.Compare)

	assets := m.Assets()
	for _, at := range instants {
		var jw jsonObjectWriter
		jw.Append(attrOn, formatInstant(at))
		for _, asset := range assets {
			if price, ok := rows[at][asset]; ok {
				jw.Append(asset, price)
			}
		}
		data, err := jw.MarshalJSON()
		if err != nil {
			return err
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// DecodePriceCSV reads a daily price file of one asset, with a header row
// holding a "Date" and a "Price" column, into m.
func DecodePriceCSV(m *Market, asset string, r io.Reader) error {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("cannot read price header of %s: %w", asset, err)
	}
	dateCol, priceCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date", "timestamp":
			dateCol = i
		case "price", "close":
			priceCol = i
		}
	}
	if dateCol < 0 || priceCol < 0 {
		return fmt.Errorf("price file of %s: want a Date and a Price column, got %v", asset, header)
	}

	for row := 2; ; row++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("price file of %s, row %d: %w", asset, row, err)
		}
		at, err := parseInstant(strings.TrimSpace(record[dateCol]))
		if err != nil {
			return fmt.Errorf("price file of %s, row %d: %w", asset, row, err)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(record[priceCol]))
		if err != nil {
			return fmt.Errorf("price file of %s, row %d: invalid price %q: %w", asset, row, record[priceCol], err)
		}
		m.Add(asset, at, price)
	}
}
