package cryptotax

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
)

// FetchCoinGecko downloads the prices of a coin between two dates (inclusive)
// from CoinGecko. id is CoinGecko's coin id, like "bitcoin". Over long ranges
// CoinGecko returns one point per day at midnight UTC, over short ones
// intraday points: each is kept at its own instant.
func (f *PriceFetcher) FetchCoinGecko(ctx context.Context, asset, id string, from, to Date) (*PriceSeries, error) {
	// {
	//   "prices": [[1704067200000, 38654.21], ...],
	//   "market_caps": [...],
	//   "total_volumes": [...]
	// }
	addr := fmt.Sprintf("%s/coins/%s/market_chart/range?vs_currency=%s&from=%d&to=%d",
		f.coingeckoURL, id, strings.ToLower(f.currency), from.time().Unix(), to.Add(1).time().Unix())

	var jobj any
	if err := f.get(ctx, addr, &jobj); err != nil {
		return nil, fmt.Errorf("coingecko prices of %s: %w", asset, err)
	}
	path := "$.prices[*]"
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return nil, fmt.Errorf("coingecko prices of %s: %q: %w", asset, path, err)
	}
	points, ok := jval.([]any)
	if !ok {
		return nil, fmt.Errorf("coingecko prices of %s: %q is not a list: %v", asset, path, jval)
	}

	series := new(PriceSeries)
	for _, p := range points {
		pair, ok := p.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("coingecko prices of %s: invalid point %v", asset, p)
		}
		ms, err := jsonInt(pair[0])
		if err != nil {
			return nil, fmt.Errorf("coingecko prices of %s: timestamp: %w", asset, err)
		}
		price, err := jsonDecimal(pair[1])
		if err != nil {
			return nil, fmt.Errorf("coingecko prices of %s: price: %w", asset, err)
		}
		series.Append(time.UnixMilli(ms).UTC(), price)
	}
	f.log.Info().Str("asset", asset).Str("source", "coingecko").Int("prices", series.Len()).Msg("fetched")
	return series, nil
}

func jsonInt(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Int64()
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

func jsonDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case json.Number:
		return decimal.NewFromString(n.String())
	case float64:
		return decimal.NewFromFloat(n), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("not a number: %v", v)
	}
}
