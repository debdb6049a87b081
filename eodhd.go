package cryptotax

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// PriceFetcher downloads daily price series from remote providers. It is used
// to prepare a price file before accounting, never during a run.
type PriceFetcher struct {
	client       *http.Client
	limiter      *rate.Limiter
	eodhdURL     string
	eodhdKey     string
	coingeckoURL string
	currency     string
	log          *Logger
}

// FetcherOption configures a PriceFetcher.
type FetcherOption func(*PriceFetcher)

// WithHTTPClient replaces the daily caching client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *PriceFetcher) { f.client = c }
}

// WithRateLimit sets the maximum number of requests per second.
func WithRateLimit(n int) FetcherOption {
	return func(f *PriceFetcher) {
		if n > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(n), n)
		}
	}
}

// NewPriceFetcher returns a fetcher using the providers configured in cfg.
func NewPriceFetcher(cfg *Config, opts ...FetcherOption) *PriceFetcher {
	f := &PriceFetcher{
		limiter:      rate.NewLimiter(rate.Inf, 1),
		eodhdURL:     strings.TrimSuffix(cfg.Prices.EODHDURL, "/"),
		eodhdKey:     cfg.Prices.EODHDKey,
		coingeckoURL: strings.TrimSuffix(cfg.Prices.CoinGeckoURL, "/"),
		currency:     cfg.Currency,
		log:          cfg.logger(),
	}
	WithRateLimit(cfg.Prices.RateLimit)(f)
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = daily(f.log)
	}
	return f
}

// get waits for the rate limiter, then GETs a JSON document.
func (f *PriceFetcher) get(ctx context.Context, addr string, data any) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}
	return jwget(ctx, f.client, addr, data)
}

// eodhdTicker returns the EODHD crypto ticker of an asset, like "BTC-EUR.CC".
func eodhdTicker(asset, fiat string) string {
	return fmt.Sprintf("%s-%s.CC", strings.ToUpper(asset), strings.ToUpper(fiat))
}

// FetchEODHD downloads the daily closes of an asset between two dates
// (inclusive) from EODHD. Each close is stamped on its date.
func (f *PriceFetcher) FetchEODHD(ctx context.Context, asset string, from, to Date) (*PriceSeries, error) {
	if f.eodhdKey == "" {
		return nil, fmt.Errorf("missing EODHD API key, set EODHD_API_KEY or prices.eodhd_api_key")
	}
	// [
	//	{
	//		"date": "2024-02-13",
	//		"open": 45012.1,
	//		"high": 46110.2,
	//		"low": 44890.5,
	//		"close": 45871.3,
	//		"adjusted_close": 45871.3,
	//		"volume": 1234
	//	},
	// bounds are included in the response.
	addr := fmt.Sprintf("%s/eod/%s?fmt=json&api_token=%s&from=%s&to=%s",
		f.eodhdURL, eodhdTicker(asset, f.currency), url.QueryEscape(f.eodhdKey), from, to)

	type Info struct {
		Date  Date            `json:"date"`
		Close decimal.Decimal `json:"close"`
	}
	content := make([]Info, 0)
	if err := f.get(ctx, addr, &content); err != nil {
		return nil, fmt.Errorf("eodhd prices of %s: %w", asset, err)
	}

	series := new(PriceSeries)
	for _, info := range content {
		if info.Close.IsNegative() {
			return nil, fmt.Errorf("eodhd prices of %s: negative close on %s", asset, info.Date)
		}
		series.Append(info.Date.time(), info.Close)
	}
	f.log.Info().Str("asset", asset).Str("source", "eodhd").Int("prices", series.Len()).Msg("fetched")
	return series, nil
}

// Merge adds every point of a series to the market.
func (m *Market) Merge(asset string, s *PriceSeries) {
	for at, price := range s.Values() {
		m.Add(asset, at, price)
	}
}
