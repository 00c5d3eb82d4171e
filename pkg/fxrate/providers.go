package fxrate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// Public endpoints, in the order they are tried.
const (
	OpenERAPIURL       = "https://open.er-api.com/v6/latest/USD"
	ExchangeRateAPIURL = "https://api.exchangerate-api.com/v4/latest/USD"
	CurrencyAPIURL     = "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@latest/v1/currencies/usd.json"
)

// Extractor pulls the GHS rate out of a decoded JSON body.
type Extractor func(body map[string]any) (decimal.Decimal, error)

// HTTPProvider fetches a JSON document and extracts the rate from it.
type HTTPProvider struct {
	name    string
	url     string
	extract Extractor
	client  *http.Client
}

func NewHTTPProvider(name, url string, extract Extractor, client *http.Client) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{name: name, url: url, extract: extract, client: client}
}

func (p *HTTPProvider) Name() string { return p.name }

func (p *HTTPProvider) GHSPerUSD(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch %s: %w", p.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%s returned status %d", p.name, resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode %s: %w", p.name, err)
	}
	return p.extract(body)
}

// RatesField reads body[container][code], the shape most rate APIs share.
func RatesField(container, code string) Extractor {
	return func(body map[string]any) (decimal.Decimal, error) {
		rates, ok := body[container].(map[string]any)
		if !ok {
			return decimal.Zero, fmt.Errorf("missing %q object", container)
		}
		raw, ok := rates[code]
		if !ok {
			return decimal.Zero, fmt.Errorf("missing %s.%s", container, code)
		}
		switch v := raw.(type) {
		case float64:
			return decimal.NewFromFloat(v), nil
		case string:
			return decimal.NewFromString(strings.TrimSpace(v))
		default:
			return decimal.Zero, fmt.Errorf("unexpected %s.%s type %T", container, code, raw)
		}
	}
}

// DefaultProviders returns the built-in fallback chain.
func DefaultProviders(client *http.Client) []Provider {
	return []Provider{
		NewHTTPProvider("open-er-api", OpenERAPIURL, RatesField("rates", "GHS"), client),
		NewHTTPProvider("exchangerate-api", ExchangeRateAPIURL, RatesField("rates", "GHS"), client),
		NewHTTPProvider("currency-api", CurrencyAPIURL, RatesField("usd", "ghs"), client),
	}
}
