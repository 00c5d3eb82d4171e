// Package fxrate produces an approximate GHS per USD rate for display. Providers are
// tried in a fixed order; failures and out-of-band values are skipped, and a static
// fallback applies when none answers.
package fxrate

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/contributions-backend/pkg/logger"
)

// Provider returns the number of GHS per one USD.
type Provider interface {
	Name() string
	GHSPerUSD(ctx context.Context) (decimal.Decimal, error)
}

// Source names the fallback value in Estimate results.
const SourceFallback = "fallback"

// Estimate is the outcome of a rate lookup.
type Estimate struct {
	GHSPerUSD decimal.Decimal
	Source    string
}

// USD converts a GHS amount to an approximate USD amount rounded to cents.
func (e Estimate) USD(amountGHS decimal.Decimal) decimal.Decimal {
	if e.GHSPerUSD.IsZero() {
		return decimal.Zero
	}
	return amountGHS.Div(e.GHSPerUSD).Round(2)
}

// Config bounds accepted provider answers.
type Config struct {
	Fallback decimal.Decimal
	Min      decimal.Decimal
	Max      decimal.Decimal
	Timeout  time.Duration
}

// Estimator walks providers in order.
type Estimator struct {
	providers []Provider
	cfg       Config
	logg      *logger.Logger
}

func NewEstimator(cfg Config, logg *logger.Logger, providers ...Provider) (*Estimator, error) {
	if !cfg.Fallback.IsPositive() {
		return nil, fmt.Errorf("fallback rate must be positive")
	}
	if cfg.Max.IsPositive() && cfg.Min.GreaterThan(cfg.Max) {
		return nil, fmt.Errorf("min rate %s exceeds max rate %s", cfg.Min, cfg.Max)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 4 * time.Second
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Estimator{providers: providers, cfg: cfg, logg: logg}, nil
}

// Estimate never fails; the static fallback covers every provider failing.
func (e *Estimator) Estimate(ctx context.Context) Estimate {
	for _, p := range e.providers {
		rate, err := e.try(ctx, p)
		if err != nil {
			e.logg.Debug(e.logg.WithFields(ctx, map[string]any{
				"provider": p.Name(),
				"error":    err.Error(),
			}), "fx provider skipped")
			continue
		}
		return Estimate{GHSPerUSD: rate, Source: p.Name()}
	}
	return Estimate{GHSPerUSD: e.cfg.Fallback, Source: SourceFallback}
}

func (e *Estimator) try(ctx context.Context, p Provider) (decimal.Decimal, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	rate, err := p.GHSPerUSD(callCtx)
	if err != nil {
		return decimal.Zero, err
	}
	if !e.inBand(rate) {
		return decimal.Zero, fmt.Errorf("rate %s outside [%s, %s]", rate, e.cfg.Min, e.cfg.Max)
	}
	return rate, nil
}

func (e *Estimator) inBand(rate decimal.Decimal) bool {
	if !rate.IsPositive() {
		return false
	}
	if rate.LessThan(e.cfg.Min) {
		return false
	}
	if e.cfg.Max.IsPositive() && rate.GreaterThan(e.cfg.Max) {
		return false
	}
	return true
}
