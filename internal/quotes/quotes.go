// Package quotes fetches daily close prices for stocks and ETFs from a
// fallback chain of market data vendors: TwelveData, then AlphaVantage, then
// Yahoo Finance. The first vendor to return a usable series wins.
package quotes

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/investoscope/investoscope-backend/internal/apperrors"
	"github.com/investoscope/investoscope-backend/internal/logging"
	"github.com/investoscope/investoscope-backend/internal/model"
)

// Source is one market data vendor in the fallback chain. since, when
// non-nil, hints that only closes on or after that date are needed; the
// since date itself is included so a restated close on the last stored
// day is visible to the caller.
type Source interface {
	Name() string
	DailyPrices(ctx context.Context, symbol string, since *time.Time) ([]model.PricePoint, error)
}

// FundamentalsSource fetches the best-effort enrichment block for a symbol.
type FundamentalsSource interface {
	Fundamentals(ctx context.Context, symbol string) (*model.Fundamentals, error)
}

// KeyProvider resolves vendor API keys at call time, so a key rotated through
// the admin endpoint takes effect without a restart.
type KeyProvider interface {
	TwelveDataKey(ctx context.Context) (string, error)
	AlphaVantageKey(ctx context.Context) (string, error)
}

// Transient vendor hiccups get exactly one retry after a fixed pause; a
// vendor still failing after that is skipped in favour of the next one.
const retryPause = 10 * time.Second

// Chain tries each configured vendor in order until one returns prices.
type Chain struct {
	sources      []Source
	fundamentals FundamentalsSource
}

// NewChain builds the production vendor chain. Keyed vendors (TwelveData,
// AlphaVantage) skip themselves when no key resolves; Yahoo needs no key and
// is the terminal fallback plus the fundamentals source.
func NewChain(keys KeyProvider) *Chain {
	yahoo := NewYahooClient()
	return &Chain{
		sources: []Source{
			NewTwelveDataClient(keys),
			NewAlphaVantageClient(keys),
			yahoo,
		},
		fundamentals: yahoo,
	}
}

// NewChainWithSources builds a chain from explicit sources.
func NewChainWithSources(fundamentals FundamentalsSource, sources ...Source) *Chain {
	return &Chain{sources: sources, fundamentals: fundamentals}
}

// DailyPrices fetches daily closes for a symbol, returning the points and
// the name of the vendor that served them. Each vendor gets one retry after
// a fixed pause before the chain moves on; a vendor that answers healthy but
// with an empty series is also passed over, so an empty result comes back
// only once every vendor has been tried. When every vendor fails, the error
// is a VendorUnavailableError wrapping the last failure; a rate-limit
// failure anywhere in the chain is surfaced as-is so callers can classify it.
func (c *Chain) DailyPrices(ctx context.Context, symbol string, since *time.Time) ([]model.PricePoint, string, error) {
	var lastErr error
	sawEmpty := false
	for _, source := range c.sources {
		var points []model.PricePoint
		err := retry.Do(ctx, retry.WithMaxRetries(1, retry.NewConstant(retryPause)), func(ctx context.Context) error {
			var err error
			points, err = source.DailyPrices(ctx, symbol, since)
			if err != nil && !apperrors.IsRateLimited(err) {
				return retry.RetryableError(err)
			}
			return err
		})
		if err == nil {
			if len(points) == 0 {
				sawEmpty = true
				logging.Warn("quote vendor returned no data, trying next", logging.Fields{
					"vendor": source.Name(),
					"symbol": symbol,
				})
				continue
			}
			return points, source.Name(), nil
		}
		lastErr = err
		logging.Warn("quote vendor failed, trying next", logging.Fields{
			"vendor": source.Name(),
			"symbol": symbol,
			"error":  err.Error(),
		})
	}

	if sawEmpty {
		return []model.PricePoint{}, "", nil
	}

	if apperrors.IsRateLimited(lastErr) {
		return nil, "", lastErr
	}

	return nil, "", apperrors.NewVendorUnavailable("quotes", lastErr,
		"all market data vendors failed for "+symbol,
		"check vendor API keys and connectivity",
	)
}

// Fundamentals fetches the enrichment block for a symbol. Failures are
// swallowed: fundamentals are nice-to-have and must never fail a price sync.
func (c *Chain) Fundamentals(ctx context.Context, symbol string) *model.Fundamentals {
	if c.fundamentals == nil {
		return nil
	}
	f, err := c.fundamentals.Fundamentals(ctx, symbol)
	if err != nil {
		logging.Warn("fundamentals fetch failed", logging.Fields{
			"symbol": symbol,
			"error":  err.Error(),
		})
		return nil
	}
	return f
}
