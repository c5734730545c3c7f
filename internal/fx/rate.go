// File: internal/fx/rate.go
// ============================================
package fx

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Source fetches the quote-currency to local-currency conversion rate.
type Source interface {
	FetchRate(ctx context.Context) (float64, error)
}

// PriceGetter is the slice of the exchange client the pair source needs.
type PriceGetter interface {
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// PairSource reads the rate off an exchange-listed conversion pair
// (e.g. USDTBRL), so the bot needs no second data vendor.
type PairSource struct {
	prices PriceGetter
	symbol string
}

func NewPairSource(prices PriceGetter, symbol string) *PairSource {
	return &PairSource{prices: prices, symbol: symbol}
}

func (s *PairSource) FetchRate(ctx context.Context) (float64, error) {
	rate, err := s.prices.GetCurrentPrice(ctx, s.symbol)
	if err != nil {
		return 0, fmt.Errorf("fx pair %s: %w", s.symbol, err)
	}
	if rate <= 0 {
		return 0, fmt.Errorf("fx pair %s: non-positive rate %v", s.symbol, rate)
	}
	return rate, nil
}

// CachedSource is a single-slot, last-write-wins cache in front of a Source.
// A value is reused for any request inside the TTL window. On a failed
// refetch the previous value is reused with a warning; the error propagates
// only when no rate was ever fetched.
type CachedSource struct {
	src    Source
	ttl    time.Duration
	logger *zap.SugaredLogger
	now    func() time.Time

	rate      float64
	fetchedAt time.Time
}

func NewCachedSource(src Source, ttl time.Duration, logger *zap.SugaredLogger) *CachedSource {
	return &CachedSource{
		src:    src,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

func (c *CachedSource) Rate(ctx context.Context) (float64, error) {
	if !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.rate, nil
	}

	rate, err := c.src.FetchRate(ctx)
	if err != nil {
		if c.fetchedAt.IsZero() {
			return 0, fmt.Errorf("fx rate unavailable: %w", err)
		}
		c.logger.Warnf("⚠️  FX refetch failed, reusing rate %.4f from %s: %v",
			c.rate, c.fetchedAt.Format("15:04:05"), err)
		return c.rate, nil
	}

	c.rate = rate
	c.fetchedAt = c.now()
	return rate, nil
}
