// File: internal/fx/rate_test.go
// ============================================
package fx

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeSource struct {
	rate  float64
	err   error
	calls int
}

func (s *fakeSource) FetchRate(ctx context.Context) (float64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.rate, nil
}

func newTestCache(src *fakeSource, start time.Time) (*CachedSource, *time.Time) {
	now := start
	c := NewCachedSource(src, 5*time.Minute, zap.NewNop().Sugar())
	c.now = func() time.Time { return now }
	return c, &now
}

func TestRateCachedWithinTTL(t *testing.T) {
	src := &fakeSource{rate: 5.43}
	c, now := newTestCache(src, time.Unix(1_700_000_000, 0))

	first, err := c.Rate(context.Background())
	if err != nil {
		t.Fatalf("first Rate() error: %v", err)
	}

	*now = now.Add(4 * time.Minute)
	second, err := c.Rate(context.Background())
	if err != nil {
		t.Fatalf("second Rate() error: %v", err)
	}

	if first != second || first != 5.43 {
		t.Errorf("rates = %v, %v, want identical 5.43", first, second)
	}
	if src.calls != 1 {
		t.Errorf("fetches = %d, want exactly 1 inside the TTL window", src.calls)
	}
}

func TestRateRefetchedAfterTTL(t *testing.T) {
	src := &fakeSource{rate: 5.43}
	c, now := newTestCache(src, time.Unix(1_700_000_000, 0))

	if _, err := c.Rate(context.Background()); err != nil {
		t.Fatalf("Rate() error: %v", err)
	}

	src.rate = 5.50
	*now = now.Add(5 * time.Minute)

	got, err := c.Rate(context.Background())
	if err != nil {
		t.Fatalf("Rate() after TTL error: %v", err)
	}
	if got != 5.50 {
		t.Errorf("rate = %v, want refreshed 5.50", got)
	}
	if src.calls != 2 {
		t.Errorf("fetches = %d, want 2", src.calls)
	}
}

func TestRateFallsBackToStaleOnRefetchFailure(t *testing.T) {
	src := &fakeSource{rate: 5.43}
	c, now := newTestCache(src, time.Unix(1_700_000_000, 0))

	if _, err := c.Rate(context.Background()); err != nil {
		t.Fatalf("Rate() error: %v", err)
	}

	src.err = errors.New("vendor down")
	*now = now.Add(10 * time.Minute)

	got, err := c.Rate(context.Background())
	if err != nil {
		t.Fatalf("Rate() should reuse the stale value, got error: %v", err)
	}
	if got != 5.43 {
		t.Errorf("rate = %v, want stale 5.43", got)
	}
}

func TestRateErrorsWhenNeverFetched(t *testing.T) {
	src := &fakeSource{err: errors.New("vendor down")}
	c, _ := newTestCache(src, time.Unix(1_700_000_000, 0))

	if _, err := c.Rate(context.Background()); err == nil {
		t.Fatal("Rate() = nil error with no cached value, want error")
	}
}
