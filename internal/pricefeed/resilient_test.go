package pricefeed

import (
	"context"
	"sync"
	"testing"
	"time"

	"cryptosim/internal/errors"
	"cryptosim/internal/models"
)

// flakySource fails until told otherwise and counts calls.
type flakySource struct {
	mu      sync.Mutex
	healthy bool
	calls   int
}

func (f *flakySource) setHealthy(h bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthy = h
}

func (f *flakySource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *flakySource) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if !f.healthy {
		return models.Quote{}, errors.NewFeedError(symbol, errors.ErrPriceUnavailable)
	}
	return models.Quote{Symbol: symbol, Price: d("40000"), Timestamp: time.Now()}, nil
}

func TestResilientSourcePassesThrough(t *testing.T) {
	inner := &flakySource{healthy: true}
	r := NewResilientSource(inner, ResilientConfig{
		RequestsPerSecond: 1000,
		Burst:             10,
		FailureThreshold:  3,
		Cooldown:          time.Minute,
	})

	q, err := r.Quote(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if !q.Price.Equal(d("40000")) {
		t.Errorf("price = %s, want 40000", q.Price)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakySource{}
	r := NewResilientSource(inner, ResilientConfig{
		RequestsPerSecond: 1000,
		Burst:             100,
		FailureThreshold:  3,
		Cooldown:          time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := r.Quote(ctx, "BTC"); err == nil {
			t.Fatal("expected failure")
		}
	}
	calls := inner.callCount()

	// Open breaker fails fast without touching the upstream.
	for i := 0; i < 5; i++ {
		if _, err := r.Quote(ctx, "BTC"); !errors.Is(err, errors.ErrPriceUnavailable) {
			t.Fatalf("err = %v, want ErrPriceUnavailable", err)
		}
	}
	if inner.callCount() != calls {
		t.Errorf("upstream calls = %d, want unchanged %d while open", inner.callCount(), calls)
	}
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	inner := &flakySource{}
	r := NewResilientSource(inner, ResilientConfig{
		RequestsPerSecond: 1000,
		Burst:             100,
		FailureThreshold:  2,
		Cooldown:          20 * time.Millisecond,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = r.Quote(ctx, "BTC")
	}
	if _, err := r.Quote(ctx, "BTC"); err == nil {
		t.Fatal("breaker should be open")
	}

	inner.setHealthy(true)
	time.Sleep(30 * time.Millisecond)

	if _, err := r.Quote(ctx, "BTC"); err != nil {
		t.Fatalf("probe after cooldown failed: %v", err)
	}
	// Healthy probe closes the breaker fully.
	if _, err := r.Quote(ctx, "BTC"); err != nil {
		t.Fatalf("call after recovery failed: %v", err)
	}
}

func TestRateLimiterSmoothsBursts(t *testing.T) {
	inner := &flakySource{healthy: true}
	r := NewResilientSource(inner, ResilientConfig{
		RequestsPerSecond: 50,
		Burst:             2,
		FailureThreshold:  5,
		Cooldown:          time.Minute,
	})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 4; i++ {
		if _, err := r.Quote(ctx, "BTC"); err != nil {
			t.Fatalf("Quote failed: %v", err)
		}
	}
	// Two requests ride the burst; the other two wait for tokens at 50/s.
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("elapsed = %v, want rate limiting to impose a wait", elapsed)
	}
}

func TestRateLimiterHonorsContext(t *testing.T) {
	inner := &flakySource{healthy: true}
	r := NewResilientSource(inner, ResilientConfig{
		RequestsPerSecond: 0.001,
		Burst:             1,
		FailureThreshold:  5,
		Cooldown:          time.Minute,
	})

	if _, err := r.Quote(context.Background(), "BTC"); err != nil {
		t.Fatalf("first Quote failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := r.Quote(ctx, "BTC"); !errors.Is(err, errors.ErrPriceUnavailable) && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context deadline surfaced as feed error", err)
	}
}
