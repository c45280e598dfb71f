package pricefeed

import (
	"context"
	"sync"
	"time"

	"cryptosim/internal/errors"
	"cryptosim/internal/models"
)

// ResilientConfig holds rate limiting and circuit breaking parameters for a
// wrapped price source.
type ResilientConfig struct {
	// RequestsPerSecond caps the sustained request rate to the upstream API.
	RequestsPerSecond float64
	// Burst is the number of requests allowed to go out back to back.
	Burst int
	// FailureThreshold is the number of consecutive failures before the
	// breaker opens and quotes fail fast.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before probing again.
	Cooldown time.Duration
}

// DefaultResilientConfig returns limits that fit free-tier public APIs.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		RequestsPerSecond: 0.5,
		Burst:             5,
		FailureThreshold:  5,
		Cooldown:          30 * time.Second,
	}
}

// ResilientSource wraps a PriceSource with a token bucket rate limiter and a
// circuit breaker. Evaluator ticks hit the feed once per symbol; the wrapper
// keeps a burst of symbols from tripping upstream rate limits and stops
// hammering an upstream that is already failing.
type ResilientSource struct {
	inner  PriceSource
	config ResilientConfig

	mu          sync.Mutex
	tokens      float64
	lastRefill  time.Time
	failures    int
	openedAt    time.Time
	circuitOpen bool
}

// NewResilientSource wraps a price source.
func NewResilientSource(inner PriceSource, cfg ResilientConfig) *ResilientSource {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultResilientConfig().RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultResilientConfig().Burst
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultResilientConfig().FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultResilientConfig().Cooldown
	}
	return &ResilientSource{
		inner:      inner,
		config:     cfg,
		tokens:     float64(cfg.Burst),
		lastRefill: time.Now(),
	}
}

// Quote fetches a quote through the limiter and breaker. When the breaker is
// open the call fails fast with a feed error, which evaluators already treat
// as a transient skip.
func (r *ResilientSource) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	if !r.allow() {
		return models.Quote{}, errors.NewFeedError(symbol, errors.ErrPriceUnavailable)
	}
	if err := r.wait(ctx); err != nil {
		return models.Quote{}, errors.NewFeedError(symbol, err)
	}

	quote, err := r.inner.Quote(ctx, symbol)
	r.record(err == nil)
	if err != nil {
		return models.Quote{}, err
	}
	return quote, nil
}

// allow checks the breaker, moving an open circuit to a probe after the
// cooldown.
func (r *ResilientSource) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.circuitOpen {
		return true
	}
	if time.Since(r.openedAt) >= r.config.Cooldown {
		// Half-open: let one request probe the upstream.
		r.circuitOpen = false
		r.failures = r.config.FailureThreshold - 1
		return true
	}
	return false
}

// wait blocks until a token is available or the context ends.
func (r *ResilientSource) wait(ctx context.Context) error {
	for {
		if r.takeToken() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (r *ResilientSource) takeToken() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.tokens += now.Sub(r.lastRefill).Seconds() * r.config.RequestsPerSecond
	if r.tokens > float64(r.config.Burst) {
		r.tokens = float64(r.config.Burst)
	}
	r.lastRefill = now

	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

func (r *ResilientSource) record(success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if success {
		r.failures = 0
		r.circuitOpen = false
		return
	}
	r.failures++
	if r.failures >= r.config.FailureThreshold {
		r.circuitOpen = true
		r.openedAt = time.Now()
	}
}

var _ PriceSource = (*ResilientSource)(nil)
