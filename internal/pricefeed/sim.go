package pricefeed

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cryptosim/internal/errors"
	"cryptosim/internal/models"
)

// SimulatedSource is an offline price feed that random-walks each symbol
// from a seeded starting price. Prices can also be set directly, which makes
// it convenient for demos and tests.
type SimulatedSource struct {
	mu         sync.RWMutex
	rng        *rand.Rand
	volatility float64
	prices     map[string]decimal.Decimal
	opens      map[string]decimal.Decimal // price 24h ago, for change_percent
	volumes    map[string]decimal.Decimal
}

// NewSimulatedSource creates a simulated feed with the given seed prices.
func NewSimulatedSource(seed int64, prices map[string]float64) *SimulatedSource {
	s := &SimulatedSource{
		rng:        rand.New(rand.NewSource(seed)),
		volatility: 0.005,
		prices:     make(map[string]decimal.Decimal),
		opens:      make(map[string]decimal.Decimal),
		volumes:    make(map[string]decimal.Decimal),
	}
	for symbol, price := range prices {
		d := decimal.NewFromFloat(price)
		key := strings.ToUpper(symbol)
		s.prices[key] = d
		s.opens[key] = d
		s.volumes[key] = d.Mul(decimal.NewFromInt(1000))
	}
	return s
}

// SetPrice pins a symbol's price.
func (s *SimulatedSource) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToUpper(symbol)
	d := decimal.NewFromFloat(price)
	s.prices[key] = d
	if _, ok := s.opens[key]; !ok {
		s.opens[key] = d
	}
	if _, ok := s.volumes[key]; !ok {
		s.volumes[key] = d.Mul(decimal.NewFromInt(1000))
	}
}

// Step advances every symbol by one random-walk increment.
func (s *SimulatedSource) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for symbol, price := range s.prices {
		drift := 1 + (s.rng.Float64()*2-1)*s.volatility
		s.prices[symbol] = price.Mul(decimal.NewFromFloat(drift))
	}
}

// Quote returns the current simulated quote for a symbol.
func (s *SimulatedSource) Quote(_ context.Context, symbol string) (models.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := strings.ToUpper(symbol)
	price, ok := s.prices[key]
	if !ok {
		return models.Quote{}, errors.NewFeedError(symbol, errors.ErrPriceUnavailable)
	}

	change := decimal.Zero
	if open := s.opens[key]; open.Sign() > 0 {
		change = price.Sub(open).Div(open).Mul(decimal.NewFromInt(100))
	}

	return models.Quote{
		Symbol:           key,
		Price:            price,
		ChangePercent24h: change,
		Volume24h:        s.volumes[key],
		Timestamp:        time.Now().UTC(),
	}, nil
}

var _ PriceSource = (*SimulatedSource)(nil)
