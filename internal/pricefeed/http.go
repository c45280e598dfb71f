package pricefeed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cryptosim/internal/errors"
	"cryptosim/internal/models"
	"cryptosim/pkg/utils"
)

// HTTPSource fetches quotes from a CoinGecko-style simple-price endpoint.
type HTTPSource struct {
	client  *resty.Client
	retry   utils.RetryConfig
	logger  zerolog.Logger
	mu      sync.RWMutex
	coinIDs map[string]string // symbol -> API coin id
}

// HTTPSourceConfig holds HTTP price feed configuration.
type HTTPSourceConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Logger     zerolog.Logger
}

// NewHTTPSource creates an HTTP-backed price source.
func NewHTTPSource(cfg HTTPSourceConfig) *HTTPSource {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(timeout)

	retry := utils.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}

	return &HTTPSource{
		client: client,
		retry:  retry,
		logger: cfg.Logger,
		coinIDs: map[string]string{
			"BTC":  "bitcoin",
			"ETH":  "ethereum",
			"SOL":  "solana",
			"ADA":  "cardano",
			"DOGE": "dogecoin",
			"XRP":  "ripple",
			"DOT":  "polkadot",
			"LTC":  "litecoin",
		},
	}
}

// MapSymbol registers a symbol to coin-id mapping for the upstream API.
func (s *HTTPSource) MapSymbol(symbol, coinID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coinIDs[strings.ToUpper(symbol)] = coinID
}

func (s *HTTPSource) coinID(symbol string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.coinIDs[strings.ToUpper(symbol)]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

type simplePriceEntry struct {
	USD          float64 `json:"usd"`
	USD24hChange float64 `json:"usd_24h_change"`
	USD24hVol    float64 `json:"usd_24h_vol"`
}

// Quote fetches the latest price, 24h change and 24h volume for a symbol.
func (s *HTTPSource) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	id := s.coinID(symbol)

	result, err := utils.RetryWithResult(ctx, s.retry, func() (map[string]simplePriceEntry, error) {
		var out map[string]simplePriceEntry
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"ids":                 id,
				"vs_currencies":       "usd",
				"include_24hr_change": "true",
				"include_24hr_vol":    "true",
			}).
			SetResult(&out).
			Get("/simple/price")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("price api status %d", resp.StatusCode())
		}
		return out, nil
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("symbol", symbol).Msg("Price fetch failed")
		return models.Quote{}, errors.NewFeedError(symbol, err)
	}

	entry, ok := result[id]
	if !ok || entry.USD <= 0 {
		return models.Quote{}, errors.NewFeedError(symbol, fmt.Errorf("no price for coin id %q", id))
	}

	return models.Quote{
		Symbol:           strings.ToUpper(symbol),
		Price:            decimal.NewFromFloat(entry.USD),
		ChangePercent24h: decimal.NewFromFloat(entry.USD24hChange),
		Volume24h:        decimal.NewFromFloat(entry.USD24hVol),
		Timestamp:        time.Now().UTC(),
	}, nil
}

var _ PriceSource = (*HTTPSource)(nil)
