// Package pricefeed supplies price snapshots for symbols.
package pricefeed

import (
	"context"

	"cryptosim/internal/models"
)

// PriceSource supplies the latest known quote for a symbol. Implementations
// return an error wrapping errors.ErrPriceUnavailable when no fresh price can
// be produced; callers treat that as transient and retry on their next tick.
type PriceSource interface {
	Quote(ctx context.Context, symbol string) (models.Quote, error)
}
