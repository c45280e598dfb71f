package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an immutable record of a single fill. It is appended at
// execution time and never mutated or deleted; history and audit are
// reconstructed from these records.
type Trade struct {
	ID         string
	OrderID    string
	UserID     string
	Symbol     string
	Side       OrderSide
	Amount     decimal.Decimal
	Price      decimal.Decimal
	GrossValue decimal.Decimal
	Fee        decimal.Decimal
	NetValue   decimal.Decimal

	// RealizedPnL is set for sells only: net proceeds minus the invested
	// amount removed from the position for the sold portion.
	RealizedPnL decimal.Decimal

	Timestamp time.Time
}
