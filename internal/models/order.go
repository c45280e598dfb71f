package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order represents one trading intent. Optional price fields are pointers;
// which of them must be set depends on Type and is enforced at submission.
type Order struct {
	ID     string
	UserID string
	Symbol string
	Side   OrderSide
	Type   OrderType
	Amount decimal.Decimal

	LimitPrice      *decimal.Decimal // limit, stop_limit
	StopPrice       *decimal.Decimal // stop_loss, take_profit, stop_limit
	TrailingAmount  *decimal.Decimal // trailing_stop, XOR TrailingPercent
	TrailingPercent *decimal.Decimal

	TimeInForce TimeInForce
	ExpiresAt   *time.Time // required iff GTT
	ReduceOnly  bool
	PostOnly    bool

	Status OrderStatus
	Reason string // populated when Status is rejected

	// Watermark is the best price seen since a trailing_stop order was
	// placed: the high-water mark for a sell, low-water mark for a buy.
	// It only ever moves favorably for the holder.
	Watermark *decimal.Decimal

	CreatedAt   time.Time
	FilledAt    *time.Time
	FilledPrice *decimal.Decimal
}

// Conditional reports whether the order waits for a price trigger rather
// than executing on submission.
func (o *Order) Conditional() bool {
	return o.Type != OrderTypeMarket
}

// ReservedFunds returns the cash that must be reserved while this order is
// pending. Conditional buy orders reserve an estimate of their cost at the
// best-known trigger price; sells reserve nothing (holdings are checked at
// fire time).
func (o *Order) ReservedFunds(feeRate decimal.Decimal) decimal.Decimal {
	if o.Side != OrderSideBuy {
		return decimal.Zero
	}
	var ref decimal.Decimal
	switch {
	case o.LimitPrice != nil:
		ref = *o.LimitPrice
	case o.StopPrice != nil:
		ref = *o.StopPrice
	default:
		return decimal.Zero
	}
	gross := o.Amount.Mul(ref)
	return gross.Add(gross.Mul(feeRate))
}
