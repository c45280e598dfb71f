// Package models defines the core domain types for the trading simulator.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide represents the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType represents the trigger semantics of an order.
type OrderType string

const (
	OrderTypeMarket       OrderType = "market"
	OrderTypeLimit        OrderType = "limit"
	OrderTypeStopLoss     OrderType = "stop_loss"
	OrderTypeTakeProfit   OrderType = "take_profit"
	OrderTypeStopLimit    OrderType = "stop_limit"
	OrderTypeTrailingStop OrderType = "trailing_stop"
)

// TimeInForce governs how long an unfilled order remains eligible to fire.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC" // Good-Till-Cancelled
	TimeInForceIOC TimeInForce = "IOC" // Immediate-Or-Cancel
	TimeInForceFOK TimeInForce = "FOK" // Fill-Or-Kill
	TimeInForceGTT TimeInForce = "GTT" // Good-Till-Time
)

// OrderStatus tracks the order lifecycle. Terminal states are filled,
// cancelled, expired and rejected. Evaluating is a transient claim taken by
// the trigger evaluator so an order can never execute twice.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusEvaluating OrderStatus = "evaluating"
	OrderStatusFilled     OrderStatus = "filled"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusExpired    OrderStatus = "expired"
	OrderStatusRejected   OrderStatus = "rejected"
)

// Terminal reports whether the status permits no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusExpired, OrderStatusRejected:
		return true
	}
	return false
}

// Quote is a point-in-time price snapshot for a symbol.
type Quote struct {
	Symbol           string
	Price            decimal.Decimal
	ChangePercent24h decimal.Decimal
	Volume24h        decimal.Decimal
	Timestamp        time.Time
}
