package orders

import (
	"github.com/shopspring/decimal"

	"cryptosim/internal/models"
)

// ShouldFire reports whether a pending conditional order's trigger condition
// holds at the given snapshot price. Stop-limit orders report their stop leg
// here; firing one converts it to a plain limit order rather than executing.
func ShouldFire(o *models.Order, price decimal.Decimal) bool {
	switch o.Type {
	case models.OrderTypeLimit:
		if o.Side == models.OrderSideBuy {
			return price.LessThanOrEqual(*o.LimitPrice)
		}
		return price.GreaterThanOrEqual(*o.LimitPrice)

	case models.OrderTypeStopLoss, models.OrderTypeStopLimit:
		// Sell stop protects downside; buy stop covers on the way up.
		if o.Side == models.OrderSideSell {
			return price.LessThanOrEqual(*o.StopPrice)
		}
		return price.GreaterThanOrEqual(*o.StopPrice)

	case models.OrderTypeTakeProfit:
		// Opposite boundary crossing from stop_loss for the same side.
		if o.Side == models.OrderSideSell {
			return price.GreaterThanOrEqual(*o.StopPrice)
		}
		return price.LessThanOrEqual(*o.StopPrice)

	case models.OrderTypeTrailingStop:
		if o.Watermark == nil {
			return false
		}
		stop := EffectiveStop(o)
		if o.Side == models.OrderSideSell {
			return price.LessThanOrEqual(stop)
		}
		return price.GreaterThanOrEqual(stop)
	}

	return false
}

// EffectiveStop returns the current stop price of a trailing order, derived
// from its watermark and trailing distance.
func EffectiveStop(o *models.Order) decimal.Decimal {
	wm := *o.Watermark
	if o.TrailingAmount != nil {
		if o.Side == models.OrderSideSell {
			return wm.Sub(*o.TrailingAmount)
		}
		return wm.Add(*o.TrailingAmount)
	}

	one := decimal.NewFromInt(1)
	if o.Side == models.OrderSideSell {
		return wm.Mul(one.Sub(*o.TrailingPercent))
	}
	return wm.Mul(one.Add(*o.TrailingPercent))
}

// advanceWatermark moves a trailing order's watermark if the price moved
// favorably: up for a sell, down for a buy. It never moves the other way.
func advanceWatermark(o *models.Order, price decimal.Decimal) {
	if o.Type != models.OrderTypeTrailingStop {
		return
	}
	if o.Watermark == nil {
		p := price
		o.Watermark = &p
		return
	}
	if o.Side == models.OrderSideSell {
		if price.GreaterThan(*o.Watermark) {
			p := price
			o.Watermark = &p
		}
		return
	}
	if price.LessThan(*o.Watermark) {
		p := price
		o.Watermark = &p
	}
}
