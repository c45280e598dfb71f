package ledger

import "github.com/shopspring/decimal"

// DefaultFeeRate is the flat trading fee applied to gross notional value.
var DefaultFeeRate = decimal.NewFromFloat(0.001)

// Fee computes the trading fee for a gross notional value.
func Fee(gross, rate decimal.Decimal) decimal.Decimal {
	return gross.Mul(rate)
}
