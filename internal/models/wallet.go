package models

import "github.com/shopspring/decimal"

// Wallet holds the simulated cash balance for a user. Reserved tracks funds
// committed to pending buy orders so concurrent submissions cannot
// over-commit the same cash.
type Wallet struct {
	UserID   string
	Balance  decimal.Decimal
	Reserved decimal.Decimal
}

// Available returns the spendable balance: total minus reservations.
func (w Wallet) Available() decimal.Decimal {
	return w.Balance.Sub(w.Reserved)
}

// Position is a user's holding in one symbol. TotalInvested is the
// authoritative cost-basis figure; the average cost is always derived from it
// rather than kept as separately mutated state, so repeated fills cannot
// compound rounding error.
type Position struct {
	UserID        string
	Symbol        string
	Amount        decimal.Decimal
	TotalInvested decimal.Decimal
}

// AverageCost returns the weighted-average price paid per unit.
func (p Position) AverageCost() decimal.Decimal {
	if p.Amount.IsZero() {
		return decimal.Zero
	}
	return p.TotalInvested.Div(p.Amount)
}

// UnrealizedPnL returns the paper gain at the given market price.
func (p Position) UnrealizedPnL(currentPrice decimal.Decimal) decimal.Decimal {
	return p.Amount.Mul(currentPrice).Sub(p.TotalInvested)
}
