// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatMoney renders a monetary amount with thousands separators and two
// decimal places, e.g. "1,234,567.89".
func FormatMoney(amount decimal.Decimal) string {
	negative := amount.Sign() < 0
	str := amount.Abs().StringFixed(2)
	parts := strings.SplitN(str, ".", 2)

	result := groupThousands(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var b strings.Builder
	lead := n % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPercent renders a percentage with an explicit sign, e.g. "+2.35%".
func FormatPercent(value decimal.Decimal) string {
	sign := ""
	if value.Sign() > 0 {
		sign = "+"
	}
	return sign + value.StringFixed(2) + "%"
}

// FormatPnL renders profit and loss with an explicit sign on gains.
func FormatPnL(pnl decimal.Decimal) string {
	if pnl.Sign() > 0 {
		return "+" + FormatMoney(pnl)
	}
	return FormatMoney(pnl)
}

// FormatCompact renders large amounts in a short form, e.g. "1.25M".
func FormatCompact(amount decimal.Decimal) string {
	abs := amount.Abs()
	switch {
	case abs.GreaterThanOrEqual(decimal.NewFromInt(1000000000)):
		return fmt.Sprintf("%sB", amount.Div(decimal.NewFromInt(1000000000)).StringFixed(2))
	case abs.GreaterThanOrEqual(decimal.NewFromInt(1000000)):
		return fmt.Sprintf("%sM", amount.Div(decimal.NewFromInt(1000000)).StringFixed(2))
	case abs.GreaterThanOrEqual(decimal.NewFromInt(1000)):
		return fmt.Sprintf("%sK", amount.Div(decimal.NewFromInt(1000)).StringFixed(2))
	}
	return FormatMoney(amount)
}
