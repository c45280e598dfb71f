package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"999", "999.00"},
		{"1000", "1,000.00"},
		{"40000", "40,000.00"},
		{"1234567.891", "1,234,567.89"},
		{"-6586.6", "-6,586.60"},
	}
	for _, tc := range cases {
		in, _ := decimal.NewFromString(tc.in)
		if got := FormatMoney(in); got != tc.want {
			t.Errorf("FormatMoney(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2.345", "+2.35%"},
		{"-7.1", "-7.10%"},
		{"0", "0.00%"},
	}
	for _, tc := range cases {
		in, _ := decimal.NewFromString(tc.in)
		if got := FormatPercent(in); got != tc.want {
			t.Errorf("FormatPercent(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatPnL(t *testing.T) {
	gain, _ := decimal.NewFromString("795")
	if got := FormatPnL(gain); got != "+795.00" {
		t.Errorf("FormatPnL(795) = %q, want +795.00", got)
	}
	loss, _ := decimal.NewFromString("-12.5")
	if got := FormatPnL(loss); got != "-12.50" {
		t.Errorf("FormatPnL(-12.5) = %q, want -12.50", got)
	}
}

func TestFormatCompact(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"500", "500.00"},
		{"2500", "2.50K"},
		{"40000000", "40.00M"},
		{"3200000000", "3.20B"},
	}
	for _, tc := range cases {
		in, _ := decimal.NewFromString(tc.in)
		if got := FormatCompact(in); got != tc.want {
			t.Errorf("FormatCompact(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
