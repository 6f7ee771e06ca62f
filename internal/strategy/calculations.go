package strategy

import "strings"

// PercentToBps converts a profit percentage into basis points.
func PercentToBps(pct float64) float64 { return pct * 100 }

// ProfitPercent turns the final amount of a one-unit walk into a percentage.
func ProfitPercent(finalAmount float64) float64 { return (finalAmount - 1.0) * 100 }

// CommissionFunc returns the fractional taker fee charged on symbol.
type CommissionFunc func(symbol string) float64

// Commissions is a flat taker fee with per-symbol overrides and a fee-exempt list.
type Commissions struct {
	Default   float64
	PerSymbol map[string]float64
	Exempt    map[string]struct{}
}

// NewCommissions builds a table from a default fee in bps and a fee-exempt symbol list.
func NewCommissions(defaultBps float64, exempt []string) Commissions {
	c := Commissions{Default: defaultBps / 10000.0, Exempt: map[string]struct{}{}}
	for _, s := range exempt {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			c.Exempt[s] = struct{}{}
		}
	}
	return c
}

// Rate implements CommissionFunc.
func (c Commissions) Rate(symbol string) float64 {
	if _, ok := c.Exempt[symbol]; ok {
		return 0
	}
	if f, ok := c.PerSymbol[symbol]; ok {
		return f
	}
	return c.Default
}
