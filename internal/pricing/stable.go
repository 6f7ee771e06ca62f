// Package pricing values assets in a stable currency from the live quote map.
package pricing

import (
	"strings"

	"triarb/internal/orderbook"
)

// Valuer resolves the stable-currency price of an asset. Routes are tried in
// order: the asset is itself stable, a direct ASSET+STABLE pair, an inverse
// STABLE+ASSET pair, then one hop through a bridge asset.
type Valuer struct {
	stables []string
	bridges []string
	set     map[string]struct{}
}

func NewValuer(stables, bridges []string) *Valuer {
	v := &Valuer{set: map[string]struct{}{}}
	for _, s := range stables {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		v.stables = append(v.stables, s)
		v.set[s] = struct{}{}
	}
	for _, b := range bridges {
		if b = strings.ToUpper(strings.TrimSpace(b)); b != "" {
			v.bridges = append(v.bridges, b)
		}
	}
	return v
}

// IsStable reports whether asset is one of the configured stable assets.
func (v *Valuer) IsStable(asset string) bool {
	_, ok := v.set[asset]
	return ok
}

// Stables returns the stable set for lookup-heavy callers.
func (v *Valuer) Stables() map[string]struct{} { return v.set }

// Price returns the value of one unit of asset in stable currency.
func (v *Valuer) Price(asset string, quotes map[string]orderbook.BookTicker) (float64, bool) {
	if v.IsStable(asset) {
		return 1, true
	}
	if p, ok := v.direct(asset, quotes); ok {
		return p, true
	}
	for _, b := range v.bridges {
		if b == asset {
			continue
		}
		bridgeUSD, ok := v.direct(b, quotes)
		if !ok {
			continue
		}
		if t, ok := quotes[asset+b]; ok && t.Valid() {
			return t.Mid() * bridgeUSD, true
		}
		if t, ok := quotes[b+asset]; ok && t.Valid() {
			return bridgeUSD / t.Mid(), true
		}
	}
	return 0, false
}

// Value converts amount of asset into stable currency.
func (v *Valuer) Value(asset string, amount float64, quotes map[string]orderbook.BookTicker) (float64, bool) {
	p, ok := v.Price(asset, quotes)
	if !ok {
		return 0, false
	}
	return amount * p, true
}

func (v *Valuer) direct(asset string, quotes map[string]orderbook.BookTicker) (float64, bool) {
	if v.IsStable(asset) {
		return 1, true
	}
	for _, s := range v.stables {
		if t, ok := quotes[asset+s]; ok && t.Valid() {
			return t.Mid(), true
		}
		if t, ok := quotes[s+asset]; ok && t.Valid() {
			return 1 / t.Mid(), true
		}
	}
	return 0, false
}
