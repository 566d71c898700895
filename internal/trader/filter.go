// internal/trader/filter.go
package trader

import (
	"fmt"

	"github.com/rovshanmuradov/memetrader/internal/market"
)

// PriceBand rejects a price change at or beyond either edge, in percent.
type PriceBand struct {
	Down float64
	Up   float64
}

func (b PriceBand) contains(change float64) bool {
	return change > b.Down && change < b.Up
}

// Filter is the candidate exclusion predicate.
type Filter struct {
	Band1m PriceBand
	Band5m PriceBand
	Band1h PriceBand
}

// DefaultFilter uses the stock price bands.
func DefaultFilter() Filter {
	return Filter{
		Band1m: PriceBand{Down: -5, Up: 20},
		Band5m: PriceBand{Down: -10, Up: 40},
		Band1h: PriceBand{Down: -30, Up: 80},
	}
}

// Exclude returns a non-empty reason when the candidate must not be bought.
func (f Filter) Exclude(c market.Candidate) string {
	if !c.OwnershipRenounced {
		return "ownership not renounced"
	}
	for _, w := range []struct {
		name   string
		band   PriceBand
		change float64
	}{
		{"1m", f.Band1m, c.PriceChange1m},
		{"5m", f.Band5m, c.PriceChange5m},
		{"1h", f.Band1h, c.PriceChange1h},
	} {
		if !w.band.contains(w.change) {
			return fmt.Sprintf("%s price change %.2f%% outside (%.0f, %.0f)", w.name, w.change, w.band.Down, w.band.Up)
		}
	}
	return ""
}
