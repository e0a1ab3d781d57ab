package detector

import (
	"fmt"
	"math"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// validate checks a candidate opportunity against every gate and returns the
// full list of failures, so a skipped event names everything wrong at once.
func (d *Detector) validate(opp domain.Opportunity) []string {
	var reasons []string

	if !priceSane(opp.BuyPrice, d.cfg.PriceMin, d.cfg.PriceMax) {
		reasons = append(reasons, fmt.Sprintf("buy price %v outside sane bounds", opp.BuyPrice))
	}
	if !priceSane(opp.SellPrice, d.cfg.PriceMin, d.cfg.PriceMax) {
		reasons = append(reasons, fmt.Sprintf("sell price %v outside sane bounds", opp.SellPrice))
	}
	if opp.ProfitPct < d.cfg.MinProfitPct {
		reasons = append(reasons, fmt.Sprintf("profit %.4f%% below minimum %.4f%%", opp.ProfitPct, d.cfg.MinProfitPct))
	}
	if opp.TradeSizeUSD <= 0 || opp.TradeSizeUSD > d.cfg.MaxTradeSizeUSD {
		reasons = append(reasons, fmt.Sprintf("trade size %v outside (0, %v]", opp.TradeSizeUSD, d.cfg.MaxTradeSizeUSD))
	}
	return reasons
}

func priceSane(price, min, max float64) bool {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return false
	}
	return price >= min && price <= max
}
