package stress

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nhbchain/riskengine/correlation"
	"github.com/nhbchain/riskengine/riskerr"
)

// PricePath is a historical price series for one asset symbol, used by
// the backtest engine in place of live oracle data.
type PricePath struct {
	Symbol string
	Points []correlation.PricePoint
}

// RunBacktest steps day by day through start..end using historical
// prices, revaluing the portfolio and tracking drawdown and
// liquidations, per spec §4.6 "Backtesting". Unlike RunScenario, the
// terminal value is the actual historical outcome, not a shocked one.
func RunBacktest(positions []SimulationPosition, paths map[string]PricePath, start, end time.Time) (SimulationResult, error) {
	if len(positions) == 0 {
		return SimulationResult{}, riskerr.New(riskerr.KindEmptyPortfolio, "backtest requires a non-empty portfolio")
	}

	days := collectDays(paths, start, end)
	if len(days) == 0 {
		return SimulationResult{}, riskerr.New(riskerr.KindInsufficientHistory, "no historical price points in the requested window")
	}

	liquidatedSet := make(map[uuid.UUID]bool)
	var initialValue, peak, trough, maxDrawdown float64
	var finalValue float64

	for dayIdx, day := range days {
		priceAt := func(symbol string) (float64, bool) {
			return priceOnDay(paths[symbol], day)
		}

		var dayValue float64
		for _, p := range positions {
			if liquidatedSet[p.PositionID] {
				continue
			}
			collateralPrice, ok1 := priceAt(p.CollateralSymbol)
			debtPrice, ok2 := priceAt(p.DebtSymbol)
			if !ok1 || !ok2 {
				continue
			}
			hf := p.healthFactor(collateralPrice, debtPrice)
			if hf < 1 {
				liquidatedSet[p.PositionID] = true
				continue
			}
			dayValue += p.collateralValue(collateralPrice) - p.debtValue(debtPrice)
		}

		if dayIdx == 0 {
			initialValue = dayValue
			peak = dayValue
			trough = dayValue
		}
		if dayValue > peak {
			peak = dayValue
		}
		if dayValue < trough {
			trough = dayValue
		}
		if peak > 0 {
			drawdown := (dayValue - peak) / peak
			if drawdown < maxDrawdown {
				maxDrawdown = drawdown
			}
		}
		finalValue = dayValue
	}

	liquidated := make([]uuid.UUID, 0, len(liquidatedSet))
	for id := range liquidatedSet {
		liquidated = append(liquidated, id)
	}
	surviving := make([]uuid.UUID, 0, len(positions))
	for _, p := range positions {
		if !liquidatedSet[p.PositionID] {
			surviving = append(surviving, p.PositionID)
		}
	}

	return SimulationResult{
		Scenario:     "backtest",
		InitialValue: initialValue,
		FinalValue:   finalValue,
		MaxDrawdown:  maxDrawdown,
		Liquidated:   liquidated,
		Surviving:    surviving,
		RiskMetrics: map[string]float64{
			"trough_value": trough,
			"peak_value":   peak,
		},
	}, nil
}

func collectDays(paths map[string]PricePath, start, end time.Time) []time.Time {
	seen := map[time.Time]bool{}
	for _, path := range paths {
		for _, pt := range path.Points {
			if pt.ObservedAt.Before(start) || pt.ObservedAt.After(end) {
				continue
			}
			day := pt.ObservedAt.Truncate(24 * time.Hour)
			seen[day] = true
		}
	}
	days := make([]time.Time, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

func priceOnDay(path PricePath, day time.Time) (float64, bool) {
	var best float64
	var found bool
	for _, pt := range path.Points {
		d := pt.ObservedAt.Truncate(24 * time.Hour)
		if d.After(day) {
			break
		}
		best = pt.Price
		found = true
	}
	return best, found
}
