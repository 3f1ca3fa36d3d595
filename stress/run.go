package stress

import (
	"time"

	"github.com/google/uuid"

	"github.com/nhbchain/riskengine/correlation"
)

// RunScenario applies scenario's per-asset-kind shock to every
// position's current prices, recomputes health, and liquidates any
// position whose shocked hf drops below 1 (spec §4.6 "Single-scenario
// run").
func RunScenario(positions []SimulationPosition, scenario Scenario, matrix correlation.CorrelationMatrix, volatilities map[string]float64, routing LiquidationRouting) SimulationResult {
	start := time.Now()

	var initialValue float64
	for _, p := range positions {
		initialValue += p.collateralValue(p.CollateralPrice) - p.debtValue(p.DebtPrice)
	}

	affected := map[string]bool{}
	var finalValue float64
	var liquidated, surviving []uuid.UUID

	for _, p := range positions {
		collateralShock := scenario.shockFor(p.CollateralKind)
		debtShock := scenario.shockFor(p.DebtKind)
		if collateralShock < -0.05 {
			affected[p.CollateralSymbol] = true
		}
		if debtShock < -0.05 {
			affected[p.DebtSymbol] = true
		}

		shockedCollateralPrice := p.CollateralPrice * (1 + collateralShock)
		shockedDebtPrice := p.DebtPrice * (1 + debtShock)
		hf := p.healthFactor(shockedCollateralPrice, shockedDebtPrice)

		if hf < 1 {
			liquidated = append(liquidated, p.PositionID)
			continue
		}
		surviving = append(surviving, p.PositionID)
		finalValue += p.collateralValue(shockedCollateralPrice) - p.debtValue(shockedDebtPrice)
	}

	var portfolioChange float64
	if initialValue != 0 {
		portfolioChange = (finalValue - initialValue) / initialValue
	}

	portfolioVol := portfolioVolatilityFor(positions, matrix, volatilities)
	var95 := correlation.ParametricVaR95(portfolioVol, initialValue)
	cvar95 := correlation.ParametricCVaR95(portfolioVol, initialValue)

	affectedList := make([]string, 0, len(affected))
	for symbol := range affected {
		affectedList = append(affectedList, symbol)
	}

	var appliedRouting *LiquidationRouting
	if len(liquidated) > 0 {
		r := routing
		appliedRouting = &r
	}

	return SimulationResult{
		Scenario:         scenario.ID,
		InitialValue:     initialValue,
		FinalValue:       finalValue,
		MaxDrawdown:      portfolioChange,
		VaR95:            var95,
		CVaR95:           cvar95,
		Liquidated:       liquidated,
		Surviving:        surviving,
		AffectedAssets:   affectedList,
		RecoveryTimeDays: scenario.RecoveryDays,
		RiskMetrics: map[string]float64{
			"portfolio_value_change": portfolioChange,
			"portfolio_volatility":   portfolioVol,
		},
		Routing:    appliedRouting,
		DurationMs: time.Since(start).Milliseconds(),
	}
}

func portfolioVolatilityFor(positions []SimulationPosition, matrix correlation.CorrelationMatrix, volatilities map[string]float64) float64 {
	n := len(matrix.Assets)
	if n == 0 {
		return 0
	}
	var totalValue float64
	bySymbol := make(map[string]float64, len(positions))
	for _, p := range positions {
		v := p.collateralValue(p.CollateralPrice)
		bySymbol[p.CollateralSymbol] += v
		totalValue += v
	}
	weights := make([]float64, n)
	vols := make([]float64, n)
	for i, symbol := range matrix.Assets {
		if totalValue > 0 {
			weights[i] = bySymbol[symbol] / totalValue
		}
		vols[i] = volatilities[symbol]
	}
	return correlation.PortfolioVolatility(weights, vols, matrix)
}
