// Package stress applies scenario shocks and Monte Carlo simulation to
// a portfolio of positions, producing stressed valuations, VaR/CVaR,
// and synthesized recommendations (spec §4.6).
package stress

import (
	"math"

	"github.com/google/uuid"

	"github.com/nhbchain/riskengine/correlation"
)

// ScenarioKind names a catalogued shock template.
type ScenarioKind string

const (
	ScenarioMarketCrash     ScenarioKind = "market_crash"
	ScenarioCryptoWinter    ScenarioKind = "crypto_winter"
	ScenarioDeFiContagion   ScenarioKind = "defi_contagion"
	ScenarioRegulatoryShock ScenarioKind = "regulatory_shock"
	ScenarioBlackSwan       ScenarioKind = "black_swan"
	ScenarioCustom          ScenarioKind = "custom"
)

// Scenario is a named shock template: a per-AssetKind shock fraction
// plus a default for kinds not listed, and an expected recovery window
// (spec §4.6 "Stress scenarios").
type Scenario struct {
	ID           string                              `toml:"id"`
	Kind         ScenarioKind                        `toml:"kind"`
	ShockByKind  map[correlation.AssetKind]float64   `toml:"shock_by_kind"`
	DefaultShock float64                             `toml:"default_shock"`
	RecoveryDays int                                 `toml:"recovery_days"`
}

// shockFor resolves the shock fraction for an asset kind, falling back
// to the scenario's default.
func (s Scenario) shockFor(kind correlation.AssetKind) float64 {
	if v, ok := s.ShockByKind[kind]; ok {
		return v
	}
	return s.DefaultShock
}

// SimulationPosition is the portfolio-value view of a Position used by
// the stress engine: pre-resolved prices and asset kinds, decoupled
// from the live Position Store so a simulation run never mutates
// production state.
type SimulationPosition struct {
	PositionID           uuid.UUID
	CollateralSymbol     string
	CollateralKind       correlation.AssetKind
	DebtSymbol           string
	DebtKind             correlation.AssetKind
	CollateralQty        float64
	DebtQty              float64
	CollateralPrice      float64
	DebtPrice            float64
	LiquidationThreshold float64
}

func (p SimulationPosition) collateralValue(price float64) float64 { return p.CollateralQty * price }
func (p SimulationPosition) debtValue(price float64) float64       { return p.DebtQty * price }

// healthFactor recomputes hf at the given (possibly shocked) prices.
func (p SimulationPosition) healthFactor(collateralPrice, debtPrice float64) float64 {
	debtValue := p.debtValue(debtPrice)
	if debtValue == 0 {
		return math.Inf(1)
	}
	return p.collateralValue(collateralPrice) / (debtValue * p.LiquidationThreshold)
}

// LiquidationRouting records how liquidation proceeds would be split
// between the liquidator, protocol, and a developer fee recipient,
// informational only since trade execution is out of scope.
// RunScenario attaches the configured split to SimulationResult.Routing
// whenever a scenario run liquidates at least one position.
type LiquidationRouting struct {
	LiquidatorBps   uint64
	ProtocolBps     uint64
	DeveloperBps    uint64
	DeveloperTarget string
}

// SimulationResult is the outcome of a single scenario run, Monte Carlo
// aggregation, or backtest (spec §3 "Simulation domain").
type SimulationResult struct {
	Scenario         string
	InitialValue     float64
	FinalValue       float64
	MaxDrawdown      float64
	VaR95            float64
	CVaR95           float64
	Liquidated       []uuid.UUID
	Surviving        []uuid.UUID
	AffectedAssets   []string
	RecoveryTimeDays int
	RiskMetrics      map[string]float64
	Recommendations  []correlation.Recommendation
	Routing          *LiquidationRouting
	DurationMs       int64
}
