package stress

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/nhbchain/riskengine/correlation"
)

// DefaultCatalog returns the built-in scenario table from spec §4.6.
func DefaultCatalog() map[string]Scenario {
	return map[string]Scenario{
		"market_crash": {
			ID:   "market_crash",
			Kind: ScenarioMarketCrash,
			ShockByKind: map[correlation.AssetKind]float64{
				correlation.KindCrypto:     -0.5,
				correlation.KindDeFi:       -0.5,
				correlation.KindStablecoin: -0.05,
				correlation.KindStock:      -0.5,
				correlation.KindBond:       -0.5,
			},
			DefaultShock: -0.5,
			RecoveryDays: 180,
		},
		"crypto_winter": {
			ID:   "crypto_winter",
			Kind: ScenarioCryptoWinter,
			ShockByKind: map[correlation.AssetKind]float64{
				correlation.KindCrypto:     -0.8,
				correlation.KindDeFi:       -0.8,
				correlation.KindStablecoin: -0.1,
				correlation.KindStock:      -0.2,
				correlation.KindBond:       -0.2,
			},
			DefaultShock: -0.2,
			RecoveryDays: 365,
		},
		"defi_contagion": {
			ID:   "defi_contagion",
			Kind: ScenarioDeFiContagion,
			ShockByKind: map[correlation.AssetKind]float64{
				correlation.KindCrypto:     -0.1,
				correlation.KindDeFi:       -0.7,
				correlation.KindStablecoin: -0.1,
				correlation.KindStock:      -0.1,
				correlation.KindBond:       -0.1,
			},
			DefaultShock: -0.1,
			RecoveryDays: 90,
		},
		"regulatory_shock": {
			ID:   "regulatory_shock",
			Kind: ScenarioRegulatoryShock,
			ShockByKind: map[correlation.AssetKind]float64{
				correlation.KindCrypto:     -0.3,
				correlation.KindDeFi:       -0.3,
				correlation.KindStablecoin: -0.3,
				correlation.KindStock:      -0.3,
				correlation.KindBond:       -0.3,
			},
			DefaultShock: -0.3,
			RecoveryDays: 120,
		},
		"black_swan": {
			ID:   "black_swan",
			Kind: ScenarioBlackSwan,
			ShockByKind: map[correlation.AssetKind]float64{
				correlation.KindCrypto:     -0.9,
				correlation.KindDeFi:       -0.95,
				correlation.KindStablecoin: -0.5,
				correlation.KindStock:      -0.9,
				correlation.KindBond:       -0.9,
			},
			DefaultShock: -0.9,
			RecoveryDays: 730,
		},
	}
}

// LoadCatalogTOML reads a scenario catalog (including Custom scenarios)
// from a TOML file, following native/lending.Config's toml-tagged
// struct convention.
func LoadCatalogTOML(path string) (map[string]Scenario, error) {
	var doc struct {
		Scenarios []Scenario `toml:"scenario"`
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	out := make(map[string]Scenario, len(doc.Scenarios))
	for _, s := range doc.Scenarios {
		out[s.ID] = s
	}
	return out, nil
}

// correlationBreakdownMultiplier amplifies off-diagonal correlation
// under stress, per scenario (spec §4.6).
func correlationBreakdownMultiplier(kind ScenarioKind) float64 {
	switch kind {
	case ScenarioMarketCrash:
		return 1.5
	case ScenarioCryptoWinter:
		return 1.8
	case ScenarioDeFiContagion:
		return 1.6
	case ScenarioRegulatoryShock:
		return 1.3
	case ScenarioBlackSwan:
		return 2.0
	default:
		return 1.4 // Custom
	}
}

// StressedMatrix multiplies every off-diagonal correlation by the
// scenario's breakdown multiplier, clamped to [-0.99, 0.99].
func StressedMatrix(m correlation.CorrelationMatrix, kind ScenarioKind) correlation.CorrelationMatrix {
	mult := correlationBreakdownMultiplier(kind)
	n := len(m.Assets)
	stressed := make([][]float64, n)
	for i := 0; i < n; i++ {
		stressed[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				stressed[i][j] = 1
				continue
			}
			v := m.M[i][j] * mult
			if v > 0.99 {
				v = 0.99
			}
			if v < -0.99 {
				v = -0.99
			}
			stressed[i][j] = v
		}
	}
	out := m
	out.M = stressed
	return out
}

// liquidityMultiplier amplifies per-position loss under a liquidity
// stress shock, by asset kind (spec §4.6 "Liquidity stress").
func liquidityMultiplier(kind correlation.AssetKind) float64 {
	switch kind {
	case correlation.KindStablecoin:
		return 1.0
	case correlation.KindBond:
		return 1.05
	case correlation.KindStock:
		return 1.1
	case correlation.KindCrypto:
		return 1.2
	case correlation.KindDeFi:
		return 1.5
	case correlation.KindNFT:
		return 2.0
	case correlation.KindRWA:
		return 2.5
	default:
		return 1.3
	}
}

// LiquidityStress computes the portfolio-weighted amplified loss
// fraction for a base shock s applied uniformly across positions,
// amplified per asset kind.
func LiquidityStress(positions []SimulationPosition, baseShock float64) float64 {
	var totalValue, weightedLoss float64
	for _, p := range positions {
		value := p.collateralValue(p.CollateralPrice)
		totalValue += value
		weightedLoss += value * baseShock * liquidityMultiplier(p.CollateralKind)
	}
	if totalValue == 0 {
		return 0
	}
	return weightedLoss / totalValue
}
