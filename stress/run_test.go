package stress

import (
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/nhbchain/riskengine/correlation"
)

// Scenario F from spec §8: 50% BTC (Crypto) + 50% USDC (Stablecoin),
// V=100k. CryptoWinter: BTC -0.8, USDC -0.1 => V' = 55k,
// portfolio_value_change = -0.45, recovery_time = 365.
func TestRunScenarioCryptoWinter(t *testing.T) {
	positions := []SimulationPosition{
		{
			PositionID:           uuid.New(),
			CollateralSymbol:     "BTC",
			CollateralKind:       correlation.KindCrypto,
			DebtSymbol:           "USDC",
			DebtKind:             correlation.KindStablecoin,
			CollateralQty:        1,
			DebtQty:              0,
			CollateralPrice:      50000,
			DebtPrice:            1,
			LiquidationThreshold: 1.2,
		},
		{
			PositionID:           uuid.New(),
			CollateralSymbol:     "USDC",
			CollateralKind:       correlation.KindStablecoin,
			DebtSymbol:           "USDC",
			DebtKind:             correlation.KindStablecoin,
			CollateralQty:        50000,
			DebtQty:              0,
			CollateralPrice:      1,
			DebtPrice:            1,
			LiquidationThreshold: 1.2,
		},
	}

	scenario := DefaultCatalog()["crypto_winter"]
	matrix := correlation.CorrelationMatrix{Assets: []string{"BTC", "USDC"}, M: [][]float64{{1, 0.1}, {0.1, 1}}}
	vols := map[string]float64{"BTC": 0.6, "USDC": 0.01}

	result := RunScenario(positions, scenario, matrix, vols, DefaultConfig().LiquidationRouting)

	if math.Abs(result.InitialValue-100000) > 1e-6 {
		t.Fatalf("expected initial value 100000, got %v", result.InitialValue)
	}
	if math.Abs(result.FinalValue-55000) > 1e-6 {
		t.Fatalf("expected final value 55000, got %v", result.FinalValue)
	}
	if math.Abs(result.MaxDrawdown-(-0.45)) > 1e-6 {
		t.Fatalf("expected portfolio_value_change -0.45, got %v", result.MaxDrawdown)
	}
	if result.RecoveryTimeDays != 365 {
		t.Fatalf("expected recovery_time 365, got %d", result.RecoveryTimeDays)
	}
}

func TestRunScenarioLiquidatesBelowHealthFactorOne(t *testing.T) {
	positions := []SimulationPosition{
		{
			PositionID:           uuid.New(),
			CollateralSymbol:     "ETH",
			CollateralKind:       correlation.KindCrypto,
			DebtSymbol:           "USDC",
			DebtKind:             correlation.KindStablecoin,
			CollateralQty:        10,
			DebtQty:              15000,
			CollateralPrice:      3000,
			DebtPrice:            1,
			LiquidationThreshold: 1.2,
		},
	}
	scenario := DefaultCatalog()["market_crash"] // -0.5 crypto, -0.05 stablecoin -> hf = 15000/(14250*1.2) ~ 0.88 < 1
	matrix := correlation.CorrelationMatrix{Assets: []string{"ETH", "USDC"}, M: [][]float64{{1, 0}, {0, 1}}}
	vols := map[string]float64{"ETH": 0.6, "USDC": 0.01}

	routing := LiquidationRouting{LiquidatorBps: 7000, DeveloperBps: 2000, ProtocolBps: 1000}
	result := RunScenario(positions, scenario, matrix, vols, routing)
	if len(result.Liquidated) != 1 {
		t.Fatalf("expected position to be liquidated, got liquidated=%v surviving=%v", result.Liquidated, result.Surviving)
	}
	if result.Routing == nil || *result.Routing != routing {
		t.Fatalf("expected liquidation routing %+v to be recorded on the result, got %+v", routing, result.Routing)
	}
}

func TestRunScenarioOmitsRoutingWithoutLiquidation(t *testing.T) {
	positions := []SimulationPosition{
		{
			PositionID:           uuid.New(),
			CollateralSymbol:     "ETH",
			CollateralKind:       correlation.KindCrypto,
			DebtSymbol:           "USDC",
			DebtKind:             correlation.KindStablecoin,
			CollateralQty:        10,
			DebtQty:              0,
			CollateralPrice:      3000,
			DebtPrice:            1,
			LiquidationThreshold: 1.2,
		},
	}
	scenario := DefaultCatalog()["market_crash"]
	matrix := correlation.CorrelationMatrix{Assets: []string{"ETH", "USDC"}, M: [][]float64{{1, 0}, {0, 1}}}
	vols := map[string]float64{"ETH": 0.6, "USDC": 0.01}

	result := RunScenario(positions, scenario, matrix, vols, DefaultConfig().LiquidationRouting)
	if result.Routing != nil {
		t.Fatalf("expected no routing recorded when nothing is liquidated, got %+v", result.Routing)
	}
}

func TestStressedMatrixClampsAndAmplifies(t *testing.T) {
	m := correlation.CorrelationMatrix{Assets: []string{"A", "B"}, M: [][]float64{{1, 0.8}, {0.8, 1}}}
	stressed := StressedMatrix(m, ScenarioBlackSwan) // multiplier 2.0
	if stressed.M[0][1] != 0.99 {
		t.Fatalf("expected clamp to 0.99, got %v", stressed.M[0][1])
	}
	if stressed.M[0][0] != 1 || stressed.M[1][1] != 1 {
		t.Fatalf("expected diagonal to remain 1")
	}
}

func TestSynthesizeRecommendationsOnLiquidation(t *testing.T) {
	result := SimulationResult{
		Liquidated:  []uuid.UUID{uuid.New()},
		MaxDrawdown: -0.6,
		CVaR95:      -40000,
	}
	recs := SynthesizeRecommendations(result, 100000)
	if len(recs) == 0 {
		t.Fatalf("expected recommendations for a liquidated, high-drawdown scenario")
	}
	if recs[0].Kind != "increase_collateral" {
		t.Fatalf("expected increase_collateral to sort first (critical), got %v", recs[0].Kind)
	}
}
