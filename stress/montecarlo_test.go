package stress

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/nhbchain/riskengine/correlation"
)

// Scenario E from spec §8: single asset $10,000, sigma=0.1 annual,
// mu=0, T=30 days, N=1000, seed fixed. Expect sample mean return
// within +-0.05 of 0, sample stdev within [0.025, 0.04]
// (~ sigma*sqrt(30/252)); VaR_95 in [-0.08*10000, -0.04*10000].
func TestMonteCarloScenarioESanity(t *testing.T) {
	positions := []SimulationPosition{
		{PositionID: uuid.New(), CollateralSymbol: "ASSET", CollateralKind: correlation.KindCrypto, CollateralQty: 1, CollateralPrice: 10000},
	}
	matrix := correlation.CorrelationMatrix{Assets: []string{"ASSET"}, M: [][]float64{{1}}}
	mu := map[string]float64{"ASSET": 0}
	sigma := map[string]float64{"ASSET": 0.1}
	seed := int64(42)

	result, err := RunMonteCarlo(context.Background(), positions, mu, sigma, matrix, MonteCarloConfig{
		Iterations:  1000,
		HorizonDays: 30,
		Seed:        &seed,
	})
	if err != nil {
		t.Fatalf("monte carlo: %v", err)
	}

	meanReturn := result.RiskMetrics["mean_return"]
	if math.Abs(meanReturn) > 0.05 {
		t.Fatalf("expected mean return within +-0.05 of 0, got %v", meanReturn)
	}
	stdev := result.RiskMetrics["stdev_return"]
	if stdev < 0.025 || stdev > 0.04 {
		t.Fatalf("expected stdev in [0.025,0.04], got %v", stdev)
	}
	if result.VaR95 < -800 || result.VaR95 > -400 {
		t.Fatalf("expected VaR_95 in [-800,-400], got %v", result.VaR95)
	}
}

// Testable property 5: CVaR_95 <= VaR_95 <= 0.
func TestMonteCarloVaRCVaROrdering(t *testing.T) {
	positions := []SimulationPosition{
		{PositionID: uuid.New(), CollateralSymbol: "A", CollateralKind: correlation.KindCrypto, CollateralQty: 1, CollateralPrice: 1000},
		{PositionID: uuid.New(), CollateralSymbol: "B", CollateralKind: correlation.KindCrypto, CollateralQty: 1, CollateralPrice: 1000},
	}
	matrix := correlation.CorrelationMatrix{Assets: []string{"A", "B"}, M: [][]float64{{1, 0.3}, {0.3, 1}}}
	mu := map[string]float64{"A": 0, "B": 0}
	sigma := map[string]float64{"A": 0.4, "B": 0.5}
	seed := int64(7)

	result, err := RunMonteCarlo(context.Background(), positions, mu, sigma, matrix, MonteCarloConfig{
		Iterations:  500,
		HorizonDays: 10,
		Seed:        &seed,
	})
	if err != nil {
		t.Fatalf("monte carlo: %v", err)
	}
	if result.VaR95 > 0 {
		t.Fatalf("expected VaR95 <= 0, got %v", result.VaR95)
	}
	if result.CVaR95 > result.VaR95 {
		t.Fatalf("expected CVaR95 <= VaR95, got %v > %v", result.CVaR95, result.VaR95)
	}
}

func TestCholeskyFallbackOnNonPositiveDefiniteMatrix(t *testing.T) {
	// An invalid, non-positive-definite "covariance" (implied rho =
	// 0.02/0.01 = 2, as after clamp-free stress amplification).
	bad := [][]float64{
		{0.01, 0.02},
		{0.02, 0.01},
	}
	L, err := choleskyWithFallback(bad)
	if err != nil {
		t.Fatalf("expected diagonal-loading fallback to succeed, got error: %v", err)
	}
	if len(L) != 2 {
		t.Fatalf("expected a 2x2 factor, got %dx%d", len(L), len(L))
	}
}

func TestRunMonteCarloRejectsTooManyIterations(t *testing.T) {
	positions := []SimulationPosition{
		{PositionID: uuid.New(), CollateralSymbol: "A", CollateralKind: correlation.KindCrypto, CollateralQty: 1, CollateralPrice: 1000},
	}
	matrix := correlation.CorrelationMatrix{Assets: []string{"A"}, M: [][]float64{{1}}}
	_, err := RunMonteCarlo(context.Background(), positions, map[string]float64{"A": 0}, map[string]float64{"A": 0.2}, matrix, MonteCarloConfig{
		Iterations:    100,
		HorizonDays:   5,
		MaxIterations: 10,
	})
	if err == nil {
		t.Fatalf("expected TooManyIterations error")
	}
}
