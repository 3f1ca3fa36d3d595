package stress

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/nhbchain/riskengine/correlation"
	"github.com/nhbchain/riskengine/observability/metrics"
	"github.com/nhbchain/riskengine/riskerr"
)

const tradingDaysPerYear = 252.0

// MonteCarloConfig controls a simulation run (spec §4.6 "Monte Carlo
// simulation").
type MonteCarloConfig struct {
	Iterations   int
	HorizonDays  int
	MaxIterations int
	Seed         *int64 // nil draws a time-seeded source; non-nil is reproducible.
}

// RunMonteCarlo generates Iterations correlated daily log-return paths
// over HorizonDays for the portfolio's constituent assets, revalues the
// portfolio at the horizon for each path, and aggregates the resulting
// return distribution into VaR/CVaR. Cholesky factorization uses
// diagonal loading as its nearest-positive-definite fallback (see
// DESIGN.md — no eigen-decomposition library is available in this
// corpus).
func RunMonteCarlo(ctx context.Context, positions []SimulationPosition, mu, sigma map[string]float64, matrix correlation.CorrelationMatrix, cfg MonteCarloConfig) (SimulationResult, error) {
	start := time.Now()

	if len(positions) == 0 {
		return SimulationResult{}, riskerr.New(riskerr.KindEmptyPortfolio, "monte carlo requires a non-empty portfolio")
	}
	if cfg.MaxIterations > 0 && cfg.Iterations > cfg.MaxIterations {
		return SimulationResult{}, riskerr.New(riskerr.KindTooManyIterations, "requested iterations exceed max_monte_carlo_iterations")
	}

	n := len(matrix.Assets)
	if n == 0 {
		return SimulationResult{}, riskerr.New(riskerr.KindInsufficientHistory, "correlation matrix has no assets to simulate")
	}

	covariance := make([][]float64, n)
	for i := 0; i < n; i++ {
		covariance[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			rho := 1.0
			if i != j {
				rho = matrix.M[i][j]
			}
			si := sigma[matrix.Assets[i]] / math.Sqrt(tradingDaysPerYear)
			sj := sigma[matrix.Assets[j]] / math.Sqrt(tradingDaysPerYear)
			covariance[i][j] = rho * si * sj
		}
	}

	L, err := choleskyWithFallback(covariance)
	if err != nil {
		return SimulationResult{}, err
	}

	var rng *rand.Rand
	if cfg.Seed != nil {
		rng = rand.New(rand.NewSource(*cfg.Seed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	bySymbol := make(map[string]float64, len(positions))
	var totalValue float64
	for _, p := range positions {
		v := p.collateralValue(p.CollateralPrice)
		bySymbol[p.CollateralSymbol] += v
		totalValue += v
	}

	drift := make([]float64, n)
	for i, symbol := range matrix.Assets {
		drift[i] = mu[symbol] / tradingDaysPerYear
	}

	portfolioReturns := make([]float64, 0, cfg.Iterations)
	for iter := 0; iter < cfg.Iterations; iter++ {
		if iter%128 == 0 {
			select {
			case <-ctx.Done():
				return SimulationResult{}, riskerr.Wrap(riskerr.KindCancellationRequested, ctx.Err(), "monte carlo cancelled mid-run")
			default:
			}
		}

		logReturn := make([]float64, n)
		for day := 0; day < cfg.HorizonDays; day++ {
			z := make([]float64, n)
			for i := range z {
				z[i] = rng.NormFloat64()
			}
			daily := matVecMul(L, z)
			for i := range logReturn {
				logReturn[i] += drift[i] + daily[i]
			}
		}

		var finalValue float64
		for i, symbol := range matrix.Assets {
			finalValue += bySymbol[symbol] * math.Exp(logReturn[i])
		}
		if totalValue > 0 {
			portfolioReturns = append(portfolioReturns, (finalValue-totalValue)/totalValue)
		}
	}

	metrics.Stress().AddMonteCarloIterations(cfg.Iterations)

	var95, cvar95 := empiricalVaRCVaR(portfolioReturns, 0.95)

	meanReturn := mean(portfolioReturns)
	return SimulationResult{
		Scenario:     "monte_carlo",
		InitialValue: totalValue,
		FinalValue:   totalValue * (1 + meanReturn),
		VaR95:        var95 * totalValue,
		CVaR95:       cvar95 * totalValue,
		RiskMetrics: map[string]float64{
			"mean_return":   meanReturn,
			"stdev_return":  stdDev(portfolioReturns),
			"iterations":    float64(len(portfolioReturns)),
		},
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// empiricalVaRCVaR sorts the return distribution and derives VaR/CVaR
// directly from the sampled losses (testable property 5: CVaR_95 <=
// VaR_95 <= 0), rather than the parametric shortcut used for the
// single-scenario path.
func empiricalVaRCVaR(returns []float64, confidence float64) (varPct, cvarPct float64) {
	if len(returns) == 0 {
		return 0, 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	idx := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	varReturn := sorted[idx]
	if varReturn > 0 {
		varReturn = 0
	}

	tail := sorted[:idx+1]
	cvarReturn := mean(tail)
	if cvarReturn > varReturn {
		cvarReturn = varReturn
	}
	return varReturn, cvarReturn
}

// choleskyWithFallback attempts a standard lower-triangular Cholesky
// factorization; on failure (non-positive-definite input, e.g. from
// clamped/stressed correlations), it retries with increasing diagonal
// loading before surfacing MatrixNotPositiveDefinite (spec §7).
func choleskyWithFallback(a [][]float64) ([][]float64, error) {
	n := len(a)
	const maxAttempts = 24

	var trace float64
	for i := 0; i < n; i++ {
		trace += a[i][i]
	}
	avgDiag := trace / float64(n)
	if avgDiag <= 0 {
		avgDiag = 1
	}
	jitter := avgDiag * 1e-9

	working := cloneMatrix(a)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if L, ok := cholesky(working); ok {
			return L, nil
		}
		for i := 0; i < n; i++ {
			working[i][i] = a[i][i] + jitter
		}
		jitter *= 3
	}
	return nil, riskerr.New(riskerr.KindMatrixNotPositiveDefinite, "covariance matrix is not positive definite after diagonal loading")
}

func cholesky(a [][]float64) ([][]float64, bool) {
	n := len(a)
	L := make([][]float64, n)
	for i := range L {
		L[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := a[i][j]
			for k := 0; k < j; k++ {
				sum -= L[i][k] * L[j][k]
			}
			if i == j {
				if sum <= 0 {
					return nil, false
				}
				L[i][j] = math.Sqrt(sum)
			} else {
				L[i][j] = sum / L[j][j]
			}
		}
	}
	return L, true
}

func cloneMatrix(a [][]float64) [][]float64 {
	out := make([][]float64, len(a))
	for i, row := range a {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

func matVecMul(m [][]float64, v []float64) []float64 {
	out := make([]float64, len(m))
	for i, row := range m {
		var sum float64
		for j, x := range row {
			sum += x * v[j]
		}
		out[i] = sum
	}
	return out
}
