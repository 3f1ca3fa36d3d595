package stress

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nhbchain/riskengine/correlation"
	"github.com/nhbchain/riskengine/observability/metrics"
	"github.com/nhbchain/riskengine/riskerr"
)

// Engine wires the scenario catalog, Monte Carlo, and backtest
// operations together behind a shared result cache (spec §4.6).
type Engine struct {
	cfg   Config
	cache *resultCache
}

// New constructs an Engine, validating cfg eagerly.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ttl := time.Duration(cfg.CacheTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Engine{cfg: cfg, cache: newResultCache(ttl)}, nil
}

// RunScenario executes a catalogued (or custom) scenario against a
// portfolio and synthesizes recommendations when configured to.
func (e *Engine) RunScenario(scenarioID string, positions []SimulationPosition, matrix correlation.CorrelationMatrix, volatilities map[string]float64) (SimulationResult, error) {
	if len(positions) == 0 {
		return SimulationResult{}, riskerr.New(riskerr.KindEmptyPortfolio, "scenario run requires a non-empty portfolio")
	}
	if e.cfg.MaxConcurrentPositions > 0 && len(positions) > e.cfg.MaxConcurrentPositions {
		return SimulationResult{}, riskerr.New(riskerr.KindTooManyPositions, "scenario run exceeds max_concurrent_positions")
	}
	scenario, ok := e.cfg.Scenarios[scenarioID]
	if !ok {
		return SimulationResult{}, riskerr.New(riskerr.KindConfiguration, "unknown scenario", "scenario_id", scenarioID)
	}

	ids := positionIDs(positions)
	key := resultCacheKey(scenarioID, ids, configHash(0, 0))
	if cached, ok := e.cache.get(key); ok {
		metrics.Stress().IncCacheHit("simulation_result")
		return cached, nil
	}

	start := time.Now()
	stressedMatrix := StressedMatrix(matrix, scenario.Kind)
	result := RunScenario(positions, scenario, stressedMatrix, volatilities, e.cfg.LiquidationRouting)
	if e.cfg.AutoRecommendations {
		result.Recommendations = SynthesizeRecommendations(result, result.InitialValue)
	}
	metrics.Stress().ObserveRun("scenario", time.Since(start).Seconds())

	e.cache.put(key, result)
	return result, nil
}

// RunMonteCarlo runs a correlated multivariate-normal simulation over
// positions and caches the result by (iterations, horizon) alongside
// the portfolio composition.
func (e *Engine) RunMonteCarlo(ctx context.Context, positions []SimulationPosition, mu, sigma map[string]float64, matrix correlation.CorrelationMatrix, cfg MonteCarloConfig) (SimulationResult, error) {
	if cfg.Iterations <= 0 {
		cfg.Iterations = e.cfg.MCIterations
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = e.cfg.HorizonDays
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = e.cfg.MaxMonteCarloIterations
	}

	ids := positionIDs(positions)
	key := resultCacheKey("monte_carlo", ids, configHash(cfg.Iterations, cfg.HorizonDays))
	if cached, ok := e.cache.get(key); ok {
		metrics.Stress().IncCacheHit("simulation_result")
		return cached, nil
	}

	start := time.Now()
	result, err := RunMonteCarlo(ctx, positions, mu, sigma, matrix, cfg)
	if err != nil {
		return SimulationResult{}, err
	}
	if e.cfg.AutoRecommendations {
		result.Recommendations = SynthesizeRecommendations(result, result.InitialValue)
	}
	metrics.Stress().ObserveRun("monte_carlo", time.Since(start).Seconds())

	e.cache.put(key, result)
	return result, nil
}

// RunBacktest replays historical prices over the portfolio. Returns a
// configuration error if backtesting was disabled at construction.
func (e *Engine) RunBacktest(positions []SimulationPosition, paths map[string]PricePath, start, end time.Time) (SimulationResult, error) {
	if !e.cfg.BacktestingEnabled {
		return SimulationResult{}, riskerr.New(riskerr.KindConfiguration, "backtesting is disabled")
	}
	begin := time.Now()
	result, err := RunBacktest(positions, paths, start, end)
	if err != nil {
		return SimulationResult{}, err
	}
	if e.cfg.AutoRecommendations {
		result.Recommendations = SynthesizeRecommendations(result, result.InitialValue)
	}
	metrics.Stress().ObserveRun("backtest", time.Since(begin).Seconds())
	return result, nil
}

func positionIDs(positions []SimulationPosition) []uuid.UUID {
	ids := make([]uuid.UUID, len(positions))
	for i, p := range positions {
		ids[i] = p.PositionID
	}
	return ids
}
