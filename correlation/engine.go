package correlation

import (
	"time"

	"github.com/nhbchain/riskengine/observability/metrics"
	"github.com/nhbchain/riskengine/riskerr"
)

// Engine exposes the correlation_matrix and analyze_portfolio
// operations from spec §4.5's contract.
type Engine struct {
	cfg   Config
	cache *matrixCache
}

// New constructs an Engine, validating cfg eagerly.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Engine{cfg: cfg, cache: newMatrixCache(ttl)}, nil
}

// CorrelationMatrix computes (or returns a cached) correlation matrix
// over the given assets for windowDays (0 uses the configured default).
// Returns InsufficientHistory when fewer than two assets survive the
// min_data_points filter.
func (e *Engine) CorrelationMatrix(assets []Asset, windowDays int) (CorrelationMatrix, error) {
	if windowDays <= 0 {
		windowDays = e.cfg.DefaultWindowDays
	}
	symbols := make([]string, len(assets))
	for i, a := range assets {
		symbols[i] = a.Symbol
	}
	key := cacheKey(symbols, windowDays)
	if cached, ok := e.cache.get(key); ok {
		metrics.Stress().IncCacheHit("correlation_matrix")
		return cached, nil
	}

	m := BuildMatrix(assets, windowDays, e.cfg.MinDataPoints)
	m.ConfidenceLevel = e.cfg.ConfidenceLevel
	if len(m.Assets) < 2 {
		return CorrelationMatrix{}, riskerr.New(riskerr.KindInsufficientHistory,
			"fewer than two assets have sufficient price history for a correlation matrix")
	}
	e.cache.put(key, m)
	return m, nil
}

// AnalyzePortfolio computes the full correlation/risk analysis for a
// portfolio: matrix, high-correlation pairs, diversification,
// concentration, portfolio volatility, parametric VaR/CVaR, and
// rebalancing recommendations (spec §4.5 analyze_portfolio).
func (e *Engine) AnalyzePortfolio(positions []PortfolioPosition, assets []Asset, windowDays int) (Analysis, error) {
	if len(positions) == 0 {
		return Analysis{}, riskerr.New(riskerr.KindEmptyPortfolio, "portfolio has no positions")
	}

	matrix, err := e.CorrelationMatrix(assets, windowDays)
	if err != nil {
		return Analysis{}, err
	}

	bySymbol := make(map[string]Asset, len(assets))
	for _, a := range assets {
		bySymbol[a.Symbol] = a
	}

	totalValue := 0.0
	for _, p := range positions {
		totalValue += p.ValueUSD
	}

	weights := make([]float64, 0, len(matrix.Assets))
	volatilities := make([]float64, 0, len(matrix.Assets))
	allWeights := make([]float64, 0, len(positions))

	positionBySymbol := make(map[string]PortfolioPosition, len(positions))
	for _, p := range positions {
		positionBySymbol[p.Symbol] = p
		if totalValue > 0 {
			allWeights = append(allWeights, p.ValueUSD/totalValue)
		}
	}

	for _, symbol := range matrix.Assets {
		w := 0.0
		if pos, ok := positionBySymbol[symbol]; ok && totalValue > 0 {
			w = pos.ValueUSD / totalValue
		}
		weights = append(weights, w)

		vol := 0.0
		if a, ok := bySymbol[symbol]; ok {
			vol = annualizedVolatility(simpleReturns(a.PriceHistory, matrix.WindowDays))
			if vol == 0 {
				vol = a.Volatility
			}
		}
		volatilities = append(volatilities, vol)
	}

	diversification := DiversificationScore(matrix)
	concentration := ConcentrationRisk(allWeights)
	portfolioVol := PortfolioVolatility(weights, volatilities, matrix)
	var95 := ParametricVaR95(portfolioVol, totalValue)
	cvar95 := ParametricCVaR95(portfolioVol, totalValue)
	pairs := HighCorrelationPairs(matrix, e.cfg.HighThreshold, e.cfg.CriticalThreshold)

	return Analysis{
		Matrix:               matrix,
		HighCorrelationPairs: pairs,
		DiversificationScore: diversification,
		ConcentrationRisk:    concentration,
		PortfolioVolatility:  portfolioVol,
		VaR95:                var95,
		CVaR95:               cvar95,
		Recommendations:      rebalancingRecommendations(concentration, pairs, diversification, e.cfg),
	}, nil
}

// rebalancingRecommendations implements the three rules from spec
// §4.5, sorted by priority.
func rebalancingRecommendations(concentration float64, pairs []HighCorrelationPair, diversification float64, cfg Config) []Recommendation {
	var out []Recommendation
	if concentration > cfg.MaxConcentrationPct {
		out = append(out, Recommendation{
			Kind:     "reduce_concentration",
			Priority: PriorityCritical,
			Message:  "Portfolio concentration exceeds the configured threshold; reduce exposure to the largest positions.",
		})
	}
	for _, p := range pairs {
		if p.Level == LevelCritical {
			out = append(out, Recommendation{
				Kind:     "optimize_correlation",
				Priority: PriorityHigh,
				Message:  "Critical correlation between " + p.AssetA + " and " + p.AssetB + "; consider reducing joint exposure.",
			})
		}
	}
	if diversification < 0.3 {
		out = append(out, Recommendation{
			Kind:     "increase_diversification",
			Priority: PriorityHigh,
			Message:  "Portfolio diversification score is low; add uncorrelated assets.",
		})
	}

	order := map[RecommendationPriority]int{PriorityCritical: 0, PriorityHigh: 1, PriorityMedium: 2}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && order[out[j].Priority] < order[out[j-1].Priority]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
