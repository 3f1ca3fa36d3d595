package stress

import (
	"fmt"

	"github.com/nhbchain/riskengine/correlation"
)

// SynthesizeRecommendations applies the post-run rules from spec §4.6
// "Recommendation synthesis" against a completed SimulationResult.
func SynthesizeRecommendations(result SimulationResult, portfolioValue float64) []correlation.Recommendation {
	var out []correlation.Recommendation

	for _, id := range result.Liquidated {
		out = append(out, correlation.Recommendation{
			Kind:     "increase_collateral",
			Priority: correlation.PriorityCritical,
			Message:  fmt.Sprintf("position %s was liquidated under this scenario; add collateral to survive it.", id),
		})
	}

	if result.MaxDrawdown < -0.5 {
		out = append(out, correlation.Recommendation{
			Kind:     "reduce_exposure",
			Priority: correlation.PriorityHigh,
			Message:  "maximum drawdown exceeds 50%; reduce overall leverage or exposure.",
		})
	}

	if portfolioValue > 0 && result.CVaR95 < -0.3*portfolioValue {
		out = append(out, correlation.Recommendation{
			Kind:     "hedge_risk",
			Priority: correlation.PriorityMedium,
			Message:  "expected shortfall is large relative to portfolio value; consider hedging instruments.",
		})
	}

	if portfolioValue > 0 && len(result.Liquidated) > 0 {
		liquidatedShare := float64(len(result.Liquidated)) / float64(len(result.Liquidated)+len(result.Surviving))
		if liquidatedShare > 0.3 {
			out = append(out, correlation.Recommendation{
				Kind:     "rebalance_allocation",
				Priority: correlation.PriorityHigh,
				Message:  "a large share of the portfolio was concentrated in liquidated positions; rebalance allocation.",
			})
		}
	}

	order := map[correlation.RecommendationPriority]int{
		correlation.PriorityCritical: 0,
		correlation.PriorityHigh:     1,
		correlation.PriorityMedium:   2,
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && order[out[j].Priority] < order[out[j-1].Priority]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
