package price

import (
	"time"

	"github.com/nhbchain/riskengine/riskerr"
)

// AggregatorConfig groups every tuning knob for the price aggregation
// layer, constructed once at startup and injected into New — never read
// ad hoc from globals, per the teacher's "parameter soup" re-architecture
// note.
type AggregatorConfig struct {
	Oracles             []OracleConfig
	AggregationMethod   AggregationMethod
	FallbackStrategy    FallbackStrategy
	CacheTTL            time.Duration
	DeviationThreshold  float64 // default 0.05
	HardBreakerThreshold float64
	StaleThreshold      time.Duration
	RecoveryWindow      time.Duration
	GlobalTimeout       time.Duration // T_agg, default 10s
	MinQuorum           int
	CircuitBreakerEnabled bool
}

// DefaultAggregatorConfig returns the spec's stated defaults.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		AggregationMethod:     MethodWeightedAverage,
		FallbackStrategy:      FallbackUseLastKnownPrice,
		CacheTTL:              60 * time.Second,
		DeviationThreshold:    0.05,
		HardBreakerThreshold:  0.10,
		StaleThreshold:        5 * time.Minute,
		RecoveryWindow:        2 * time.Minute,
		GlobalTimeout:         10 * time.Second,
		MinQuorum:             1,
		CircuitBreakerEnabled: true,
	}
}

// Validate enforces the configuration invariants raised at construction
// time as fatal configuration errors.
func (c AggregatorConfig) Validate() error {
	if len(c.Oracles) == 0 {
		return riskerr.New(riskerr.KindConfiguration, "at least one oracle must be configured")
	}
	enabled := 0
	for _, o := range c.Oracles {
		if !o.Enabled {
			continue
		}
		enabled++
		if o.Weight <= 0 || o.Weight > 1 {
			return riskerr.New(riskerr.KindConfiguration, "oracle weight must be in (0,1]", "oracle", o.ID)
		}
	}
	if enabled == 0 {
		return riskerr.New(riskerr.KindConfiguration, "at least one oracle must be enabled")
	}
	switch c.AggregationMethod {
	case MethodWeightedAverage, MethodMedian, MethodTrimmedMean, MethodConsensus:
	default:
		return riskerr.New(riskerr.KindConfiguration, "unknown aggregation method", "method", string(c.AggregationMethod))
	}
	switch c.FallbackStrategy {
	case FallbackUseLastKnownPrice, FallbackUseMostReliableOracle, FallbackUseWeightedAverageOfSuccessful, FallbackFail:
	default:
		return riskerr.New(riskerr.KindConfiguration, "unknown fallback strategy", "strategy", string(c.FallbackStrategy))
	}
	if c.DeviationThreshold <= 0 || c.DeviationThreshold >= 1 {
		return riskerr.New(riskerr.KindConfiguration, "deviation threshold must be in (0,1)")
	}
	if c.CircuitBreakerEnabled && c.HardBreakerThreshold <= c.DeviationThreshold {
		return riskerr.New(riskerr.KindConfiguration, "hard breaker threshold must exceed deviation threshold")
	}
	if c.MinQuorum < 1 {
		return riskerr.New(riskerr.KindConfiguration, "min quorum must be at least 1")
	}
	return nil
}
