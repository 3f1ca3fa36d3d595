package stress

import "github.com/nhbchain/riskengine/riskerr"

// Config groups the stress/simulation engine's tuning knobs (spec §6
// "Stress").
type Config struct {
	Scenarios               map[string]Scenario
	MCIterations            int
	HorizonDays             int
	VolatilityDefault       float64
	AutoRecommendations     bool
	BacktestingEnabled      bool
	CacheTTLHours           int
	MaxMonteCarloIterations int
	MaxConcurrentPositions  int
	LiquidationRouting      LiquidationRouting
}

// DefaultConfig matches spec §4.6/§6's stated defaults.
func DefaultConfig() Config {
	return Config{
		Scenarios:               DefaultCatalog(),
		MCIterations:            1000,
		HorizonDays:             30,
		VolatilityDefault:       0.5,
		AutoRecommendations:     true,
		BacktestingEnabled:      true,
		CacheTTLHours:           1,
		MaxMonteCarloIterations: 100000,
		MaxConcurrentPositions:  10000,
		LiquidationRouting: LiquidationRouting{
			LiquidatorBps: 7000,
			DeveloperBps:  2000,
			ProtocolBps:   1000,
		},
	}
}

// Validate reports configuration invariant violations at construction.
func (c Config) Validate() error {
	if len(c.Scenarios) == 0 {
		return riskerr.New(riskerr.KindConfiguration, "stress engine requires at least one catalogued scenario")
	}
	if c.MCIterations <= 0 {
		return riskerr.New(riskerr.KindConfiguration, "mc_iterations must be positive")
	}
	if c.HorizonDays <= 0 {
		return riskerr.New(riskerr.KindConfiguration, "horizon_days must be positive")
	}
	if c.MaxMonteCarloIterations > 0 && c.MCIterations > c.MaxMonteCarloIterations {
		return riskerr.New(riskerr.KindConfiguration, "mc_iterations exceeds max_monte_carlo_iterations")
	}
	r := c.LiquidationRouting
	if r.LiquidatorBps+r.DeveloperBps+r.ProtocolBps > 10000 {
		return riskerr.New(riskerr.KindConfiguration, "liquidation routing exceeds 100%")
	}
	return nil
}
