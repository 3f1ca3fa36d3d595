package correlation

import "github.com/nhbchain/riskengine/riskerr"

// Config groups the correlation engine's tuning knobs (spec §6
// "Correlation").
type Config struct {
	DefaultWindowDays   int
	MinDataPoints       int
	HighThreshold       float64
	CriticalThreshold   float64
	ConfidenceLevel     float64
	MaxConcentrationPct float64
	CacheTTLSeconds     int
}

// DefaultConfig matches spec §4.5's stated defaults.
func DefaultConfig() Config {
	return Config{
		DefaultWindowDays:   90,
		MinDataPoints:       30,
		HighThreshold:       0.7,
		CriticalThreshold:   0.9,
		ConfidenceLevel:     0.95,
		MaxConcentrationPct: 0.7,
		CacheTTLSeconds:     3600,
	}
}

// Validate reports configuration invariant violations at construction
// time, per spec §7's "Configuration errors... raised at construction;
// fatal".
func (c Config) Validate() error {
	if c.MinDataPoints < 2 {
		return riskerr.New(riskerr.KindInvalidThreshold, "min_data_points must be >= 2")
	}
	if c.HighThreshold <= 0 || c.HighThreshold > 1 {
		return riskerr.New(riskerr.KindInvalidThreshold, "high_threshold must be in (0,1]")
	}
	if c.CriticalThreshold < c.HighThreshold || c.CriticalThreshold > 1 {
		return riskerr.New(riskerr.KindInvalidThreshold, "critical_threshold must be >= high_threshold and <= 1")
	}
	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		return riskerr.New(riskerr.KindInvalidThreshold, "confidence_level must be in (0,1)")
	}
	if c.MaxConcentrationPct <= 0 || c.MaxConcentrationPct > 1 {
		return riskerr.New(riskerr.KindInvalidThreshold, "max_concentration_pct must be in (0,1]")
	}
	return nil
}
