// Package alert implements the escalation state machine that classifies
// position health into discrete bands and raises deduplicated,
// monotonically-escalating alerts (spec §4.4).
package alert

import (
	"time"

	"github.com/google/uuid"
)

// Level is a discrete escalation band assigned to a position from its
// current health factor.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelCritical
	LevelEmergency
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	case LevelEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// Thresholds configures the escalation band boundaries. The spec's
// written ranges are ambiguous exactly at the Critical/Emergency seam
// (Critical "(1.0,1.2]" vs Emergency "hf<=1.0" both claim hf=1.0); spec
// §8 testable property 9 resolves this explicitly in Critical's favor,
// so Critical is implemented as the band Critical <= hf <= Warning,
// closed at both ends, and Emergency requires hf strictly below the
// Critical boundary. See
// DESIGN.md for the recorded Open Question decision.
type Thresholds struct {
	Info     float64 // hf above this is Info
	Warning  float64 // hf above this (and <= Info) is Warning
	Critical float64 // hf at or above this (and <= Warning) is Critical; hf below this is Emergency
	AlreadyLiquidatable float64 // hf at or below this is flagged already-liquidatable
}

// DefaultThresholds matches spec §3's default escalation bands.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Info:                1.5,
		Warning:             1.2,
		Critical:            1.0,
		AlreadyLiquidatable: 0.8,
	}
}

// Classify maps a health factor value to its escalation Level.
func (t Thresholds) Classify(hf float64) Level {
	switch {
	case hf > t.Info:
		return LevelInfo
	case hf > t.Warning:
		return LevelWarning
	case hf >= t.Critical:
		return LevelCritical
	default:
		return LevelEmergency
	}
}

// AlreadyLiquidatableNow reports whether hf is at or below the separately
// tuned already-liquidatable boundary (spec §3).
func (t Thresholds) AlreadyLiquidatableNow(hf float64) bool {
	return hf <= t.AlreadyLiquidatable
}

// Alert is a single escalation event for a position.
type Alert struct {
	ID                 uint64
	PositionID         uuid.UUID
	Level              Level
	CurrentHF          float64
	ThresholdHF        float64
	EstLiqPrice        *float64
	ETAToLiquidation   *time.Duration
	Recommendations    []string
	CreatedAt          time.Time
	Acknowledged       bool
	Resolved           bool
}
