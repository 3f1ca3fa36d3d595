package alert

// Recommendations returns the canned, configurable recommendation
// strings for a given escalation level (spec §4.4).
func Recommendations(level Level) []string {
	switch level {
	case LevelInfo:
		return []string{"Position is healthy; no action required."}
	case LevelWarning:
		return []string{
			"Monitor the position closely.",
			"Consider adding collateral ahead of further price moves.",
		}
	case LevelCritical:
		return []string{
			"URGENT: Add collateral or repay debt within 1 hour.",
			"Review liquidation price and current market conditions.",
		}
	case LevelEmergency:
		return []string{
			"IMMEDIATE ACTION REQUIRED: position is at or past liquidation risk.",
			"Add collateral or repay debt now to avoid liquidation.",
		}
	default:
		return nil
	}
}

// RecoveryRecommendation is attached to the Info alert emitted when a
// position's escalation level decreases (spec §4.4 step 3).
func RecoveryRecommendation() []string {
	return []string{"Position health has improved; prior alert resolved."}
}
