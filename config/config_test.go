package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalValidConfig = `
price_feed:
  oracles:
    - id: chainlink
      endpoint: https://example.invalid
      weight: 1.0
      timeout_s: 2
      enabled: true
monitoring:
  monitor_interval_s: 15
`

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, minimalValidConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Monitoring.MaxMissedSweeps != 3 {
		t.Fatalf("expected default max_missed_sweeps 3, got %d", cfg.Monitoring.MaxMissedSweeps)
	}
	if cfg.Correlation.DefaultWindowDays != 90 {
		t.Fatalf("expected default_window_days default 90, got %d", cfg.Correlation.DefaultWindowDays)
	}
	if cfg.Stress.MCIterations != 1000 {
		t.Fatalf("expected mc_iterations default 1000, got %d", cfg.Stress.MCIterations)
	}
}

func TestLoadConfigRequiresAtLeastOneOracle(t *testing.T) {
	path := writeConfig(t, `
monitoring:
  monitor_interval_s: 15
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when no oracles are configured")
	}
}

func TestLoadConfigRejectsOutOfRangeOracleWeight(t *testing.T) {
	path := writeConfig(t, `
price_feed:
  oracles:
    - id: chainlink
      weight: 1.5
monitoring:
  monitor_interval_s: 15
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when an oracle weight is out of range")
	}
}

func TestLoadConfigRejectsNonPositiveMonitorInterval(t *testing.T) {
	path := writeConfig(t, `
price_feed:
  oracles:
    - id: chainlink
      weight: 1.0
monitoring:
  monitor_interval_s: 0
`)
	// monitor_interval_s of 0 is normalized to the 15s default before
	// validation runs, so this should succeed; a negative value should not.
	if _, err := Load(path); err != nil {
		t.Fatalf("expected zero interval to fall back to default, got error: %v", err)
	}

	path = writeConfig(t, `
price_feed:
  oracles:
    - id: chainlink
      weight: 1.0
monitoring:
  monitor_interval_s: -5
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for a negative monitor interval")
	}
}

func TestPriceFeedConfigConvertsOracleFields(t *testing.T) {
	path := writeConfig(t, `
price_feed:
  oracles:
    - id: chainlink
      endpoint: https://example.invalid
      weight: 0.6
      timeout_s: 2.5
      retry_attempts: 4
      enabled: true
  aggregation_method: median
monitoring:
  monitor_interval_s: 15
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	feedCfg := cfg.PriceFeedConfig()
	if len(feedCfg.Oracles) != 1 {
		t.Fatalf("expected 1 oracle, got %d", len(feedCfg.Oracles))
	}
	if feedCfg.Oracles[0].ID != "chainlink" || feedCfg.Oracles[0].RetryAttempts != 4 {
		t.Fatalf("unexpected oracle conversion: %+v", feedCfg.Oracles[0])
	}
	if string(feedCfg.AggregationMethod) != "median" {
		t.Fatalf("expected aggregation_method median, got %v", feedCfg.AggregationMethod)
	}
}

func TestStressConfigFallsBackToBuiltinCatalogWithoutPath(t *testing.T) {
	path := writeConfig(t, minimalValidConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	stressCfg, err := cfg.StressConfig()
	if err != nil {
		t.Fatalf("stress config: %v", err)
	}
	if len(stressCfg.Scenarios) == 0 {
		t.Fatal("expected the built-in scenario catalog when no catalog path is configured")
	}
}
