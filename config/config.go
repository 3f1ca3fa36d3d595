// Package config loads and validates the hierarchical configuration for
// every risk engine subsystem from a single YAML document.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nhbchain/riskengine/alert"
	"github.com/nhbchain/riskengine/correlation"
	"github.com/nhbchain/riskengine/monitor"
	"github.com/nhbchain/riskengine/price"
	"github.com/nhbchain/riskengine/price/anomaly"
	"github.com/nhbchain/riskengine/stress"
)

// OracleYAML mirrors price.OracleConfig's wire shape.
type OracleYAML struct {
	ID            string  `yaml:"id"`
	Endpoint      string  `yaml:"endpoint"`
	Weight        float64 `yaml:"weight"`
	TimeoutS      float64 `yaml:"timeout_s"`
	RetryAttempts int     `yaml:"retry_attempts"`
	Enabled       bool    `yaml:"enabled"`
	APIKey        string  `yaml:"api_key"`
}

// PriceFeedYAML is the YAML shape of the price aggregation config.
type PriceFeedYAML struct {
	Oracles              []OracleYAML `yaml:"oracles"`
	AggregationMethod    string       `yaml:"aggregation_method"`
	FallbackStrategy     string       `yaml:"fallback_strategy"`
	CacheTTLS            float64      `yaml:"cache_ttl_s"`
	DeviationThreshold   float64      `yaml:"deviation_threshold"`
	HardBreakerThreshold float64      `yaml:"hard_breaker_threshold"`
	StaleThresholdS      float64      `yaml:"stale_threshold_s"`
}

// AnomalyYAML is the YAML shape of the anomaly detector config.
type AnomalyYAML struct {
	ZThreshold              float64 `yaml:"z_threshold"`
	PriceDeviationThreshold float64 `yaml:"price_deviation_threshold"`
	VolumeSpikeThreshold    float64 `yaml:"volume_spike_threshold"`
	WindowMinutes           float64 `yaml:"window_minutes"`
	ConfidenceThreshold     float64 `yaml:"confidence_threshold"`
}

// AlertThresholdsYAML mirrors alert.Thresholds's wire shape.
type AlertThresholdsYAML struct {
	Info     float64 `yaml:"info"`
	Warning  float64 `yaml:"warning"`
	Critical float64 `yaml:"critical"`
	Emergency float64 `yaml:"emergency"` // kept for wire compatibility; mapped onto AlreadyLiquidatable.
}

// MonitoringYAML is the YAML shape of the monitor loop config.
type MonitoringYAML struct {
	MonitorIntervalS       float64             `yaml:"monitor_interval_s"`
	MaxMissedSweeps        int                 `yaml:"max_missed_sweeps"`
	AlertThresholds        AlertThresholdsYAML `yaml:"alert_thresholds"`
	BatchSize              int                 `yaml:"batch_size"`
	MaxConcurrentPositions int                 `yaml:"max_concurrent_positions"`
}

// CorrelationYAML is the YAML shape of the correlation engine config.
type CorrelationYAML struct {
	DefaultWindowDays   int     `yaml:"default_window_days"`
	MinDataPoints       int     `yaml:"min_data_points"`
	HighThreshold       float64 `yaml:"high_threshold"`
	CriticalThreshold   float64 `yaml:"critical_threshold"`
	ConfidenceLevel     float64 `yaml:"confidence_level"`
	MaxConcentrationPct float64 `yaml:"max_concentration_pct"`
}

// StressYAML is the YAML shape of the stress engine config. The
// scenario catalog itself is loaded separately from TOML
// (stress.LoadCatalogTOML); this struct only carries the path.
type StressYAML struct {
	ScenarioCatalogPath string                 `yaml:"scenario_catalog_path"`
	MCIterations        int                    `yaml:"mc_iterations"`
	HorizonDays         int                    `yaml:"horizon_days"`
	VolatilityDefault   float64                `yaml:"volatility_default"`
	AutoRecommendations bool                   `yaml:"auto_recommendations"`
	BacktestingEnabled  bool                   `yaml:"backtesting_enabled"`
	CacheTTLH           float64                `yaml:"cache_ttl_h"`
	LiquidationRouting  LiquidationRoutingYAML `yaml:"liquidation_routing"`
}

// LiquidationRoutingYAML is the YAML shape of the post-liquidation
// proceeds split recorded on a stress run's SimulationResult.Routing.
type LiquidationRoutingYAML struct {
	LiquidatorBps   uint64 `yaml:"liquidator_bps"`
	DeveloperBps    uint64 `yaml:"developer_bps"`
	ProtocolBps     uint64 `yaml:"protocol_bps"`
	DeveloperTarget string `yaml:"developer_target"`
}

// Config is the root configuration document for the risk engine.
type Config struct {
	PriceFeed   PriceFeedYAML   `yaml:"price_feed"`
	Anomaly     AnomalyYAML     `yaml:"anomaly"`
	Monitoring  MonitoringYAML  `yaml:"monitoring"`
	Correlation CorrelationYAML `yaml:"correlation"`
	Stress      StressYAML      `yaml:"stress"`
	AuditLogPath string         `yaml:"audit_log_path"`
}

// Load reads the YAML configuration from disk and validates the
// result, following services/lendingd/config.Load's
// open-decode-normalize-validate shape.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg.Monitoring.MonitorIntervalS == 0 {
		cfg.Monitoring.MonitorIntervalS = 15
	}
	if cfg.Monitoring.MaxMissedSweeps == 0 {
		cfg.Monitoring.MaxMissedSweeps = 3
	}
	if cfg.Correlation.DefaultWindowDays == 0 {
		cfg.Correlation.DefaultWindowDays = 90
	}
	if cfg.Stress.MCIterations == 0 {
		cfg.Stress.MCIterations = 1000
	}
	if cfg.Stress.HorizonDays == 0 {
		cfg.Stress.HorizonDays = 30
	}
}

func (cfg Config) validate() error {
	if len(cfg.PriceFeed.Oracles) == 0 {
		return fmt.Errorf("price_feed: at least one oracle must be configured")
	}
	for _, o := range cfg.PriceFeed.Oracles {
		if o.Weight < 0 || o.Weight > 1 {
			return fmt.Errorf("price_feed: oracle %q weight must be in [0,1]", o.ID)
		}
	}
	if cfg.Monitoring.MonitorIntervalS <= 0 {
		return fmt.Errorf("monitoring: monitor_interval_s must be positive")
	}
	if cfg.Correlation.MinDataPoints < 0 {
		return fmt.Errorf("correlation: min_data_points must be non-negative")
	}
	return nil
}

// PriceFeedConfig converts the YAML shape into price.AggregatorConfig.
func (cfg Config) PriceFeedConfig() price.AggregatorConfig {
	oracles := make([]price.OracleConfig, len(cfg.PriceFeed.Oracles))
	for i, o := range cfg.PriceFeed.Oracles {
		oracles[i] = price.OracleConfig{
			ID:            o.ID,
			Weight:        o.Weight,
			Timeout:       time.Duration(o.TimeoutS * float64(time.Second)),
			RetryAttempts: o.RetryAttempts,
			Enabled:       o.Enabled,
			APIKey:        o.APIKey,
		}
	}
	out := price.DefaultAggregatorConfig()
	out.Oracles = oracles
	if cfg.PriceFeed.AggregationMethod != "" {
		out.AggregationMethod = price.AggregationMethod(cfg.PriceFeed.AggregationMethod)
	}
	if cfg.PriceFeed.FallbackStrategy != "" {
		out.FallbackStrategy = price.FallbackStrategy(cfg.PriceFeed.FallbackStrategy)
	}
	if cfg.PriceFeed.CacheTTLS > 0 {
		out.CacheTTL = time.Duration(cfg.PriceFeed.CacheTTLS * float64(time.Second))
	}
	if cfg.PriceFeed.DeviationThreshold > 0 {
		out.DeviationThreshold = cfg.PriceFeed.DeviationThreshold
	}
	if cfg.PriceFeed.HardBreakerThreshold > 0 {
		out.HardBreakerThreshold = cfg.PriceFeed.HardBreakerThreshold
	}
	if cfg.PriceFeed.StaleThresholdS > 0 {
		out.StaleThreshold = time.Duration(cfg.PriceFeed.StaleThresholdS * float64(time.Second))
	}
	return out
}

// AnomalyConfig converts the YAML shape into anomaly.Config.
func (cfg Config) AnomalyConfig() anomaly.Config {
	out := anomaly.DefaultConfig()
	if cfg.Anomaly.ZThreshold > 0 {
		out.ZThreshold = cfg.Anomaly.ZThreshold
	}
	if cfg.Anomaly.PriceDeviationThreshold > 0 {
		out.PriceDeviationThreshold = cfg.Anomaly.PriceDeviationThreshold
	}
	if cfg.Anomaly.VolumeSpikeThreshold > 0 {
		out.VolumeSpikeThreshold = cfg.Anomaly.VolumeSpikeThreshold
	}
	if cfg.Anomaly.ConfidenceThreshold > 0 {
		out.ConfidenceThreshold = cfg.Anomaly.ConfidenceThreshold
	}
	if cfg.Anomaly.WindowMinutes > 0 {
		out.Window = time.Duration(cfg.Anomaly.WindowMinutes * float64(time.Minute))
	}
	return out
}

// AlertThresholds converts the YAML shape into alert.Thresholds.
func (cfg Config) AlertThresholds() alert.Thresholds {
	out := alert.DefaultThresholds()
	if cfg.Monitoring.AlertThresholds.Info > 0 {
		out.Info = cfg.Monitoring.AlertThresholds.Info
	}
	if cfg.Monitoring.AlertThresholds.Warning > 0 {
		out.Warning = cfg.Monitoring.AlertThresholds.Warning
	}
	if cfg.Monitoring.AlertThresholds.Critical > 0 {
		out.Critical = cfg.Monitoring.AlertThresholds.Critical
	}
	if cfg.Monitoring.AlertThresholds.Emergency > 0 {
		out.AlreadyLiquidatable = cfg.Monitoring.AlertThresholds.Emergency
	}
	return out
}

// MonitorConfig converts the YAML shape into monitor.Config.
func (cfg Config) MonitorConfig() monitor.Config {
	out := monitor.DefaultConfig()
	out.Interval = time.Duration(cfg.Monitoring.MonitorIntervalS * float64(time.Second))
	if cfg.Monitoring.MaxMissedSweeps > 0 {
		out.MaxMissedSweeps = cfg.Monitoring.MaxMissedSweeps
	}
	if cfg.Monitoring.BatchSize > 0 {
		out.BatchSize = cfg.Monitoring.BatchSize
	}
	if cfg.Monitoring.MaxConcurrentPositions > 0 {
		out.MaxConcurrentPositions = cfg.Monitoring.MaxConcurrentPositions
	}
	return out
}

// CorrelationConfig converts the YAML shape into correlation.Config.
func (cfg Config) CorrelationConfig() correlation.Config {
	out := correlation.DefaultConfig()
	if cfg.Correlation.DefaultWindowDays > 0 {
		out.DefaultWindowDays = cfg.Correlation.DefaultWindowDays
	}
	if cfg.Correlation.MinDataPoints > 0 {
		out.MinDataPoints = cfg.Correlation.MinDataPoints
	}
	if cfg.Correlation.HighThreshold > 0 {
		out.HighThreshold = cfg.Correlation.HighThreshold
	}
	if cfg.Correlation.CriticalThreshold > 0 {
		out.CriticalThreshold = cfg.Correlation.CriticalThreshold
	}
	if cfg.Correlation.ConfidenceLevel > 0 {
		out.ConfidenceLevel = cfg.Correlation.ConfidenceLevel
	}
	if cfg.Correlation.MaxConcentrationPct > 0 {
		out.MaxConcentrationPct = cfg.Correlation.MaxConcentrationPct
	}
	return out
}

// StressConfig converts the YAML shape into stress.Config, loading the
// scenario catalog from TOML when a path is configured, falling back
// to the built-in catalog otherwise.
func (cfg Config) StressConfig() (stress.Config, error) {
	out := stress.DefaultConfig()
	if cfg.Stress.ScenarioCatalogPath != "" {
		catalog, err := stress.LoadCatalogTOML(cfg.Stress.ScenarioCatalogPath)
		if err != nil {
			return stress.Config{}, fmt.Errorf("load scenario catalog: %w", err)
		}
		out.Scenarios = catalog
	}
	if cfg.Stress.MCIterations > 0 {
		out.MCIterations = cfg.Stress.MCIterations
	}
	if cfg.Stress.HorizonDays > 0 {
		out.HorizonDays = cfg.Stress.HorizonDays
	}
	if cfg.Stress.VolatilityDefault > 0 {
		out.VolatilityDefault = cfg.Stress.VolatilityDefault
	}
	out.AutoRecommendations = cfg.Stress.AutoRecommendations
	out.BacktestingEnabled = cfg.Stress.BacktestingEnabled
	if cfg.Stress.CacheTTLH > 0 {
		out.CacheTTLHours = int(cfg.Stress.CacheTTLH)
	}
	r := cfg.Stress.LiquidationRouting
	if r.LiquidatorBps > 0 || r.DeveloperBps > 0 || r.ProtocolBps > 0 {
		out.LiquidationRouting = stress.LiquidationRouting{
			LiquidatorBps:   r.LiquidatorBps,
			DeveloperBps:    r.DeveloperBps,
			ProtocolBps:     r.ProtocolBps,
			DeveloperTarget: r.DeveloperTarget,
		}
	}
	return out, nil
}
