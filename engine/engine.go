// Package engine wires the price, position/monitor/alert,
// correlation, and stress subsystems into a procedure-style operational
// contract: add/update/remove position, get position health,
// list/acknowledge/resolve alerts, run stress test, run Monte Carlo,
// run backtest, get statistics.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nhbchain/riskengine/alert"
	"github.com/nhbchain/riskengine/correlation"
	"github.com/nhbchain/riskengine/monitor"
	"github.com/nhbchain/riskengine/position"
	"github.com/nhbchain/riskengine/price"
	"github.com/nhbchain/riskengine/stress"
)

// Engine is the single entry point a caller (CLI, RPC handler, or the
// monitor loop itself) uses to operate the risk engine. It owns no
// network surface; that is left to a thin transport adapter the way
// services/lendingd wraps its engine behind gRPC.
type Engine struct {
	Positions   *position.Store
	Prices      *price.Aggregator
	Alerts      *alert.Manager
	Monitor     *monitor.Loop
	Correlation *correlation.Engine
	Stress      *stress.Engine

	calc   *position.Calculator
	logger *slog.Logger
}

// New wires the subsystems together. Positions/Prices/Alerts/Monitor
// are required; Correlation/Stress may be nil if those engines are
// unavailable (e.g. invalid configuration at startup), in which case
// the corresponding operations return a configuration error.
func New(positions *position.Store, prices *price.Aggregator, alerts *alert.Manager, monitorLoop *monitor.Loop, correlationEngine *correlation.Engine, stressEngine *stress.Engine, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Positions:   positions,
		Prices:      prices,
		Alerts:      alerts,
		Monitor:     monitorLoop,
		Correlation: correlationEngine,
		Stress:      stressEngine,
		calc:        position.NewCalculator(positions, prices),
		logger:      logger,
	}
}

// AddPosition registers a new leveraged position and returns its id.
func (e *Engine) AddPosition(p position.Position) (uuid.UUID, error) {
	return e.Positions.Add(p)
}

// UpdatePosition replaces the mutable fields of an existing position.
func (e *Engine) UpdatePosition(p position.Position) error {
	return e.Positions.Update(p)
}

// RemovePosition soft-deletes a position, returning its prior state.
func (e *Engine) RemovePosition(id uuid.UUID) (position.Position, error) {
	return e.Positions.Remove(id)
}

// PositionHealth resolves a position's current HealthFactor through
// live prices.
func (e *Engine) PositionHealth(ctx context.Context, id uuid.UUID) (position.HealthFactor, error) {
	return e.calc.Health(ctx, id)
}

// ActiveAlerts returns every alert that has not been both acknowledged
// and resolved.
func (e *Engine) ActiveAlerts() []alert.Alert {
	return e.Alerts.ActiveAlerts()
}

// AlertLog returns the full append-only alert history.
func (e *Engine) AlertLog() []alert.Alert {
	return e.Alerts.Log()
}

// AcknowledgeAlert marks an alert as seen by an operator.
func (e *Engine) AcknowledgeAlert(alertID uint64) error {
	return e.Alerts.Acknowledge(alertID)
}

// ResolveAlert marks an alert as handled.
func (e *Engine) ResolveAlert(alertID uint64) error {
	return e.Alerts.Resolve(alertID)
}

// RunStressTest executes a catalogued (or custom) scenario against the
// supplied simulation view of a portfolio.
func (e *Engine) RunStressTest(scenarioID string, positions []stress.SimulationPosition, matrix correlation.CorrelationMatrix, volatilities map[string]float64) (stress.SimulationResult, error) {
	return e.Stress.RunScenario(scenarioID, positions, matrix, volatilities)
}

// RunMonteCarlo executes a correlated multivariate-normal simulation
// over the supplied positions.
func (e *Engine) RunMonteCarlo(ctx context.Context, positions []stress.SimulationPosition, mu, sigma map[string]float64, matrix correlation.CorrelationMatrix, cfg stress.MonteCarloConfig) (stress.SimulationResult, error) {
	return e.Stress.RunMonteCarlo(ctx, positions, mu, sigma, matrix, cfg)
}

// RunBacktest replays historical prices over the supplied positions.
func (e *Engine) RunBacktest(positions []stress.SimulationPosition, paths map[string]stress.PricePath, start, end time.Time) (stress.SimulationResult, error) {
	return e.Stress.RunBacktest(positions, paths, start, end)
}

// AnalyzePortfolio runs the correlation/concentration/VaR analysis for
// a portfolio view.
func (e *Engine) AnalyzePortfolio(positions []correlation.PortfolioPosition, assets []correlation.Asset, windowDays int) (correlation.Analysis, error) {
	return e.Correlation.AnalyzePortfolio(positions, assets, windowDays)
}

// Statistics is the operational snapshot returned by GetStatistics.
type Statistics struct {
	TotalPositions             int
	ActiveAlertsByLevel        map[string]int
	SupportedProtocols         []string
	AverageHealthFactor        float64
	LastMonitorTickAt          time.Time
	OracleSuccessRateBySource  map[string]float64
	CacheHitRatio              float64
}

// GetStatistics aggregates the operational snapshot spec §6 names:
// total_positions, active_alerts_by_level, supported_protocols,
// average_health_factor, last_monitor_tick_at,
// oracle_success_rate_by_source, cache_hit_ratio.
func (e *Engine) GetStatistics(ctx context.Context) Statistics {
	positions := e.Positions.Snapshot()
	protocols := distinctProtocols(positions)

	var healthSum float64
	var healthCount int
	for _, pos := range positions {
		hf, err := e.calc.HealthOf(ctx, pos)
		if err != nil || hf.IsInfinite() {
			continue
		}
		healthSum += hf.Value
		healthCount++
	}
	var avgHealth float64
	if healthCount > 0 {
		avgHealth = healthSum / float64(healthCount)
	}

	var lastTick time.Time
	if e.Monitor != nil {
		lastTick = e.Monitor.LastTickAt()
	}

	var successRates map[string]float64
	if e.Prices != nil {
		successRates = e.Prices.SourceSuccessRates()
	}

	return Statistics{
		TotalPositions:            len(positions),
		ActiveAlertsByLevel:       e.Alerts.ActiveAlertsByLevel(),
		SupportedProtocols:        protocols,
		AverageHealthFactor:       avgHealth,
		LastMonitorTickAt:         lastTick,
		OracleSuccessRateBySource: successRates,
		CacheHitRatio:             0, // populated by observability/metrics scrape, not a local counter here.
	}
}

func distinctProtocols(positions []position.Position) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(positions))
	for _, p := range positions {
		if p.Protocol == "" || seen[p.Protocol] {
			continue
		}
		seen[p.Protocol] = true
		out = append(out, p.Protocol)
	}
	return out
}
