// Package metrics exposes the Prometheus registries for the risk engine,
// one lazily-initialized singleton per subsystem, following the same
// sync.Once + MustRegister pattern the teacher uses for its module
// metrics registries.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PriceMetrics tracks the price aggregation layer.
type PriceMetrics struct {
	aggregations      *prometheus.CounterVec
	oracleSuccess     *prometheus.CounterVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	breakerTrips      *prometheus.CounterVec
	aggregationLatency *prometheus.HistogramVec
}

var (
	priceOnce sync.Once
	priceReg  *PriceMetrics
)

// Price returns the price-aggregation metrics registry.
func Price() *PriceMetrics {
	priceOnce.Do(func() {
		priceReg = &PriceMetrics{
			aggregations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "riskengine",
				Subsystem: "price",
				Name:      "aggregations_total",
				Help:      "Count of price aggregation attempts segmented by token and outcome.",
			}, []string{"token", "outcome"}),
			oracleSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "riskengine",
				Subsystem: "price",
				Name:      "oracle_responses_total",
				Help:      "Count of oracle adapter responses segmented by source and success.",
			}, []string{"source", "success"}),
			cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "riskengine",
				Subsystem: "price",
				Name:      "cache_hits_total",
				Help:      "Count of price cache hits.",
			}),
			cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "riskengine",
				Subsystem: "price",
				Name:      "cache_misses_total",
				Help:      "Count of price cache misses.",
			}),
			breakerTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "riskengine",
				Subsystem: "price",
				Name:      "circuit_breaker_trips_total",
				Help:      "Count of circuit breaker trips segmented by token.",
			}, []string{"token"}),
			aggregationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "riskengine",
				Subsystem: "price",
				Name:      "aggregation_duration_seconds",
				Help:      "Latency distribution of aggregate() calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"token"}),
		}
		prometheus.MustRegister(
			priceReg.aggregations,
			priceReg.oracleSuccess,
			priceReg.cacheHits,
			priceReg.cacheMisses,
			priceReg.breakerTrips,
			priceReg.aggregationLatency,
		)
	})
	return priceReg
}

func (m *PriceMetrics) ObserveAggregation(token, outcome string) {
	if m == nil {
		return
	}
	m.aggregations.WithLabelValues(token, outcome).Inc()
}

func (m *PriceMetrics) ObserveOracleResponse(source string, success bool) {
	if m == nil {
		return
	}
	status := "false"
	if success {
		status = "true"
	}
	m.oracleSuccess.WithLabelValues(source, status).Inc()
}

func (m *PriceMetrics) IncCacheHit()  { if m != nil { m.cacheHits.Inc() } }
func (m *PriceMetrics) IncCacheMiss() { if m != nil { m.cacheMisses.Inc() } }

func (m *PriceMetrics) ObserveBreakerTrip(token string) {
	if m == nil {
		return
	}
	m.breakerTrips.WithLabelValues(token).Inc()
}

func (m *PriceMetrics) ObserveAggregationLatency(token string, seconds float64) {
	if m == nil {
		return
	}
	m.aggregationLatency.WithLabelValues(token).Observe(seconds)
}

// MonitorMetrics tracks the monitor loop and alert manager.
type MonitorMetrics struct {
	sweeps         prometheus.Counter
	sweepDuration  prometheus.Histogram
	missedSweeps   *prometheus.CounterVec
	alertsByLevel  *prometheus.CounterVec
	activeAlerts   *prometheus.GaugeVec
	avgHealthFactor prometheus.Gauge
}

var (
	monitorOnce sync.Once
	monitorReg  *MonitorMetrics
)

// Monitor returns the monitor-loop metrics registry.
func Monitor() *MonitorMetrics {
	monitorOnce.Do(func() {
		monitorReg = &MonitorMetrics{
			sweeps: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "riskengine",
				Subsystem: "monitor",
				Name:      "sweeps_total",
				Help:      "Count of completed monitor sweeps.",
			}),
			sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "riskengine",
				Subsystem: "monitor",
				Name:      "sweep_duration_seconds",
				Help:      "Wall-clock duration of each monitor sweep.",
				Buckets:   prometheus.DefBuckets,
			}),
			missedSweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "riskengine",
				Subsystem: "monitor",
				Name:      "missed_sweeps_total",
				Help:      "Count of sweeps skipped per position due to price unavailability.",
			}, []string{"position_id"}),
			alertsByLevel: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "riskengine",
				Subsystem: "alert",
				Name:      "emitted_total",
				Help:      "Count of alerts emitted segmented by escalation level.",
			}, []string{"level"}),
			activeAlerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "riskengine",
				Subsystem: "alert",
				Name:      "active",
				Help:      "Current count of alerts not both acknowledged and resolved, segmented by level.",
			}, []string{"level"}),
			avgHealthFactor: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "riskengine",
				Subsystem: "monitor",
				Name:      "average_health_factor",
				Help:      "Average health factor across active positions as of the last sweep.",
			}),
		}
		prometheus.MustRegister(
			monitorReg.sweeps,
			monitorReg.sweepDuration,
			monitorReg.missedSweeps,
			monitorReg.alertsByLevel,
			monitorReg.activeAlerts,
			monitorReg.avgHealthFactor,
		)
	})
	return monitorReg
}

func (m *MonitorMetrics) ObserveSweep(durationSeconds float64) {
	if m == nil {
		return
	}
	m.sweeps.Inc()
	m.sweepDuration.Observe(durationSeconds)
}

func (m *MonitorMetrics) IncMissedSweep(positionID string) {
	if m == nil {
		return
	}
	m.missedSweeps.WithLabelValues(positionID).Inc()
}

func (m *MonitorMetrics) ObserveAlertEmitted(level string) {
	if m == nil {
		return
	}
	m.alertsByLevel.WithLabelValues(level).Inc()
}

func (m *MonitorMetrics) SetActiveAlerts(level string, count float64) {
	if m == nil {
		return
	}
	m.activeAlerts.WithLabelValues(level).Set(count)
}

func (m *MonitorMetrics) SetAverageHealthFactor(value float64) {
	if m == nil {
		return
	}
	m.avgHealthFactor.Set(value)
}

// StressMetrics tracks the correlation and stress/simulation engines.
type StressMetrics struct {
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	mcIterations prometheus.Counter
	cacheHits    *prometheus.CounterVec
}

var (
	stressOnce sync.Once
	stressReg  *StressMetrics
)

// Stress returns the correlation/stress metrics registry.
func Stress() *StressMetrics {
	stressOnce.Do(func() {
		stressReg = &StressMetrics{
			runs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "riskengine",
				Subsystem: "stress",
				Name:      "runs_total",
				Help:      "Count of stress/simulation runs segmented by kind (scenario, monte_carlo, backtest).",
			}, []string{"kind"}),
			runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "riskengine",
				Subsystem: "stress",
				Name:      "run_duration_seconds",
				Help:      "Latency distribution of stress/simulation runs.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"kind"}),
			mcIterations: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "riskengine",
				Subsystem: "stress",
				Name:      "monte_carlo_iterations_total",
				Help:      "Cumulative count of Monte Carlo iterations executed.",
			}),
			cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "riskengine",
				Subsystem: "stress",
				Name:      "cache_hits_total",
				Help:      "Count of cache hits segmented by kind (correlation_matrix, simulation_result).",
			}, []string{"kind"}),
		}
		prometheus.MustRegister(
			stressReg.runs,
			stressReg.runDuration,
			stressReg.mcIterations,
			stressReg.cacheHits,
		)
	})
	return stressReg
}

func (m *StressMetrics) ObserveRun(kind string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(kind).Inc()
	m.runDuration.WithLabelValues(kind).Observe(durationSeconds)
}

func (m *StressMetrics) AddMonteCarloIterations(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.mcIterations.Add(float64(n))
}

func (m *StressMetrics) IncCacheHit(kind string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(kind).Inc()
}
