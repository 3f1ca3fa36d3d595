// Package monitor drives the periodic sweep that recomputes health
// factors for every active position and feeds escalation decisions to
// the alert manager (spec §4.4).
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhbchain/riskengine/alert"
	"github.com/nhbchain/riskengine/observability/metrics"
	"github.com/nhbchain/riskengine/position"
	"github.com/nhbchain/riskengine/price"
)

// Config controls the sweep cadence and failure tolerances.
type Config struct {
	Interval               time.Duration
	MaxMissedSweeps        int
	BatchSize              int
	MaxConcurrentPositions int
}

// DefaultConfig matches spec §6's monitoring defaults.
func DefaultConfig() Config {
	return Config{
		Interval:               15 * time.Second,
		MaxMissedSweeps:        3,
		BatchSize:              100,
		MaxConcurrentPositions: 10000,
	}
}

// PriceSource resolves the current trusted price for a token, backed by
// the price Aggregator (and its cache) in production.
type PriceSource interface {
	Aggregate(ctx context.Context, token price.Token) (price.AggregatedPrice, error)
}

// Loop is the single logical monitor task. A sweep batches price fetches
// to one Aggregate call per distinct token (spec §4.4 "Backpressure"),
// rather than one per position.
type Loop struct {
	cfg    Config
	store  *position.Store
	prices PriceSource
	alerts *alert.Manager
	logger *slog.Logger

	tickMu        sync.Mutex
	lastTickAt    time.Time
	missedSweeps  map[uuid.UUID]int

	stopCh chan struct{}
	doneCh chan struct{}
}

// New wires a Loop to its Store, price source, and alert Manager.
func New(cfg Config, store *position.Store, prices PriceSource, alerts *alert.Manager, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		cfg:          cfg,
		store:        store,
		prices:       prices,
		alerts:       alerts,
		logger:       logger,
		missedSweeps: make(map[uuid.UUID]int),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Run blocks, executing one sweep every cfg.Interval, until Stop is
// called or ctx is cancelled. It is panic-supervised: a panicking sweep
// is recovered, logged, and the loop restarts after a short backoff
// rather than terminating the process.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.doneCh)
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.runSweepSupervised(ctx)
		}
	}
}

// Stop requests the loop to exit after any in-flight sweep completes.
func (l *Loop) Stop() {
	close(l.stopCh)
	<-l.doneCh
}

func (l *Loop) runSweepSupervised(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("monitor sweep panicked, recovering", slog.Any("panic", r))
			time.Sleep(time.Second)
		}
	}()

	budget := time.Duration(float64(l.cfg.Interval) * 0.8)
	sweepCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	start := time.Now()
	l.Sweep(sweepCtx)
	metrics.Monitor().ObserveSweep(time.Since(start).Seconds())

	l.tickMu.Lock()
	l.lastTickAt = start
	l.tickMu.Unlock()
}

// Sweep performs a single pass over every active position: it resolves
// one AggregatedPrice per distinct token up front, then recomputes each
// position's health factor and routes the result through the alert
// manager (spec §4.4 steps 1-4).
func (l *Loop) Sweep(ctx context.Context) {
	positions := l.store.Snapshot()
	if l.cfg.BatchSize > 0 && len(positions) > l.cfg.MaxConcurrentPositions {
		positions = positions[:l.cfg.MaxConcurrentPositions]
	}

	tokens := distinctTokens(positions)
	prices := l.fetchPrices(ctx, tokens)

	var healthSum float64
	var healthCount int

	for _, pos := range positions {
		collateral, collateralOK := prices[pos.CollateralToken.String()]
		debt, debtOK := prices[pos.DebtToken.String()]

		if !pos.DebtQty.IsZero() && (!collateralOK || !debtOK) {
			l.missedSweep(pos.ID)
			continue
		}
		if collateralOK && collateral.CircuitBreakerTripped {
			l.missedSweep(pos.ID)
			continue
		}
		if debtOK && debt.CircuitBreakerTripped {
			l.missedSweep(pos.ID)
			continue
		}

		l.alerts.ResetMissedSweeps(pos.ID)
		hf := position.Derive(pos, collateral.Price, debt.Price)
		l.alerts.Evaluate(pos.ID, hf.Value)

		if !hf.IsInfinite() {
			healthSum += hf.Value
			healthCount++
		}
	}

	if healthCount > 0 {
		metrics.Monitor().SetAverageHealthFactor(healthSum / float64(healthCount))
	}
	l.alerts.ActiveAlertsByLevel()
}

func (l *Loop) missedSweep(id uuid.UUID) {
	l.tickMu.Lock()
	l.missedSweeps[id]++
	l.tickMu.Unlock()

	metrics.Monitor().IncMissedSweep(id.String())
	// The alert manager keeps its own missed-sweep counter and emits the
	// stale-data alert once that counter exceeds MaxMissedSweeps.
	l.alerts.StaleData(id, l.cfg.MaxMissedSweeps)
}

// LastTickAt reports the start time of the most recently completed
// sweep, for the statistics surface (spec §6 "last_monitor_tick_at").
func (l *Loop) LastTickAt() time.Time {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()
	return l.lastTickAt
}

func (l *Loop) fetchPrices(ctx context.Context, tokens []price.Token) map[string]price.AggregatedPrice {
	type result struct {
		key string
		ap  price.AggregatedPrice
		err error
	}

	results := make(chan result, len(tokens))
	for _, tok := range tokens {
		go func(tok price.Token) {
			ap, err := l.prices.Aggregate(ctx, tok)
			results <- result{key: tok.String(), ap: ap, err: err}
		}(tok)
	}

	out := make(map[string]price.AggregatedPrice, len(tokens))
	for range tokens {
		r := <-results
		if r.err != nil {
			l.logger.Warn("price unavailable during sweep", slog.String("token", r.key), slog.String("error", r.err.Error()))
			continue
		}
		out[r.key] = r.ap
	}
	return out
}

func distinctTokens(positions []position.Position) []price.Token {
	seen := make(map[string]bool)
	out := make([]price.Token, 0, len(positions)*2)
	add := func(t price.Token) {
		if !seen[t.String()] {
			seen[t.String()] = true
			out = append(out, t)
		}
	}
	for _, p := range positions {
		add(p.CollateralToken)
		if !p.DebtQty.IsZero() {
			add(p.DebtToken)
		}
	}
	return out
}
