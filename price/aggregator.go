package price

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nhbchain/riskengine/observability/metrics"
	"github.com/nhbchain/riskengine/riskerr"
)

// reliabilityTracker records each adapter's recent success rate so the
// UseMostReliableOracle fallback strategy has something to rank on.
type reliabilityTracker struct {
	mu      sync.Mutex
	success map[string]int
	total   map[string]int
}

func newReliabilityTracker() *reliabilityTracker {
	return &reliabilityTracker{success: map[string]int{}, total: map[string]int{}}
}

func (r *reliabilityTracker) record(sourceID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total[sourceID]++
	if ok {
		r.success[sourceID]++
	}
}

func (r *reliabilityTracker) rate(sourceID string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := r.total[sourceID]
	if total == 0 {
		return 0
	}
	return float64(r.success[sourceID]) / float64(total)
}

func (r *reliabilityTracker) rates() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]float64, len(r.total))
	for id, total := range r.total {
		if total == 0 {
			continue
		}
		out[id] = float64(r.success[id]) / float64(total)
	}
	return out
}

// Aggregator fuses adapter responses into AggregatedPrice values,
// enforcing the circuit breaker and fallback contract.
type Aggregator struct {
	cfg      AggregatorConfig
	adapters []Adapter
	cache    *Cache
	breaker  *breakerState
	reliable *reliabilityTracker
	logger   *slog.Logger
}

// New constructs an Aggregator. Configuration is validated eagerly;
// invalid configuration is a fatal error raised at construction.
func New(cfg AggregatorConfig, adapters []Adapter, logger *slog.Logger) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		cfg:      cfg,
		adapters: append([]Adapter(nil), adapters...),
		cache:    NewCache(cfg.CacheTTL),
		breaker:  newBreakerState(),
		reliable: newReliabilityTracker(),
		logger:   logger,
	}, nil
}

func (a *Aggregator) enabledOracleIDs() []string {
	ids := make([]string, 0, len(a.cfg.Oracles))
	for _, o := range a.cfg.Oracles {
		if o.Enabled {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

func (a *Aggregator) oracleConfig(id string) (OracleConfig, bool) {
	for _, o := range a.cfg.Oracles {
		if o.ID == id {
			return o, true
		}
	}
	return OracleConfig{}, false
}

// ResetBreaker clears a tripped circuit breaker for token explicitly.
func (a *Aggregator) ResetBreaker(token Token) { a.breaker.reset(token.String()) }

// Aggregate fuses the enabled adapters' responses for token into a
// single trusted price, applying caching, single-flight, the circuit
// breaker, and the configured fallback strategy.
func (a *Aggregator) Aggregate(ctx context.Context, token Token) (AggregatedPrice, error) {
	key := Key(token, a.cfg.AggregationMethod, a.enabledOracleIDs())
	return a.cache.Once(key, func() (AggregatedPrice, error) {
		return a.compute(ctx, token, key)
	})
}

func (a *Aggregator) compute(ctx context.Context, token Token, cacheKey string) (AggregatedPrice, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, a.cfg.GlobalTimeout)
	defer cancel()

	defer func() {
		metrics.Price().ObserveAggregationLatency(token.String(), time.Since(start).Seconds())
	}()

	responses := a.dispatch(ctx, token)
	successful := make([]OracleResponse, 0, len(responses))
	for _, r := range responses {
		a.reliable.record(r.SourceID, r.Success)
		metrics.Price().ObserveOracleResponse(r.SourceID, r.Success)
		if r.Success {
			successful = append(successful, r)
		}
	}

	if len(successful) == 0 {
		metrics.Price().ObserveAggregation(token.String(), "all_sources_failed")
		return a.onAllSourcesFailed(token, responses, cacheKey)
	}

	deviation := deviationPct(successful)

	if a.cfg.CircuitBreakerEnabled {
		tripped := a.breaker.observe(token.String(), deviation, a.cfg.HardBreakerThreshold, a.cfg.RecoveryWindow, time.Now())
		if tripped {
			metrics.Price().ObserveBreakerTrip(token.String())
			metrics.Price().ObserveAggregation(token.String(), "circuit_breaker_tripped")
			return a.onCircuitBreakerTripped(token, responses, deviation, cacheKey)
		}
	}

	if len(successful) < a.cfg.MinQuorum {
		metrics.Price().ObserveAggregation(token.String(), "insufficient_quorum")
		return AggregatedPrice{}, riskerr.New(riskerr.KindInsufficientQuorum, "too few oracle sources succeeded",
			"token", token.String())
	}

	fused, isConsensus, err := a.fuse(a.cfg.AggregationMethod, successful, deviation, a.cfg.DeviationThreshold)
	if err != nil {
		metrics.Price().ObserveAggregation(token.String(), "fuse_error")
		return AggregatedPrice{}, err
	}

	confidence := confidenceHeuristic(len(successful), deviation, successful)

	out := AggregatedPrice{
		Token:         token,
		Price:         fused,
		Confidence:    confidence,
		DeviationPct:  deviation,
		IsConsensus:   isConsensus,
		ComputedAt:    time.Now(),
		Contributions: responses,
	}
	metrics.Price().ObserveAggregation(token.String(), "success")
	return out, nil
}

// dispatch fans out GetPrice to every enabled adapter in parallel,
// bounded by the per-adapter timeout, and collects every response
// (success or failure) without aborting the batch on individual errors.
func (a *Aggregator) dispatch(ctx context.Context, token Token) []OracleResponse {
	type result struct {
		idx int
		res OracleResponse
	}
	results := make([]OracleResponse, len(a.adapters))
	var wg sync.WaitGroup
	ch := make(chan result, len(a.adapters))
	for i, adapter := range a.adapters {
		cfg, ok := a.oracleConfig(adapter.SourceID())
		if ok && !cfg.Enabled {
			continue
		}
		wg.Add(1)
		go func(i int, adapter Adapter, cfg OracleConfig) {
			defer wg.Done()
			ch <- result{idx: i, res: a.fetchWithRetry(ctx, adapter, token, cfg)}
		}(i, adapter, cfg)
	}
	go func() { wg.Wait(); close(ch) }()
	for r := range ch {
		results[r.idx] = r.res
	}
	// Compact out skipped (disabled) slots.
	out := make([]OracleResponse, 0, len(results))
	for i, r := range results {
		if r.SourceID == "" && a.adapters[i].SourceID() != "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (a *Aggregator) fetchWithRetry(ctx context.Context, adapter Adapter, token Token, cfg OracleConfig) OracleResponse {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	policy := DefaultRetryPolicy(cfg.RetryAttempts)
	var last OracleResponse
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return failure(adapter.SourceID(), ctx.Err())
			case <-time.After(policy.Delay(attempt)):
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := adapter.GetPrice(callCtx, token)
		cancel()
		if err == nil && resp.Success {
			resp.SourceID = adapter.SourceID()
			return resp
		}
		if err != nil {
			last = failure(adapter.SourceID(), err)
		} else {
			resp.SourceID = adapter.SourceID()
			last = resp
		}
	}
	return last
}

func failure(sourceID string, err error) OracleResponse {
	return OracleResponse{SourceID: sourceID, Success: false, Err: err, ObservedAt: time.Now()}
}

func deviationPct(successful []OracleResponse) float64 {
	if len(successful) == 0 {
		return 0
	}
	max := successful[0].Price
	min := successful[0].Price
	for _, r := range successful[1:] {
		if r.Price.GreaterThan(max) {
			max = r.Price
		}
		if r.Price.LessThan(min) {
			min = r.Price
		}
	}
	if max.IsZero() {
		return 0
	}
	diff := max.Sub(min)
	ratio, _ := diff.Div(max).Float64()
	return ratio
}

func (a *Aggregator) fuse(method AggregationMethod, successful []OracleResponse, deviation, deviationThreshold float64) (decimal.Decimal, bool, error) {
	switch method {
	case MethodWeightedAverage:
		return a.weightedAverage(successful), deviation <= deviationThreshold, nil
	case MethodMedian:
		return medianOf(successful), deviation <= deviationThreshold, nil
	case MethodTrimmedMean:
		return trimmedMean(successful), deviation <= deviationThreshold, nil
	case MethodConsensus:
		mean := meanOf(successful)
		return mean, deviation <= deviationThreshold, nil
	default:
		return decimal.Zero, false, riskerr.New(riskerr.KindConfiguration, "unknown aggregation method")
	}
}

// weightedAverage computes Sum(w_i * p_i) / Sum(w_i) using each source's
// configured weight. A source the aggregator has no configuration entry
// for (e.g. ad hoc adapters in tests), or whose configured weight is not
// positive, contributes with weight 1 alongside the configured weights.
func (a *Aggregator) weightedAverage(successful []OracleResponse) decimal.Decimal {
	weightedSum := decimal.Zero
	weightSum := decimal.Zero
	for _, r := range successful {
		w := decimal.NewFromFloat(1)
		if cfg, ok := a.oracleConfig(r.SourceID); ok && cfg.Weight > 0 {
			w = decimal.NewFromFloat(cfg.Weight)
		}
		weightedSum = weightedSum.Add(r.Price.Mul(w))
		weightSum = weightSum.Add(w)
	}
	if weightSum.IsZero() {
		return meanOf(successful)
	}
	return weightedSum.Div(weightSum)
}

func meanOf(successful []OracleResponse) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range successful {
		sum = sum.Add(r.Price)
	}
	return sum.Div(decimal.NewFromInt(int64(len(successful))))
}

func medianOf(successful []OracleResponse) decimal.Decimal {
	sorted := sortedPrices(successful)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1].Add(sorted[n/2]).Div(decimal.NewFromInt(2))
}

func trimmedMean(successful []OracleResponse) decimal.Decimal {
	sorted := sortedPrices(successful)
	n := len(sorted)
	k := n / 10
	if n-2*k < 2 {
		return medianFromSorted(sorted)
	}
	trimmed := sorted[k : n-k]
	sum := decimal.Zero
	for _, p := range trimmed {
		sum = sum.Add(p)
	}
	return sum.Div(decimal.NewFromInt(int64(len(trimmed))))
}

func medianFromSorted(sorted []decimal.Decimal) decimal.Decimal {
	n := len(sorted)
	if n == 0 {
		return decimal.Zero
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1].Add(sorted[n/2]).Div(decimal.NewFromInt(2))
}

func sortedPrices(successful []OracleResponse) []decimal.Decimal {
	out := make([]decimal.Decimal, len(successful))
	for i, r := range successful {
		out[i] = r.Price
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out
}

// confidenceHeuristic scores agreement across sources: more successful
// sources with tighter deviation yields higher confidence.
func confidenceHeuristic(n int, deviation float64, successful []OracleResponse) float64 {
	base := 0.6
	switch {
	case n >= 3 && deviation <= 0.02:
		base = 0.95
	case n >= 2 && deviation <= 0.05:
		base = 0.8
	}
	meanConfidence := 0.0
	for _, r := range successful {
		meanConfidence += r.Confidence
	}
	if len(successful) > 0 {
		meanConfidence /= float64(len(successful))
	} else {
		meanConfidence = 1
	}
	return base * meanConfidence
}

func (a *Aggregator) onAllSourcesFailed(token Token, responses []OracleResponse, cacheKey string) (AggregatedPrice, error) {
	aggErr := riskerr.New(riskerr.KindAllSourcesFailed, "no oracle adapter succeeded", "token", token.String())
	return a.applyFallback(token, responses, 0, aggErr, cacheKey, false)
}

func (a *Aggregator) onCircuitBreakerTripped(token Token, responses []OracleResponse, deviation float64, cacheKey string) (AggregatedPrice, error) {
	aggErr := riskerr.New(riskerr.KindCircuitBreakerTripped, "cross-oracle deviation exceeded hard threshold", "token", token.String())
	return a.applyFallback(token, responses, deviation, aggErr, cacheKey, true)
}

func (a *Aggregator) applyFallback(token Token, responses []OracleResponse, deviation float64, aggErr error, cacheKey string, breakerTripped bool) (AggregatedPrice, error) {
	switch a.cfg.FallbackStrategy {
	case FallbackFail:
		return AggregatedPrice{}, aggErr
	case FallbackUseLastKnownPrice:
		if stale, observedAt, ok := a.cache.GetStale(cacheKey); ok {
			if time.Since(observedAt) <= a.cfg.StaleThreshold {
				stale.FallbackUsed = true
				stale.CircuitBreakerTripped = breakerTripped
				return stale, nil
			}
		}
		return AggregatedPrice{}, aggErr
	case FallbackUseMostReliableOracle:
		best := a.mostReliableSuccess(responses)
		if best == nil {
			return AggregatedPrice{}, aggErr
		}
		return AggregatedPrice{
			Token:                 token,
			Price:                 best.Price,
			Confidence:            0.6 * best.Confidence,
			DeviationPct:          deviation,
			FallbackUsed:          true,
			CircuitBreakerTripped: breakerTripped,
			ComputedAt:            time.Now(),
			Contributions:         responses,
		}, nil
	case FallbackUseWeightedAverageOfSuccessful:
		successful := filterSuccessful(responses)
		if len(successful) == 0 {
			return AggregatedPrice{}, aggErr
		}
		return AggregatedPrice{
			Token:                 token,
			Price:                 a.weightedAverage(successful),
			Confidence:            confidenceHeuristic(len(successful), deviation, successful),
			DeviationPct:          deviation,
			FallbackUsed:          true,
			CircuitBreakerTripped: breakerTripped,
			ComputedAt:            time.Now(),
			Contributions:         responses,
		}, nil
	default:
		return AggregatedPrice{}, aggErr
	}
}

func filterSuccessful(responses []OracleResponse) []OracleResponse {
	out := make([]OracleResponse, 0, len(responses))
	for _, r := range responses {
		if r.Success {
			out = append(out, r)
		}
	}
	return out
}

func (a *Aggregator) mostReliableSuccess(responses []OracleResponse) *OracleResponse {
	rates := a.reliable.rates()
	var best *OracleResponse
	bestRate := -1.0
	for i := range responses {
		r := responses[i]
		if !r.Success {
			continue
		}
		rate := rates[r.SourceID]
		if rate > bestRate {
			bestRate = rate
			best = &responses[i]
		}
	}
	return best
}

// SourceSuccessRates exposes per-source reliability for the operational
// statistics surface.
func (a *Aggregator) SourceSuccessRates() map[string]float64 { return a.reliable.rates() }
