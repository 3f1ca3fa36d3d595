package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/nhbchain/riskengine/alert"
	"github.com/nhbchain/riskengine/position"
	"github.com/nhbchain/riskengine/price"
)

type fakeSource struct {
	byToken map[string]price.AggregatedPrice
}

func (f fakeSource) Aggregate(ctx context.Context, token price.Token) (price.AggregatedPrice, error) {
	ap, ok := f.byToken[token.String()]
	if !ok {
		return price.AggregatedPrice{}, context.DeadlineExceeded
	}
	return ap, nil
}

func samplePosition(collateralQty, debtQty float64, threshold float64) position.Position {
	return position.Position{
		Owner:                common.HexToAddress("0x1"),
		CollateralToken:      price.Token{Symbol: "ETH"},
		DebtToken:            price.Token{Symbol: "USDC"},
		CollateralQty:        decimal.NewFromFloat(collateralQty),
		DebtQty:              decimal.NewFromFloat(debtQty),
		LiquidationThreshold: threshold,
		Protocol:             "test-protocol",
	}
}

func TestSweepEmitsEscalationAlert(t *testing.T) {
	store := position.NewStore(0)
	id, err := store.Add(samplePosition(10, 15000, 1.2))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	source := fakeSource{byToken: map[string]price.AggregatedPrice{
		"ETH":  {Token: price.Token{Symbol: "ETH"}, Price: decimal.NewFromInt(1000)},
		"USDC": {Token: price.Token{Symbol: "USDC"}, Price: decimal.NewFromInt(1)},
	}}

	alerts := alert.New(alert.DefaultThresholds(), "", nil)
	loop := New(DefaultConfig(), store, source, alerts, nil)

	loop.Sweep(context.Background())

	active := alerts.ActiveAlerts()
	if len(active) == 0 {
		t.Fatalf("expected at least one active alert after sweep")
	}
	if active[0].PositionID != id {
		t.Fatalf("expected alert for position %v, got %v", id, active[0].PositionID)
	}
}

func TestSweepMissedPriceIncrementsCounterAndEventuallyAlerts(t *testing.T) {
	store := position.NewStore(0)
	_, err := store.Add(samplePosition(10, 15000, 1.2))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	source := fakeSource{byToken: map[string]price.AggregatedPrice{}} // both tokens unavailable
	alerts := alert.New(alert.DefaultThresholds(), "", nil)
	cfg := DefaultConfig()
	cfg.MaxMissedSweeps = 2
	loop := New(cfg, store, source, alerts, nil)

	for i := 0; i < 3; i++ {
		loop.Sweep(context.Background())
	}

	var foundStale bool
	for _, a := range alerts.Log() {
		if a.Level == alert.LevelWarning {
			foundStale = true
		}
	}
	if !foundStale {
		t.Fatalf("expected a StaleData Warning alert after exceeding max missed sweeps")
	}
}

func TestSweepZeroDebtPositionNeverMissed(t *testing.T) {
	store := position.NewStore(0)
	_, err := store.Add(samplePosition(10, 0, 1.2))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	source := fakeSource{byToken: map[string]price.AggregatedPrice{}}
	alerts := alert.New(alert.DefaultThresholds(), "", nil)
	loop := New(DefaultConfig(), store, source, alerts, nil)

	loop.Sweep(context.Background())

	if got := len(alerts.ActiveAlerts()); got != 0 {
		t.Fatalf("expected no alerts for an infinite-health position, got %d", got)
	}
}

func TestLastTickAtUpdatesAfterSupervisedRun(t *testing.T) {
	store := position.NewStore(0)
	source := fakeSource{byToken: map[string]price.AggregatedPrice{}}
	alerts := alert.New(alert.DefaultThresholds(), "", nil)
	cfg := DefaultConfig()
	cfg.Interval = 20 * time.Millisecond
	loop := New(cfg, store, source, alerts, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	loop.Run(ctx)

	if loop.LastTickAt().IsZero() {
		t.Fatalf("expected at least one sweep to have run")
	}
}
