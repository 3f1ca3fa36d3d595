package position

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nhbchain/riskengine/price"
)

type fakePrices struct {
	byToken map[string]decimal.Decimal
}

func (f fakePrices) Aggregate(ctx context.Context, token price.Token) (price.AggregatedPrice, error) {
	p, ok := f.byToken[token.String()]
	if !ok {
		return price.AggregatedPrice{}, context.DeadlineExceeded
	}
	return price.AggregatedPrice{Token: token, Price: p}, nil
}

// Scenario C from spec §8: health factor for a 10 ETH @ $3000 / 15000
// USDC debt position with a 1.2 liquidation threshold.
func TestHealthOfScenarioC(t *testing.T) {
	store := NewStore(0)
	prices := fakePrices{byToken: map[string]decimal.Decimal{
		"ETH":  decimal.NewFromInt(3000),
		"USDC": decimal.NewFromInt(1),
	}}
	calc := NewCalculator(store, prices)

	pos := samplePosition()
	hf, err := calc.HealthOf(context.Background(), pos)
	require.NoError(t, err)
	want := 30000.0 / 18000.0
	require.InDelta(t, want, hf.Value, 1e-9)
}

// Testable property 2: hf = +Inf iff debt_qty == 0.
func TestHealthInfiniteWhenNoDebt(t *testing.T) {
	store := NewStore(0)
	calc := NewCalculator(store, fakePrices{byToken: map[string]decimal.Decimal{}})
	pos := samplePosition()
	pos.DebtQty = decimal.Zero
	hf, err := calc.HealthOf(context.Background(), pos)
	require.NoError(t, err)
	require.True(t, hf.IsInfinite(), "expected infinite health factor for zero debt")
}

// Scenario D from spec §8: ETH drops to $2000, health factor moves to
// the Critical band.
func TestHealthEscalationTransition(t *testing.T) {
	store := NewStore(0)
	prices := fakePrices{byToken: map[string]decimal.Decimal{
		"ETH":  decimal.NewFromInt(2000),
		"USDC": decimal.NewFromInt(1),
	}}
	calc := NewCalculator(store, prices)
	pos := samplePosition()
	hf, err := calc.HealthOf(context.Background(), pos)
	require.NoError(t, err)
	want := 20000.0 / 18000.0
	require.InDelta(t, want, hf.Value, 1e-9)
}
