package position

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nhbchain/riskengine/price"
	"github.com/nhbchain/riskengine/riskerr"
)

// PriceSource resolves the current trusted price for a token. The
// Aggregator (fronted by its cache) satisfies this interface.
type PriceSource interface {
	Aggregate(ctx context.Context, token price.Token) (price.AggregatedPrice, error)
}

// Calculator derives HealthFactor values for positions held in a Store.
type Calculator struct {
	store  *Store
	prices PriceSource
}

// NewCalculator wires a Calculator to its Store and price source.
func NewCalculator(store *Store, prices PriceSource) *Calculator {
	return &Calculator{store: store, prices: prices}
}

// Health computes the current HealthFactor for a position, resolving
// collateral and debt prices through the price source. A debt_qty of
// zero always yields +Inf, regardless of price availability (testable
// property 2).
func (c *Calculator) Health(ctx context.Context, id uuid.UUID) (HealthFactor, error) {
	pos, err := c.store.Get(id)
	if err != nil {
		return HealthFactor{}, err
	}
	return c.HealthOf(ctx, pos)
}

// HealthOf computes the HealthFactor for an already-resolved Position
// snapshot, useful for the monitor loop which batches price fetches
// across many positions up front.
func (c *Calculator) HealthOf(ctx context.Context, pos Position) (HealthFactor, error) {
	if pos.DebtQty.IsZero() {
		return HealthFactor{
			PositionID: pos.ID,
			Value:      math.Inf(1),
			ComputedAt: time.Now(),
		}, nil
	}

	collateralPrice, err := c.prices.Aggregate(ctx, pos.CollateralToken)
	if err != nil {
		return HealthFactor{}, riskerr.Wrap(riskerr.KindPriceUnavailable, err, "collateral price unavailable", "token", pos.CollateralToken.String())
	}
	debtPrice, err := c.prices.Aggregate(ctx, pos.DebtToken)
	if err != nil {
		return HealthFactor{}, riskerr.Wrap(riskerr.KindPriceUnavailable, err, "debt price unavailable", "token", pos.DebtToken.String())
	}

	return Derive(pos, collateralPrice.Price, debtPrice.Price), nil
}

// Derive applies the health-factor formula from spec §4.3 given
// already-resolved collateral/debt prices.
func Derive(pos Position, collateralPrice, debtPrice decimal.Decimal) HealthFactor {
	collateralValue := pos.CollateralQty.Mul(collateralPrice)
	debtValue := pos.DebtQty.Mul(debtPrice)

	out := HealthFactor{
		PositionID:         pos.ID,
		CollateralValueUSD: collateralValue,
		DebtValueUSD:       debtValue,
		ComputedAt:         time.Now(),
	}

	if debtValue.IsZero() {
		out.Value = math.Inf(1)
		return out
	}

	threshold := decimal.NewFromFloat(pos.LiquidationThreshold)
	denominator := debtValue.Mul(threshold)
	hf, _ := collateralValue.Div(denominator).Float64()
	out.Value = hf

	if !pos.CollateralQty.IsZero() {
		liqPrice := debtValue.Mul(threshold).Div(pos.CollateralQty)
		out.LiquidationPrice = &liqPrice
	}
	return out
}
