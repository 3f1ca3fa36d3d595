// Package position owns the live set of collateralized debt positions
// and derives each one's health factor. The Store is the sole owner of
// positions and their derived health; every other subsystem borrows
// immutable snapshots (spec §3 "Ownership").
package position

import (
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nhbchain/riskengine/price"
)

// Position is a single leveraged lending position.
type Position struct {
	ID                   uuid.UUID
	Owner                common.Address
	CollateralToken      price.Token
	DebtToken            price.Token
	CollateralQty        decimal.Decimal
	DebtQty               decimal.Decimal
	LiquidationThreshold float64 // ratio > 1
	Protocol             string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	Active               bool
}

// Clone returns a value copy safe to hand to callers as an immutable
// snapshot; decimal.Decimal and common.Address are already value types.
func (p Position) Clone() Position { return p }

// HealthFactor is the derived risk measure for a position at a point in
// time. Value is +Inf for a zero-debt position (testable property 2).
type HealthFactor struct {
	PositionID        uuid.UUID
	Value             float64
	CollateralValueUSD decimal.Decimal
	DebtValueUSD       decimal.Decimal
	LiquidationPrice   *decimal.Decimal
	ComputedAt         time.Time
}

// IsInfinite reports whether the position currently carries no debt.
func (h HealthFactor) IsInfinite() bool { return math.IsInf(h.Value, 1) }
