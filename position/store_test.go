package position

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/nhbchain/riskengine/price"
	"github.com/nhbchain/riskengine/riskerr"
)

func samplePosition() Position {
	return Position{
		Owner:                common.HexToAddress("0x1"),
		CollateralToken:      price.Token{Symbol: "ETH"},
		DebtToken:            price.Token{Symbol: "USDC"},
		CollateralQty:        decimal.NewFromInt(10),
		DebtQty:              decimal.NewFromInt(15000),
		LiquidationThreshold: 1.2,
		Protocol:             "test-protocol",
	}
}

// Testable property 7: add(p) -> id; remove(id) returns a Position equal
// to p modulo timestamps.
func TestAddRemoveRoundTrip(t *testing.T) {
	store := NewStore(0)
	p := samplePosition()
	id, err := store.Add(p)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	removed, err := store.Remove(id)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed.Owner != p.Owner || !removed.CollateralQty.Equal(p.CollateralQty) || !removed.DebtQty.Equal(p.DebtQty) {
		t.Fatalf("expected removed position to match input modulo timestamps")
	}
	if _, err := store.Get(id); !riskerr.Is(err, riskerr.KindPositionNotFound) {
		t.Fatalf("expected position_not_found for a soft-deleted position, got %v", err)
	}
}

func TestAddRejectsDuplicateID(t *testing.T) {
	store := NewStore(0)
	p := samplePosition()
	id, err := store.Add(p)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	p.ID = id
	if _, err := store.Add(p); !riskerr.Is(err, riskerr.KindDuplicatePosition) {
		t.Fatalf("expected duplicate position error, got %v", err)
	}
}

func TestAddRejectsTooManyPositions(t *testing.T) {
	store := NewStore(1)
	if _, err := store.Add(samplePosition()); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := store.Add(samplePosition()); !riskerr.Is(err, riskerr.KindTooManyPositions) {
		t.Fatalf("expected too many positions error, got %v", err)
	}
}

func TestSnapshotExcludesRemoved(t *testing.T) {
	store := NewStore(0)
	id1, _ := store.Add(samplePosition())
	_, _ = store.Add(samplePosition())
	if _, err := store.Remove(id1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	snap := store.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 active position, got %d", len(snap))
	}
}
