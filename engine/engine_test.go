package engine

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/nhbchain/riskengine/alert"
	"github.com/nhbchain/riskengine/correlation"
	"github.com/nhbchain/riskengine/monitor"
	"github.com/nhbchain/riskengine/position"
	"github.com/nhbchain/riskengine/price"
	"github.com/nhbchain/riskengine/stress"
)

func staticAdapter(id string, p float64) price.Adapter {
	return price.AdapterFunc{
		ID: id,
		Fetch: func(ctx context.Context, token price.Token) (price.OracleResponse, error) {
			return price.OracleResponse{
				SourceID:   id,
				Price:      decimal.NewFromFloat(p),
				Confidence: 0.9,
				ObservedAt: time.Now(),
				Success:    true,
			}, nil
		},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := price.DefaultAggregatorConfig()
	cfg.Oracles = []price.OracleConfig{{ID: "a", Weight: 1, Enabled: true}}
	aggregator, err := price.New(cfg, []price.Adapter{staticAdapter("a", 3000)}, nil)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	store := position.NewStore(0)
	alerts := alert.New(alert.DefaultThresholds(), "", nil)
	loop := monitor.New(monitor.DefaultConfig(), store, aggregator, alerts, nil)

	correlationEngine, err := correlation.New(correlation.DefaultConfig())
	if err != nil {
		t.Fatalf("new correlation engine: %v", err)
	}
	stressEngine, err := stress.New(stress.DefaultConfig())
	if err != nil {
		t.Fatalf("new stress engine: %v", err)
	}

	return New(store, aggregator, alerts, loop, correlationEngine, stressEngine, nil)
}

func TestAddPositionAndComputeHealth(t *testing.T) {
	eng := newTestEngine(t)
	id, err := eng.AddPosition(position.Position{
		Owner:                common.HexToAddress("0x1"),
		CollateralToken:      price.Token{Symbol: "ETH"},
		DebtToken:            price.Token{Symbol: "USDC"},
		CollateralQty:        decimal.NewFromInt(10),
		DebtQty:              decimal.NewFromInt(15000),
		LiquidationThreshold: 1.2,
		Protocol:             "aave",
	})
	if err != nil {
		t.Fatalf("add position: %v", err)
	}

	hf, err := eng.PositionHealth(context.Background(), id)
	if err != nil {
		t.Fatalf("position health: %v", err)
	}
	if hf.Value <= 0 {
		t.Fatalf("expected positive health factor, got %v", hf.Value)
	}
}

func TestGetStatisticsReportsTotalsAndProtocols(t *testing.T) {
	eng := newTestEngine(t)
	_, err := eng.AddPosition(position.Position{
		Owner:                common.HexToAddress("0x1"),
		CollateralToken:      price.Token{Symbol: "ETH"},
		DebtToken:            price.Token{Symbol: "USDC"},
		CollateralQty:        decimal.NewFromInt(10),
		DebtQty:              decimal.NewFromInt(15000),
		LiquidationThreshold: 1.2,
		Protocol:             "aave",
	})
	if err != nil {
		t.Fatalf("add position: %v", err)
	}

	stats := eng.GetStatistics(context.Background())
	if stats.TotalPositions != 1 {
		t.Fatalf("expected 1 total position, got %d", stats.TotalPositions)
	}
	if len(stats.SupportedProtocols) != 1 || stats.SupportedProtocols[0] != "aave" {
		t.Fatalf("expected protocols [aave], got %v", stats.SupportedProtocols)
	}
}

func TestRemovePositionExcludesFromStatistics(t *testing.T) {
	eng := newTestEngine(t)
	id, err := eng.AddPosition(position.Position{
		Owner:                common.HexToAddress("0x1"),
		CollateralToken:      price.Token{Symbol: "ETH"},
		DebtToken:            price.Token{Symbol: "USDC"},
		CollateralQty:        decimal.NewFromInt(10),
		DebtQty:              decimal.NewFromInt(15000),
		LiquidationThreshold: 1.2,
	})
	if err != nil {
		t.Fatalf("add position: %v", err)
	}
	if _, err := eng.RemovePosition(id); err != nil {
		t.Fatalf("remove position: %v", err)
	}
	stats := eng.GetStatistics(context.Background())
	if stats.TotalPositions != 0 {
		t.Fatalf("expected 0 active positions after removal, got %d", stats.TotalPositions)
	}
}
