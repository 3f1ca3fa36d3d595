package stress

import "testing"

func TestValidateRejectsLiquidationRoutingOverAllocation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LiquidationRouting = LiquidationRouting{LiquidatorBps: 7000, DeveloperBps: 3000, ProtocolBps: 1000}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when liquidation routing bps sum exceeds 10000")
	}
}

func TestValidateAcceptsDefaultLiquidationRouting(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}
