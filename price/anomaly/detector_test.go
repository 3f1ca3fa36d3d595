package anomaly

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nhbchain/riskengine/price"
)

func ap(p float64, confidence float64) price.AggregatedPrice {
	return price.AggregatedPrice{
		Token:      price.Token{Symbol: "ETH"},
		Price:      decimal.NewFromFloat(p),
		Confidence: confidence,
		ComputedAt: time.Now(),
	}
}

func TestObserveFlagsLargeDeviation(t *testing.T) {
	d := New(DefaultConfig())
	if obs := d.Observe(ap(100, 1), 0); obs.Anomalous {
		t.Fatalf("first observation should not be anomalous")
	}
	obs := d.Observe(ap(110, 1), 0) // +10% single-step jump
	if !obs.Anomalous {
		t.Fatalf("expected anomalous deviation jump")
	}
}

func TestObserveFlagsLowConfidence(t *testing.T) {
	d := New(DefaultConfig())
	obs := d.Observe(ap(100, 0.5), 0)
	if !obs.Anomalous {
		t.Fatalf("expected low confidence to flag anomaly")
	}
}

func TestObserveStableSeriesNotAnomalous(t *testing.T) {
	d := New(DefaultConfig())
	for i := 0; i < 10; i++ {
		d.Observe(ap(100, 1), 10)
	}
	obs := d.Observe(ap(100.1, 1), 10)
	if obs.Anomalous {
		t.Fatalf("expected stable series to not be anomalous, score=%f", obs.Score)
	}
}
