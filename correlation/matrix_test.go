package correlation

import (
	"math"
	"testing"
	"time"
)

func syntheticHistory(n int, start float64, step func(i int) float64) []PricePoint {
	out := make([]PricePoint, n)
	price := start
	base := time.Now().Add(-time.Duration(n) * 24 * time.Hour)
	for i := 0; i < n; i++ {
		if i > 0 {
			price = price + step(i)
		}
		out[i] = PricePoint{ObservedAt: base.Add(time.Duration(i) * 24 * time.Hour), Price: price}
	}
	return out
}

// Testable property 3: mᵢⱼ = mⱼᵢ, mᵢᵢ = 1, |mᵢⱼ| ≤ 1.
func TestBuildMatrixSymmetricUnitDiagonal(t *testing.T) {
	assets := []Asset{
		{Symbol: "A", PriceHistory: syntheticHistory(40, 100, func(i int) float64 { return float64(i%5) - 2 })},
		{Symbol: "B", PriceHistory: syntheticHistory(40, 200, func(i int) float64 { return float64(i%5)*2 - 4 })},
	}
	m := BuildMatrix(assets, 90, 20)
	if len(m.Assets) != 2 {
		t.Fatalf("expected both assets retained, got %v (dropped %v)", m.Assets, m.DroppedAssets)
	}
	for i := range m.M {
		if m.M[i][i] != 1 {
			t.Fatalf("expected unit diagonal at %d, got %v", i, m.M[i][i])
		}
		for j := range m.M[i] {
			if math.Abs(m.M[i][j]) > 1+1e-9 {
				t.Fatalf("correlation out of range at (%d,%d): %v", i, j, m.M[i][j])
			}
			if m.M[i][j] != m.M[j][i] {
				t.Fatalf("matrix not symmetric at (%d,%d)", i, j)
			}
		}
	}
}

// Testable property 11: with fewer than min_data_points, the asset is
// dropped from the matrix.
func TestBuildMatrixDropsInsufficientHistory(t *testing.T) {
	assets := []Asset{
		{Symbol: "A", PriceHistory: syntheticHistory(40, 100, func(i int) float64 { return 1 })},
		{Symbol: "B", PriceHistory: syntheticHistory(10, 50, func(i int) float64 { return 1 })}, // 9 returns < min 30
	}
	m := BuildMatrix(assets, 90, 30)
	if len(m.Assets) != 1 || m.Assets[0] != "A" {
		t.Fatalf("expected only A retained, got %v", m.Assets)
	}
	if len(m.DroppedAssets) != 1 || m.DroppedAssets[0] != "B" {
		t.Fatalf("expected B reported dropped, got %v", m.DroppedAssets)
	}
}

// Testable property 4: diversification and concentration scores stay
// within [0,1].
func TestDiversificationAndConcentrationBounds(t *testing.T) {
	assets := []Asset{
		{Symbol: "A", PriceHistory: syntheticHistory(40, 100, func(i int) float64 { return float64(i%3) - 1 })},
		{Symbol: "B", PriceHistory: syntheticHistory(40, 100, func(i int) float64 { return float64(i%3) - 1 })}, // identical -> rho ~1
		{Symbol: "C", PriceHistory: syntheticHistory(40, 50, func(i int) float64 { return float64((i*7)%5) - 2 })},
	}
	m := BuildMatrix(assets, 90, 20)
	div := DiversificationScore(m)
	if div < 0 || div > 1 {
		t.Fatalf("diversification score out of bounds: %v", div)
	}
	conc := ConcentrationRisk([]float64{0.5, 0.3, 0.2})
	if conc < 0 || conc > 1 {
		t.Fatalf("concentration risk out of bounds: %v", conc)
	}
}

func TestAnalyzePortfolioRejectsEmptyPortfolio(t *testing.T) {
	eng, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if _, err := eng.AnalyzePortfolio(nil, nil, 0); err == nil {
		t.Fatalf("expected EmptyPortfolio error")
	}
}

func TestAnalyzePortfolioProducesBoundedMetrics(t *testing.T) {
	eng, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	assets := []Asset{
		{Symbol: "BTC", Kind: KindCrypto, PriceHistory: syntheticHistory(60, 30000, func(i int) float64 { return float64(i%7) * 50 }), Volatility: 0.6},
		{Symbol: "USDC", Kind: KindStablecoin, PriceHistory: syntheticHistory(60, 1, func(i int) float64 { return 0 }), Volatility: 0.01},
	}
	positions := []PortfolioPosition{
		{Symbol: "BTC", ValueUSD: 50000},
		{Symbol: "USDC", ValueUSD: 50000},
	}
	analysis, err := eng.AnalyzePortfolio(positions, assets, 90)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if analysis.DiversificationScore < 0 || analysis.DiversificationScore > 1 {
		t.Fatalf("diversification out of bounds: %v", analysis.DiversificationScore)
	}
	if analysis.ConcentrationRisk < 0 || analysis.ConcentrationRisk > 1 {
		t.Fatalf("concentration out of bounds: %v", analysis.ConcentrationRisk)
	}
	if analysis.VaR95 > 0 || analysis.CVaR95 > 0 {
		t.Fatalf("expected non-positive VaR/CVaR, got %v / %v", analysis.VaR95, analysis.CVaR95)
	}
	if analysis.CVaR95 > analysis.VaR95 {
		t.Fatalf("expected CVaR95 <= VaR95, got %v > %v", analysis.CVaR95, analysis.VaR95)
	}
}
