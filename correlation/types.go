// Package correlation computes pairwise and portfolio-level correlation
// risk measures from asset price histories: Pearson correlation
// matrices, diversification and concentration scores, portfolio
// volatility, and parametric VaR/CVaR (spec §4.5).
package correlation

import "time"

// AssetKind classifies an asset for shock-table and liquidity-stress
// lookups shared with the stress engine.
type AssetKind string

const (
	KindCrypto     AssetKind = "crypto"
	KindStablecoin AssetKind = "stablecoin"
	KindDeFi       AssetKind = "defi"
	KindNFT        AssetKind = "nft"
	KindRWA        AssetKind = "rwa"
	KindCommodity  AssetKind = "commodity"
	KindStock      AssetKind = "stock"
	KindBond       AssetKind = "bond"
	KindOther      AssetKind = "other"
)

// PricePoint is a single historical observation for an asset.
type PricePoint struct {
	ObservedAt time.Time
	Price      float64
}

// Asset is a priced instrument tracked for correlation and stress
// analysis.
type Asset struct {
	Symbol       string
	Kind         AssetKind
	PriceHistory []PricePoint
	Volatility   float64 // annualized, overridden by computed value when history suffices
	Beta         float64
}

// PortfolioPosition is the portfolio-value view of a held position used
// by the correlation and stress engines.
type PortfolioPosition struct {
	Symbol         string
	Qty            float64
	ValueUSD       float64
	WeightPct      float64
	EntryPrice     float64
	CurrentPrice   float64
	UnrealizedPnL  float64
	RiskScore      float64
}

// CorrelationMatrix is a symmetric, unit-diagonal correlation matrix
// over a set of assets (spec §3 "Correlation domain").
type CorrelationMatrix struct {
	Assets          []string
	M               [][]float64
	WindowDays      int
	ConfidenceLevel float64
	ComputedAt      time.Time
	// DroppedAssets lists symbols excluded from M for having fewer than
	// min_data_points aligned returns in the window (spec §4.5).
	DroppedAssets []string
}

// IndexOf returns the row/column index of symbol, or -1 if absent.
func (m CorrelationMatrix) IndexOf(symbol string) int {
	for i, s := range m.Assets {
		if s == symbol {
			return i
		}
	}
	return -1
}

// Level classifies the severity of a high-correlation pair.
type Level string

const (
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// HighCorrelationPair is a pair of assets whose absolute correlation
// exceeds the configured high threshold.
type HighCorrelationPair struct {
	AssetA      string
	AssetB      string
	Correlation float64
	Level       Level
}

// RecommendationPriority orders rebalancing recommendations for
// display.
type RecommendationPriority string

const (
	PriorityCritical RecommendationPriority = "critical"
	PriorityHigh     RecommendationPriority = "high"
	PriorityMedium   RecommendationPriority = "medium"
)

// Recommendation is a single actionable rebalancing suggestion.
type Recommendation struct {
	Kind     string
	Priority RecommendationPriority
	Message  string
}

// Analysis is the result of analyzing a full portfolio: the matrix plus
// derived risk measures (spec §4.5's analyze_portfolio contract).
type Analysis struct {
	Matrix               CorrelationMatrix
	HighCorrelationPairs []HighCorrelationPair
	DiversificationScore float64
	ConcentrationRisk    float64
	PortfolioVolatility  float64
	VaR95                float64
	CVaR95               float64
	Recommendations      []Recommendation
}
