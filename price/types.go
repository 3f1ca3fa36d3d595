// Package price fuses responses from multiple oracle adapters into a
// single trusted AggregatedPrice, following the fan-out/median pattern
// used by the swap oracle manager this package is adapted from, but
// generalized to the configurable aggregation methods, circuit breaker,
// and fallback strategy required by a liquidation-protection engine.
package price

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Token identifies a priced asset by its on-chain address. The zero
// address is reserved for synthetic/off-chain symbols resolved by name
// only (see Symbol).
type Token struct {
	Address common.Address
	Symbol  string
}

func (t Token) String() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Address.Hex()
}

// OracleResponse is a single adapter's observation for a token.
type OracleResponse struct {
	SourceID    string
	Price       decimal.Decimal
	Confidence  float64
	ObservedAt  time.Time
	Raw         string
	Success     bool
	Err         error
}

// Clone returns a deep-enough copy safe for concurrent readers; decimal.Decimal
// and time.Time are already immutable value types.
func (r OracleResponse) Clone() OracleResponse { return r }

// AggregatedPrice is the fused, trusted price for a token.
type AggregatedPrice struct {
	Token                 Token
	Price                 decimal.Decimal
	Confidence            float64
	DeviationPct          float64
	IsConsensus           bool
	FallbackUsed          bool
	CircuitBreakerTripped bool
	ComputedAt            time.Time
	Contributions         []OracleResponse
}

// SuccessfulContributions returns the subset of Contributions that
// reported success.
func (p AggregatedPrice) SuccessfulContributions() []OracleResponse {
	out := make([]OracleResponse, 0, len(p.Contributions))
	for _, c := range p.Contributions {
		if c.Success {
			out = append(out, c)
		}
	}
	return out
}

// AggregationMethod selects how successful contributions are fused.
type AggregationMethod string

const (
	MethodWeightedAverage AggregationMethod = "weighted_average"
	MethodMedian          AggregationMethod = "median"
	MethodTrimmedMean     AggregationMethod = "trimmed_mean"
	MethodConsensus       AggregationMethod = "consensus"
)

// FallbackStrategy selects what happens when every adapter fails, or
// after the circuit breaker trips.
type FallbackStrategy string

const (
	FallbackUseLastKnownPrice             FallbackStrategy = "use_last_known_price"
	FallbackUseMostReliableOracle         FallbackStrategy = "use_most_reliable_oracle"
	FallbackUseWeightedAverageOfSuccessful FallbackStrategy = "use_weighted_average_of_successful"
	FallbackFail                          FallbackStrategy = "fail"
)

// OracleConfig describes one configured adapter.
type OracleConfig struct {
	ID            string
	Weight        float64 // in (0,1]
	Timeout       time.Duration
	RetryAttempts int
	Enabled       bool
	APIKey        string
}
