// Package httpadapter implements price.Adapter over a generic JSON HTTP
// price feed, adapted from the swap service's oracle source/fetch shape
// (services/swapd/oracle.Source) but narrowed to the single-token
// Adapter contract the aggregator consumes.
package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/nhbchain/riskengine/price"
)

// Quote is the minimal JSON shape expected from a configured endpoint:
// {"price": "1234.56", "confidence": 0.97}.
type Quote struct {
	Price      string  `json:"price"`
	Confidence float64 `json:"confidence"`
}

// Adapter fetches a single token's price from an HTTP JSON endpoint,
// templating the token symbol into the configured URL. Requests are
// throttled by a per-adapter token bucket so a misbehaving monitor
// sweep cadence can't exceed the upstream oracle's rate limit.
type Adapter struct {
	id         string
	endpoint   string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New constructs an Adapter. endpoint may contain a "{symbol}"
// placeholder, substituted with the token's Symbol at request time.
// requestsPerSecond <= 0 disables throttling.
func New(id, endpoint, apiKey string, timeout time.Duration, requestsPerSecond float64) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return &Adapter{
		id:         id,
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

func (a *Adapter) SourceID() string        { return a.id }
func (a *Adapter) Kind() price.AdapterKind { return price.AdapterKindHTTP }

// GetPrice implements price.Adapter. It never returns a non-nil error
// for upstream failures; those are reported via OracleResponse.Success.
func (a *Adapter) GetPrice(ctx context.Context, token price.Token) (price.OracleResponse, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return failure(err, time.Now()), nil
		}
	}

	now := time.Now()
	endpoint := substituteSymbol(a.endpoint, token.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return failure(err, now), nil
	}
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return failure(err, now), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failure(fmt.Errorf("oracle %s: unexpected status %d", a.id, resp.StatusCode), now), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return failure(err, now), nil
	}

	var q Quote
	if err := json.Unmarshal(body, &q); err != nil {
		return failure(err, now), nil
	}

	parsed, err := decimal.NewFromString(q.Price)
	if err != nil || parsed.Sign() <= 0 {
		return failure(fmt.Errorf("oracle %s: invalid price %q", a.id, q.Price), now), nil
	}

	return success(parsed, q.Confidence, now), nil
}

func success(p decimal.Decimal, confidence float64, observedAt time.Time) price.OracleResponse {
	if confidence <= 0 {
		confidence = 1
	}
	return price.OracleResponse{
		Price:      p,
		Confidence: confidence,
		ObservedAt: observedAt,
		Success:    true,
	}
}

func failure(err error, observedAt time.Time) price.OracleResponse {
	return price.OracleResponse{Success: false, Err: err, ObservedAt: observedAt}
}

func substituteSymbol(endpoint, symbol string) string {
	return strings.ReplaceAll(endpoint, "{symbol}", url.QueryEscape(symbol))
}
