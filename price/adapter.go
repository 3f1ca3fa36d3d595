package price

import "context"

// AdapterKind classifies the transport an oracle adapter uses. Adapters
// self-report it; the aggregator never branches on it.
type AdapterKind string

const (
	AdapterKindHTTP AdapterKind = "http"
	AdapterKindRPC  AdapterKind = "rpc"
	AdapterKindOther AdapterKind = "other"
)

// Adapter is the narrow contract the engine consumes from external oracle
// clients. Implementations are leaves: no shared base type, no inheritance
// hierarchy. Adapters must never panic; every failure is reported through
// OracleResponse.Success=false with Err set.
type Adapter interface {
	SourceID() string
	Kind() AdapterKind
	GetPrice(ctx context.Context, token Token) (OracleResponse, error)
}

// BatchAdapter is an optional extension for adapters that can answer
// several tokens in a single round trip more cheaply than repeated
// GetPrice calls.
type BatchAdapter interface {
	Adapter
	GetPrices(ctx context.Context, tokens []Token) (map[Token]OracleResponse, error)
}

// AdapterFunc adapts a plain function to the Adapter interface for tests
// and simple synthetic sources.
type AdapterFunc struct {
	ID       string
	AKind    AdapterKind
	Fetch    func(ctx context.Context, token Token) (OracleResponse, error)
}

func (f AdapterFunc) SourceID() string { return f.ID }
func (f AdapterFunc) Kind() AdapterKind {
	if f.AKind == "" {
		return AdapterKindOther
	}
	return f.AKind
}
func (f AdapterFunc) GetPrice(ctx context.Context, token Token) (OracleResponse, error) {
	return f.Fetch(ctx, token)
}
