// Package riskerr defines the typed error taxonomy shared by every
// subsystem of the risk engine. Callers should use errors.As to recover
// the Kind instead of matching on message text.
package riskerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the stable error categories surfaced to callers.
type Kind string

const (
	// Configuration errors are raised at construction time and are fatal.
	KindConfiguration Kind = "configuration"
	// KindAllSourcesFailed means every oracle adapter failed to respond.
	KindAllSourcesFailed Kind = "all_sources_failed"
	// KindInsufficientQuorum means too few adapters succeeded to trust the result.
	KindInsufficientQuorum Kind = "insufficient_quorum"
	// KindCircuitBreakerTripped means cross-oracle deviation exceeded the hard threshold.
	KindCircuitBreakerTripped Kind = "circuit_breaker_tripped"
	// KindPositionNotFound means the requested position id is unknown.
	KindPositionNotFound Kind = "position_not_found"
	// KindPriceUnavailable means no trusted price exists for a token.
	KindPriceUnavailable Kind = "price_unavailable"
	// KindInsufficientHistory means too few price points exist for an analysis window.
	KindInsufficientHistory Kind = "insufficient_history"
	// KindInvalidThreshold means a configured threshold violates an invariant.
	KindInvalidThreshold Kind = "invalid_threshold"
	// KindMatrixNotPositiveDefinite means a covariance matrix could not be Cholesky-factored.
	KindMatrixNotPositiveDefinite Kind = "matrix_not_positive_definite"
	// KindEmptyPortfolio means a simulation was requested over zero positions.
	KindEmptyPortfolio Kind = "empty_portfolio"
	// KindCancellationRequested means the caller's context was cancelled mid-run.
	KindCancellationRequested Kind = "cancellation_requested"
	// KindTooManyPositions means a resource bound on concurrent positions was exceeded.
	KindTooManyPositions Kind = "too_many_positions"
	// KindTooManyIterations means a resource bound on Monte Carlo iterations was exceeded.
	KindTooManyIterations Kind = "too_many_iterations"
	// KindDuplicatePosition means add() was called for an id that already exists.
	KindDuplicatePosition Kind = "duplicate_position"
)

// Error is the carrier type for every caller-visible failure. It always
// reports a stable Kind plus a human-readable Message, and may attach
// Context (token symbol, position id, scenario name) relevant to the
// failure.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]string
	cause   error
}

func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s %v", e.Kind, e.Message, e.Context)
}

// Unwrap exposes the wrapped cause, if any, so errors.Is/As continue to work.
func (e *Error) Unwrap() error { return e.cause }

// New constructs an Error of the given kind with an optional set of
// context key/value pairs appended in order.
func New(kind Kind, message string, kv ...string) *Error {
	return &Error{Kind: kind, Message: message, Context: pairs(kv)}
}

// Wrap constructs an Error of the given kind around an existing cause.
func Wrap(kind Kind, cause error, message string, kv ...string) *Error {
	return &Error{Kind: kind, Message: message, Context: pairs(kv), cause: cause}
}

func pairs(kv []string) map[string]string {
	if len(kv) == 0 {
		return nil
	}
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return m
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
