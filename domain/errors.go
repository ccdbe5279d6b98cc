package domain

import "fmt"

// BackfillError reports a failed historical load with enough context for
// the caller to show a retryable error state.
type BackfillError struct {
	Symbol   string
	Interval Interval
	Err      error
}

func (e *BackfillError) Error() string {
	return fmt.Sprintf("backfill failed for %s %s: %v", e.Symbol, e.Interval, e.Err)
}

func (e *BackfillError) Unwrap() error {
	return e.Err
}

// StreamError is a transient live-feed transport failure. It triggers
// reconnection, it is not terminal.
type StreamError struct {
	Symbol   string
	Interval Interval
	Err      error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream disconnected for %s %s: %v", e.Symbol, e.Interval, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// UnmappedSymbolError is a configuration error: the advertised symbol set
// must be fully covered by the upstream symbol table.
type UnmappedSymbolError struct {
	Symbol string
}

func (e *UnmappedSymbolError) Error() string {
	return fmt.Sprintf("symbol %q has no upstream mapping", e.Symbol)
}
