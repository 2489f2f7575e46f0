// Package provider defines the upstream market-data contract and its
// Yahoo-style HTTP implementation. Failures cross this boundary as typed
// errors so callers classify by kind instead of matching error text.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies an upstream failure.
type ErrorKind int

const (
	// KindPermanent marks failures that will not succeed on retry
	// (bad symbol, malformed request, upstream 5xx without throttle markers).
	KindPermanent ErrorKind = iota

	// KindTransient marks throttling failures: HTTP 429, "too many
	// requests" bodies, or the malformed payloads the provider emits
	// after throttling. Retrying after backoff may succeed.
	KindTransient
)

// String returns a human-readable kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Error is a classified upstream failure.
type Error struct {
	Kind ErrorKind
	Op   string // operation that failed, e.g. "info", "search"
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Kind extracts the classification from err. Errors that are not a
// provider.Error are treated as permanent: the typed contract is the only
// path to a retry.
func Kind(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindPermanent
}

// Quote is the normalized per-symbol snapshot returned by Info.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Exchange      string  `json:"exchange"`
	Currency      string  `json:"currency"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previousClose"`
	DayHigh       float64 `json:"dayHigh"`
	DayLow        float64 `json:"dayLow"`
	Volume        int64   `json:"volume"`
	MarketCap     int64   `json:"marketCap"`
}

// SearchResult is a single symbol match returned by Search.
type SearchResult struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Type     string `json:"type"`
}

// Bar is one interval of historical prices.
type Bar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

// History is the chart payload for one symbol.
type History struct {
	Symbol   string `json:"symbol"`
	Range    string `json:"range"`
	Interval string `json:"interval"`
	Bars     []Bar  `json:"bars"`
}

// UpstreamProvider is the abstract quota-constrained data source fronted by
// the gate. Implementations block on network I/O and honor ctx cancellation.
// A nil result with a nil error means the upstream answered with nothing
// usable (a soft failure, retried by the gate without breaker effects).
type UpstreamProvider interface {
	Info(ctx context.Context, symbol string) (*Quote, error)
	Search(ctx context.Context, query string) ([]SearchResult, error)
	History(ctx context.Context, symbol, rng, interval string) (*History, error)
}
