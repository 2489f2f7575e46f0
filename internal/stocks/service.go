// Package stocks provides the data-access services built on the gate:
// symbol search, quote snapshots, historical bars, and index constituent
// resolution. All upstream access flows through the admission-controlled
// gateway; absence from the gate surfaces here as "temporarily unavailable".
package stocks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/finsight/marketgate/internal/cache"
	"github.com/finsight/marketgate/internal/gate"
	"github.com/finsight/marketgate/internal/provider"
)

// Fetcher is the gate surface the service depends on.
type Fetcher interface {
	Fetch(ctx context.Context, key string, op gate.Operation, waitTimeout time.Duration) (any, bool)
}

// Constituent is one index member.
type Constituent struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Service resolves stock data through the gate, with a second-level store
// for long-lived history payloads.
type Service struct {
	gw          Fetcher
	upstream    provider.UpstreamProvider
	store       cache.Store
	logger      *slog.Logger
	waitTimeout time.Duration
	historyTTL  time.Duration
}

// New creates a stocks Service. waitTimeout bounds each caller's wait on
// the gate; historyTTL governs the second-level history cache.
func New(gw Fetcher, upstream provider.UpstreamProvider, store cache.Store, waitTimeout, historyTTL time.Duration, logger *slog.Logger) *Service {
	return &Service{
		gw:          gw,
		upstream:    upstream,
		store:       store,
		logger:      logger,
		waitTimeout: waitTimeout,
		historyTTL:  historyTTL,
	}
}

// Search finds symbols matching query. The upstream search endpoint is
// tried first; when it yields nothing, the Indian-market symbol variants
// (Q, Q.NS, Q.BO) are probed individually and deduplicated by symbol.
func (s *Service) Search(ctx context.Context, query string) []provider.SearchResult {
	key := "search:" + strings.ToLower(query)

	v, ok := s.gw.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		results, err := s.upstream.Search(ctx, query)
		if err != nil || len(results) == 0 {
			return nil, err
		}
		return results, nil
	}, s.waitTimeout)
	if ok {
		return v.([]provider.SearchResult)
	}

	upper := strings.ToUpper(query)
	variants := []string{upper, upper + ".NS", upper + ".BO"}

	var results []provider.SearchResult
	seen := make(map[string]bool)
	for _, symbol := range variants {
		quote, ok := s.Info(ctx, symbol)
		if !ok || seen[quote.Symbol] {
			continue
		}
		seen[quote.Symbol] = true
		results = append(results, provider.SearchResult{
			Symbol:   quote.Symbol,
			Name:     quote.Name,
			Exchange: quote.Exchange,
			Type:     "EQUITY",
		})
	}
	return results
}

// Info returns the quote snapshot for symbol, or ok=false when the data is
// temporarily unavailable.
func (s *Service) Info(ctx context.Context, symbol string) (*provider.Quote, bool) {
	v, ok := s.gw.Fetch(ctx, "info:"+symbol, func(ctx context.Context) (any, error) {
		quote, err := s.upstream.Info(ctx, symbol)
		if err != nil || quote == nil {
			return nil, err
		}
		return quote, nil
	}, s.waitTimeout)
	if !ok {
		return nil, false
	}
	return v.(*provider.Quote), true
}

// History returns historical bars for symbol. Results are also held in the
// second-level store, whose TTL outlives the gate's dedup cache.
func (s *Service) History(ctx context.Context, symbol, rng, interval string) (*provider.History, bool) {
	storeKey := fmt.Sprintf("history:%s:%s:%s", symbol, rng, interval)

	var cached provider.History
	if s.store.Get(ctx, storeKey, &cached) {
		return &cached, true
	}

	v, ok := s.gw.Fetch(ctx, storeKey, func(ctx context.Context) (any, error) {
		hist, err := s.upstream.History(ctx, symbol, rng, interval)
		if err != nil || hist == nil {
			return nil, err
		}
		return hist, nil
	}, s.waitTimeout)
	if !ok {
		return nil, false
	}

	hist := v.(*provider.History)
	s.store.Set(ctx, storeKey, hist, s.historyTTL)
	return hist, true
}

// Constituents resolves the members of a named index. Symbols whose quotes
// are unavailable fall back to a name derived from the symbol itself, so a
// degraded upstream still yields a complete list.
func (s *Service) Constituents(ctx context.Context, index string) ([]Constituent, error) {
	symbols, ok := indices[strings.ToLower(index)]
	if !ok {
		known := Indices()
		sort.Strings(known)
		return nil, fmt.Errorf("unknown index %q, available: %s", index, strings.Join(known, ", "))
	}

	s.logger.Info("resolving index constituents", "index", index, "symbols", len(symbols))

	constituents := make([]Constituent, 0, len(symbols))
	for _, symbol := range symbols {
		name := fallbackName(symbol)
		if quote, ok := s.Info(ctx, symbol); ok && quote.Name != "" {
			name = quote.Name
		} else {
			s.logger.Warn("using fallback name", "symbol", symbol)
		}
		constituents = append(constituents, Constituent{Symbol: symbol, Name: name})
	}
	return constituents, nil
}

// fallbackName strips the exchange suffix from a symbol.
func fallbackName(symbol string) string {
	name := strings.TrimSuffix(symbol, ".NS")
	return strings.TrimSuffix(name, ".BO")
}
