package stocks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/finsight/marketgate/internal/cache"
	"github.com/finsight/marketgate/internal/gate"
	"github.com/finsight/marketgate/internal/provider"
)

// inlineGate executes operations synchronously, bypassing admission
// control, so service logic can be tested in isolation.
type inlineGate struct{}

func (inlineGate) Fetch(ctx context.Context, _ string, op gate.Operation, _ time.Duration) (any, bool) {
	v, err := op(ctx)
	if err != nil || v == nil {
		return nil, false
	}
	return v, true
}

type fakeProvider struct {
	infoCalls    int
	historyCalls int
	quotes       map[string]*provider.Quote
	searches     map[string][]provider.SearchResult
	history      *provider.History
	err          error
}

func (f *fakeProvider) Info(_ context.Context, symbol string) (*provider.Quote, error) {
	f.infoCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.quotes[symbol], nil
}

func (f *fakeProvider) Search(_ context.Context, query string) ([]provider.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.searches[query], nil
}

func (f *fakeProvider) History(_ context.Context, _, _, _ string) (*provider.History, error) {
	f.historyCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.history, nil
}

func newTestService(p provider.UpstreamProvider) (*Service, cache.Store) {
	store := cache.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(inlineGate{}, p, store, time.Second, time.Hour, logger), store
}

func TestSearch_UsesUpstreamSearch(t *testing.T) {
	p := &fakeProvider{searches: map[string][]provider.SearchResult{
		"reliance": {{Symbol: "RELIANCE.NS", Name: "Reliance Industries", Exchange: "NSI", Type: "EQUITY"}},
	}}
	s, _ := newTestService(p)

	results := s.Search(context.Background(), "reliance")
	if len(results) != 1 || results[0].Symbol != "RELIANCE.NS" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestSearch_FallsBackToSymbolVariantsAndDedups(t *testing.T) {
	// The plain search yields nothing; both "INFY" and "INFY.NS" resolve
	// to the same listed symbol and must collapse to one result.
	quote := &provider.Quote{Symbol: "INFY.NS", Name: "Infosys Limited", Exchange: "NSI"}
	p := &fakeProvider{quotes: map[string]*provider.Quote{
		"INFY":    quote,
		"INFY.NS": quote,
	}}
	s, _ := newTestService(p)

	results := s.Search(context.Background(), "infy")
	if len(results) != 1 {
		t.Fatalf("expected 1 deduplicated result, got %d: %+v", len(results), results)
	}
	if results[0].Symbol != "INFY.NS" || results[0].Name != "Infosys Limited" {
		t.Fatalf("unexpected result: %+v", results[0])
	}
}

func TestInfo_AbsenceWhenUnavailable(t *testing.T) {
	p := &fakeProvider{err: errors.New("boom")}
	s, _ := newTestService(p)

	if _, ok := s.Info(context.Background(), "TCS.NS"); ok {
		t.Fatal("expected absence")
	}
}

func TestHistory_SecondLevelCacheShortCircuits(t *testing.T) {
	p := &fakeProvider{history: &provider.History{
		Symbol:   "SBIN.NS",
		Range:    "1mo",
		Interval: "1d",
		Bars:     []provider.Bar{{Timestamp: 1700000000, Close: 600}},
	}}
	s, _ := newTestService(p)

	h1, ok := s.History(context.Background(), "SBIN.NS", "1mo", "1d")
	if !ok || len(h1.Bars) != 1 {
		t.Fatalf("expected history, got (%+v, %v)", h1, ok)
	}

	h2, ok := s.History(context.Background(), "SBIN.NS", "1mo", "1d")
	if !ok || h2.Symbol != "SBIN.NS" {
		t.Fatalf("expected cached history, got (%+v, %v)", h2, ok)
	}

	if p.historyCalls != 1 {
		t.Fatalf("expected 1 upstream history call, got %d", p.historyCalls)
	}
}

func TestConstituents_UnknownIndex(t *testing.T) {
	s, _ := newTestService(&fakeProvider{})

	if _, err := s.Constituents(context.Background(), "dow30"); err == nil {
		t.Fatal("expected error for unknown index")
	}
}

func TestConstituents_FallbackNamesOnDegradedUpstream(t *testing.T) {
	p := &fakeProvider{err: errors.New("throttled")}
	s, _ := newTestService(p)

	got, err := s.Constituents(context.Background(), "banknifty")
	if err != nil {
		t.Fatalf("Constituents: %v", err)
	}
	if len(got) != len(indices["banknifty"]) {
		t.Fatalf("expected full list despite failures, got %d", len(got))
	}
	if got[0].Symbol != "HDFCBANK.NS" || got[0].Name != "HDFCBANK" {
		t.Fatalf("expected fallback name, got %+v", got[0])
	}
}

func TestConstituents_IsCaseInsensitive(t *testing.T) {
	p := &fakeProvider{quotes: map[string]*provider.Quote{}}
	s, _ := newTestService(p)

	if _, err := s.Constituents(context.Background(), "BankNifty"); err != nil {
		t.Fatalf("expected case-insensitive index lookup: %v", err)
	}
}
