package provider

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newClient(t *testing.T, handler http.HandlerFunc) *YahooClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewYahooClient(srv.URL, 2*time.Second, logger)
}

func TestInfo_ParsesQuote(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v7/finance/quote" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"quoteResponse":{"result":[{
			"symbol":"TCS.NS","longName":"Tata Consultancy Services",
			"fullExchangeName":"NSE","currency":"INR",
			"regularMarketPrice":3501.5,"regularMarketPreviousClose":3480,
			"regularMarketDayHigh":3520,"regularMarketDayLow":3470,
			"regularMarketVolume":1200000,"marketCap":12800000000000}]}}`))
	})

	q, err := c.Info(context.Background(), "TCS.NS")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if q == nil || q.Symbol != "TCS.NS" || q.Price != 3501.5 || q.Currency != "INR" {
		t.Fatalf("unexpected quote: %+v", q)
	}
}

func TestInfo_EmptyResultIsNilNil(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse":{"result":[]}}`))
	})

	q, err := c.Info(context.Background(), "NOPE")
	if err != nil || q != nil {
		t.Fatalf("expected nil, nil for empty result, got %+v, %v", q, err)
	}
}

func TestInfo_FallsBackToShortName(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse":{"result":[{"symbol":"X","shortName":"Short Co"}]}}`))
	})

	q, err := c.Info(context.Background(), "X")
	if err != nil || q == nil || q.Name != "Short Co" {
		t.Fatalf("expected shortName fallback, got %+v, %v", q, err)
	}
}

func TestGetJSON_429IsTransient(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Info(context.Background(), "TCS.NS")
	if err == nil || Kind(err) != KindTransient {
		t.Fatalf("expected transient error for 429, got %v (kind %v)", err, Kind(err))
	}
}

func TestGetJSON_ThrottleBodyIsTransient(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`Edge: Too Many Requests`))
	})

	_, err := c.Search(context.Background(), "tcs")
	if err == nil || Kind(err) != KindTransient {
		t.Fatalf("expected transient error for throttle body, got %v", err)
	}
}

func TestGetJSON_MalformedJSONIsTransient(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json`))
	})

	_, err := c.Info(context.Background(), "TCS.NS")
	if err == nil || Kind(err) != KindTransient {
		t.Fatalf("expected transient error for malformed body, got %v", err)
	}
}

func TestGetJSON_NotFoundIsPermanent(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Info(context.Background(), "TCS.NS")
	if err == nil || Kind(err) != KindPermanent {
		t.Fatalf("expected permanent error for 404, got %v", err)
	}
}

func TestGetJSON_ContextCancelIsPermanent(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Info(ctx, "TCS.NS")
	if err == nil || Kind(err) != KindPermanent {
		t.Fatalf("expected permanent error on context timeout, got %v", err)
	}
}

func TestSearch_ParsesQuotes(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/finance/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"quotes":[
			{"symbol":"INFY.NS","longname":"Infosys Limited","exchange":"NSI","quoteType":"EQUITY"},
			{"symbol":"INFY","shortname":"Infosys","exchange":"NYQ","quoteType":"EQUITY"}]}`))
	})

	results, err := c.Search(context.Background(), "infosys")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[0].Symbol != "INFY.NS" || results[1].Name != "Infosys" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestHistory_ParsesBars(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v8/finance/chart/TCS.NS" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"chart":{"result":[{
			"timestamp":[1700000000,1700086400],
			"indicators":{"quote":[{
				"open":[3480,3500],"high":[3520,3530],"low":[3470,3490],
				"close":[3500,3510],"volume":[1000000,900000]}]}}]}}`))
	})

	h, err := c.History(context.Background(), "TCS.NS", "5d", "1d")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if h == nil || len(h.Bars) != 2 {
		t.Fatalf("unexpected history: %+v", h)
	}
	if h.Bars[1].Close != 3510 || h.Bars[0].Volume != 1000000 {
		t.Fatalf("unexpected bars: %+v", h.Bars)
	}
	if h.Range != "5d" || h.Interval != "1d" {
		t.Fatalf("range/interval not carried: %+v", h)
	}
}

func TestHistory_EmptyChartIsNilNil(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[]}}`))
	})

	h, err := c.History(context.Background(), "TCS.NS", "1mo", "1d")
	if err != nil || h != nil {
		t.Fatalf("expected nil, nil, got %+v, %v", h, err)
	}
}
