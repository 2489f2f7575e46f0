package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// YahooClient implements UpstreamProvider against the public Yahoo Finance
// query endpoints. It performs classification at the HTTP boundary: this is
// the only place in the repo where throttle signatures are matched by text,
// everything above sees typed error kinds.
type YahooClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewYahooClient creates a Yahoo Finance client. baseURL is typically
// "https://query1.finance.yahoo.com"; timeout bounds each HTTP call.
func NewYahooClient(baseURL string, timeout time.Duration, logger *slog.Logger) *YahooClient {
	return &YahooClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string  `json:"symbol"`
			LongName           string  `json:"longName"`
			ShortName          string  `json:"shortName"`
			FullExchangeName   string  `json:"fullExchangeName"`
			Currency           string  `json:"currency"`
			RegularMarketPrice float64 `json:"regularMarketPrice"`
			PreviousClose      float64 `json:"regularMarketPreviousClose"`
			DayHigh            float64 `json:"regularMarketDayHigh"`
			DayLow             float64 `json:"regularMarketDayLow"`
			Volume             int64   `json:"regularMarketVolume"`
			MarketCap          int64   `json:"marketCap"`
			QuoteType          string  `json:"quoteType"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

// Info fetches a quote snapshot for one symbol.
func (c *YahooClient) Info(ctx context.Context, symbol string) (*Quote, error) {
	u := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", c.baseURL, url.QueryEscape(symbol))

	var resp yahooQuoteResponse
	if err := c.getJSON(ctx, "info", u, &resp); err != nil {
		return nil, err
	}

	if len(resp.QuoteResponse.Result) == 0 {
		return nil, nil
	}

	r := resp.QuoteResponse.Result[0]
	name := r.LongName
	if name == "" {
		name = r.ShortName
	}
	return &Quote{
		Symbol:        r.Symbol,
		Name:          name,
		Exchange:      r.FullExchangeName,
		Currency:      r.Currency,
		Price:         r.RegularMarketPrice,
		PreviousClose: r.PreviousClose,
		DayHigh:       r.DayHigh,
		DayLow:        r.DayLow,
		Volume:        r.Volume,
		MarketCap:     r.MarketCap,
	}, nil
}

type yahooSearchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		LongName  string `json:"longname"`
		ShortName string `json:"shortname"`
		Exchange  string `json:"exchange"`
		QuoteType string `json:"quoteType"`
	} `json:"quotes"`
}

// Search finds symbols matching the query.
func (c *YahooClient) Search(ctx context.Context, query string) ([]SearchResult, error) {
	u := fmt.Sprintf("%s/v1/finance/search?q=%s", c.baseURL, url.QueryEscape(query))

	var resp yahooSearchResponse
	if err := c.getJSON(ctx, "search", u, &resp); err != nil {
		return nil, err
	}

	if len(resp.Quotes) == 0 {
		return nil, nil
	}

	results := make([]SearchResult, 0, len(resp.Quotes))
	for _, q := range resp.Quotes {
		name := q.LongName
		if name == "" {
			name = q.ShortName
		}
		results = append(results, SearchResult{
			Symbol:   q.Symbol,
			Name:     name,
			Exchange: q.Exchange,
			Type:     q.QuoteType,
		})
	}
	return results, nil
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

// History fetches historical bars for symbol over rng at interval.
func (c *YahooClient) History(ctx context.Context, symbol, rng, interval string) (*History, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(rng), url.QueryEscape(interval))

	var resp yahooChartResponse
	if err := c.getJSON(ctx, "history", u, &resp); err != nil {
		return nil, err
	}

	if len(resp.Chart.Result) == 0 {
		return nil, nil
	}
	r := resp.Chart.Result[0]
	if len(r.Timestamp) == 0 || len(r.Indicators.Quote) == 0 {
		return nil, nil
	}

	q := r.Indicators.Quote[0]
	bars := make([]Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		b := Bar{Timestamp: ts}
		if i < len(q.Open) {
			b.Open = q.Open[i]
		}
		if i < len(q.High) {
			b.High = q.High[i]
		}
		if i < len(q.Low) {
			b.Low = q.Low[i]
		}
		if i < len(q.Close) {
			b.Close = q.Close[i]
		}
		if i < len(q.Volume) {
			b.Volume = q.Volume[i]
		}
		bars = append(bars, b)
	}

	return &History{Symbol: symbol, Range: rng, Interval: interval, Bars: bars}, nil
}

// getJSON performs a GET and decodes the response, classifying failures.
func (c *YahooClient) getJSON(ctx context.Context, op, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &Error{Kind: KindPermanent, Op: op, Err: err}
	}
	// Yahoo rejects requests without a browser-ish user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; marketgate/1.0)")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return &Error{Kind: KindPermanent, Op: op, Err: ctx.Err()}
		}
		// Network-level failures (timeouts, resets) are worth a retry.
		return &Error{Kind: KindTransient, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &Error{Kind: KindTransient, Op: op, Err: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests || isThrottleBody(body) {
		c.logger.Warn("upstream throttled", "op", op, "status", resp.StatusCode)
		return &Error{Kind: KindTransient, Op: op, Err: fmt.Errorf("throttled: status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return &Error{Kind: KindPermanent, Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		// Yahoo returns HTML or truncated garbage instead of JSON after
		// throttling a client, without always setting 429.
		return &Error{Kind: KindTransient, Op: op, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return nil
}

// isThrottleBody matches the textual throttle markers Yahoo emits on
// otherwise unremarkable status codes.
func isThrottleBody(body []byte) bool {
	if len(body) > 512 {
		body = body[:512]
	}
	s := strings.ToLower(string(body))
	return strings.Contains(s, "too many requests") || strings.Contains(s, "rate limit")
}
