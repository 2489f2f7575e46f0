// Package api exposes the gateway's HTTP surface: stock lookup endpoints
// over the admission-controlled service, plus the middleware stack.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/finsight/marketgate/internal/provider"
	"github.com/finsight/marketgate/internal/stocks"
)

// Handler serves the /api/v1 stock endpoints.
type Handler struct {
	svc    *stocks.Service
	logger *slog.Logger
}

func NewHandler(svc *stocks.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register attaches the stock routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/stocks/search", h.handleSearch)
	mux.HandleFunc("GET /api/v1/stocks/{symbol}", h.handleInfo)
	mux.HandleFunc("GET /api/v1/stocks/{symbol}/history", h.handleHistory)
	mux.HandleFunc("GET /api/v1/indices/{index}", h.handleIndex)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSONError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	results := h.svc.Search(r.Context(), query)
	if results == nil {
		results = []provider.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": results,
	})
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))
	if symbol == "" {
		writeJSONError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	quote, ok := h.svc.Info(r.Context(), symbol)
	if !ok {
		writeUnavailable(w)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))
	if symbol == "" {
		writeJSONError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	rng := r.URL.Query().Get("range")
	if rng == "" {
		rng = "1mo"
	}
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "1d"
	}
	if !validRanges[rng] {
		writeJSONError(w, http.StatusBadRequest, "invalid range")
		return
	}
	if !validIntervals[interval] {
		writeJSONError(w, http.StatusBadRequest, "invalid interval")
		return
	}

	history, ok := h.svc.History(r.Context(), symbol, rng, interval)
	if !ok {
		writeUnavailable(w)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	index := r.PathValue("index")

	constituents, err := h.svc.Constituents(r.Context(), index)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"index":        strings.ToLower(index),
		"count":        len(constituents),
		"constituents": constituents,
	})
}

var validRanges = map[string]bool{
	"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true,
	"1y": true, "2y": true, "5y": true, "10y": true, "ytd": true, "max": true,
}

var validIntervals = map[string]bool{
	"1m": true, "2m": true, "5m": true, "15m": true, "30m": true,
	"60m": true, "90m": true, "1h": true, "1d": true, "5d": true,
	"1wk": true, "1mo": true, "3mo": true,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeUnavailable is the response for gate absence: the upstream could not
// produce data right now, whether from quota pressure, an open breaker, or
// exhausted retries.
func writeUnavailable(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"error": "market data temporarily unavailable, try again later",
	})
}
