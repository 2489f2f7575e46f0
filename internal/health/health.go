// Package health serves the liveness and readiness endpoints.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/finsight/marketgate/internal/cache"
	"github.com/finsight/marketgate/internal/gate"
)

var livenessBody = []byte(`{"status":"ok"}` + "\n")

// Liveness answers /health. It never touches dependencies.
func Liveness() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(livenessBody) //nolint:errcheck
	})
}

// readyStatus is the /ready response payload.
type readyStatus struct {
	Status     string `json:"status"`
	Breaker    string `json:"breaker"`
	QueueDepth int    `json:"queue_depth"`
	Store      string `json:"store"`
}

// Readiness answers /ready by reporting the breaker state and probing the
// second-level store. Results are cached briefly so health probes cannot
// hammer the store.
type Readiness struct {
	gw    *gate.Gateway
	store cache.Store

	mu      sync.Mutex
	last    readyStatus
	checked time.Time
	maxAge  time.Duration
}

func NewReadiness(gw *gate.Gateway, store cache.Store) *Readiness {
	return &Readiness{gw: gw, store: store, maxAge: 2 * time.Second}
}

// ServeHTTP always answers 200: an open breaker or unreachable store
// degrades data freshness but the gateway keeps serving from cache. The
// body carries the detail for operators.
func (h *Readiness) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status) //nolint:errcheck
}

func (h *Readiness) check(ctx context.Context) readyStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	if time.Since(h.checked) < h.maxAge {
		return h.last
	}

	status := readyStatus{
		Status:     "ok",
		Breaker:    h.gw.BreakerState().String(),
		QueueDepth: h.gw.QueueDepth(),
		Store:      "ok",
	}
	if h.gw.BreakerState() == gate.StateOpen {
		status.Status = "degraded"
	}

	pingCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := h.store.Ping(pingCtx); err != nil {
		status.Store = "unreachable"
	}

	h.last = status
	h.checked = time.Now()
	return status
}
