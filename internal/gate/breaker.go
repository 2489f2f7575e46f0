package gate

import (
	"log/slog"
	"sync"
	"time"

	"github.com/finsight/marketgate/internal/metrics"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal operation; dispatches pass through.
	StateOpen                  // Upstream throttling detected; dispatches blocked.
	StateHalfOpen              // Probing; one request decides open vs closed.
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// circuitBreaker isolates a throttling upstream. It counts consecutive
// transient (rate-limit classified) failures and opens at the configured
// threshold; after openTimeout it half-opens and a single probe decides the
// next state. Empty results and permanent failures never touch it.
//
// The scheduler is the only mutator, but health and metrics readers observe
// the state concurrently, so the usual mutex applies.
type circuitBreaker struct {
	mu sync.Mutex

	state               State
	consecutiveFailures int
	openedAt            time.Time

	failureThreshold int
	openTimeout      time.Duration

	clock  clock
	logger *slog.Logger
}

func newCircuitBreaker(failureThreshold int, openTimeout time.Duration, clk clock, logger *slog.Logger) *circuitBreaker {
	return &circuitBreaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		openTimeout:      openTimeout,
		clock:            clk,
		logger:           logger,
	}
}

// allow reports whether a dispatch may proceed. In Open state the open
// timeout is checked and, once elapsed, the breaker half-opens as a side
// effect and the dispatch is allowed as the recovery probe.
func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if cb.clock.Now().Sub(cb.openedAt) >= cb.openTimeout {
			cb.transitionTo(StateHalfOpen)
			cb.consecutiveFailures = 0
			return true
		}
		return false
	default:
		return true
	}
}

// recordSuccess resets the failure streak and closes a half-open breaker.
func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
	if cb.state == StateHalfOpen {
		cb.transitionTo(StateClosed)
	}
}

// recordFailure records one transient-classified failure. Callers must not
// invoke it for empty results or permanent errors; that asymmetry is what
// makes the breaker a throttle detector rather than a general failure gauge.
func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.transitionTo(StateOpen)
		cb.openedAt = cb.clock.Now()
		return
	}

	cb.consecutiveFailures++
	cb.logger.Warn("transient upstream failure",
		"consecutive", cb.consecutiveFailures,
		"threshold", cb.failureThreshold,
	)
	if cb.consecutiveFailures >= cb.failureThreshold {
		cb.transitionTo(StateOpen)
		cb.openedAt = cb.clock.Now()
	}
}

// currentState returns the state without side effects.
func (cb *circuitBreaker) currentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// transitionTo changes state, emitting metrics and logging.
// Must be called with cb.mu held.
func (cb *circuitBreaker) transitionTo(newState State) {
	if cb.state == newState {
		return
	}

	from := cb.state
	cb.state = newState

	metrics.BreakerTransitions.WithLabelValues(from.String(), newState.String()).Inc()
	metrics.BreakerState.Set(float64(newState))

	cb.logger.Info("circuit breaker state change",
		"from", from.String(),
		"to", newState.String(),
	)
}
