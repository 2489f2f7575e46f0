// Package gate is the single admission-controlled entry point for all
// upstream market-data calls. It combines a token bucket, a circuit
// breaker, a short-TTL dedup cache, a classified retry executor, and a
// strictly-sequential scheduler with mandatory inter-request pacing, so an
// arbitrary caller population can never burst the quota-constrained
// upstream provider.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Config holds the gate's admission and failure-handling policy. It is read
// once at construction and is deliberately not reloadable.
type Config struct {
	// RequestsPerPeriod is the token bucket capacity; Period is the time
	// over which the bucket fully refills.
	RequestsPerPeriod int
	Period            time.Duration

	// MaxConcurrent is informational only: the scheduler always enforces
	// exactly one in-flight operation.
	MaxConcurrent int

	// CacheTTL bounds how long deduplicated results are served.
	CacheTTL time.Duration

	// FailureThreshold consecutive transient failures open the breaker;
	// OpenTimeout is the cooldown before a half-open probe.
	FailureThreshold int
	OpenTimeout      time.Duration

	// PacingDelay is the mandatory sleep after every completed dispatch.
	PacingDelay time.Duration

	// MaxRetries bounds attempts per operation; RetryBackoffBase is the
	// first backoff delay, doubling per attempt (10 s → 10, 20, 40).
	MaxRetries       int
	RetryBackoffBase time.Duration

	// QueueCapacity bounds pending requests. A full queue fails fast.
	QueueCapacity int

	// DefaultWaitTimeout applies when Fetch is called with timeout 0.
	DefaultWaitTimeout time.Duration

	// BreakerRetryInterval is how long the scheduler sleeps between
	// breaker checks while the circuit is open.
	BreakerRetryInterval time.Duration

	// PollInterval is the scheduler's queue poll timeout.
	PollInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.RequestsPerPeriod == 0 {
		c.RequestsPerPeriod = 10
	}
	if c.Period == 0 {
		c.Period = time.Minute
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.OpenTimeout == 0 {
		c.OpenTimeout = 5 * time.Minute
	}
	if c.PacingDelay == 0 {
		c.PacingDelay = 3 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoffBase == 0 {
		c.RetryBackoffBase = 10 * time.Second
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = 256
	}
	if c.DefaultWaitTimeout == 0 {
		c.DefaultWaitTimeout = 2 * time.Minute
	}
	if c.BreakerRetryInterval == 0 {
		c.BreakerRetryInterval = 10 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = time.Second
	}
}

func (c *Config) validate() error {
	if c.RequestsPerPeriod < 1 {
		return fmt.Errorf("requests_per_period must be positive")
	}
	if c.Period <= 0 {
		return fmt.Errorf("period must be positive")
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure_threshold must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be positive")
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be positive")
	}
	return nil
}

// Gateway is the facade callers use. Construct one per process with New,
// start it before serving, and stop it on shutdown; it is not created
// implicitly on first use.
type Gateway struct {
	cfg     Config
	cache   *dedupCache
	breaker *circuitBreaker
	sched   *scheduler
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Gateway from cfg. Only construction can fail hard; every
// per-request failure mode downstream resolves to absence.
func New(cfg Config, logger *slog.Logger) (*Gateway, error) {
	return newWithClock(cfg, logger, systemClock{})
}

// newWithClock allows tests to drive bucket/breaker/cache time.
func newWithClock(cfg Config, logger *slog.Logger, clk clock) (*Gateway, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("gate config: %w", err)
	}

	breaker := newCircuitBreaker(cfg.FailureThreshold, cfg.OpenTimeout, clk, logger)
	cache := newDedupCache(clk)

	g := &Gateway{
		cfg:     cfg,
		cache:   cache,
		breaker: breaker,
		logger:  logger,
		sched: &scheduler{
			queue:    make(chan *queuedRequest, cfg.QueueCapacity),
			bucket:   newTokenBucket(cfg.RequestsPerPeriod, cfg.Period, clk),
			breaker:  breaker,
			cache:    cache,
			cacheTTL: cfg.CacheTTL,
			exec: &retryExecutor{
				maxRetries:  cfg.MaxRetries,
				backoffBase: cfg.RetryBackoffBase,
				breaker:     breaker,
				logger:      logger,
			},
			pacing:       cfg.PacingDelay,
			breakerRetry: cfg.BreakerRetryInterval,
			pollInterval: cfg.PollInterval,
			logger:       logger,
		},
	}

	logger.Info("gateway configured",
		"requests_per_period", cfg.RequestsPerPeriod,
		"period", cfg.Period,
		"max_concurrent", cfg.MaxConcurrent, // informational; dispatch is sequential
		"cache_ttl", cfg.CacheTTL,
		"failure_threshold", cfg.FailureThreshold,
		"open_timeout", cfg.OpenTimeout,
		"pacing_delay", cfg.PacingDelay,
		"max_retries", cfg.MaxRetries,
	)
	return g, nil
}

// Start launches the scheduler worker. Calling Start on a running gateway
// is a no-op.
func (g *Gateway) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	done := make(chan struct{})
	g.done = done
	go func() {
		defer close(done)
		g.sched.run(ctx)
	}()
}

// Stop signals the scheduler to exit and waits for it. An operation
// mid-flight is interrupted through its context; queued items that were
// never dequeued are abandoned and their callers unblock via wait timeouts.
func (g *Gateway) Stop() {
	g.mu.Lock()
	cancel, done := g.cancel, g.done
	g.cancel, g.done = nil, nil
	g.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Fetch returns the value for key, either from the dedup cache or by
// queueing op for sequential dispatch. It returns ok=false on caller
// timeout, a full queue, exhausted retries, or a permanent upstream
// failure; callers treat absence as "try again later".
//
// A caller timeout abandons only this caller's wait: the queued operation
// still runs and a later success populates the cache for subsequent calls.
func (g *Gateway) Fetch(ctx context.Context, key string, op Operation, waitTimeout time.Duration) (any, bool) {
	if v, ok := g.cache.get(key); ok {
		return v, true
	}

	req := &queuedRequest{
		key:        key,
		op:         op,
		result:     make(chan fetchResult, 1),
		enqueuedAt: time.Now(),
	}

	select {
	case g.sched.queue <- req:
	default:
		g.logger.Warn("request queue full, rejecting", "key", key)
		return nil, false
	}

	if waitTimeout <= 0 {
		waitTimeout = g.cfg.DefaultWaitTimeout
	}
	timer := time.NewTimer(waitTimeout)
	defer timer.Stop()

	select {
	case res := <-req.result:
		// The scheduler already cached a successful value at completion.
		if !res.ok {
			return nil, false
		}
		return res.value, true
	case <-timer.C:
		g.logger.Error("timed out waiting for upstream result", "key", key, "timeout", waitTimeout)
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

// BreakerState exposes the breaker state for health reporting.
func (g *Gateway) BreakerState() State {
	return g.breaker.currentState()
}

// QueueDepth reports the number of requests awaiting dispatch.
func (g *Gateway) QueueDepth() int {
	return len(g.sched.queue)
}
