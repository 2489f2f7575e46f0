package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/finsight/marketgate/internal/metrics"
)

// queuedRequest is one pending upstream call. The result channel is
// 1-buffered so the scheduler's completion send never blocks, even when the
// caller has already abandoned its wait.
type queuedRequest struct {
	key        string
	op         Operation
	result     chan fetchResult
	enqueuedAt time.Time
}

type fetchResult struct {
	value any
	ok    bool
}

// scheduler drains the FIFO queue with exactly one upstream operation in
// flight at any time. Serialized access is the property the whole gate
// exists to provide: the upstream penalizes bursts far harder than a slow
// steady stream.
type scheduler struct {
	queue   chan *queuedRequest
	bucket  *tokenBucket
	breaker *circuitBreaker
	exec    *retryExecutor

	// Results are cached at completion time, not by the waiting caller:
	// a caller that times out abandons only its own wait, and the value
	// must still serve later callers.
	cache    *dedupCache
	cacheTTL time.Duration

	pacing       time.Duration // mandatory delay after every completed item
	breakerRetry time.Duration // re-check interval while the breaker is open
	pollInterval time.Duration // queue poll timeout, keeps shutdown responsive
	logger       *slog.Logger
}

// run is the long-lived worker loop. It exits when ctx is canceled; queued
// items that were never dequeued are abandoned and their callers unblock via
// their own wait timeouts.
func (s *scheduler) run(ctx context.Context) {
	s.logger.Info("scheduler started", "queue_capacity", cap(s.queue))

	for ctx.Err() == nil {
		// Breaker gate: while open, hold the whole queue. Nothing is
		// dequeued, so FIFO order survives the outage.
		if !s.breaker.allow() {
			s.logger.Warn("circuit breaker open, delaying queue", "retry_in", s.breakerRetry)
			sleepCtx(ctx, s.breakerRetry)
			continue
		}

		if err := s.bucket.awaitToken(ctx); err != nil {
			break
		}

		req, ok := s.pop(ctx)
		if !ok {
			continue
		}

		// Token spent immediately before dispatch, never on empty polls.
		s.bucket.consume()
		s.dispatch(ctx, req)

		// Mandatory pacing after every item, success or failure,
		// independent of token accounting.
		sleepCtx(ctx, s.pacing)
	}

	s.logger.Info("scheduler stopped")
}

// pop waits up to pollInterval for the next request.
func (s *scheduler) pop(ctx context.Context) (*queuedRequest, bool) {
	timer := time.NewTimer(s.pollInterval)
	defer timer.Stop()
	select {
	case req := <-s.queue:
		metrics.QueueDepth.Set(float64(len(s.queue)))
		return req, true
	case <-timer.C:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

// dispatch runs one request through the retry executor and completes its
// result slot.
func (s *scheduler) dispatch(ctx context.Context, req *queuedRequest) {
	metrics.InFlight.Inc()
	start := time.Now()

	value, ok := s.exec.execute(ctx, req.op)

	metrics.UpstreamDuration.Observe(time.Since(start).Seconds())
	metrics.InFlight.Dec()

	if ok {
		s.cache.put(req.key, value, s.cacheTTL)
	}
	req.result <- fetchResult{value: value, ok: ok}

	s.logger.Debug("request completed",
		"ok", ok,
		"queued", time.Since(req.enqueuedAt),
		"upstream", time.Since(start),
	)
}
