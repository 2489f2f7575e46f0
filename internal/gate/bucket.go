package gate

import (
	"context"
	"time"

	"github.com/finsight/marketgate/internal/metrics"
)

// tokenBucket is the admission budget for upstream dispatches. It refills
// continuously from the wall clock and is capped at maxTokens.
//
// The scheduler goroutine is the only writer, so no locking is needed; the
// exported gauges are updated from that same goroutine.
type tokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	clock      clock
}

// newTokenBucket sizes the bucket at requestsPerPeriod tokens refilling over
// period. The bucket starts with exactly one token so the first request
// dispatches immediately and rate limiting engages from the second onward.
func newTokenBucket(requestsPerPeriod int, period time.Duration, clk clock) *tokenBucket {
	return &tokenBucket{
		tokens:     1,
		maxTokens:  float64(requestsPerPeriod),
		refillRate: float64(requestsPerPeriod) / period.Seconds(),
		lastRefill: clk.Now(),
		clock:      clk,
	}
}

// refill credits tokens for the time elapsed since the last refill,
// clamped to maxTokens.
func (b *tokenBucket) refill() {
	now := b.clock.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = min(b.maxTokens, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now
}

// awaitToken blocks until at least one token is available or ctx ends.
// Sleeps are bounded to one second so shutdown stays responsive.
func (b *tokenBucket) awaitToken(ctx context.Context) error {
	for {
		b.refill()
		if b.tokens >= 1 {
			return nil
		}
		wait := time.Duration((1 - b.tokens) / b.refillRate * float64(time.Second))
		if wait > time.Second {
			wait = time.Second
		}
		if !sleepCtx(ctx, wait) {
			return ctx.Err()
		}
	}
}

// consume spends one token. Called by the scheduler immediately before
// dispatching a request, after awaitToken reported availability.
func (b *tokenBucket) consume() {
	b.tokens--
	if b.tokens < 0 {
		b.tokens = 0
	}
	metrics.Tokens.Set(b.tokens)
}

// level returns the current token count (after a refill).
func (b *tokenBucket) level() float64 {
	b.refill()
	return b.tokens
}
