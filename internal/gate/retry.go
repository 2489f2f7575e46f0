package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/finsight/marketgate/internal/metrics"
	"github.com/finsight/marketgate/internal/provider"
)

// Operation is one deferred upstream call. A nil result with a nil error
// means the upstream answered with nothing usable.
type Operation func(ctx context.Context) (any, error)

// retryExecutor runs one admitted operation and classifies each attempt:
//
//   - non-nil result:      success, breaker notified, returned immediately
//   - nil result, nil err: soft failure, backoff retry, breaker untouched
//   - transient error:     breaker failure recorded, backoff retry
//   - any other error:     absence immediately, no retry, breaker untouched
//
// Business errors never cross the gate boundary; callers see a value or
// absence.
type retryExecutor struct {
	maxRetries  int
	backoffBase time.Duration
	breaker     *circuitBreaker
	logger      *slog.Logger
}

// execute runs op with up to maxRetries attempts. The backoff before
// attempt n+1 is backoffBase << n (10 s, 20 s, 40 s at the default base).
func (e *retryExecutor) execute(ctx context.Context, op Operation) (any, bool) {
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		result, err := op(ctx)

		if err == nil && result != nil {
			e.breaker.recordSuccess()
			metrics.UpstreamRequests.WithLabelValues("success").Inc()
			return result, true
		}

		if err == nil {
			// Empty result: upstream may be silently throttling, but
			// without a classified error the breaker stays out of it.
			e.logger.Warn("empty upstream result",
				"attempt", attempt+1,
				"max_retries", e.maxRetries,
			)
			if attempt < e.maxRetries-1 && e.backoff(ctx, attempt, "empty") {
				continue
			}
			metrics.UpstreamRequests.WithLabelValues("empty").Inc()
			return nil, false
		}

		if provider.Kind(err) == provider.KindTransient {
			e.breaker.recordFailure()
			if attempt < e.maxRetries-1 && e.backoff(ctx, attempt, "transient") {
				continue
			}
			e.logger.Error("retries exhausted on transient failure", "error", err)
			metrics.UpstreamRequests.WithLabelValues("transient").Inc()
			return nil, false
		}

		// Permanent: not worth a retry and not the breaker's business.
		e.logger.Error("permanent upstream failure", "error", err)
		metrics.UpstreamRequests.WithLabelValues("permanent").Inc()
		return nil, false
	}
	return nil, false
}

// backoff sleeps the doubling delay for the given attempt. Returns false if
// the context ended during the sleep.
func (e *retryExecutor) backoff(ctx context.Context, attempt int, cause string) bool {
	delay := e.backoffBase << attempt
	e.logger.Warn("retrying upstream operation",
		"cause", cause,
		"attempt", attempt+1,
		"backoff", delay,
	)
	metrics.Retries.WithLabelValues(cause).Inc()
	return sleepCtx(ctx, delay)
}
