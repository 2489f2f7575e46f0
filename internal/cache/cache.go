// Package cache provides the second-level result store used by the data
// services for longer-lived payloads (historical bars). Values are stored
// as JSON with a TTL. The store is an availability optimization: every
// method degrades to a miss or a no-op on backend trouble rather than
// failing the request.
package cache

import (
	"context"
	"time"
)

// Store is a TTL'd JSON key-value store.
type Store interface {
	// Get unmarshals the value for key into out. ok is false on a miss.
	Get(ctx context.Context, key string, out any) (ok bool)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value any, ttl time.Duration)

	// Delete removes key.
	Delete(ctx context.Context, key string)

	// Ping reports backend reachability, for readiness probes.
	Ping(ctx context.Context) error
}
