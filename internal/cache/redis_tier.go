package cache

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"

	"github.com/apex-build/corebuild/internal/logging"
)

// RedisTier is an optional read-through layer in front of the embedded
// store (SPEC_FULL §4.9 expansion), feature-flagged off by default
// (Options.FeatureFlags.RedisCacheTier). A miss here always falls back to
// the embedded store; a hit there is written back here so the next build
// (possibly on a different worker) can skip the local store entirely.
type RedisTier struct {
	client *redis.Client
}

// NewRedisTier dials addr and returns a tier wrapping it.
func NewRedisTier(addr string) *RedisTier {
	return &RedisTier{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Get returns the cached bytes for key, or ok=false on a miss or error.
func (r *RedisTier) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.S().Debugw("cache: redis tier read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

// Set writes key to the redis tier; failures are logged, not propagated —
// this tier is an optimization, and the embedded store remains the source
// of truth.
func (r *RedisTier) Set(ctx context.Context, key string, data []byte) {
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		logging.S().Debugw("cache: redis tier write failed", "key", key, "error", err)
	}
}

// Close releases the underlying connection pool.
func (r *RedisTier) Close() error {
	return r.client.Close()
}
