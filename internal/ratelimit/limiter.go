package ratelimit

import "context"

// RateLimiter caps how many notifications a channel may send per second.
// Allow answers immediately, Wait blocks until a slot frees up or the
// context is cancelled. Implementations must be safe for concurrent use
// by multiple workers.
type RateLimiter interface {
	Allow(ctx context.Context, channel string) (bool, error)
	Wait(ctx context.Context, channel string) error
}
