package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paycollect/loan-notifier/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultRatePerSec int64 = 50
	backoffStep             = 10 * time.Millisecond
	backoffMax              = 50 * time.Millisecond
	windowSeconds           = 1
)

var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*SendRateLimiter)(nil)

// SendRateLimiter throttles outbound notifications per channel with a
// fixed one second window shared across all process instances.
type SendRateLimiter struct {
	client     *goredis.Client
	ratePerSec int64
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
	script     *goredis.Script
}

func NewSendRateLimiter(client *goredis.Client, ratePerSec int) (*SendRateLimiter, error) {
	return newSendRateLimiter(
		client,
		int64(ratePerSec),
		time.Now,
		sleepWithContext,
	)
}

func newSendRateLimiter(
	client *goredis.Client,
	ratePerSec int64,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*SendRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ratePerSec <= 0 {
		ratePerSec = defaultRatePerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &SendRateLimiter{
		client:     client,
		ratePerSec: ratePerSec,
		now:        nowFn,
		sleep:      sleepFn,
		script:     allowScript,
	}, nil
}

func (r *SendRateLimiter) Allow(ctx context.Context, channel string) (bool, error) {
	if r == nil || r.client == nil || r.script == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	normalizedChannel := strings.ToLower(strings.TrimSpace(channel))
	if normalizedChannel == "" {
		return false, fmt.Errorf("channel is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key := fmt.Sprintf("notifier:ratelimit:%s:%d", normalizedChannel, r.now().UTC().Unix())
	result, err := r.script.Run(ctx, r.client, []string{key}, r.ratePerSec, windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	return result == 1, nil
}

func (r *SendRateLimiter) Wait(ctx context.Context, channel string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	backoff := backoffStep
	for {
		allowed, err := r.Allow(ctx, channel)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := r.sleep(ctx, backoff); err != nil {
			return err
		}

		backoff += backoffStep
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
