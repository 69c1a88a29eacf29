package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// failOnce increments KEYS[1], setting its expiry on the first miss.
const failOnce = `
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`

// AttemptCounter counts failed verifications per key, e.g. per activation
// ticket id.
type AttemptCounter struct {
	rdb    *goredis.Client
	prefix string
	window time.Duration
}

func NewActivationAttempts(c *Client, window time.Duration) *AttemptCounter {
	return &AttemptCounter{rdb: c.rdb, prefix: "activation_attempts:", window: window}
}

// Fail records a miss and returns the count inside the current window.
func (a *AttemptCounter) Fail(ctx context.Context, key string) (int, error) {
	n, err := a.rdb.Eval(ctx, failOnce, []string{a.prefix + key}, a.window.Milliseconds()).Int()
	if err != nil {
		return 0, fmt.Errorf("attempts fail: %w", err)
	}
	return n, nil
}

func (a *AttemptCounter) Count(ctx context.Context, key string) (int, error) {
	n, err := a.rdb.Get(ctx, a.prefix+key).Int()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("attempts count: %w", err)
	}
	return n, nil
}
