package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrAttemptsExceeded is returned once a key has seen MaxAttempts misses
// inside the lockout window. The stored value is gone at that point.
var ErrAttemptsExceeded = errors.New("code attempts exceeded")

// consumeIfMatch deletes KEYS[1] when it equals ARGV[1]. With ARGV[2] > 0,
// every miss increments KEYS[2] (expiring after ARGV[3] ms); reaching the
// limit burns the code, and the counter blocks any value until it expires.
//
// Returns 1 on a match, 0 on a miss, -1 when locked.
const consumeIfMatch = `
local max = tonumber(ARGV[2])
if max > 0 then
  local seen = tonumber(redis.call("GET", KEYS[2]) or "0")
  if seen >= max then
    redis.call("DEL", KEYS[1])
    return -1
  end
end
local v = redis.call("GET", KEYS[1])
if not v then
  return 0
end
if v == ARGV[1] then
  redis.call("DEL", KEYS[1], KEYS[2])
  return 1
end
if max > 0 then
  local n = redis.call("INCR", KEYS[2])
  if n == 1 then
    redis.call("PEXPIRE", KEYS[2], ARGV[3])
  end
  if n >= max then
    redis.call("DEL", KEYS[1])
    return -1
  end
end
return 0
`

// CodeStore holds short lived single-use values: reset codes and reset
// grants, keyed by user id.
type CodeStore struct {
	rdb            *goredis.Client
	prefix         string
	attemptsPrefix string

	// MaxAttempts of zero disables miss counting.
	MaxAttempts int
	Lockout     time.Duration
}

// NewResetCodeStore counts misses under reset_attempts:<id>. The counter
// outlives re-requested codes, so a new code does not buy new guesses.
func NewResetCodeStore(c *Client, maxAttempts int, lockout time.Duration) *CodeStore {
	if lockout <= 0 {
		lockout = 15 * time.Minute
	}
	return &CodeStore{
		rdb:            c.rdb,
		prefix:         "reset_code:",
		attemptsPrefix: "reset_attempts:",
		MaxAttempts:    maxAttempts,
		Lockout:        lockout,
	}
}

func NewResetGrantStore(c *Client) *CodeStore {
	return &CodeStore{rdb: c.rdb, prefix: "reset_grant:", attemptsPrefix: "reset_grant_attempts:"}
}

func (s *CodeStore) attemptsKey(userID string) string {
	return s.attemptsPrefix + userID
}

func (s *CodeStore) Save(ctx context.Context, userID, code string, ttl time.Duration) error {
	if userID == "" || code == "" {
		return errors.New("code store: empty key or value")
	}
	if err := s.rdb.Set(ctx, s.prefix+userID, code, ttl).Err(); err != nil {
		return fmt.Errorf("code save: %w", err)
	}
	return nil
}

// Consume atomically deletes the entry when it equals code. A second call
// with the same code reports false. Once the miss limit is hit it returns
// ErrAttemptsExceeded until the lockout expires.
func (s *CodeStore) Consume(ctx context.Context, userID, code string) (bool, error) {
	if code == "" {
		return false, nil
	}
	keys := []string{s.prefix + userID, s.attemptsKey(userID)}
	n, err := s.rdb.Eval(ctx, consumeIfMatch, keys, code, s.MaxAttempts, s.Lockout.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("code consume: %w", err)
	}
	switch n {
	case 1:
		return true, nil
	case -1:
		return false, ErrAttemptsExceeded
	}
	return false, nil
}

// Locked reports whether the miss limit for userID is currently reached.
func (s *CodeStore) Locked(ctx context.Context, userID string) (bool, error) {
	if s.MaxAttempts <= 0 {
		return false, nil
	}
	n, err := s.rdb.Get(ctx, s.attemptsKey(userID)).Int()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("code attempts: %w", err)
	}
	return n >= s.MaxAttempts, nil
}

func (s *CodeStore) Delete(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, s.prefix+userID).Err(); err != nil {
		return fmt.Errorf("code delete: %w", err)
	}
	return nil
}
