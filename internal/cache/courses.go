package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// CourseCache stores JSON course previews under course:<id>.
type CourseCache struct {
	rdb    *goredis.Client
	prefix string
}

func NewCourseCache(c *Client) *CourseCache {
	return &CourseCache{rdb: c.rdb, prefix: "course:"}
}

func (s *CourseCache) Get(ctx context.Context, id string, dst any) (bool, error) {
	raw, err := s.rdb.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("course cache get: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("course cache decode: %w", err)
	}
	return true, nil
}

func (s *CourseCache) Set(ctx context.Context, id string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("course cache encode: %w", err)
	}
	if err := s.rdb.Set(ctx, s.prefix+id, raw, ttl).Err(); err != nil {
		return fmt.Errorf("course cache set: %w", err)
	}
	return nil
}

func (s *CourseCache) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.prefix+id).Err(); err != nil {
		return fmt.Errorf("course cache delete: %w", err)
	}
	return nil
}
