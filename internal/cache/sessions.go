package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/elearning/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionStore keeps the serialized user under session:<id>.
//
// Writes are last-writer-wins: there is no versioning, so two concurrent
// mutations of the same user (a password change racing a role update) may
// overwrite each other. Save sets a fresh TTL, Replace only rewrites an
// existing entry and keeps its TTL, Delete revokes.
type SessionStore struct {
	rdb    *goredis.Client
	prefix string
}

func NewSessionStore(c *Client) *SessionStore {
	return &SessionStore{rdb: c.rdb, prefix: "session:"}
}

func (s *SessionStore) Get(ctx context.Context, userID string) (*models.User, error) {
	raw, err := s.rdb.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("session get: %w", err)
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("session decode: %w", err)
	}
	return &u, nil
}

func (s *SessionStore) Save(ctx context.Context, u *models.User, ttl time.Duration) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("session encode: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(u.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("session set: %w", err)
	}
	return nil
}

// Replace overwrites the session only if one exists. It reports whether a
// session was written.
func (s *SessionStore) Replace(ctx context.Context, u *models.User) (bool, error) {
	raw, err := json.Marshal(u)
	if err != nil {
		return false, fmt.Errorf("session encode: %w", err)
	}
	err = s.rdb.SetArgs(ctx, s.key(u.ID), raw, goredis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("session replace: %w", err)
	}
	return true, nil
}

func (s *SessionStore) Delete(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}

func (s *SessionStore) key(userID string) string {
	return s.prefix + userID
}
