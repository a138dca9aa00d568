// Package session stores the gateway's per-user state: the upstream session
// token and a read-only profile snapshot. This is the only client-side
// persistence the gateway keeps.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("session not found")

// Session is the identity handed to components that need the current user.
// Handlers receive it injected through the request context, never through
// globals.
type Session struct {
	Token  string `json:"token"` // upstream session credential
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func sessionKey(sid string) string {
	return "session:" + sid
}

// Create stores the session under a fresh opaque ID and returns that ID.
func (s *Store) Create(ctx context.Context, sess Session) (string, error) {
	raw, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	sid := uuid.NewString()
	if err := s.rdb.Set(ctx, sessionKey(sid), raw, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return sid, nil
}

// Get loads a session and slides its expiry.
func (s *Store) Get(ctx context.Context, sid string) (*Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(sid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	if err := s.rdb.Expire(ctx, sessionKey(sid), s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("refresh session ttl: %w", err)
	}
	return &sess, nil
}

func (s *Store) Delete(ctx context.Context, sid string) error {
	if err := s.rdb.Del(ctx, sessionKey(sid)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
