package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vikrantjain/mcp-high-availability/internal/store"
)

// Session binds a store, a session id, and a default TTL. It adds JSON
// (de)serialization so tool code exchanges structured values instead of
// raw strings. A Session holds no other state; create one per request.
type Session struct {
	store store.Store
	id    string
	ttl   time.Duration
}

func New(st store.Store, id string, ttl time.Duration) *Session {
	return &Session{store: st, id: id, ttl: ttl}
}

func (s *Session) ID() string {
	return s.id
}

// Get decodes the scalar stored under key into out. A missing, expired,
// list-shaped, or malformed value reports absent rather than failing, so
// callers fall back to their declared default.
func (s *Session) Get(ctx context.Context, key string, out any) (bool, error) {
	val, ok, err := s.store.Get(ctx, s.id, key)
	if err != nil {
		return false, fmt.Errorf("session: get %q: %w", key, err)
	}
	if !ok || val.Kind != store.KindString {
		return false, nil
	}
	if err := json.Unmarshal([]byte(val.Str), out); err != nil {
		return false, nil
	}
	return true, nil
}

// Set encodes v as JSON and stores it under key with the session's TTL.
func (s *Session) Set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session: marshal %q: %w", key, err)
	}
	if err := s.store.Set(ctx, s.id, key, string(data), s.ttl); err != nil {
		return fmt.Errorf("session: set %q: %w", key, err)
	}
	return nil
}

func (s *Session) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, s.id, key)
}

// Append adds items to the list stored under key, refreshing its TTL.
func (s *Session) Append(ctx context.Context, key string, items ...string) error {
	if err := s.store.Append(ctx, s.id, key, items, s.ttl); err != nil {
		return fmt.Errorf("session: append %q: %w", key, err)
	}
	return nil
}

// List returns the list stored under key, or an empty slice if absent or
// scalar-shaped.
func (s *Session) List(ctx context.Context, key string) ([]string, error) {
	val, ok, err := s.store.Get(ctx, s.id, key)
	if err != nil {
		return nil, fmt.Errorf("session: list %q: %w", key, err)
	}
	if !ok || val.Kind != store.KindList {
		return nil, nil
	}
	return val.List, nil
}

// Keys returns every live key for this session.
func (s *Session) Keys(ctx context.Context) ([]string, error) {
	return s.store.Keys(ctx, s.id)
}

// CopyFrom transplants all live state from a previous session into this
// one, stamping every copied key with the session's TTL. It returns the
// number of keys copied; an unknown or expired old session copies zero.
func (s *Session) CopyFrom(ctx context.Context, oldSID string) (int, error) {
	return s.store.CopySession(ctx, oldSID, s.id, s.ttl)
}
