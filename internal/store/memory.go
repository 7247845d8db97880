package store

import (
	"context"
	"sync"
	"time"
)

type entryKey struct {
	sid string
	key string
}

type entry struct {
	val Value
	// zero means the entry never expires
	expires time.Time
}

func (e entry) alive(now time.Time) bool {
	return e.expires.IsZero() || e.expires.After(now)
}

// MemoryStore is a map-backed Store with lazy TTL expiry: expired entries
// are evicted when a read or enumeration observes them, never by a
// background sweep. Intended for single-instance deployments and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[entryKey]entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[entryKey]entry),
	}
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// read returns the live entry under k, evicting it first if expired.
// Callers must hold the write lock.
func (m *MemoryStore) read(k entryKey, now time.Time) (entry, bool) {
	e, ok := m.data[k]
	if !ok {
		return entry{}, false
	}
	if !e.alive(now) {
		delete(m.data, k)
		return entry{}, false
	}
	return e, true
}

func (m *MemoryStore) Get(_ context.Context, sid, key string) (Value, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.read(entryKey{sid, key}, time.Now())
	if !ok {
		return Value{}, false, nil
	}
	return e.val, true, nil
}

func (m *MemoryStore) Set(_ context.Context, sid, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[entryKey{sid, key}] = entry{
		val:     Value{Kind: KindString, Str: value},
		expires: expiry(time.Now(), ttl),
	}
	return nil
}

func (m *MemoryStore) Append(_ context.Context, sid, key string, items []string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	k := entryKey{sid, key}

	var list []string
	if e, ok := m.read(k, now); ok && e.val.Kind == KindList {
		list = e.val.List
	}
	list = append(list, items...)

	m.data[k] = entry{
		val:     Value{Kind: KindList, List: list},
		expires: expiry(now, ttl),
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sid, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, entryKey{sid, key})
	return nil
}

func (m *MemoryStore) Keys(_ context.Context, sid string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var keys []string
	for k, e := range m.data {
		if k.sid != sid {
			continue
		}
		if !e.alive(now) {
			delete(m.data, k)
			continue
		}
		keys = append(keys, k.key)
	}
	return keys, nil
}

func (m *MemoryStore) SessionIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	seen := make(map[string]bool)
	for k, e := range m.data {
		if !e.alive(now) {
			delete(m.data, k)
			continue
		}
		seen[k.sid] = true
	}
	ids := make([]string, 0, len(seen))
	for sid := range seen {
		ids = append(ids, sid)
	}
	return ids, nil
}

func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}

func (m *MemoryStore) CopySession(_ context.Context, src, dst string, ttl time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	expires := expiry(now, ttl)

	copied := 0
	for k, e := range m.data {
		if k.sid != src {
			continue
		}
		if !e.alive(now) {
			delete(m.data, k)
			continue
		}
		val := e.val
		if val.Kind == KindList {
			// lists are copied, never aliased between sessions
			val.List = append([]string(nil), e.val.List...)
		}
		m.data[entryKey{dst, k.key}] = entry{val: val, expires: expires}
		copied++
	}
	return copied, nil
}
