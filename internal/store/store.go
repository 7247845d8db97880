package store

import (
	"context"
	"time"
)

// Kind distinguishes the two shapes a stored value can take.
type Kind int

const (
	// KindString is an opaque serialized scalar.
	KindString Kind = iota
	// KindList is an ordered, append-friendly sequence of strings.
	KindList
)

// Value is the union of the two shapes. Copy operations must carry the
// shape across unchanged: a scalar stays a scalar, a list keeps its order.
type Value struct {
	Kind Kind
	Str  string
	List []string
}

// Store is the TTL key-value backend every session operation runs against.
// All state is addressed by a (session id, key) pair; session namespaces
// are fully isolated from each other except through CopySession.
//
// A ttl <= 0 means the entry never expires. Implementations must never
// return an entry, key, or session id whose expiry has passed.
type Store interface {
	// Get returns the live value under (sid, key). A missing or expired
	// entry is (zero, false, nil), not an error.
	Get(ctx context.Context, sid, key string) (Value, bool, error)

	// Set upserts a scalar value, replacing any prior value and expiry.
	Set(ctx context.Context, sid, key, value string, ttl time.Duration) error

	// Append appends items to the list under (sid, key), creating it if
	// absent, and resets the key's expiry.
	Append(ctx context.Context, sid, key string, items []string, ttl time.Duration) error

	// Delete removes the entry if present. Deleting a missing key is a no-op.
	Delete(ctx context.Context, sid, key string) error

	// Keys returns every live key under sid.
	Keys(ctx context.Context, sid string) ([]string, error)

	// SessionIDs returns every session id that has at least one live key.
	SessionIDs(ctx context.Context) ([]string, error)

	// Ping reports backend liveness. Callers bound it with a context
	// deadline; it must fail rather than hang.
	Ping(ctx context.Context) error

	// CopySession writes an equivalent entry under dst for every live key
	// under src, with the given ttl, and returns the number of keys copied.
	// Keys present only in dst are left untouched. A src with no live keys
	// copies nothing and is not an error.
	//
	// The copy is per-key best effort, not a snapshot: a writer racing the
	// copy may see an arbitrary interleaving of old and new values across
	// different keys in the result.
	CopySession(ctx context.Context, src, dst string, ttl time.Duration) (int, error)
}
