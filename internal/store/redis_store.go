package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "mcp:session"

// RedisStore is the shared Store for a multi-instance fleet. Each
// (sid, key) pair maps to one namespaced redis key, so expiry is native
// and every instance observes the same state.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// fqkey relies on sids never containing ':' for namespace isolation;
// issued ids are uuids and the transport rejects foreign ids carrying it.
func fqkey(sid, key string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, sid, key)
}

func sidPrefix(sid string) string {
	return fmt.Sprintf("%s:%s:", keyPrefix, sid)
}

func (r *RedisStore) Get(ctx context.Context, sid, key string) (Value, bool, error) {
	fqk := fqkey(sid, key)

	kind, err := r.client.Type(ctx, fqk).Result()
	if err != nil {
		return Value{}, false, fmt.Errorf("store: type %s: %w", fqk, err)
	}

	switch kind {
	case "string":
		val, err := r.client.Get(ctx, fqk).Result()
		if err == redis.Nil {
			return Value{}, false, nil // expired between TYPE and GET
		}
		if err != nil {
			return Value{}, false, fmt.Errorf("store: get %s: %w", fqk, err)
		}
		return Value{Kind: KindString, Str: val}, true, nil
	case "list":
		items, err := r.client.LRange(ctx, fqk, 0, -1).Result()
		if err != nil {
			return Value{}, false, fmt.Errorf("store: lrange %s: %w", fqk, err)
		}
		if len(items) == 0 {
			return Value{}, false, nil
		}
		return Value{Kind: KindList, List: items}, true, nil
	default:
		return Value{}, false, nil
	}
}

func (r *RedisStore) Set(ctx context.Context, sid, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, fqkey(sid, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("store: set %s: %w", fqkey(sid, key), err)
	}
	return nil
}

func (r *RedisStore) Append(ctx context.Context, sid, key string, items []string, ttl time.Duration) error {
	if len(items) == 0 {
		return nil
	}
	fqk := fqkey(sid, key)

	args := make([]interface{}, len(items))
	for i, it := range items {
		args[i] = it
	}

	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, fqk, args...)
	if ttl > 0 {
		pipe.Expire(ctx, fqk, ttl)
	} else {
		pipe.Persist(ctx, fqk)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: rpush %s: %w", fqk, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, sid, key string) error {
	if err := r.client.Del(ctx, fqkey(sid, key)).Err(); err != nil {
		return fmt.Errorf("store: del %s: %w", fqkey(sid, key), err)
	}
	return nil
}

func (r *RedisStore) Keys(ctx context.Context, sid string) ([]string, error) {
	prefix := sidPrefix(sid)

	var keys []string
	iter := r.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("store: scan %s: %w", prefix, err)
	}
	return keys, nil
}

func (r *RedisStore) SessionIDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)

	iter := r.client.Scan(ctx, 0, keyPrefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		// mcp:session:<sid>:<key>
		parts := strings.SplitN(iter.Val(), ":", 4)
		if len(parts) >= 3 {
			seen[parts[2]] = true
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("store: scan sessions: %w", err)
	}

	ids := make([]string, 0, len(seen))
	for sid := range seen {
		ids = append(ids, sid)
	}
	return ids, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// CopySession scans the source namespace and replays each live key into the
// destination namespace with a fresh ttl. The scan-then-copy is not atomic;
// writers racing the copy fall under the best-effort contract on Store.
func (r *RedisStore) CopySession(ctx context.Context, src, dst string, ttl time.Duration) (int, error) {
	prefix := sidPrefix(src)
	if ttl < 0 {
		ttl = 0
	}

	copied := 0
	iter := r.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		oldKey := iter.Val()
		newKey := fqkey(dst, strings.TrimPrefix(oldKey, prefix))

		kind, err := r.client.Type(ctx, oldKey).Result()
		if err != nil {
			return copied, fmt.Errorf("store: type %s: %w", oldKey, err)
		}

		switch kind {
		case "string":
			val, err := r.client.Get(ctx, oldKey).Result()
			if err == redis.Nil {
				continue // expired mid-scan
			}
			if err != nil {
				return copied, fmt.Errorf("store: get %s: %w", oldKey, err)
			}
			if err := r.client.Set(ctx, newKey, val, ttl).Err(); err != nil {
				return copied, fmt.Errorf("store: set %s: %w", newKey, err)
			}
			copied++
		case "list":
			items, err := r.client.LRange(ctx, oldKey, 0, -1).Result()
			if err != nil {
				return copied, fmt.Errorf("store: lrange %s: %w", oldKey, err)
			}
			if len(items) == 0 {
				continue
			}
			args := make([]interface{}, len(items))
			for i, it := range items {
				args[i] = it
			}
			pipe := r.client.TxPipeline()
			pipe.Del(ctx, newKey)
			pipe.RPush(ctx, newKey, args...)
			if ttl > 0 {
				pipe.Expire(ctx, newKey, ttl)
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return copied, fmt.Errorf("store: copy list %s: %w", newKey, err)
			}
			copied++
		}
	}
	if err := iter.Err(); err != nil {
		return copied, fmt.Errorf("store: scan %s: %w", prefix, err)
	}
	return copied, nil
}
