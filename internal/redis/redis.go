package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// pingTimeout bounds the construction-time readiness probe.
const pingTimeout = 2 * time.Second

// Client wraps the go-redis client backing the shared session store.
// New is the only place the service dials redis.
type Client struct {
	*goredis.Client
}

// New connects to the shared store and verifies it answers a ping, so a
// dead backend is rejected at startup instead of on the first session op.
func New(addr, password string) (*Client, error) {

	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}

	return &Client{Client: client}, nil

}
