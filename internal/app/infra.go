package app

import (
	"github.com/vikrantjain/mcp-high-availability/internal/config"
	"github.com/vikrantjain/mcp-high-availability/internal/logger"
	"github.com/vikrantjain/mcp-high-availability/internal/redis"
	"github.com/vikrantjain/mcp-high-availability/internal/store"
)

// setupInfra selects the session store backend: a shared redis store when
// REDIS_ADDR is configured, otherwise the process-local in-memory store.
// Everything above this point depends only on the store.Store contract.
func setupInfra(cfg config.Config) (store.Store, func() error, error) {
	if cfg.RedisAddr == "" {
		logger.Info("using in-memory session store", nil)
		return store.NewMemoryStore(), func() error { return nil }, nil
	}

	redisClient, err := redis.New(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("redis session store ready", map[string]any{
		"addr": cfg.RedisAddr,
	})

	return store.NewRedisStore(redisClient.Client), redisClient.Close, nil
}
