package config

import (
	"os"
	"strconv"
	"time"
)

// Default session TTL is 30 minutes, matching the load balancer's
// stick-table expire so state and routing age out together.
const defaultSessionTTL = 1800 * time.Second

type Config struct {
	AppPort    string
	InstanceID string

	RedisAddr     string
	RedisPassword string

	SessionTTL time.Duration
}

func Load() Config {

	cfg := Config{

		AppPort:    os.Getenv("APP_PORT"),
		InstanceID: os.Getenv("INSTANCE_ID"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		SessionTTL: defaultSessionTTL,
	}

	if cfg.AppPort == "" {
		cfg.AppPort = "8080"
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = "unknown"
	}

	if raw := os.Getenv("SESSION_TTL_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			cfg.SessionTTL = time.Duration(secs) * time.Second
		}
	}

	return cfg

}
