package utils

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dopemusic/dopesite/config"
)

// NewRedisClient connects to the configured Redis and verifies it with a ping.
func NewRedisClient(cfg config.AppConfig) (*redis.Client, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rc, nil
}

// NewSessionStore prefers Redis when configured and falls back to memory.
func NewSessionStore(cfg config.AppConfig) SessionStore {
	if cfg.RedisHost == "" {
		return NewMemorySessionStore()
	}
	rc, err := NewRedisClient(cfg)
	if err != nil {
		Sugar.Warnf("redis unavailable, using in-memory sessions: %v", err)
		return NewMemorySessionStore()
	}
	return NewRedisSessionStore(rc)
}
