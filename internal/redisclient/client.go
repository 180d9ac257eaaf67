// Package redisclient owns the optional Redis connection shared by replicas
// for rate limiting.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

type Client struct {
	rdb  *redis.Client
	addr string
}

const ioTimeout = 2 * time.Second

// Connect dials Redis and pings it so a bad address fails at startup rather
// than on the first request.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	c := &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  ioTimeout,
			ReadTimeout:  ioTimeout,
			WriteTimeout: ioTimeout,
		}),
		addr: cfg.Addr,
	}

	if err := c.Ping(ctx); err != nil {
		_ = c.rdb.Close()
		return nil, err
	}

	return c, nil
}

// Ping doubles as the readiness check.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", c.addr, err)
	}
	return nil
}

// Scripter is what the rate limiter runs its Lua script against.
func (c *Client) Scripter() redis.Scripter {
	return c.rdb
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
