// Package cache holds read-through caches for quiz API responses.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Cache stores opaque values by key. Get reports a miss with ok=false.
type Cache interface {
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

type Options struct {
	Driver        string // memory|redis|none
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// New builds the backend named by o.Driver. Redis is pinged before use.
func New(ctx context.Context, o Options) (Cache, error) {
	switch strings.ToLower(o.Driver) {
	case "", "memory":
		return NewMemory(), nil
	case "none":
		return None{}, nil
	case "redis":
		r := NewRedis(o.RedisAddr, o.RedisPassword, o.RedisDB)
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("cache: redis %s: %w", o.RedisAddr, err)
		}
		return r, nil
	}
	return nil, fmt.Errorf("cache: unsupported driver: %s", o.Driver)
}

// None never stores anything.
type None struct{}

func (None) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (None) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (None) Delete(context.Context, ...string) error                  { return nil }
func (None) DeletePrefix(context.Context, string) error               { return nil }
