package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"weather-dashboard/internal/config"
)

// Backend 为按源隔离的键值后端。
type Backend interface {
	Get(ctx context.Context, origin, key string) (string, bool, error)
	Set(ctx context.Context, origin, key, value string) error
	Remove(ctx context.Context, origin, key string) error
	Reset(ctx context.Context) error
	Close() error
}

// Scoped 把后端固定到一个源上，满足刷新协调器的存储端口。
type Scoped struct {
	b      Backend
	origin string
}

// Scope 返回 origin 下的键值视图。
func Scope(b Backend, origin string) *Scoped {
	return &Scoped{b: b, origin: origin}
}

func (s *Scoped) Origin() string { return s.origin }

func (s *Scoped) Get(ctx context.Context, key string) (string, bool, error) {
	return s.b.Get(ctx, s.origin, key)
}

func (s *Scoped) Set(ctx context.Context, key, value string) error {
	return s.b.Set(ctx, s.origin, key, value)
}

func (s *Scoped) Remove(ctx context.Context, key string) error {
	return s.b.Remove(ctx, s.origin, key)
}

// Origin 返回 scheme://host，与浏览器的同源划分一致。
func Origin(u *url.URL) string {
	if u == nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// Open 按 STORAGE.type 打开后端。
func Open(ctx context.Context, c config.Storage) (Backend, error) {
	switch c.Type {
	case "", "sqlite":
		return OpenSQLite(c.DSN)
	case "redis":
		return OpenRedis(ctx, RedisOptions{
			Addr:      c.Redis.Addr,
			Password:  c.Redis.Password,
			DB:        c.Redis.DB,
			Namespace: c.Redis.Namespace,
			Timeout:   c.Redis.Timeout,
		})
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Type)
	}
}
