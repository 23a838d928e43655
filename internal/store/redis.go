package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	Addr, Password, Namespace string
	DB                        int
	Timeout                   time.Duration
}

// Redis 让多个进程或主机共享同一份刷新状态，相当于同源的多个标签页。
type Redis struct {
	rdb *redis.Client
	ns  string
}

// OpenRedis 连接并 PING 一次，失败时关闭客户端。
func OpenRedis(ctx context.Context, o RedisOptions) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  o.Timeout,
		ReadTimeout:  o.Timeout,
		WriteTimeout: o.Timeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", o.Addr, err)
	}
	return NewRedis(rdb, o.Namespace), nil
}

// NewRedis 包装已有客户端。
func NewRedis(rdb *redis.Client, namespace string) *Redis {
	if namespace == "" {
		namespace = "wxdash"
	}
	return &Redis{rdb: rdb, ns: namespace}
}

func (r *Redis) key(origin, key string) string {
	return fmt.Sprintf("%s:%s:%s", r.ns, origin, key)
}

func (r *Redis) Get(ctx context.Context, origin, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, r.key(origin, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", r.key(origin, key), err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, origin, key, value string) error {
	if err := r.rdb.Set(ctx, r.key(origin, key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key(origin, key), err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, origin, key string) error {
	if err := r.rdb.Del(ctx, r.key(origin, key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", r.key(origin, key), err)
	}
	return nil
}

// Reset 删除命名空间下的全部键。
func (r *Redis) Reset(ctx context.Context) error {
	iter := r.rdb.Scan(ctx, 0, r.ns+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %s: %w", r.ns, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *Redis) Close() error { return r.rdb.Close() }
