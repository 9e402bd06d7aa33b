package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// Redis 是多实例共享的固定窗口限流器。
type Redis struct {
	client   redis.UniversalClient
	settings Settings
	prefix   string
	now      func() time.Time
}

// NewRedisFromURL 解析 redis:// URL 并校验连接。
func NewRedisFromURL(ctx context.Context, rawURL string, settings Settings) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "parse REDIS_URL")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrap(err, "ping redis")
	}
	return NewRedis(client, settings), nil
}

// NewRedis 使用已有客户端构造限流器。
func NewRedis(client redis.UniversalClient, settings Settings) *Redis {
	return &Redis{
		client:   client,
		settings: settings.normalized(),
		prefix:   "ctweb:ratelimit:",
		now:      time.Now,
	}
}

// Allow 在当前窗口内对键计数，超过 Burst 即拒绝。
func (r *Redis) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if key == "" {
		key = "unknown"
	}
	window := r.settings.Every
	now := r.now()
	slot := now.Truncate(window)
	redisKey := r.windowKey(key, slot)

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, window+time.Second)
		return nil
	})
	if err != nil {
		return false, 0, eris.Wrap(err, "redis rate limit")
	}

	if incr.Val() > int64(r.settings.Burst) {
		return false, slot.Add(window).Sub(now), nil
	}
	return true, 0, nil
}

// Close 关闭底层客户端。
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) windowKey(key string, slot time.Time) string {
	return r.prefix + key + ":" + slot.UTC().Format("20060102T150405")
}
