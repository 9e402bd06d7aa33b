package ratelimit

import (
	"context"
	"time"
)

// Limiter 判断某个键是否还能继续请求。
// 被拒绝时返回建议的重试等待时间。
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// Settings 描述每个键在 Every 时间内最多 Burst 次请求。
type Settings struct {
	Burst int
	Every time.Duration
}

func (s Settings) normalized() Settings {
	if s.Burst <= 0 {
		s.Burst = 5
	}
	if s.Every <= 0 {
		s.Every = time.Minute
	}
	return s
}
