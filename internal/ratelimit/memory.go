package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	tokens   float64
	last     time.Time
	lastSeen time.Time
}

// Memory implements a token bucket limiter keyed by client identifier.
type Memory struct {
	mu         sync.Mutex
	clients    map[string]*bucket
	maxTokens  float64
	refillRate float64
	ttl        time.Duration
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewMemory 构造进程内令牌桶，Burst 个令牌在 Every 时间内匀速恢复。
func NewMemory(settings Settings) *Memory {
	s := settings.normalized()
	rl := &Memory{
		clients:    make(map[string]*bucket),
		maxTokens:  float64(s.Burst),
		refillRate: float64(s.Burst) / s.Every.Seconds(),
		ttl:        s.Every * 2,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	ticker := time.NewTicker(rl.ttl)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.pruneStale()
			case <-rl.stop:
				return
			}
		}
	}()

	return rl
}

// Close 停止后台清理协程。
func (rl *Memory) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow consumes a token for the provided key if possible.
func (rl *Memory) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	if key == "" {
		key = "unknown"
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	client, ok := rl.clients[key]
	if !ok {
		client = &bucket{
			tokens:   rl.maxTokens,
			last:     now,
			lastSeen: now,
		}
		rl.clients[key] = client
	}

	elapsed := now.Sub(client.last).Seconds()
	if elapsed > 0 {
		client.tokens += elapsed * rl.refillRate
		if client.tokens > rl.maxTokens {
			client.tokens = rl.maxTokens
		}
		client.last = now
	}
	client.lastSeen = now

	if client.tokens < 1 {
		wait := time.Duration((1 - client.tokens) / rl.refillRate * float64(time.Second))
		return false, wait.Round(time.Millisecond), nil
	}

	client.tokens -= 1
	return true, 0, nil
}

func (rl *Memory) pruneStale() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, client := range rl.clients {
		if now.Sub(client.lastSeen) > rl.ttl {
			delete(rl.clients, key)
		}
	}
}
