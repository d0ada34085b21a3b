// Package ratelimit bounds how often a user may call expensive endpoints.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether a request for key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
	Close() error
}

// Memory implements a per-key sliding-window limiter held in process memory.
type Memory struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	done     chan struct{}
	once     sync.Once
}

// NewMemory creates a new in-memory limiter and starts the background eviction goroutine.
func NewMemory(limit int, window time.Duration) *Memory {
	m := &Memory{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		done:     make(chan struct{}),
	}
	m.startEviction()
	return m
}

// Allow checks if a request is allowed for the given key.
func (m *Memory) Allow(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-m.window)

	var recent []time.Time
	for _, t := range m.requests[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= m.limit {
		m.requests[key] = recent
		return false
	}

	m.requests[key] = append(recent, now)
	return true
}

// Close stops the eviction goroutine.
func (m *Memory) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

// startEviction runs a background goroutine that periodically removes expired
// keys from the requests map, preventing unbounded memory growth.
func (m *Memory) startEviction() {
	go func() {
		ticker := time.NewTicker(m.window)
		defer ticker.Stop()
		for {
			select {
			case <-m.done:
				return
			case <-ticker.C:
			}
			m.mu.Lock()
			cutoff := time.Now().Add(-m.window)
			for key, times := range m.requests {
				var fresh []time.Time
				for _, t := range times {
					if t.After(cutoff) {
						fresh = append(fresh, t)
					}
				}
				if len(fresh) == 0 {
					delete(m.requests, key)
				} else {
					m.requests[key] = fresh
				}
			}
			m.mu.Unlock()
		}
	}()
}

// Redis implements a fixed-window limiter shared by every server instance.
type Redis struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewRedis connects to redisURL and verifies the connection.
func NewRedis(ctx context.Context, redisURL string, limit int, window time.Duration, logger *slog.Logger) (*Redis, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Redis{
		client: client,
		prefix: "ratelimit:tutor:",
		limit:  limit,
		window: window,
		now:    time.Now,
		logger: logger,
	}, nil
}

// windowKey names the counter for key in the window containing t.
func (r *Redis) windowKey(key string, t time.Time) string {
	bucket := t.UnixNano() / int64(r.window)
	return fmt.Sprintf("%s%s:%d", r.prefix, key, bucket)
}

// Allow increments the key's counter for the current window. Redis failures
// let the request through so an outage of the limiter never blocks the tutor.
func (r *Redis) Allow(ctx context.Context, key string) bool {
	k := r.windowKey(key, r.now())

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("rate limiter unavailable, allowing request", "key", key, "error", err)
		return true
	}
	return incr.Val() <= int64(r.limit)
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
