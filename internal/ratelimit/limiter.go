package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"

	"github.com/ZanzyTHEbar/scriptmatch/internal/monitoring"
)

// Config holds rate limiter configuration
type Config struct {
	AnalyzePerMin   int           // uploads per client IP per minute
	CleanupInterval time.Duration // how often idle fallback buckets are dropped
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		AnalyzePerMin:   30,
		CleanupInterval: 10 * time.Minute,
	}
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits through redis_rate when Redis is reachable and falls
// back to per-key token buckets otherwise.
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *RedisClient
	config       Config
	metrics      *monitoring.Metrics

	buckets   map[string]*bucket
	bucketsMu sync.Mutex

	stop chan struct{}
	once sync.Once
}

// NewRateLimiter creates a new rate limiter. redisClient may be nil.
func NewRateLimiter(redisClient *RedisClient, config Config, metrics *monitoring.Metrics) *RateLimiter {
	rl := &RateLimiter{
		redisClient: redisClient,
		config:      config,
		metrics:     metrics,
		buckets:     make(map[string]*bucket),
		stop:        make(chan struct{}),
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Info("Using in-memory rate limiting")
	}

	interval := config.CleanupInterval
	if interval <= 0 {
		interval = DefaultConfig().CleanupInterval
	}
	go rl.cleanup(interval)

	return rl
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

// AllowAnalyze checks the per-minute upload budget of one client IP
func (rl *RateLimiter) AllowAnalyze(ctx context.Context, ip string) (*Result, error) {
	return rl.allow(ctx, fmt.Sprintf("ratelimit:analyze:%s", ip), rl.config.AnalyzePerMin, time.Minute)
}

func (rl *RateLimiter) allow(ctx context.Context, key string, limit int, period time.Duration) (*Result, error) {
	if rl.redisLimiter != nil {
		result, err := rl.allowRedis(ctx, key, limit, period)
		if err == nil {
			return result, nil
		}
		slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
		if rl.metrics != nil {
			rl.metrics.IncrementRateLimitRedisError()
		}
	}

	if rl.metrics != nil {
		rl.metrics.IncrementRateLimitFallback()
	}
	return rl.allowFallback(key, limit, period), nil
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string, limit int, period time.Duration) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit,
		Burst:  limit,
		Period: period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      res.Limit.Rate,
		Remaining:  res.Remaining,
		ResetAt:    time.Now().Add(res.ResetAfter),
		RetryAfter: res.RetryAfter,
	}, nil
}

// allowFallback spends one token from the key's bucket. The bucket holds
// limit tokens and refills at limit per period.
func (rl *RateLimiter) allowFallback(key string, limit int, period time.Duration) *Result {
	now := time.Now()
	every := period / time.Duration(limit)

	rl.bucketsMu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), limit)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.bucketsMu.Unlock()

	result := &Result{Limit: limit}

	reservation := b.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		result.RetryAfter = delay
		result.ResetAt = now.Add(delay)
		return result
	}

	result.Allowed = true
	tokens := b.limiter.TokensAt(now)
	result.Remaining = max(int(tokens), 0)
	missing := float64(limit) - tokens
	result.ResetAt = now.Add(time.Duration(missing * float64(every)))
	return result
}

func (rl *RateLimiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.evictIdle(now, interval)
		}
	}
}

// evictIdle drops buckets untouched for longer than idle
func (rl *RateLimiter) evictIdle(now time.Time, idle time.Duration) int {
	rl.bucketsMu.Lock()
	defer rl.bucketsMu.Unlock()

	evicted := 0
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > idle {
			delete(rl.buckets, key)
			evicted++
		}
	}
	return evicted
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.bucketsMu.Lock()
	buckets := len(rl.buckets)
	rl.bucketsMu.Unlock()

	stats := map[string]interface{}{
		"redis_enabled":    rl.redisLimiter != nil,
		"fallback_buckets": buckets,
		"analyze_per_min":  rl.config.AnalyzePerMin,
	}
	if rl.redisClient.IsEnabled() {
		stats["redis_pool"] = rl.redisClient.GetPoolStats()
	}
	return stats
}
