package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/scriptmatch/internal/monitoring"
)

func newFallbackLimiter(t *testing.T, perMin int) (*RateLimiter, *monitoring.Metrics) {
	t.Helper()
	metrics := monitoring.NewMetrics()
	rl := NewRateLimiter(nil, Config{AnalyzePerMin: perMin, CleanupInterval: time.Hour}, metrics)
	t.Cleanup(rl.Close)
	return rl, metrics
}

func TestFallbackAllowsUpToLimit(t *testing.T) {
	rl, metrics := newFallbackLimiter(t, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := rl.AllowAnalyze(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i+1)
		assert.Equal(t, 5, res.Limit)
		assert.Equal(t, 4-i, res.Remaining)
	}

	res, err := rl.AllowAnalyze(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, res.RetryAfter, 12*time.Second)

	// other clients have their own bucket
	res, err = rl.AllowAnalyze(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	assert.Equal(t, int64(7), metrics.RateLimitFallbacks)
}

func TestEvictIdle(t *testing.T) {
	rl, _ := newFallbackLimiter(t, 5)
	_, _ = rl.AllowAnalyze(context.Background(), "10.0.0.1")
	_, _ = rl.AllowAnalyze(context.Background(), "10.0.0.2")

	assert.Zero(t, rl.evictIdle(time.Now(), time.Minute))
	assert.Equal(t, 2, rl.evictIdle(time.Now().Add(2*time.Minute), time.Minute))
	assert.Equal(t, 0, rl.GetStats()["fallback_buckets"])
}

func TestRedisFailureFallsBack(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })

	metrics := monitoring.NewMetrics()
	rl := &RateLimiter{
		redisLimiter: redis_rate.NewLimiter(client),
		redisClient:  &RedisClient{client: client, enabled: true},
		config:       Config{AnalyzePerMin: 3},
		metrics:      metrics,
		buckets:      make(map[string]*bucket),
		stop:         make(chan struct{}),
	}

	res, err := rl.AllowAnalyze(context.Background(), "10.0.0.9")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), metrics.RateLimitRedisErrors)
	assert.Equal(t, int64(1), metrics.RateLimitFallbacks)
}

func TestNewRedisClient(t *testing.T) {
	disabled, err := NewRedisClient(context.Background(), "", "", 0)
	require.NoError(t, err)
	assert.False(t, disabled.IsEnabled())
	assert.NoError(t, disabled.Close())
	assert.Equal(t, false, disabled.GetPoolStats()["enabled"])

	unreachable, err := NewRedisClient(context.Background(), "127.0.0.1:1", "", 0)
	assert.Error(t, err)
	assert.False(t, unreachable.IsEnabled())
	assert.Error(t, unreachable.HealthCheck(context.Background()))
}

func TestAnalyzeMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl, metrics := newFallbackLimiter(t, 2)

	router := gin.New()
	router.POST("/api/analyze", rl.AnalyzeMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)
		req.RemoteAddr = "192.0.2.10:5555"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		w := send()
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(1-i), w.Header().Get("X-RateLimit-Remaining"))
	}

	w := send()
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Positive(t, retry)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Rate limit exceeded", body["message"])
	assert.Equal(t, "rate_limit", body["category"])
	assert.Equal(t, int64(1), metrics.RateLimitBlocks)
}
