package monitoring

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/montanaflynn/stats"
)

// maxSamples bounds the response time window used for percentiles
const maxSamples = 1000

// Metrics holds application counters
type Metrics struct {
	RequestCount     int64
	ErrorCount       int64
	AnalysisCount    int64
	AnalysisFailures int64
	ScorerFailures   int64
	CacheHits        int64
	CacheMisses      int64
	StartTime        time.Time

	// Rate limit counters
	RateLimitBlocks      int64
	RateLimitRedisErrors int64
	RateLimitFallbacks   int64

	responseTimes []float64
	next          int
	timesMu       sync.Mutex

	requestsByStatus map[int]int64
	statusMu         sync.RWMutex
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:        time.Now(),
		responseTimes:    make([]float64, 0, maxSamples),
		requestsByStatus: make(map[int]int64),
	}
}

// IncrementRequest increments the request count
func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

// IncrementError increments the error count
func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

// IncrementAnalysis counts a persisted analysis
func (m *Metrics) IncrementAnalysis() {
	atomic.AddInt64(&m.AnalysisCount, 1)
}

// IncrementAnalysisFailure counts a rejected or failed analysis
func (m *Metrics) IncrementAnalysisFailure() {
	atomic.AddInt64(&m.AnalysisFailures, 1)
}

// IncrementScorerFailure counts scorer timeouts and contract violations
func (m *Metrics) IncrementScorerFailure() {
	atomic.AddInt64(&m.ScorerFailures, 1)
}

// IncrementCacheHit increments cache hit count
func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
}

// IncrementCacheMiss increments cache miss count
func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
}

// IncrementRateLimitBlock counts a request rejected by the limiter
func (m *Metrics) IncrementRateLimitBlock() {
	atomic.AddInt64(&m.RateLimitBlocks, 1)
}

// IncrementRateLimitRedisError counts a failed redis limiter call
func (m *Metrics) IncrementRateLimitRedisError() {
	atomic.AddInt64(&m.RateLimitRedisErrors, 1)
}

// IncrementRateLimitFallback counts decisions made by the in-memory limiter
func (m *Metrics) IncrementRateLimitFallback() {
	atomic.AddInt64(&m.RateLimitFallbacks, 1)
}

// RecordResponseTime keeps the last maxSamples durations in a ring
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	ms := float64(duration) / float64(time.Millisecond)

	m.timesMu.Lock()
	defer m.timesMu.Unlock()
	if len(m.responseTimes) < maxSamples {
		m.responseTimes = append(m.responseTimes, ms)
		return
	}
	m.responseTimes[m.next] = ms
	m.next = (m.next + 1) % maxSamples
}

// RecordRequestByStatus records request count by HTTP status code
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	m.requestsByStatus[statusCode]++
}

// ResponseTimePercentile returns the nearest-rank percentile in milliseconds
func (m *Metrics) ResponseTimePercentile(percent float64) float64 {
	m.timesMu.Lock()
	samples := make(stats.Float64Data, len(m.responseTimes))
	copy(samples, m.responseTimes)
	m.timesMu.Unlock()

	if len(samples) == 0 {
		return 0
	}
	p, err := stats.PercentileNearestRank(samples, percent)
	if err != nil {
		return 0
	}
	return p
}

// StatusCodeDistribution returns a copy of the per-status request counts
func (m *Metrics) StatusCodeDistribution() map[int]int64 {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()

	distribution := make(map[int]int64, len(m.requestsByStatus))
	for code, count := range m.requestsByStatus {
		distribution[code] = count
	}
	return distribution
}

// GetStats returns current metrics statistics
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	errors := atomic.LoadInt64(&m.ErrorCount)
	cacheHits := atomic.LoadInt64(&m.CacheHits)
	cacheMisses := atomic.LoadInt64(&m.CacheMisses)

	errorRate := float64(0)
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
	}

	cacheHitRate := float64(0)
	if total := cacheHits + cacheMisses; total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total) * 100
	}

	return map[string]interface{}{
		"uptime_seconds":         time.Since(m.StartTime).Seconds(),
		"start_time":             m.StartTime.Format(time.RFC3339),
		"total_requests":         requests,
		"error_count":            errors,
		"error_rate_percent":     errorRate,
		"analyses":               atomic.LoadInt64(&m.AnalysisCount),
		"analysis_failures":      atomic.LoadInt64(&m.AnalysisFailures),
		"scorer_failures":        atomic.LoadInt64(&m.ScorerFailures),
		"cache_hits":             cacheHits,
		"cache_misses":           cacheMisses,
		"cache_hit_rate_percent": cacheHitRate,

		"p50_response_time_ms":     m.ResponseTimePercentile(50),
		"p95_response_time_ms":     m.ResponseTimePercentile(95),
		"p99_response_time_ms":     m.ResponseTimePercentile(99),
		"status_code_distribution": m.StatusCodeDistribution(),

		"rate_limit": map[string]interface{}{
			"blocks":       atomic.LoadInt64(&m.RateLimitBlocks),
			"redis_errors": atomic.LoadInt64(&m.RateLimitRedisErrors),
			"fallbacks":    atomic.LoadInt64(&m.RateLimitFallbacks),
		},
	}
}

// Ensure Metrics implements cache.Metrics interface
var _ interface {
	IncrementCacheHit()
	IncrementCacheMiss()
} = (*Metrics)(nil)

// Reset resets all metrics (useful for testing)
func (m *Metrics) Reset() {
	for _, counter := range []*int64{
		&m.RequestCount, &m.ErrorCount, &m.AnalysisCount, &m.AnalysisFailures,
		&m.ScorerFailures, &m.CacheHits, &m.CacheMisses,
		&m.RateLimitBlocks, &m.RateLimitRedisErrors, &m.RateLimitFallbacks,
	} {
		atomic.StoreInt64(counter, 0)
	}

	m.timesMu.Lock()
	m.responseTimes = m.responseTimes[:0]
	m.next = 0
	m.timesMu.Unlock()

	m.statusMu.Lock()
	m.requestsByStatus = make(map[int]int64)
	m.statusMu.Unlock()

	m.StartTime = time.Now()
}
