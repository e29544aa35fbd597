package monitoring

import (
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// MemoryStats is one sample of the runtime's memory counters
type MemoryStats struct {
	HeapAlloc    uint64    `json:"heap_alloc_bytes"`
	HeapInuse    uint64    `json:"heap_inuse_bytes"`
	HeapSys      uint64    `json:"heap_sys_bytes"`
	Sys          uint64    `json:"sys_bytes"`
	NumGC        uint32    `json:"num_gc"`
	NumGoroutine int       `json:"num_goroutine"`
	Timestamp    time.Time `json:"timestamp"`
}

// MemoryMonitor samples memory usage on an interval. Image decoding is the
// main allocator in this service, so a heap above warnHeap is logged.
type MemoryMonitor struct {
	interval time.Duration
	warnHeap uint64
	logger   *Logger

	mu      sync.RWMutex
	latest  MemoryStats
	samples int

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryMonitor creates a monitor; call Start to begin sampling
func NewMemoryMonitor(interval time.Duration, warnHeap uint64, logger *Logger) *MemoryMonitor {
	return &MemoryMonitor{
		interval: interval,
		warnHeap: warnHeap,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start takes a first sample and keeps sampling until Stop
func (mm *MemoryMonitor) Start() {
	mm.collect()
	go func() {
		ticker := time.NewTicker(mm.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				mm.collect()
			case <-mm.stop:
				return
			}
		}
	}()
}

// Stop ends sampling; it is safe to call more than once
func (mm *MemoryMonitor) Stop() {
	mm.stopOnce.Do(func() { close(mm.stop) })
}

func (mm *MemoryMonitor) collect() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := MemoryStats{
		HeapAlloc:    ms.HeapAlloc,
		HeapInuse:    ms.HeapInuse,
		HeapSys:      ms.HeapSys,
		Sys:          ms.Sys,
		NumGC:        ms.NumGC,
		NumGoroutine: runtime.NumGoroutine(),
		Timestamp:    time.Now().UTC(),
	}

	mm.mu.Lock()
	mm.latest = stats
	mm.samples++
	mm.mu.Unlock()

	if mm.warnHeap > 0 && stats.HeapAlloc > mm.warnHeap && mm.logger != nil {
		mm.logger.Warn("High heap usage",
			slog.Uint64("heap_alloc_mb", stats.HeapAlloc>>20),
			slog.Uint64("threshold_mb", mm.warnHeap>>20),
			slog.Int("goroutines", stats.NumGoroutine),
		)
	}
}

// Latest returns the most recent sample
func (mm *MemoryMonitor) Latest() MemoryStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latest
}

// GetStats summarises the latest sample for the metrics endpoint
func (mm *MemoryMonitor) GetStats() map[string]interface{} {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	utilization := 0.0
	if mm.latest.HeapSys > 0 {
		utilization = float64(mm.latest.HeapInuse) / float64(mm.latest.HeapSys)
	}

	return map[string]interface{}{
		"heap_alloc_mb":    mm.latest.HeapAlloc >> 20,
		"heap_sys_mb":      mm.latest.HeapSys >> 20,
		"sys_mb":           mm.latest.Sys >> 20,
		"heap_utilization": utilization,
		"num_gc":           mm.latest.NumGC,
		"num_goroutine":    mm.latest.NumGoroutine,
		"samples":          mm.samples,
	}
}
