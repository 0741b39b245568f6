package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects runtime counters for the memory subsystem.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	TurnsProcessed       int64
	Rotations            int64
	RotationFallbacks    int64
	StoreWrites          int64
	StoreWriteRetries    int64
	StoreWriteFailures   int64
	CorruptRowsSkipped   int64
	CacheHits            int64
	CacheMisses          int64
	CacheEvictions       int64
	SummarizerTimeouts   int64

	// Histograms (simplified)
	summarizeDurations []time.Duration
	generateDurations  []time.Duration
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		summarizeDurations: make([]time.Duration, 0, 1000),
		generateDurations:  make([]time.Duration, 0, 1000),
	}
}

// IncTurnsProcessed increments the processed turn counter.
func (m *Metrics) IncTurnsProcessed() {
	atomic.AddInt64(&m.TurnsProcessed, 1)
}

// IncRotations increments the rotation counter.
func (m *Metrics) IncRotations() {
	atomic.AddInt64(&m.Rotations, 1)
}

// IncRotationFallbacks increments the verbatim-fallback counter.
func (m *Metrics) IncRotationFallbacks() {
	atomic.AddInt64(&m.RotationFallbacks, 1)
}

// IncStoreWrites increments the durable write counter.
func (m *Metrics) IncStoreWrites() {
	atomic.AddInt64(&m.StoreWrites, 1)
}

// IncStoreWriteRetries increments the busy-retry counter.
func (m *Metrics) IncStoreWriteRetries() {
	atomic.AddInt64(&m.StoreWriteRetries, 1)
}

// IncStoreWriteFailures increments the exhausted-retry counter.
func (m *Metrics) IncStoreWriteFailures() {
	atomic.AddInt64(&m.StoreWriteFailures, 1)
}

// IncCorruptRowsSkipped increments the defensive-read skip counter.
func (m *Metrics) IncCorruptRowsSkipped() {
	atomic.AddInt64(&m.CorruptRowsSkipped, 1)
}

// IncCacheHits increments the cache hit counter.
func (m *Metrics) IncCacheHits() {
	atomic.AddInt64(&m.CacheHits, 1)
}

// IncCacheMisses increments the cache miss counter.
func (m *Metrics) IncCacheMisses() {
	atomic.AddInt64(&m.CacheMisses, 1)
}

// IncCacheEvictions increments the cache eviction counter.
func (m *Metrics) IncCacheEvictions() {
	atomic.AddInt64(&m.CacheEvictions, 1)
}

// IncSummarizerTimeouts increments the summarizer timeout counter.
func (m *Metrics) IncSummarizerTimeouts() {
	atomic.AddInt64(&m.SummarizerTimeouts, 1)
}

// RecordSummarizeDuration records a summarization call duration.
func (m *Metrics) RecordSummarizeDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summarizeDurations = append(m.summarizeDurations, d)
}

// RecordGenerateDuration records a generation call duration.
func (m *Metrics) RecordGenerateDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generateDurations = append(m.generateDurations, d)
}

// GetSummary returns a summary of collected metrics.
func (m *Metrics) GetSummary() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := map[string]interface{}{
		"turns_processed":      atomic.LoadInt64(&m.TurnsProcessed),
		"rotations":            atomic.LoadInt64(&m.Rotations),
		"rotation_fallbacks":   atomic.LoadInt64(&m.RotationFallbacks),
		"store_writes":         atomic.LoadInt64(&m.StoreWrites),
		"store_write_retries":  atomic.LoadInt64(&m.StoreWriteRetries),
		"store_write_failures": atomic.LoadInt64(&m.StoreWriteFailures),
		"corrupt_rows_skipped": atomic.LoadInt64(&m.CorruptRowsSkipped),
		"cache_hits":           atomic.LoadInt64(&m.CacheHits),
		"cache_misses":         atomic.LoadInt64(&m.CacheMisses),
		"cache_evictions":      atomic.LoadInt64(&m.CacheEvictions),
		"summarizer_timeouts":  atomic.LoadInt64(&m.SummarizerTimeouts),
	}

	if len(m.summarizeDurations) > 0 {
		summary["avg_summarize_ms"] = avgMillis(m.summarizeDurations)
	}
	if len(m.generateDurations) > 0 {
		summary["avg_generate_ms"] = avgMillis(m.generateDurations)
	}

	return summary
}

func avgMillis(durations []time.Duration) int64 {
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return (total / time.Duration(len(durations))).Milliseconds()
}
