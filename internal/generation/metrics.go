package generation

import "sync/atomic"

// Metrics tracks service-level counters with atomics. Updates never fail and
// never gate the request path; this is bookkeeping, not control flow.
type Metrics struct {
	totalRequests atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	errorCount    atomic.Int64

	completed    atomic.Int64
	totalLatency atomic.Int64 // milliseconds across completed requests
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	TotalRequests        int64   `json:"total_requests"`
	CacheHits            int64   `json:"cache_hits"`
	CacheMisses          int64   `json:"cache_misses"`
	ErrorCount           int64   `json:"error_count"`
	AverageLatencyMillis float64 `json:"average_latency_millis"`
}

func (m *Metrics) recordRequest() { m.totalRequests.Add(1) }
func (m *Metrics) recordError()   { m.errorCount.Add(1) }

func (m *Metrics) recordOutcome(cached bool, latencyMillis int64) {
	if cached {
		m.cacheHits.Add(1)
	} else {
		m.cacheMisses.Add(1)
	}
	m.completed.Add(1)
	m.totalLatency.Add(latencyMillis)
}

// Snapshot returns current counter values. The rolling average covers
// completed requests only; failures contribute to ErrorCount instead.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		TotalRequests: m.totalRequests.Load(),
		CacheHits:     m.cacheHits.Load(),
		CacheMisses:   m.cacheMisses.Load(),
		ErrorCount:    m.errorCount.Load(),
	}
	if completed := m.completed.Load(); completed > 0 {
		snap.AverageLatencyMillis = float64(m.totalLatency.Load()) / float64(completed)
	}
	return snap
}
