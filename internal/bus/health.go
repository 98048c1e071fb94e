package bus

import (
	"sync/atomic"
	"time"
)

// HealthStatus is the three-level aggregate.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// Fixed thresholds for the aggregate. Error rate dominates latency: a fast
// bus that fails half its requests is still unhealthy.
const (
	degradedErrorRate  = 0.1
	unhealthyErrorRate = 0.5

	degradedLatency  = time.Second
	unhealthyLatency = 5 * time.Second
)

// healthTracker accumulates request outcomes with atomics.
type healthTracker struct {
	requests     atomic.Int64
	errors       atomic.Int64
	totalLatency atomic.Int64 // nanoseconds
}

func (h *healthTracker) record(latency time.Duration, failed bool) {
	h.requests.Add(1)
	h.totalLatency.Add(int64(latency))
	if failed {
		h.errors.Add(1)
	}
}

// HealthReport is the point-in-time aggregate.
type HealthReport struct {
	Status         HealthStatus  `json:"status"`
	Requests       int64         `json:"requests"`
	Errors         int64         `json:"errors"`
	ErrorRate      float64       `json:"error_rate"`
	AverageLatency time.Duration `json:"average_latency"`
}

// Health aggregates error rate and average request latency into a
// three-level status. An idle bus is healthy.
func (b *Bus) Health() HealthReport {
	requests := b.health.requests.Load()
	report := HealthReport{Status: StatusHealthy, Requests: requests}
	if requests == 0 {
		return report
	}

	report.Errors = b.health.errors.Load()
	report.ErrorRate = float64(report.Errors) / float64(requests)
	report.AverageLatency = time.Duration(b.health.totalLatency.Load() / requests)

	switch {
	case report.ErrorRate >= unhealthyErrorRate || report.AverageLatency >= unhealthyLatency:
		report.Status = StatusUnhealthy
	case report.ErrorRate >= degradedErrorRate || report.AverageLatency >= degradedLatency:
		report.Status = StatusDegraded
	}
	return report
}
