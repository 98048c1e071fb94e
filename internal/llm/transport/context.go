package transport

// contextKey is an unexported type for context keys defined by this package.
type contextKey string

// HalfOpenProbeKey marks a request as a circuit breaker half-open probe.
// The retry middleware limits probe requests to a single attempt.
const HalfOpenProbeKey contextKey = "circuit_breaker_half_open_probe"
