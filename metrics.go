package auth

import "time"

// Registry read results reported to Metrics.
const (
	RegistryReadFound   = "found"
	RegistryReadMissing = "missing"
	RegistryReadDenied  = "denied"
	RegistryReadError   = "error"
)

// Metrics receives counters from the resolver and the store.
type Metrics interface {
	RegistryRead(result string)
	Resolution(outcome Outcome, source RoleSource, duration time.Duration)
	StateTransition(kind StateKind)
	LoginAttempt(result string)
}

type noopMetrics struct{}

func (noopMetrics) RegistryRead(string)                           {}
func (noopMetrics) Resolution(Outcome, RoleSource, time.Duration) {}
func (noopMetrics) StateTransition(StateKind)                     {}
func (noopMetrics) LoginAttempt(string)                           {}

func normalizeMetrics(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
