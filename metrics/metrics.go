// Package metrics implements auth.Metrics with Prometheus collectors.
//
// Metric naming follows Prometheus conventions:
//   - admin_auth_ prefix for all metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus records resolver and store activity.
type Prometheus struct {
	// RegistryReadsTotal counts registry lookups by result.
	RegistryReadsTotal *prometheus.CounterVec
	// ResolutionsTotal counts resolutions by outcome and role source.
	ResolutionsTotal *prometheus.CounterVec
	// ResolutionDurationSeconds is a histogram of resolution latency.
	ResolutionDurationSeconds *prometheus.HistogramVec
	// StateTransitionsTotal counts store transitions by target state.
	StateTransitionsTotal *prometheus.CounterVec
	// SessionState is 1 for the current store state and 0 for the others.
	SessionState *prometheus.GaugeVec
	// LoginAttemptsTotal counts logins by result.
	LoginAttemptsTotal *prometheus.CounterVec
}

var _ auth.Metrics = (*Prometheus)(nil)

// New creates the collectors and registers them on reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		RegistryReadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_auth_registry_reads_total",
				Help: "Total authorization registry reads by result.",
			},
			[]string{"result"},
		),
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_auth_resolutions_total",
				Help: "Total identity resolutions by outcome and role source.",
			},
			[]string{"outcome", "source"},
		),
		ResolutionDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "admin_auth_resolution_duration_seconds",
				Help:    "Duration of identity resolutions in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"outcome"},
		),
		StateTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_auth_state_transitions_total",
				Help: "Total session store transitions by target state.",
			},
			[]string{"state"},
		),
		SessionState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "admin_auth_session_state",
				Help: "Current session store state (1 for the active state).",
			},
			[]string{"state"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_auth_login_attempts_total",
				Help: "Total login attempts by result.",
			},
			[]string{"result"},
		),
	}

	if reg != nil {
		for _, c := range p.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

// MustNew is New that panics on registration errors.
func MustNew(reg prometheus.Registerer) *Prometheus {
	p, err := New(reg)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Prometheus) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		p.RegistryReadsTotal,
		p.ResolutionsTotal,
		p.ResolutionDurationSeconds,
		p.StateTransitionsTotal,
		p.SessionState,
		p.LoginAttemptsTotal,
	}
}

func (p *Prometheus) RegistryRead(result string) {
	p.RegistryReadsTotal.WithLabelValues(result).Inc()
}

func (p *Prometheus) Resolution(outcome auth.Outcome, source auth.RoleSource, d time.Duration) {
	p.ResolutionsTotal.WithLabelValues(outcome.String(), source.String()).Inc()
	p.ResolutionDurationSeconds.WithLabelValues(outcome.String()).Observe(d.Seconds())
}

func (p *Prometheus) StateTransition(kind auth.StateKind) {
	p.StateTransitionsTotal.WithLabelValues(kind.String()).Inc()
	for _, k := range []auth.StateKind{auth.StateLoading, auth.StateUnauthenticated, auth.StateAuthenticated} {
		v := 0.0
		if k == kind {
			v = 1
		}
		p.SessionState.WithLabelValues(k.String()).Set(v)
	}
}

func (p *Prometheus) LoginAttempt(result string) {
	p.LoginAttemptsTotal.WithLabelValues(result).Inc()
}
