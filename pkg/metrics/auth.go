package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Login outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuthMetrics records authentication and authorization outcomes.
type AuthMetrics struct {
	decisions    *prometheus.CounterVec
	logins       *prometheus.CounterVec
	hashDuration *prometheus.HistogramVec
}

// NewAuthMetrics registers the auth metrics on the provided registerer. A nil
// registerer yields a no-op recorder.
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	if reg == nil {
		return &AuthMetrics{}
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authz_decisions_total",
		Help: "Authorization gate decisions by terminal state.",
	}, []string{"state"})
	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})
	hashDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auth_password_hash_seconds",
		Help:    "Duration of password hash and verify operations in seconds.",
		Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2},
	}, []string{"op"})
	reg.MustRegister(decisions, logins, hashDuration)
	return &AuthMetrics{
		decisions:    decisions,
		logins:       logins,
		hashDuration: hashDuration,
	}
}

// ObserveDecision counts a gate decision by its final state.
func (m *AuthMetrics) ObserveDecision(state string) {
	if m == nil || m.decisions == nil {
		return
	}
	m.decisions.WithLabelValues(normalizeLabel(state)).Inc()
}

// IncLogin counts a login attempt.
func (m *AuthMetrics) IncLogin(outcome string) {
	if m == nil || m.logins == nil {
		return
	}
	m.logins.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveHash records how long a hash or verify took.
func (m *AuthMetrics) ObserveHash(op string, duration time.Duration) {
	if m == nil || m.hashDuration == nil {
		return
	}
	m.hashDuration.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
