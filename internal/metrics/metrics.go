package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "prepai"

// Login outcomes.
const (
	LoginSucceeded   = "succeeded"
	LoginRejected    = "rejected"
	LoginRateLimited = "rate_limited"
	LoginFailed      = "failed"
)

// Guard decisions.
const (
	DecisionAllow      = "allow"
	DecisionRedirect   = "redirect"
	DecisionSignIn     = "sign_in"
	DecisionNotFound   = "not_found"
	DecisionPassThrough = "pass_through"
)

// Metrics holds the collectors for the API and the guard. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	loginAttempts    *prometheus.CounterVec
	guardDecisions   *prometheus.CounterVec
	exchangeDuration *prometheus.HistogramVec
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		loginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),
		guardDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_decisions_total",
			Help:      "Edge guard decisions by kind",
		}, []string{"decision"}),
		exchangeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "identity_exchange_duration_seconds",
			Help:      "Refresh token exchange latency against the identity provider",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
	}
}

// LoginAttempt counts one login by outcome.
func (m *Metrics) LoginAttempt(outcome string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

// GuardDecision counts one guard decision.
func (m *Metrics) GuardDecision(decision string) {
	if m == nil {
		return
	}
	m.guardDecisions.WithLabelValues(decision).Inc()
}

// ObserveExchange records the duration of one refresh exchange.
func (m *Metrics) ObserveExchange(start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.exchangeDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
}
