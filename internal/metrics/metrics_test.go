package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.LoginAttempt(LoginSucceeded)
	m.LoginAttempt(LoginRejected)
	m.LoginAttempt(LoginRejected)
	m.GuardDecision(DecisionNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.loginAttempts.WithLabelValues(LoginSucceeded)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.loginAttempts.WithLabelValues(LoginRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.guardDecisions.WithLabelValues(DecisionNotFound)))
}

func TestMetrics_ObserveExchange(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveExchange(time.Now(), nil)
	m.ObserveExchange(time.Now(), errors.New("boom"))

	assert.Equal(t, 2, testutil.CollectAndCount(m.exchangeDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.LoginAttempt(LoginFailed)
		m.GuardDecision(DecisionAllow)
		m.ObserveExchange(time.Now(), nil)
	})
}
