package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)

	p.ClaimAttempt(OutcomeCreated)
	p.ClaimAttempt(OutcomeCreated)
	p.ClaimAttempt(OutcomeSoldOut)
	p.StockReleased("cancel", 2)
	p.WaitlistJoin(true)
	p.HTTPRequest("POST", "/api/claims", 201, 15*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.claimAttempts.WithLabelValues(OutcomeCreated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.claimAttempts.WithLabelValues(OutcomeSoldOut)))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.stockReleased.WithLabelValues("cancel")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.waitlistJoins.WithLabelValues("true")))
	assert.Equal(t, 1, testutil.CollectAndCount(p.httpDuration))
}

func TestNoopRecorder(t *testing.T) {
	r := Noop()
	r.ClaimAttempt(OutcomeError)
	r.HTTPRequest("GET", "/health", 200, time.Millisecond)
}
