// README: Prometheus instruments for claims, waitlist and HTTP traffic, plus a no-op recorder.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Claim outcomes.
const (
	OutcomeCreated      = "created"
	OutcomeExisting     = "existing"
	OutcomeSoldOut      = "sold_out"
	OutcomeOutsideFence = "outside_geofence"
	OutcomeRejected     = "rejected"
	OutcomeError        = "error"
)

// Assistant outcomes.
const (
	OutcomeAnswered      = "answered"
	OutcomeQuotaExceeded = "quota_exceeded"
)

type Recorder interface {
	ClaimAttempt(outcome string)
	StockReleased(reason string, qty int)
	WaitlistJoin(created bool)
	AssistantRequest(outcome string)
	HTTPRequest(method, route string, status int, elapsed time.Duration)
}

type noopRecorder struct{}

func Noop() Recorder { return noopRecorder{} }

func (noopRecorder) ClaimAttempt(string) {}
func (noopRecorder) StockReleased(string, int) {}
func (noopRecorder) WaitlistJoin(bool) {}
func (noopRecorder) AssistantRequest(string) {}
func (noopRecorder) HTTPRequest(string, string, int, time.Duration) {}

type Prometheus struct {
	claimAttempts  *prometheus.CounterVec
	stockReleased  *prometheus.CounterVec
	waitlistJoins  *prometheus.CounterVec
	assistantCalls *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewPrometheus registers every instrument on reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		claimAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dropspot",
			Name:      "claim_attempts_total",
			Help:      "Claim attempts by outcome.",
		}, []string{"outcome"}),
		stockReleased: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dropspot",
			Name:      "stock_released_units_total",
			Help:      "Units returned to drops by cancel or reject.",
		}, []string{"reason"}),
		waitlistJoins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dropspot",
			Name:      "waitlist_joins_total",
			Help:      "Waitlist join calls, split by whether a new entry was created.",
		}, []string{"created"}),
		assistantCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dropspot",
			Name:      "assistant_requests_total",
			Help:      "Assistant chat requests by outcome.",
		}, []string{"outcome"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dropspot",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(p.claimAttempts, p.stockReleased, p.waitlistJoins, p.assistantCalls, p.httpDuration)
	return p
}

func (p *Prometheus) ClaimAttempt(outcome string) {
	p.claimAttempts.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) StockReleased(reason string, qty int) {
	p.stockReleased.WithLabelValues(reason).Add(float64(qty))
}

func (p *Prometheus) WaitlistJoin(created bool) {
	p.waitlistJoins.WithLabelValues(strconv.FormatBool(created)).Inc()
}

func (p *Prometheus) AssistantRequest(outcome string) {
	p.assistantCalls.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) HTTPRequest(method, route string, status int, elapsed time.Duration) {
	p.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
