// Package metrics exposes prometheus collectors for the session layer:
// refresh attempts, requests parked behind a refresh, replays, and
// session losses.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Refresh triggers and outcomes used as label values.
const (
	TriggerProactive = "proactive"
	TriggerReactive  = "reactive"
	TriggerManual    = "manual"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Refreshes       *prometheus.CounterVec
	RefreshDuration *prometheus.HistogramVec
	ParkedRequests  prometheus.Counter
	Replays         *prometheus.CounterVec
	SessionLosses   *prometheus.CounterVec
	Requests        *prometheus.CounterVec
}

// New creates the collectors and registers them with registry.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionkeeper_token_refreshes_total",
				Help: "Token refresh calls by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),
		RefreshDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionkeeper_token_refresh_duration_seconds",
				Help:    "Latency of token refresh calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"trigger"},
		),
		ParkedRequests: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sessionkeeper_parked_requests_total",
				Help: "Requests queued behind an in-flight refresh",
			},
		),
		Replays: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionkeeper_replays_total",
				Help: "Requests re-sent after a refresh, by outcome",
			},
			[]string{"outcome"},
		),
		SessionLosses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionkeeper_session_losses_total",
				Help: "Unrecoverable session losses by error kind",
			},
			[]string{"kind"},
		),
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionkeeper_requests_total",
				Help: "Requests sent through the pipeline by status class",
			},
			[]string{"class"},
		),
	}
}

// NewRegistry creates a fresh registry with the collectors registered.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	return reg, New(reg)
}

// HandlerFor serves the registry in prometheus exposition format.
func HandlerFor(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRefresh(trigger string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(trigger, outcome(ok)).Inc()
	m.RefreshDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

func (m *Metrics) RequestParked() {
	if m == nil {
		return
	}
	m.ParkedRequests.Inc()
}

func (m *Metrics) ObserveReplay(ok bool) {
	if m == nil {
		return
	}
	m.Replays.WithLabelValues(outcome(ok)).Inc()
}

func (m *Metrics) SessionLost(kind string) {
	if m == nil {
		return
	}
	m.SessionLosses.WithLabelValues(kind).Inc()
}

// ObserveStatus counts a response by status class ("2xx", "4xx", ...) or
// "none" when no response arrived (status 0).
func (m *Metrics) ObserveStatus(status int) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(statusClass(status)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

func statusClass(status int) string {
	switch {
	case status >= 100 && status < 600:
		return strconv.Itoa(status/100) + "xx"
	default:
		return "none"
	}
}
