package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements the Recorder interface using Prometheus metrics
// registered on its own registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	messagesTotal       *prometheus.CounterVec
	qualificationsTotal *prometheus.CounterVec
	oracleTotal         *prometheus.CounterVec
	oracleDuration      *prometheus.HistogramVec
	notificationsTotal  *prometheus.CounterVec
	conflictsTotal      prometheus.Counter
}

// NewPrometheusRecorder creates a recorder with a fresh registry that also
// carries the Go runtime and process collectors.
func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		messagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siftly_messages_total",
				Help: "Inbound SMS messages by conversation mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		qualificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siftly_qualifications_total",
				Help: "Leads classified, by classification and score source",
			},
			[]string{"classification", "source"},
		),
		oracleTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siftly_oracle_requests_total",
				Help: "Oracle calls by provider, kind and status",
			},
			[]string{"provider", "kind", "status"},
		),
		oracleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "siftly_oracle_request_duration_seconds",
				Help:    "Duration of oracle calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "kind"},
		),
		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siftly_notifications_total",
				Help: "Outbound notifications by channel and status",
			},
			[]string{"channel", "status"},
		),
		conflictsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "siftly_store_conflicts_total",
				Help: "Lead writes rejected because the record changed concurrently",
			},
		),
	}
}

// ObserveMessage counts one inbound message.
func (p *PrometheusRecorder) ObserveMessage(mode, outcome string) {
	p.messagesTotal.WithLabelValues(mode, outcome).Inc()
}

// ObserveQualification counts one classification event.
func (p *PrometheusRecorder) ObserveQualification(classification, source string) {
	p.qualificationsTotal.WithLabelValues(classification, source).Inc()
}

// ObserveOracle records one oracle call.
func (p *PrometheusRecorder) ObserveOracle(provider, kind string, success bool, duration time.Duration) {
	p.oracleTotal.WithLabelValues(provider, kind, status(success)).Inc()
	p.oracleDuration.WithLabelValues(provider, kind).Observe(duration.Seconds())
}

// ObserveNotification records one notification dispatch.
func (p *PrometheusRecorder) ObserveNotification(channel string, success bool) {
	p.notificationsTotal.WithLabelValues(channel, status(success)).Inc()
}

// IncConflict counts a version conflict.
func (p *PrometheusRecorder) IncConflict() {
	p.conflictsTotal.Inc()
}

// Registry exposes the underlying registry (tests, custom collectors).
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
