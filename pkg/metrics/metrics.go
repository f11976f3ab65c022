package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EmailsProcessed counts pipeline runs by resulting priority
	EmailsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportdesk_emails_processed_total",
			Help: "Total number of emails run through the processing pipeline",
		},
		[]string{"priority"},
	)

	// ProcessDuration observes end-to-end pipeline latency
	ProcessDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "supportdesk_process_duration_seconds",
			Help:    "Processing pipeline duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)

	// RepliesSent counts dispatch attempts by mode (auto, bulk, manual) and result
	RepliesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportdesk_replies_sent_total",
			Help: "Total number of reply dispatch attempts",
		},
		[]string{"mode", "result"},
	)

	// EmailsFetched counts inbound messages by outcome (stored, duplicate, ignored, failed)
	EmailsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportdesk_emails_fetched_total",
			Help: "Total number of inbound messages seen by the fetcher",
		},
		[]string{"outcome"},
	)

	// CapabilityFailures counts retriever/generator failures that fell back
	CapabilityFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportdesk_capability_failures_total",
			Help: "Total number of optional capability failures",
		},
		[]string{"capability"},
	)

	// HTTPRequestDuration observes HTTP request latency in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supportdesk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

func RecordProcessed(priority string, duration time.Duration) {
	EmailsProcessed.WithLabelValues(priority).Inc()
	ProcessDuration.Observe(duration.Seconds())
}

func RecordReply(mode string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	RepliesSent.WithLabelValues(mode, result).Inc()
}

func RecordFetched(outcome string) {
	EmailsFetched.WithLabelValues(outcome).Inc()
}

func RecordCapabilityFailure(capability string) {
	CapabilityFailures.WithLabelValues(capability).Inc()
}

func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
