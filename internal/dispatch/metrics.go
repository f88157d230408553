package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeError   = "transport_error"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forwarder_conversion_requests_total",
		Help: "Conversion posts by tag and outcome",
	}, []string{"tag", "outcome"})
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "forwarder_conversion_request_duration_seconds",
		Help:    "Latency of conversion posts",
		Buckets: prometheus.DefBuckets,
	}, []string{"tag"})
	sinkErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forwarder_log_sink_errors_total",
		Help: "Log entries a sink failed to accept",
	})
)
