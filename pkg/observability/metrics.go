// Package observability provides Prometheus metrics for the dmr-go client.
//
// Metrics are registered in the default registry; embedding applications
// expose them through their own /metrics endpoint.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for local LLM inference
// latencies, ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts API calls by endpoint, model, and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmr_client_requests_total",
			Help: "Total API requests",
		},
		[]string{"endpoint", "model", "status"},
	)

	// RequestDuration records API call duration in seconds by endpoint and model.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dmr_client_request_duration_seconds",
			Help:    "API request duration",
			Buckets: LLMBuckets,
		},
		[]string{"endpoint", "model"},
	)

	// StreamsActive tracks the number of streaming responses currently open.
	StreamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dmr_client_streams_active",
			Help: "Open streaming responses",
		},
	)

	// StreamChunksTotal counts decoded stream chunks by endpoint.
	StreamChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmr_client_stream_chunks_total",
			Help: "Decoded stream chunks",
		},
		[]string{"endpoint"},
	)

	// StreamDroppedTotal counts stream lines discarded without producing a
	// chunk, by endpoint and reason.
	StreamDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmr_client_stream_dropped_total",
			Help: "Discarded stream lines",
		},
		[]string{"endpoint", "reason"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamsActive,
		StreamChunksTotal,
		StreamDroppedTotal,
	)
}
