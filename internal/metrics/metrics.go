// Package metrics registers the gateway's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts HTTP requests by method, route and status class.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dicom_gateway_http_requests_total",
		Help: "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	// HTTPDuration observes HTTP request latency.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dicom_gateway_http_request_duration_seconds",
		Help:    "HTTP request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// DIMSEOperations counts DIMSE operations by type and outcome.
	DIMSEOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dicom_gateway_dimse_operations_total",
		Help: "Total DIMSE operations executed",
	}, []string{"operation", "outcome"})

	// DIMSEDuration observes DIMSE operation latency. C-MOVE can run for
	// minutes, hence the wide upper buckets.
	DIMSEDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dicom_gateway_dimse_operation_duration_seconds",
		Help:    "DIMSE operation duration",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 180, 300},
	}, []string{"operation"})

	// QueryResults observes result-set sizes per query level.
	QueryResults = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dicom_gateway_query_results",
		Help:    "Number of matches returned per query",
		Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
	}, []string{"level"})

	// CacheHits and CacheMisses track query-cache effectiveness.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dicom_gateway_cache_hits_total",
		Help: "Query cache hits",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dicom_gateway_cache_misses_total",
		Help: "Query cache misses",
	})

	// StoredInstances counts objects accepted by the C-STORE receiver.
	StoredInstances = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dicom_gateway_stored_instances_total",
		Help: "Instances received and stored locally",
	})
)
