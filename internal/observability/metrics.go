package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	staffRequestsTotal  *prometheus.CounterVec
	staffLatencySeconds *prometheus.HistogramVec
	staffErrorsTotal    *prometheus.CounterVec
	crmRequestsTotal    *prometheus.CounterVec
	crmLatencySeconds   *prometheus.HistogramVec
	unmatchedNamesTotal prometheus.Counter
	catalogFallbacks    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		staffRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staff_requests_total",
			Help: "Total number of staff API requests served.",
		}, []string{"method", "route", "status"})

		staffLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "staff_latency_seconds",
			Help:    "Latency distribution for staff API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		staffErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staff_errors_total",
			Help: "Total number of error responses returned by staff endpoints.",
		}, []string{"method", "route", "status"})

		crmRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_requests_total",
			Help: "Total number of requests issued to the Knack API.",
		}, []string{"object", "method", "status"})

		crmLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crm_latency_seconds",
			Help:    "Latency distribution for Knack API calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"object", "method"})

		unmatchedNamesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_unmatched_names_total",
			Help: "Prescribed activity names that could not be matched to the catalog.",
		})

		catalogFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_fallbacks_total",
			Help: "Catalog loads served from a fallback content source.",
		}, []string{"source"})

		prometheus.MustRegister(
			staffRequestsTotal,
			staffLatencySeconds,
			staffErrorsTotal,
			crmRequestsTotal,
			crmLatencySeconds,
			unmatchedNamesTotal,
			catalogFallbacks,
		)
	})
}

// StaffRequests exposes the counter for staff API requests.
func StaffRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return staffRequestsTotal
}

// StaffLatency exposes the latency histogram for staff API requests.
func StaffLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return staffLatencySeconds
}

// StaffErrors exposes the counter for staff API error responses.
func StaffErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return staffErrorsTotal
}

// CRMRequests exposes the counter for Knack API calls.
func CRMRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return crmRequestsTotal
}

// CRMLatency exposes the latency histogram for Knack API calls.
func CRMLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return crmLatencySeconds
}

// UnmatchedNames exposes the counter for unresolved prescribed activity names.
func UnmatchedNames() prometheus.Counter {
	RegisterMetrics()
	return unmatchedNamesTotal
}

// CatalogFallbacks exposes the counter for fallback catalog loads.
func CatalogFallbacks() *prometheus.CounterVec {
	RegisterMetrics()
	return catalogFallbacks
}
