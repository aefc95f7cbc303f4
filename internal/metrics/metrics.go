// Package metrics exposes Prometheus collectors for the assessment pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/opensource-finance/covenant/internal/domain"
)

const namespace = "covenant"

var (
	// assessmentsTotal counts completed assessments.
	// Labels: overall_risk (low, medium, high), source (api, worker)
	assessmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analyzer",
		Name:      "assessments_total",
		Help:      "Total document assessments by overall risk",
	}, []string{"overall_risk", "source"})

	// analysisDuration measures time spent analyzing one document.
	analysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "analyzer",
		Name:      "duration_seconds",
		Help:      "Document analysis latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"document_type"})

	// risksTotal counts reported risks after deduplication.
	// Labels: category, severity
	risksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analyzer",
		Name:      "risks_total",
		Help:      "Total reported risks by category and severity",
	}, []string{"category", "severity"})

	// cacheLookups counts assessment cache lookups.
	// Labels: result (hit, miss, error)
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Assessment cache lookups by result",
	}, []string{"result"})

	// workerMessages counts bus messages handled by the worker.
	// Labels: status (ok, invalid, failed)
	workerMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "messages_total",
		Help:      "Ingested document messages by processing status",
	}, []string{"status"})

	// httpRequests counts API requests.
	// Labels: method, route, code
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status code",
	}, []string{"method", "route", "code"})

	// httpDuration measures API request latency.
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// catalogReloads counts catalog reload attempts.
	// Labels: status (ok, error)
	catalogReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "catalog",
		Name:      "reloads_total",
		Help:      "Pattern catalog reloads by status",
	}, []string{"status"})

	// catalogPatterns reports the size of the active catalog.
	catalogPatterns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "catalog",
		Name:      "patterns",
		Help:      "Number of patterns in the active catalog",
	})
)

// Source labels for RecordAssessment.
const (
	SourceAPI    = "api"
	SourceWorker = "worker"
)

// Worker status labels.
const (
	StatusOK      = "ok"
	StatusInvalid = "invalid"
	StatusFailed  = "failed"
)

// RecordAssessment records one finished assessment.
func RecordAssessment(source string, a *domain.Assessment, elapsed time.Duration) {
	if a == nil {
		return
	}
	docType := a.Metadata.DocumentType
	if docType == "" {
		docType = domain.DocOther
	}
	assessmentsTotal.WithLabelValues(string(a.Result.OverallRiskScore), source).Inc()
	analysisDuration.WithLabelValues(string(docType)).Observe(elapsed.Seconds())
	for _, r := range a.Result.Risks {
		risksTotal.WithLabelValues(string(r.Category), string(r.Severity)).Inc()
	}
}

// RecordCacheLookup records an assessment cache lookup.
func RecordCacheLookup(hit bool, err error) {
	switch {
	case err != nil:
		cacheLookups.WithLabelValues("error").Inc()
	case hit:
		cacheLookups.WithLabelValues("hit").Inc()
	default:
		cacheLookups.WithLabelValues("miss").Inc()
	}
}

// RecordWorkerMessage records the outcome of one worker message.
func RecordWorkerMessage(status string) {
	workerMessages.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records one API request.
func RecordHTTPRequest(method, route string, code int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordCatalogReload records a reload and, on success, the new catalog size.
func RecordCatalogReload(patterns int, err error) {
	if err != nil {
		catalogReloads.WithLabelValues("error").Inc()
		return
	}
	catalogReloads.WithLabelValues("ok").Inc()
	catalogPatterns.Set(float64(patterns))
}
