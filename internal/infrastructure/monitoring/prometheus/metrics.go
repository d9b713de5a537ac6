package prometheus

import (
	"fmt"
	"time"
)

// AppMetrics holds all application metrics.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Anonymization engine
	DocumentsTotal        CounterVec
	AnonymizeDuration     HistogramVec
	MaskedEntitiesTotal   CounterVec
	ModelFailuresTotal    CounterVec
	BatchSize             HistogramVec
	DocumentFailuresTotal CounterVec

	// Model serving
	ModelRequestsTotal   CounterVec
	ModelRequestDuration HistogramVec

	// Chat pipeline
	ChatRequestsTotal   CounterVec
	IntentFallbackTotal CounterVec

	// Infrastructure
	DBQueryDuration   HistogramVec
	CacheHitsTotal    CounterVec
	CacheMissesTotal  CounterVec
	AuditPublishTotal CounterVec
	AuditArchiveTotal CounterVec

	// System health
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// Default buckets
var (
	DefaultHTTPDurationBuckets  = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultModelDurationBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	DefaultDBDurationBuckets    = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	DefaultBatchSizeBuckets     = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500}
)

// NewAppMetrics registers all metrics and returns the AppMetrics struct.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method", "path")

	// Anonymization
	m.DocumentsTotal = collector.RegisterCounter("documents_total", "Documents anonymized", "mode", "status")
	m.AnonymizeDuration = collector.RegisterHistogram("anonymize_duration_seconds", "Per-document anonymization duration", DefaultHTTPDurationBuckets, "mode")
	m.MaskedEntitiesTotal = collector.RegisterCounter("masked_entities_total", "Masked entities by type", "type")
	m.ModelFailuresTotal = collector.RegisterCounter("model_failures_total", "Entity model failures that degraded to pattern-only detection", "reason")
	m.BatchSize = collector.RegisterHistogram("batch_size_documents", "Batch request size", DefaultBatchSizeBuckets)
	m.DocumentFailuresTotal = collector.RegisterCounter("document_failures_total", "Per-document batch failures", "reason")

	// Model serving
	m.ModelRequestsTotal = collector.RegisterCounter("model_requests_total", "Serving endpoint requests", "model", "status")
	m.ModelRequestDuration = collector.RegisterHistogram("model_request_duration_seconds", "Serving endpoint request duration", DefaultModelDurationBuckets, "model")

	// Chat
	m.ChatRequestsTotal = collector.RegisterCounter("chat_requests_total", "Chat requests", "intent", "status")
	m.IntentFallbackTotal = collector.RegisterCounter("intent_fallback_total", "Chat requests answered with the low-confidence fallback")

	// Infrastructure
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.AuditPublishTotal = collector.RegisterCounter("audit_publish_total", "Audit events published to the broker", "status")
	m.AuditArchiveTotal = collector.RegisterCounter("audit_archive_total", "Audit logs archived to object storage", "status")

	// System health
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type")

	return m
}

// Helpers

func RecordHTTPRequest(metrics *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	status := fmt.Sprintf("%d", statusCode)
	metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAnonymization records one document's outcome. mode is "single" or
// "batch"; byType is the audit log's per-category counts.
func RecordAnonymization(metrics *AppMetrics, mode string, duration time.Duration, byType map[string]int, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.DocumentsTotal.WithLabelValues(mode, status).Inc()
	metrics.AnonymizeDuration.WithLabelValues(mode).Observe(duration.Seconds())
	for entityType, n := range byType {
		metrics.MaskedEntitiesTotal.WithLabelValues(entityType).Add(float64(n))
	}
}

func RecordModelCall(metrics *AppMetrics, model string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.ModelRequestsTotal.WithLabelValues(model, status).Inc()
	metrics.ModelRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
}

func RecordCacheAccess(metrics *AppMetrics, cache string, hit bool) {
	if hit {
		metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordError(metrics *AppMetrics, component, errorType string) {
	metrics.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
