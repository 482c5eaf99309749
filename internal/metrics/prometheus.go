package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds every Prometheus metric the worker exposes.
type Collector struct {
	JobsTotal          *prometheus.CounterVec
	JobDuration        *prometheus.HistogramVec
	RowsProcessedTotal *prometheus.CounterVec
	IssuesCreatedTotal prometheus.Counter
	IssuesResolvedTotal prometheus.Counter
	ContactsCreatedTotal prometheus.Counter

	MessagesReceivedTotal prometheus.Counter
	MessagesDeletedTotal  prometheus.Counter
	MessagesRetriedTotal  prometheus.Counter
	MessagesPoisonedTotal prometheus.Counter

	CSVDecodeDuration prometheus.Histogram

	DBConnectionsActive prometheus.Gauge
	DBQueryDuration     *prometheus.HistogramVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewCollector registers and returns the metrics collector.
func NewCollector() *Collector {
	return &Collector{
		JobsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contact_ingest_jobs_total",
				Help: "Total number of ingestion jobs processed, by terminal outcome.",
			},
			[]string{"outcome"},
		),
		JobDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contact_ingest_job_duration_seconds",
				Help:    "Duration of a single processJob invocation in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 15),
			},
			[]string{"outcome"},
		),
		RowsProcessedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contact_ingest_rows_processed_total",
				Help: "Total number of CSV/staging rows processed, by validation result.",
			},
			[]string{"result"},
		),
		IssuesCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contact_ingest_issues_created_total",
				Help: "Total number of rows filed under an issue during initial ingestion, across all jobs.",
			},
		),
		IssuesResolvedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contact_ingest_issues_resolved_total",
				Help: "Total number of issues resolved (manually or automatically).",
			},
		),
		ContactsCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contact_ingest_contacts_created_total",
				Help: "Total number of contacts materialized during consolidation.",
			},
		),
		MessagesReceivedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contact_ingest_messages_received_total",
				Help: "Total number of queue messages received.",
			},
		),
		MessagesDeletedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contact_ingest_messages_deleted_total",
				Help: "Total number of queue messages deleted after successful processing.",
			},
		),
		MessagesRetriedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contact_ingest_messages_retried_total",
				Help: "Total number of queue messages left for redelivery after a processing failure.",
			},
		),
		MessagesPoisonedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contact_ingest_messages_poisoned_total",
				Help: "Total number of messages deleted as unprocessable: malformed or incomplete bodies, or stale/poison errors from the processor.",
			},
		),
		CSVDecodeDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "contact_ingest_csv_decode_duration_seconds",
				Help:    "Duration of the encoding/delimiter probing CSV decode step in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		),
		DBConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "contact_ingest_database_connections_active",
				Help: "Number of active database connections.",
			},
		),
		DBQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contact_ingest_database_query_duration_seconds",
				Help:    "Duration of database queries in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"operation"},
		),
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contact_ingest_http_requests_total",
				Help: "Total number of HTTP requests against the ops surface.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contact_ingest_http_request_duration_seconds",
				Help:    "Duration of HTTP requests against the ops surface in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
			},
			[]string{"method", "path"},
		),
	}
}

// RecordJob records the terminal outcome and duration of a processJob call.
func (c *Collector) RecordJob(outcome string, duration float64) {
	c.JobsTotal.WithLabelValues(outcome).Inc()
	c.JobDuration.WithLabelValues(outcome).Observe(duration)
}

// RecordRow records a single row's validation result (valid/issue).
func (c *Collector) RecordRow(result string) {
	c.RowsProcessedTotal.WithLabelValues(result).Inc()
}

// RecordMessageReceived records a message pulled off the queue.
func (c *Collector) RecordMessageReceived() {
	c.MessagesReceivedTotal.Inc()
}

// RecordMessageDeleted records a message removed after successful handling.
func (c *Collector) RecordMessageDeleted() {
	c.MessagesDeletedTotal.Inc()
}

// RecordMessageRetried records a message left un-deleted for redelivery.
func (c *Collector) RecordMessageRetried() {
	c.MessagesRetriedTotal.Inc()
}

// RecordMessagePoisoned records a message deleted as unprocessable rather than after successful processing.
func (c *Collector) RecordMessagePoisoned() {
	c.MessagesPoisonedTotal.Inc()
}

// RecordCSVDecode records the duration of one CSV decode call.
func (c *Collector) RecordCSVDecode(duration float64) {
	c.CSVDecodeDuration.Observe(duration)
}

// RecordDBQuery records a database query's duration.
func (c *Collector) RecordDBQuery(operation string, duration float64) {
	c.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// SetDBConnections sets the current active-connection gauge.
func (c *Collector) SetDBConnections(count int) {
	c.DBConnectionsActive.Set(float64(count))
}

// RecordHTTPRequest records one ops-surface HTTP request.
func (c *Collector) RecordHTTPRequest(method, path, status string, duration float64) {
	c.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}
