package observer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsEnabled = true // Flag to control metric collection

	workerBatchLabels  = []string{"worker"}
	workerResultLabels = []string{"worker", "result"}
	webhookEventLabels = []string{"kind"}
	dbOpLabels         = []string{"operation", "entity", "status"}
	gatewayCallLabels  = []string{"call", "status"}

	// WorkerBatchesTotal counts worker invocations per worker name.
	WorkerBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_delivery_worker_batches_total",
			Help: "Total number of worker batch invocations.",
		},
		workerBatchLabels,
	)

	// WorkerItemsTotal counts processed units per worker and outcome
	// (sent, failed, requeued, skipped).
	WorkerItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_delivery_worker_items_total",
			Help: "Total number of units processed by workers, labeled by outcome.",
		},
		workerResultLabels,
	)

	// WorkerBatchDurationSeconds observes full batch durations.
	WorkerBatchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wa_delivery_worker_batch_duration_seconds",
			Help:    "Histogram of worker batch durations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		workerBatchLabels,
	)

	// WebhookEventsTotal counts processed webhook events by kind
	// (status_update, inbound_message, inbound_duplicate, status_orphan).
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_delivery_webhook_events_total",
			Help: "Total number of webhook events processed, labeled by kind.",
		},
		webhookEventLabels,
	)

	// GatewayCallDurationSeconds observes external gateway call durations.
	GatewayCallDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wa_delivery_gateway_call_duration_seconds",
			Help:    "Histogram of gateway call durations, labeled by call and status.",
			Buckets: prometheus.ExponentialBuckets(0.025, 2, 10), // 25ms to ~12s
		},
		gatewayCallLabels,
	)

	// DbOperationDurationSeconds observes repository operation durations.
	DbOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wa_delivery_db_operation_duration_seconds",
			Help:    "Histogram of database operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		dbOpLabels,
	)

	// RateLimitSkipsTotal counts bulk jobs skipped because the rolling
	// per-minute window was exhausted.
	RateLimitSkipsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wa_delivery_rate_limit_skips_total",
			Help: "Total number of bulk jobs skipped for a cycle due to the per-minute rate limit.",
		},
	)

	// AuditQueueLength tracks the async audit worker backlog.
	AuditQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wa_delivery_audit_queue_length",
			Help: "Current number of tasks waiting in the audit worker pool.",
		},
	)
)

// InitMetrics toggles metric collection globally.
func InitMetrics(enabled bool) {
	metricsEnabled = enabled
}

// IncWorkerBatch records one worker invocation.
func IncWorkerBatch(worker string) {
	if !metricsEnabled {
		return
	}
	WorkerBatchesTotal.WithLabelValues(worker).Inc()
}

// IncWorkerItem records one processed unit outcome.
func IncWorkerItem(worker, result string) {
	if !metricsEnabled {
		return
	}
	WorkerItemsTotal.WithLabelValues(worker, result).Inc()
}

// ObserveWorkerBatchDuration records a full batch duration.
func ObserveWorkerBatchDuration(worker string, d time.Duration) {
	if !metricsEnabled {
		return
	}
	WorkerBatchDurationSeconds.WithLabelValues(worker).Observe(d.Seconds())
}

// IncWebhookEvent records one processed webhook event.
func IncWebhookEvent(kind string) {
	if !metricsEnabled {
		return
	}
	WebhookEventsTotal.WithLabelValues(kind).Inc()
}

// ObserveGatewayCallDuration records one gateway call.
func ObserveGatewayCallDuration(call string, d time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	GatewayCallDurationSeconds.WithLabelValues(call, status).Observe(d.Seconds())
}

// ObserveDbOperationDuration records one repository operation.
func ObserveDbOperationDuration(operation, entity string, d time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	DbOperationDurationSeconds.WithLabelValues(operation, entity, status).Observe(d.Seconds())
}

// IncRateLimitSkip records one job skipped for an exhausted rate window.
func IncRateLimitSkip() {
	if !metricsEnabled {
		return
	}
	RateLimitSkipsTotal.Inc()
}

// SetAuditQueueLength updates the audit backlog gauge.
func SetAuditQueueLength(n int) {
	if !metricsEnabled {
		return
	}
	AuditQueueLength.Set(float64(n))
}
