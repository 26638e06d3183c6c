package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Algod RPC Metrics
	algodRPCCallsTotal     *prometheus.CounterVec
	algodRPCCallDuration   *prometheus.HistogramVec
	algodRPCRateLimitHits  *prometheus.CounterVec
	algodRPCRetries        *prometheus.CounterVec
	algodRPCLimiterWaiting *prometheus.HistogramVec

	// Transaction Metrics
	transactionsSubmittedTotal *prometheus.CounterVec
	transactionConfirmDuration *prometheus.HistogramVec
	manualSignFallbacksTotal   *prometheus.CounterVec
	transactionRebuildsTotal   *prometheus.CounterVec

	// Ledger Metrics
	donationsRecordedTotal *prometheus.CounterVec
	donationAmountAlgos    *prometheus.HistogramVec
	rewardTokensCredited   *prometheus.CounterVec
	campaignsCreatedTotal  prometheus.Counter
	campaignsExpiredTotal  prometheus.Counter

	// Workflow Metrics
	workflowDuration        *prometheus.HistogramVec
	workflowExecutionsTotal *prometheus.CounterVec
	activityDuration        *prometheus.HistogramVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections *prometheus.GaugeVec
	sseEventsSent        *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Algod RPC Metrics
		algodRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "algod_rpc_calls_total",
				Help: "Total number of algod RPC calls by method and status",
			},
			[]string{"method", "status", "network"},
		),
		algodRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "algod_rpc_call_duration_seconds",
				Help:    "Duration of algod RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "network"},
		),
		algodRPCRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "algod_rpc_rate_limit_hits_total",
				Help: "Total number of algod rate limit responses (429 errors)",
			},
			[]string{"network"},
		),
		algodRPCRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "algod_rpc_retries_total",
				Help: "Total number of algod RPC retry attempts",
			},
			[]string{"method", "reason"},
		),
		algodRPCLimiterWaiting: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "algod_rpc_limiter_wait_seconds",
				Help:    "Time spent waiting on the client-side algod rate limiter",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"network"},
		),

		// Transaction Metrics
		transactionsSubmittedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_submitted_total",
				Help: "Total number of transactions submitted to the network",
			},
			[]string{"kind", "status"},
		),
		transactionConfirmDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transaction_confirmation_duration_seconds",
				Help:    "Time from submission to confirmation in seconds",
				Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"status"},
		),
		manualSignFallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "manual_sign_fallbacks_total",
				Help: "Total number of transactions exported for manual signing",
			},
			[]string{"kind"},
		),
		transactionRebuildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transaction_rebuilds_total",
				Help: "Total number of expired transactions rebuilt with fresh parameters",
			},
			[]string{"kind"},
		),

		// Ledger Metrics
		donationsRecordedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "donations_recorded_total",
				Help: "Total number of donations credited to campaigns",
			},
			[]string{"source", "status"},
		),
		donationAmountAlgos: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "donation_amount_algos",
				Help:    "Donation amounts in ALGO",
				Buckets: []float64{0.01, 0.1, 1, 10, 50, 100, 1000, 10000},
			},
			[]string{"source"},
		),
		rewardTokensCredited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reward_tokens_credited_total",
				Help: "Total reward tokens credited to donors and bounty claimers",
			},
			[]string{"reason"},
		),
		campaignsCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "campaigns_created_total",
				Help: "Total number of campaigns created",
			},
		),
		campaignsExpiredTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "campaigns_expired_total",
				Help: "Total number of campaigns deactivated after their deadline",
			},
		),

		// Workflow Metrics
		workflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workflow_duration_seconds",
				Help:    "Duration of workflow execution in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"workflow", "status"},
		),
		workflowExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_executions_total",
				Help: "Total number of workflow executions",
			},
			[]string{"workflow", "status"},
		),
		activityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "activity_duration_seconds",
				Help:    "Duration of workflow activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"activity", "status"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
			[]string{"stream"},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"stream", "event_type"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"event", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"event"},
		),
	}
}

// Algod RPC metric helpers

// RecordRPCCall records an algod RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, network string, duration float64) {
	m.algodRPCCallsTotal.WithLabelValues(method, status, network).Inc()
	m.algodRPCCallDuration.WithLabelValues(method, network).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(network string) {
	m.algodRPCRateLimitHits.WithLabelValues(network).Inc()
}

// RecordRPCRetry records a retry attempt.
func (m *Metrics) RecordRPCRetry(method, reason string) {
	m.algodRPCRetries.WithLabelValues(method, reason).Inc()
}

// RecordLimiterWait records time spent blocked on the client-side limiter.
func (m *Metrics) RecordLimiterWait(network string, duration float64) {
	m.algodRPCLimiterWaiting.WithLabelValues(network).Observe(duration)
}

// Transaction metric helpers

// RecordTransactionSubmitted records a submission attempt outcome.
func (m *Metrics) RecordTransactionSubmitted(kind, status string) {
	m.transactionsSubmittedTotal.WithLabelValues(kind, status).Inc()
}

// RecordConfirmation records how long a transaction took to confirm.
func (m *Metrics) RecordConfirmation(status string, duration float64) {
	m.transactionConfirmDuration.WithLabelValues(status).Observe(duration)
}

// RecordManualSignFallback records a transaction exported for out-of-band signing.
func (m *Metrics) RecordManualSignFallback(kind string) {
	m.manualSignFallbacksTotal.WithLabelValues(kind).Inc()
}

// RecordTransactionRebuild records an expired transaction rebuilt with fresh params.
func (m *Metrics) RecordTransactionRebuild(kind string) {
	m.transactionRebuildsTotal.WithLabelValues(kind).Inc()
}

// Ledger metric helpers

// RecordDonation records a donation credit attempt. Amount is only
// observed for successful credits.
func (m *Metrics) RecordDonation(source, status string, algos float64) {
	m.donationsRecordedTotal.WithLabelValues(source, status).Inc()
	if status == "success" {
		m.donationAmountAlgos.WithLabelValues(source).Observe(algos)
	}
}

// RecordRewardTokens records reward tokens credited.
func (m *Metrics) RecordRewardTokens(reason string, tokens uint64) {
	m.rewardTokensCredited.WithLabelValues(reason).Add(float64(tokens))
}

// RecordCampaignCreated records a new campaign.
func (m *Metrics) RecordCampaignCreated() {
	m.campaignsCreatedTotal.Inc()
}

// RecordCampaignsExpired records campaigns deactivated by the expiry sweep.
func (m *Metrics) RecordCampaignsExpired(count int) {
	m.campaignsExpiredTotal.Add(float64(count))
}

// Workflow metric helpers

// RecordWorkflowDuration records workflow execution duration.
func (m *Metrics) RecordWorkflowDuration(workflow, status string, duration float64) {
	m.workflowDuration.WithLabelValues(workflow, status).Observe(duration)
	m.workflowExecutionsTotal.WithLabelValues(workflow, status).Inc()
}

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity, status string, duration float64) {
	m.activityDuration.WithLabelValues(activity, status).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(stream string, delta float64) {
	m.sseActiveConnections.WithLabelValues(stream).Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(stream, eventType string) {
	m.sseEventsSent.WithLabelValues(stream, eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish of one event type.
func (m *Metrics) RecordNATSPublish(event, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(event, status).Inc()
	m.natsPublishDuration.WithLabelValues(event).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
