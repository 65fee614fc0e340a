package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operationDuration  *prometheus.HistogramVec
	transactionsTotal  *prometheus.CounterVec
	transfersTotal     *prometheus.CounterVec
	insufficientFunds  prometheus.Counter
	limitRejections    prometheus.Counter
	reversalsTotal     prometheus.Counter
	notificationRetry  prometheus.Counter
	notificationsTotal *prometheus.CounterVec
	auditEntriesTotal  prometheus.Counter
	railErrors         prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// engine metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "corebank_operation_duration_seconds",
				Help:    "Duration of core operations by name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		transactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corebank_transactions_total",
				Help: "Total transactions by type and final status.",
			},
			[]string{"type", "status"},
		),
		transfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corebank_transfers_total",
				Help: "Total transfers by type and final status.",
			},
			[]string{"type", "status"},
		),
		insufficientFunds: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "corebank_insufficient_funds_total",
				Help: "Total debits rejected for insufficient funds.",
			},
		),
		limitRejections: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "corebank_daily_limit_rejections_total",
				Help: "Total transfers rejected by the daily limit check.",
			},
		),
		reversalsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "corebank_reversals_total",
				Help: "Total compensating reversal transactions posted.",
			},
		),
		notificationRetry: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "corebank_notification_retries_total",
				Help: "Total notification delivery retries.",
			},
		),
		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corebank_notifications_total",
				Help: "Total notification requests by final status.",
			},
			[]string{"status"},
		),
		auditEntriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "corebank_audit_entries_total",
				Help: "Total audit log entries appended.",
			},
		),
		railErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "corebank_rail_errors_total",
				Help: "Total external rail gateway failures.",
			},
		),
	}
}

// RecordOperationDuration records the duration of a core operation.
func (m *Metrics) RecordOperationDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrTransaction counts a transaction reaching a final status.
func (m *Metrics) IncrTransaction(txType, status string) {
	m.transactionsTotal.WithLabelValues(txType, status).Inc()
}

// IncrTransfer counts a transfer reaching a final status.
func (m *Metrics) IncrTransfer(transferType, status string) {
	m.transfersTotal.WithLabelValues(transferType, status).Inc()
}

// IncrInsufficientFunds counts a rejected debit.
func (m *Metrics) IncrInsufficientFunds() { m.insufficientFunds.Inc() }

// IncrLimitRejection counts a daily-limit rejection.
func (m *Metrics) IncrLimitRejection() { m.limitRejections.Inc() }

// IncrReversal counts a compensating reversal.
func (m *Metrics) IncrReversal() { m.reversalsTotal.Inc() }

// IncrNotificationRetry counts one delivery retry.
func (m *Metrics) IncrNotificationRetry() { m.notificationRetry.Inc() }

// IncrNotification counts a notification reaching a final status.
func (m *Metrics) IncrNotification(status string) {
	m.notificationsTotal.WithLabelValues(status).Inc()
}

// IncrAuditEntry counts an appended audit entry.
func (m *Metrics) IncrAuditEntry() { m.auditEntriesTotal.Inc() }

// IncrRailError counts an external rail failure.
func (m *Metrics) IncrRailError() { m.railErrors.Inc() }

// EngineSnapshot is a point-in-time view of the engine counters for the
// GET /v1/metrics/engine endpoint.
type EngineSnapshot struct {
	TransactionsCompleted float64 `json:"transactions_completed"`
	TransactionsFailed    float64 `json:"transactions_failed"`
	TransfersCompleted    float64 `json:"transfers_completed"`
	TransfersFailed       float64 `json:"transfers_failed"`
	InsufficientFunds     float64 `json:"insufficient_funds_rejections"`
	DailyLimitRejections  float64 `json:"daily_limit_rejections"`
	Reversals             float64 `json:"reversals"`
	NotificationRetries   float64 `json:"notification_retries"`
	AuditEntries          float64 `json:"audit_entries"`
}

// Snapshot gathers current counter values.
// Note: Prometheus counters expose cumulative values.
func (m *Metrics) Snapshot() *EngineSnapshot {
	snap := &EngineSnapshot{
		InsufficientFunds:    counterValue(m.insufficientFunds),
		DailyLimitRejections: counterValue(m.limitRejections),
		Reversals:            counterValue(m.reversalsTotal),
		NotificationRetries:  counterValue(m.notificationRetry),
		AuditEntries:         counterValue(m.auditEntriesTotal),
	}
	for _, txType := range []string{"deposit", "withdrawal", "transfer_in", "transfer_out", "interest", "fee", "loan_disbursement", "loan_repayment"} {
		snap.TransactionsCompleted += counterValue(m.transactionsTotal.WithLabelValues(txType, "completed"))
		snap.TransactionsFailed += counterValue(m.transactionsTotal.WithLabelValues(txType, "failed"))
	}
	for _, trfType := range []string{"internal", "external", "rtgs", "neft", "imps"} {
		snap.TransfersCompleted += counterValue(m.transfersTotal.WithLabelValues(trfType, "completed"))
		snap.TransfersFailed += counterValue(m.transfersTotal.WithLabelValues(trfType, "failed"))
	}
	return snap
}

// counterValue extracts the current float64 value from a counter.
func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
