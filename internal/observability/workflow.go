package observability

import "github.com/prometheus/client_golang/prometheus"

// WorkflowMetrics counts purchase order and stock movements.
type WorkflowMetrics struct {
	transitions *prometheus.CounterVec
	retries     *prometheus.CounterVec
	alerts      *prometheus.CounterVec
}

// NewWorkflowMetrics registers the workflow collectors on registerer.
func NewWorkflowMetrics(registerer prometheus.Registerer) *WorkflowMetrics {
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_procurement_transitions_total",
		Help: "Purchase order workflow operations by source status, target status and outcome.",
	}, []string{"operation", "from", "to", "outcome"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_procurement_conflict_retries_total",
		Help: "Workflow transactions retried after a serialization conflict.",
	}, []string{"operation"})
	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_inventory_stock_alerts_total",
		Help: "Stock alerts handled by the worker, by stock status.",
	}, []string{"status"})
	registerer.MustRegister(transitions, retries, alerts)
	return &WorkflowMetrics{transitions: transitions, retries: retries, alerts: alerts}
}

// ObserveTransition counts one workflow operation.
func (m *WorkflowMetrics) ObserveTransition(operation, from, to, outcome string) {
	if m == nil {
		return
	}
	if from == "" {
		from = "unknown"
	}
	m.transitions.WithLabelValues(operation, from, to, outcome).Inc()
}

// ObserveConflictRetry counts one retried transaction.
func (m *WorkflowMetrics) ObserveConflictRetry(operation string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(operation).Inc()
}

// ObserveStockAlert counts one handled stock alert.
func (m *WorkflowMetrics) ObserveStockAlert(status string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(status).Inc()
}
