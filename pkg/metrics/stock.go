package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stockroomhq/stockroom-backend/pkg/enums"
)

// StockMetrics tracks stock operation throughput and alert reconciliation.
type StockMetrics struct {
	operations       *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	reconcileSuccess prometheus.Counter
	reconcileFailure prometheus.Counter
	activeAlerts     prometheus.Gauge
}

// NewStockMetrics registers the stock metrics on the provided registerer.
func NewStockMetrics(reg prometheus.Registerer) *StockMetrics {
	if reg == nil {
		return &StockMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_operations_total",
		Help: "Committed stock operations by type.",
	}, []string{"type"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_operation_rejections_total",
		Help: "Rejected stock operations by reason.",
	}, []string{"reason"})
	reconcileSuccess := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alert_reconcile_success_total",
		Help: "Successful post-commit alert reconciliations.",
	})
	reconcileFailure := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alert_reconcile_failure_total",
		Help: "Failed post-commit alert reconciliations.",
	})
	activeAlerts := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "low_stock_alerts_active",
		Help: "Products currently below their alert threshold.",
	})
	reg.MustRegister(operations, rejections, reconcileSuccess, reconcileFailure, activeAlerts)
	return &StockMetrics{
		operations:       operations,
		rejections:       rejections,
		reconcileSuccess: reconcileSuccess,
		reconcileFailure: reconcileFailure,
		activeAlerts:     activeAlerts,
	}
}

// IncOperation increments the committed-operation counter for the given type.
func (s *StockMetrics) IncOperation(opType enums.OperationType) {
	if s == nil || s.operations == nil {
		return
	}
	s.operations.WithLabelValues(string(opType)).Inc()
}

// IncRejection increments the rejection counter for the given reason label.
func (s *StockMetrics) IncRejection(reason string) {
	if s == nil || s.rejections == nil {
		return
	}
	s.rejections.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncReconcileSuccess increments the reconcile success counter.
func (s *StockMetrics) IncReconcileSuccess() {
	if s == nil || s.reconcileSuccess == nil {
		return
	}
	s.reconcileSuccess.Inc()
}

// IncReconcileFailure increments the reconcile failure counter.
func (s *StockMetrics) IncReconcileFailure() {
	if s == nil || s.reconcileFailure == nil {
		return
	}
	s.reconcileFailure.Inc()
}

// SetActiveAlerts records the current number of products with an open alert.
func (s *StockMetrics) SetActiveAlerts(n int) {
	if s == nil || s.activeAlerts == nil {
		return
	}
	s.activeAlerts.Set(float64(n))
}
