package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
)

// OrderMetrics tracks transaction outcomes, latency and stock-outs.
type OrderMetrics struct {
	outcomes  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	stockouts *prometheus.CounterVec
	lowStock  prometheus.Gauge
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_transactions_total",
		Help: "Transactions processed, by outcome and error code.",
	}, []string{"outcome", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_transaction_duration_seconds",
		Help:    "Time spent creating a transaction, including the database commit.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	stockouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_ingredient_stockouts_total",
		Help: "Orders rejected because an ingredient ran short.",
	}, []string{"ingredient_id"})
	lowStock := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pos_ingredients_low_stock",
		Help: "Ingredients at or below their minimum threshold at the last sweep.",
	})
	reg.MustRegister(outcomes, duration, stockouts, lowStock)
	return &OrderMetrics{
		outcomes:  outcomes,
		duration:  duration,
		stockouts: stockouts,
		lowStock:  lowStock,
	}
}

// ObserveCommitted records a committed transaction.
func (m *OrderMetrics) ObserveCommitted(duration time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(OutcomeCommitted, "").Inc()
	m.duration.WithLabelValues(OutcomeCommitted).Observe(duration.Seconds())
}

// ObserveRejected records a rolled back transaction with its error code.
func (m *OrderMetrics) ObserveRejected(code string, duration time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(OutcomeRejected, normalizeLabel(code)).Inc()
	m.duration.WithLabelValues(OutcomeRejected).Observe(duration.Seconds())
}

// IncStockout counts a rejection caused by the given ingredient.
func (m *OrderMetrics) IncStockout(ingredientID string) {
	if m == nil || m.stockouts == nil {
		return
	}
	m.stockouts.WithLabelValues(normalizeLabel(ingredientID)).Inc()
}

// SetLowStock publishes the number of ingredients found below threshold.
func (m *OrderMetrics) SetLowStock(count int) {
	if m == nil || m.lowStock == nil {
		return
	}
	m.lowStock.Set(float64(count))
}
