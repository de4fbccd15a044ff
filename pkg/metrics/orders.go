package metrics

import "github.com/prometheus/client_golang/prometheus"

// OrderMetrics counts order lifecycle activity.
type OrderMetrics struct {
	created         *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	reservations    *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
}

// NewOrderMetrics registers the order collectors on reg. A nil registerer
// yields a no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders persisted, by payment method.",
	}, []string{"payment_method"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Successful order status transitions, by target status.",
	}, []string{"to"})
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reservations_total",
		Help: "Inventory reservation attempts, by result.",
	}, []string{"result"})
	reconciliations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconciliations_total",
		Help: "Payment session reconciliations, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(created, transitions, reservations, reconciliations)
	return &OrderMetrics{
		created:         created,
		transitions:     transitions,
		reservations:    reservations,
		reconciliations: reconciliations,
	}
}

func (m *OrderMetrics) IncCreated(paymentMethod string) {
	if m == nil || m.created == nil {
		return
	}
	m.created.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
}

func (m *OrderMetrics) IncTransition(to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(to)).Inc()
}

// IncReservation records a reservation result: reserved, insufficient_stock,
// not_found or error.
func (m *OrderMetrics) IncReservation(result string) {
	if m == nil || m.reservations == nil {
		return
	}
	m.reservations.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncReconciliation records created, deduplicated, or rejected outcomes.
func (m *OrderMetrics) IncReconciliation(outcome string) {
	if m == nil || m.reconciliations == nil {
		return
	}
	m.reconciliations.WithLabelValues(normalizeLabel(outcome)).Inc()
}
