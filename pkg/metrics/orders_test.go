package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestOrderMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetrics(reg)
	m.IncCreated("cod")
	m.IncCreated("cod")
	m.IncTransition("delivered")
	m.IncReservation("insufficient_stock")
	m.IncReconciliation("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	checks := []struct {
		name, label, value string
		want               float64
	}{
		{"orders_created_total", "payment_method", "cod", 2},
		{"order_status_transitions_total", "to", "delivered", 1},
		{"inventory_reservations_total", "result", "insufficient_stock", 1},
		{"payment_reconciliations_total", "outcome", "unknown", 1},
	}
	for _, c := range checks {
		got, err := fetchCounterValue(mfs, c.name, c.label, c.value)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("%s expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var orders *OrderMetrics
	orders.IncCreated("online")
	NewOrderMetrics(nil).IncTransition("processing")
	var httpMetrics *HTTPMetrics
	httpMetrics.Observe("GET", "/api/orders", 200, time.Millisecond)
}

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("GET", "/api/products", 200, 20*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "http_requests_total", "route", "/api/products"); err != nil || got != 1 {
		t.Fatalf("expected one request, got %v (%v)", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "http_request_duration_seconds", "method", "GET"); err != nil || got <= 0 {
		t.Fatalf("expected latency recorded, got %v (%v)", got, err)
	}
}
