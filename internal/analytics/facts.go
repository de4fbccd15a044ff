// Package analytics appends order lifecycle facts to BigQuery.
package analytics

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/livemart/livemart-backend/pkg/enums"
	"github.com/livemart/livemart-backend/pkg/outbox/payloads"
	"github.com/livemart/livemart-backend/pkg/outbox/registry"
)

// ErrNotTracked is returned for events that produce no order fact.
var ErrNotTracked = errors.New("event not tracked in order facts")

// OrderFact is one row of the order_facts table. Every order event appends
// a row; the latest row per order_id is the order's current state.
type OrderFact struct {
	EventID        string
	EventType      enums.OutboxEventType
	OccurredAt     time.Time
	OrderID        uuid.UUID
	CustomerID     uuid.UUID
	RetailerID     *uuid.UUID
	WholesalerID   *uuid.UUID
	Status         enums.OrderStatus
	PreviousStatus *enums.OrderStatus
	PaymentMethod  *enums.PaymentMethod
	PaymentStatus  *enums.PaymentStatus
	TotalAmount    *big.Rat
	ItemCount      *int64
	PendingDays    *int64
	Payload        json.RawMessage
}

// Save implements bigquery.ValueSaver. The event id is the insert id, so a
// redelivered event is dropped by BigQuery's best-effort dedup.
func (f OrderFact) Save() (map[string]bigquery.Value, string, error) {
	row := map[string]bigquery.Value{
		"event_id":        f.EventID,
		"event_type":      string(f.EventType),
		"occurred_at":     f.OccurredAt,
		"order_id":        f.OrderID.String(),
		"customer_id":     f.CustomerID.String(),
		"retailer_id":     idValue(f.RetailerID),
		"wholesaler_id":   idValue(f.WholesalerID),
		"status":          string(f.Status),
		"previous_status": stringValue(f.PreviousStatus),
		"payment_method":  stringValue(f.PaymentMethod),
		"payment_status":  stringValue(f.PaymentStatus),
		"item_count":      optional(f.ItemCount),
		"pending_days":    optional(f.PendingDays),
		"total_amount":    nil,
		"payload":         nil,
	}
	if f.TotalAmount != nil {
		row["total_amount"] = f.TotalAmount
	}
	if len(f.Payload) > 0 {
		row["payload"] = string(f.Payload)
	}
	return row, f.EventID, nil
}

// FactFor maps a decoded delivery onto its order fact.
func FactFor(d *registry.Delivery) (OrderFact, error) {
	if d == nil {
		return OrderFact{}, errors.New("nil delivery")
	}
	switch event := d.Payload.(type) {
	case *payloads.OrderEvent:
		if d.EventType == enums.EventOrderUpdateBroadcast {
			return OrderFact{}, ErrNotTracked
		}
		return orderEventFact(d, event)
	case *payloads.OrderPendingNudgeEvent:
		return nudgeFact(d, event)
	default:
		return OrderFact{}, ErrNotTracked
	}
}

func orderEventFact(d *registry.Delivery, event *payloads.OrderEvent) (OrderFact, error) {
	if event.OrderID == uuid.Nil {
		return OrderFact{}, errors.New("order id missing")
	}
	var total *big.Rat
	if event.TotalAmount != "" {
		amount, err := decimal.NewFromString(event.TotalAmount)
		if err != nil {
			return OrderFact{}, fmt.Errorf("parse total amount %q: %w", event.TotalAmount, err)
		}
		total = amount.Rat()
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return OrderFact{}, err
	}
	items := int64(event.ItemCount)
	fact := OrderFact{
		EventID:        d.EventID,
		EventType:      d.EventType,
		OccurredAt:     pickTime(d.OccurredAt, event.OccurredAt),
		OrderID:        event.OrderID,
		CustomerID:     event.CustomerID,
		RetailerID:     event.RetailerID,
		WholesalerID:   event.WholesalerID,
		Status:         event.Status,
		PreviousStatus: event.PreviousStatus,
		TotalAmount:    total,
		ItemCount:      &items,
		Payload:        raw,
	}
	if event.PaymentMethod != "" {
		fact.PaymentMethod = &event.PaymentMethod
	}
	if event.PaymentStatus != "" {
		fact.PaymentStatus = &event.PaymentStatus
	}
	return fact, nil
}

func nudgeFact(d *registry.Delivery, event *payloads.OrderPendingNudgeEvent) (OrderFact, error) {
	if event.OrderID == uuid.Nil {
		return OrderFact{}, errors.New("order id missing")
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return OrderFact{}, err
	}
	days := int64(event.PendingDays)
	return OrderFact{
		EventID:      d.EventID,
		EventType:    d.EventType,
		OccurredAt:   pickTime(d.OccurredAt, event.CreatedAt),
		OrderID:      event.OrderID,
		CustomerID:   event.CustomerID,
		RetailerID:   event.RetailerID,
		WholesalerID: event.WholesalerID,
		Status:       enums.OrderStatusPending,
		PendingDays:  &days,
		Payload:      raw,
	}, nil
}

func pickTime(primary, fallback time.Time) time.Time {
	if !primary.IsZero() {
		return primary.UTC()
	}
	return fallback.UTC()
}

func optional[T any](v *T) bigquery.Value {
	if v == nil {
		return nil
	}
	return *v
}

func stringValue[T ~string](v *T) bigquery.Value {
	if v == nil {
		return nil
	}
	return string(*v)
}

func idValue(id *uuid.UUID) bigquery.Value {
	if id == nil {
		return nil
	}
	return id.String()
}
