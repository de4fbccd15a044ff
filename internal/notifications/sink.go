package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	"github.com/livemart/livemart-backend/pkg/outbox"
	"github.com/livemart/livemart-backend/pkg/outbox/payloads"
)

// Sink receives domain notifications after the business transaction commits.
// Callers log returned errors and carry on.
type Sink interface {
	OrderCreated(ctx context.Context, customerID uuid.UUID, order *models.Order) error
	OrderStatusUpdated(ctx context.Context, customerID uuid.UUID, order *models.Order, previous enums.OrderStatus) error
	OrderUpdateBroadcast(ctx context.Context, order *models.Order) error
	PaymentUpdated(ctx context.Context, customerID uuid.UUID, order *models.Order) error
	ProductChanged(ctx context.Context, kind enums.ProductChangeKind, productID uuid.UUID) error
}

// NopSink drops every notification.
type NopSink struct{}

func (NopSink) OrderCreated(context.Context, uuid.UUID, *models.Order) error { return nil }
func (NopSink) OrderStatusUpdated(context.Context, uuid.UUID, *models.Order, enums.OrderStatus) error {
	return nil
}
func (NopSink) OrderUpdateBroadcast(context.Context, *models.Order) error { return nil }
func (NopSink) PaymentUpdated(context.Context, uuid.UUID, *models.Order) error { return nil }
func (NopSink) ProductChanged(context.Context, enums.ProductChangeKind, uuid.UUID) error {
	return nil
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OutboxSink persists each notification as an outbox row in its own short
// transaction; the outbox publisher moves them to Pub/Sub.
type OutboxSink struct {
	db     txRunner
	outbox outboxEmitter
	now    func() time.Time
}

func NewOutboxSink(db txRunner, emitter outboxEmitter) *OutboxSink {
	return &OutboxSink{db: db, outbox: emitter, now: time.Now}
}

func (s *OutboxSink) OrderCreated(ctx context.Context, customerID uuid.UUID, order *models.Order) error {
	return s.emitOrder(ctx, enums.EventOrderCreated, customerID, order, nil)
}

func (s *OutboxSink) OrderStatusUpdated(ctx context.Context, customerID uuid.UUID, order *models.Order, previous enums.OrderStatus) error {
	return s.emitOrder(ctx, enums.EventOrderStatusUpdated, customerID, order, &previous)
}

func (s *OutboxSink) OrderUpdateBroadcast(ctx context.Context, order *models.Order) error {
	if order == nil {
		return nil
	}
	return s.emitOrder(ctx, enums.EventOrderUpdateBroadcast, order.CustomerID, order, nil)
}

func (s *OutboxSink) PaymentUpdated(ctx context.Context, customerID uuid.UUID, order *models.Order) error {
	return s.emitOrder(ctx, enums.EventPaymentUpdated, customerID, order, nil)
}

func (s *OutboxSink) ProductChanged(ctx context.Context, kind enums.ProductChangeKind, productID uuid.UUID) error {
	return s.emit(ctx, outbox.DomainEvent{
		EventType:     enums.EventProductChanged,
		AggregateType: enums.AggregateProduct,
		AggregateID:   productID,
		Version:       1,
		OccurredAt:    s.now().UTC(),
		Data:          payloads.ProductChangedEvent{ProductID: productID, Kind: kind},
	})
}

func (s *OutboxSink) emitOrder(ctx context.Context, eventType enums.OutboxEventType, customerID uuid.UUID, order *models.Order, previous *enums.OrderStatus) error {
	if order == nil {
		return nil
	}
	occurred := s.now().UTC()
	return s.emit(ctx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: customerID, Role: enums.RoleCustomer},
		Version:       1,
		OccurredAt:    occurred,
		Data:          OrderPayload(order, previous, occurred),
	})
}

func (s *OutboxSink) emit(ctx context.Context, event outbox.DomainEvent) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, event)
	})
}

// OrderPayload flattens an order into the shared order event payload.
func OrderPayload(order *models.Order, previous *enums.OrderStatus, occurred time.Time) payloads.OrderEvent {
	return payloads.OrderEvent{
		OrderID:        order.ID,
		CustomerID:     order.CustomerID,
		RetailerID:     order.RetailerID,
		WholesalerID:   order.WholesalerID,
		Status:         order.Status,
		PreviousStatus: previous,
		PaymentStatus:  order.PaymentStatus,
		PaymentMethod:  order.PaymentMethod,
		TotalAmount:    order.TotalAmount.StringFixed(2),
		ItemCount:      len(order.Items),
		TrackingNumber: order.Delivery.TrackingNumber,
		OccurredAt:     occurred,
	}
}
