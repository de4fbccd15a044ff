package notifications

import (
	"context"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	"github.com/livemart/livemart-backend/pkg/logger"
	"github.com/livemart/livemart-backend/pkg/mailer"
	"github.com/livemart/livemart-backend/pkg/outbox/idempotency"
	"github.com/livemart/livemart-backend/pkg/outbox/payloads"
	"github.com/livemart/livemart-backend/pkg/outbox/registry"
)

const inAppNotificationConsumer = "in-app-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type claimer interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

type messageDecoder interface {
	DecodeMessage(data []byte, attrs map[string]string) (*registry.Delivery, error)
}

// Consumer turns order and restock events into in-app notification rows.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	claims       claimer
	decoder      messageDecoder
	logg         *logger.Logger
}

// NewConsumer builds an in-app notification consumer for one subscription.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, guard *idempotency.Guard, logg *logger.Logger) (*Consumer, error) {
	switch {
	case repo == nil:
		return nil, fmt.Errorf("notifications repository required")
	case subscription == nil:
		return nil, fmt.Errorf("subscription required")
	case guard == nil:
		return nil, fmt.Errorf("idempotency guard required")
	case logg == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		claims:       guard.For(inAppNotificationConsumer),
		decoder:      registry.Payloads{},
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.handle(ctx, msg.ID, msg.Attributes, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// handle reports whether the message should be acked. Only transient
// failures (redis, database) nack; bad messages are logged and dropped.
func (c *Consumer) handle(ctx context.Context, messageID string, attrs map[string]string, data []byte) bool {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": attrs["event_type"],
	})

	delivery, err := c.decoder.DecodeMessage(data, attrs)
	if errors.Is(err, registry.ErrUnknownEvent) {
		return true
	}
	if err != nil {
		c.logg.Error(logCtx, "dropping undecodable message", err)
		return true
	}
	if !handledEvent(delivery.EventType) {
		return true
	}
	logCtx = c.logg.WithField(logCtx, "event_id", delivery.EventID)

	first, err := c.claims.Claim(ctx, delivery.EventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency claim failed", err)
		return false
	}
	if !first {
		c.logg.Info(logCtx, "event already processed")
		return true
	}

	rows := notificationsFor(delivery.EventType, delivery.Payload)
	for i := range rows {
		if err := c.repo.Create(ctx, &rows[i]); err != nil {
			c.logg.Error(logCtx, "notification insert failed", err)
			if relErr := c.claims.Release(ctx, delivery.EventID); relErr != nil {
				c.logg.Warn(logCtx, "idempotency release failed: "+relErr.Error())
			}
			return false
		}
	}
	if len(rows) > 0 {
		c.logg.Info(c.logg.WithField(logCtx, "notifications", len(rows)), "in-app notifications created")
	}
	return true
}

func handledEvent(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventOrderCreated,
		enums.EventOrderStatusUpdated,
		enums.EventPaymentUpdated,
		enums.EventOrderPendingNudge,
		enums.EventRestockNotified:
		return true
	default:
		return false
	}
}

func notificationsFor(eventType enums.OutboxEventType, payload any) []models.Notification {
	switch p := payload.(type) {
	case *payloads.OrderEvent:
		short := mailer.ShortID(p.OrderID.String())
		link := stringPtr(fmt.Sprintf("/orders/%s", p.OrderID))
		switch eventType {
		case enums.EventOrderCreated:
			rows := []models.Notification{{
				UserID:  p.CustomerID,
				Type:    enums.NotificationTypeOrderCreated,
				Title:   "Order placed",
				Message: fmt.Sprintf("Your order #%s totalling %s has been placed.", short, p.TotalAmount),
				Link:    link,
			}}
			if seller := sellerOf(p.RetailerID, p.WholesalerID); seller != nil {
				rows = append(rows, models.Notification{
					UserID:  *seller,
					Type:    enums.NotificationTypeOrderCreated,
					Title:   "New order received",
					Message: fmt.Sprintf("Order #%s with %d item(s) is waiting for you.", short, p.ItemCount),
					Link:    link,
				})
			}
			return rows
		case enums.EventOrderStatusUpdated:
			return []models.Notification{{
				UserID:  p.CustomerID,
				Type:    enums.NotificationTypeOrderStatus,
				Title:   "Order updated",
				Message: fmt.Sprintf("Order #%s is now %s.", short, p.Status),
				Link:    link,
			}}
		case enums.EventPaymentUpdated:
			return []models.Notification{{
				UserID:  p.CustomerID,
				Type:    enums.NotificationTypePaymentUpdate,
				Title:   "Payment updated",
				Message: fmt.Sprintf("Payment for order #%s is %s.", short, p.PaymentStatus),
				Link:    link,
			}}
		}
	case *payloads.OrderPendingNudgeEvent:
		seller := sellerOf(p.RetailerID, p.WholesalerID)
		if seller == nil {
			return nil
		}
		return []models.Notification{{
			UserID:  *seller,
			Type:    enums.NotificationTypeOrderPending,
			Title:   "Order awaiting action",
			Message: fmt.Sprintf("Order #%s has been pending for %d day(s).", mailer.ShortID(p.OrderID.String()), p.PendingDays),
			Link:    stringPtr(fmt.Sprintf("/orders/%s", p.OrderID)),
		}}
	case *payloads.RestockNotifiedEvent:
		return []models.Notification{{
			UserID:  p.UserID,
			Type:    enums.NotificationTypeRestock,
			Title:   "Back in stock",
			Message: fmt.Sprintf("%s is available again.", p.ProductName),
			Link:    stringPtr(fmt.Sprintf("/products/%s", p.ProductID)),
		}}
	}
	return nil
}

func sellerOf(retailerID, wholesalerID *uuid.UUID) *uuid.UUID {
	if retailerID != nil {
		return retailerID
	}
	return wholesalerID
}

func stringPtr(value string) *string {
	return &value
}
