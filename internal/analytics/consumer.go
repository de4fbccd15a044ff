package analytics

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/livemart/livemart-backend/pkg/logger"
	"github.com/livemart/livemart-backend/pkg/outbox/idempotency"
	"github.com/livemart/livemart-backend/pkg/outbox/registry"
)

const consumerName = "order-facts"

type factWriter interface {
	Write(ctx context.Context, facts ...OrderFact) error
}

type claimer interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

type messageDecoder interface {
	DecodeMessage(data []byte, attrs map[string]string) (*registry.Delivery, error)
}

// Consumer reads relayed order events from the analytics subscription and
// appends one fact per event.
type Consumer struct {
	subscription *gcppubsub.Subscriber
	writer       factWriter
	claims       claimer
	decoder      messageDecoder
	logg         *logger.Logger
}

func NewConsumer(subscription *gcppubsub.Subscriber, writer factWriter, guard *idempotency.Guard, logg *logger.Logger) (*Consumer, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("analytics subscription required")
	case writer == nil:
		return nil, errors.New("fact writer required")
	case guard == nil:
		return nil, errors.New("idempotency guard required")
	case logg == nil:
		return nil, errors.New("logger required")
	}
	return &Consumer{
		subscription: subscription,
		writer:       writer,
		claims:       guard.For(consumerName),
		decoder:      registry.Payloads{},
		logg:         logg,
	}, nil
}

// Run receives until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if c.handle(ctx, msg.ID, msg.Attributes, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

func (c *Consumer) handle(ctx context.Context, messageID string, attrs map[string]string, data []byte) bool {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": attrs["event_type"],
		"consumer":   consumerName,
	})

	delivery, err := c.decoder.DecodeMessage(data, attrs)
	if errors.Is(err, registry.ErrUnknownEvent) {
		return true
	}
	if err != nil {
		c.logg.Error(logCtx, "dropping undecodable message", err)
		return true
	}
	fact, err := FactFor(delivery)
	if errors.Is(err, ErrNotTracked) {
		return true
	}
	if err != nil {
		c.logg.Error(logCtx, "dropping invalid order event", err)
		return true
	}
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"event_id": delivery.EventID,
		"order_id": fact.OrderID.String(),
	})

	first, err := c.claims.Claim(ctx, delivery.EventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency claim failed", err)
		return false
	}
	if !first {
		return true
	}

	if err := c.writer.Write(ctx, fact); err != nil {
		c.logg.Error(logCtx, "order fact insert failed", err)
		if relErr := c.claims.Release(ctx, delivery.EventID); relErr != nil {
			c.logg.Warn(logCtx, "idempotency release failed: "+relErr.Error())
		}
		return false
	}
	c.logg.Info(logCtx, "order fact appended")
	return true
}
