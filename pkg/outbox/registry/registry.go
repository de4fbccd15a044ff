// Package registry knows every outbox event type: the aggregate it belongs
// to, the topic it is relayed on, and the shape of its payload.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/livemart/livemart-backend/pkg/config"
	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	"github.com/livemart/livemart-backend/pkg/outbox"
	"github.com/livemart/livemart-backend/pkg/outbox/payloads"
)

// CurrentVersion is the envelope version written by outbox.Service.
const CurrentVersion = 1

type channel int

const (
	ordersChannel channel = iota
	notificationsChannel
)

type kind struct {
	aggregate  enums.OutboxAggregateType
	channel    channel
	newPayload func() any
}

var kinds = map[enums.OutboxEventType]kind{
	enums.EventOrderCreated:         {enums.AggregateOrder, ordersChannel, newOrderEvent},
	enums.EventOrderStatusUpdated:   {enums.AggregateOrder, ordersChannel, newOrderEvent},
	enums.EventOrderUpdateBroadcast: {enums.AggregateOrder, ordersChannel, newOrderEvent},
	enums.EventPaymentUpdated:       {enums.AggregateOrder, ordersChannel, newOrderEvent},
	enums.EventOrderPendingNudge: {enums.AggregateOrder, ordersChannel, func() any {
		return &payloads.OrderPendingNudgeEvent{}
	}},
	enums.EventProductChanged: {enums.AggregateProduct, ordersChannel, func() any {
		return &payloads.ProductChangedEvent{}
	}},
	enums.EventRestockNotified: {enums.AggregateNotificationRequest, notificationsChannel, func() any {
		return &payloads.RestockNotifiedEvent{}
	}},
}

func newOrderEvent() any { return &payloads.OrderEvent{} }

// PermanentError marks a row that will never publish, however often it is retried.
type PermanentError struct {
	Err error
}

func (e PermanentError) Error() string {
	if e.Err == nil {
		return "permanent outbox error"
	}
	return e.Err.Error()
}

func (e PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError.
func Permanent(err error) error {
	return PermanentError{Err: err}
}

// IsPermanent reports whether err, or anything it wraps, is a PermanentError.
func IsPermanent(err error) bool {
	var target PermanentError
	return errors.As(err, &target)
}

// Payloads decodes envelope data into the typed payload for an event type.
// The zero value is ready to use.
type Payloads struct{}

func (Payloads) Decode(eventType enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	k, ok := kinds[eventType]
	if !ok {
		return nil, fmt.Errorf("unknown event type %s", eventType)
	}
	if version == 0 {
		version = CurrentVersion
	}
	if version != CurrentVersion {
		return nil, fmt.Errorf("unsupported %s payload version %d", eventType, version)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("payload missing for %s", eventType)
	}
	out := k.newPayload()
	if err := json.Unmarshal(trimmed, out); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
	}
	return out, nil
}

// Routed is an outbox row ready to publish.
type Routed struct {
	Topic    string
	Envelope outbox.PayloadEnvelope
	Payload  any
}

// Router resolves outbox rows to their destination topic.
type Router struct {
	topics   map[channel]string
	payloads Payloads
}

func NewRouter(cfg config.PubSubConfig) (*Router, error) {
	if cfg.OrdersTopic == "" {
		return nil, errors.New("orders topic is required")
	}
	if cfg.NotificationTopic == "" {
		return nil, errors.New("notification topic is required")
	}
	return &Router{topics: map[channel]string{
		ordersChannel:        cfg.OrdersTopic,
		notificationsChannel: cfg.NotificationTopic,
	}}, nil
}

// Topics lists every destination topic.
func (r *Router) Topics() []string {
	return []string{r.topics[ordersChannel], r.topics[notificationsChannel]}
}

// Resolve validates row and decodes its payload. Every error it returns is
// permanent.
func (r *Router) Resolve(row models.OutboxEvent) (*Routed, error) {
	k, ok := kinds[row.EventType]
	if !ok {
		return nil, Permanent(fmt.Errorf("unsupported event type %s", row.EventType))
	}
	if k.aggregate != row.AggregateType {
		return nil, Permanent(fmt.Errorf("event %s belongs to %s aggregates, row has %s", row.EventType, k.aggregate, row.AggregateType))
	}
	if row.AggregateID == uuid.Nil {
		return nil, Permanent(errors.New("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		return nil, Permanent(fmt.Errorf("decode envelope: %w", err))
	}
	payload, err := r.payloads.Decode(row.EventType, envelope.Version, envelope.Data)
	if err != nil {
		return nil, Permanent(err)
	}
	return &Routed{Topic: r.topics[k.channel], Envelope: envelope, Payload: payload}, nil
}
