package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/livemart/livemart-backend/pkg/enums"
	"github.com/livemart/livemart-backend/pkg/outbox"
)

// ErrUnknownEvent is returned for messages whose event_type attribute names
// no registered event.
var ErrUnknownEvent = errors.New("unknown event type")

// Delivery is a relayed outbox event as seen by a subscriber.
type Delivery struct {
	EventID     string
	EventType   enums.OutboxEventType
	AggregateID string
	OccurredAt  time.Time
	Actor       *outbox.ActorRef
	Payload     any
}

// DecodeMessage rebuilds a Delivery from a Pub/Sub message body and the
// attributes set by the relay.
func (p Payloads) DecodeMessage(data []byte, attrs map[string]string) (*Delivery, error) {
	eventType := enums.OutboxEventType(strings.TrimSpace(attrs["event_type"]))
	if _, ok := kinds[eventType]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, eventType)
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	eventID := strings.TrimSpace(envelope.EventID)
	if eventID == "" {
		eventID = strings.TrimSpace(attrs["event_id"])
	}
	if eventID == "" {
		return nil, errors.New("event id missing")
	}

	payload, err := p.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		return nil, err
	}

	occurred := envelope.OccurredAt
	if occurred.IsZero() {
		if parsed, err := time.Parse(time.RFC3339Nano, attrs["created_at"]); err == nil {
			occurred = parsed
		}
	}
	return &Delivery{
		EventID:     eventID,
		EventType:   eventType,
		AggregateID: strings.TrimSpace(attrs["aggregate_id"]),
		OccurredAt:  occurred.UTC(),
		Actor:       envelope.Actor,
		Payload:     payload,
	}, nil
}
