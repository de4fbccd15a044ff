package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
)

// ActorRef identifies who caused the event.
type ActorRef struct {
	UserID uuid.UUID  `json:"userId"`
	Role   enums.Role `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON document stored in outbox_events.payload and
// carried verbatim as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DomainEvent is what producers hand to Emit. Version defaults to 1 and
// OccurredAt to the emit time.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

// record serializes the event into an outbox row and returns the generated
// event id alongside it.
func (e DomainEvent) record(now time.Time) (*models.OutboxEvent, string, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, "", fmt.Errorf("encode %s data: %w", e.EventType, err)
	}
	env := PayloadEnvelope{
		Version:    max(e.Version, 1),
		EventID:    uuid.NewString(),
		OccurredAt: now,
		Actor:      e.Actor,
		Data:       data,
	}
	if !e.OccurredAt.IsZero() {
		env.OccurredAt = e.OccurredAt
	}
	env.OccurredAt = env.OccurredAt.UTC()

	body, err := json.Marshal(env)
	if err != nil {
		return nil, "", fmt.Errorf("encode %s envelope: %w", e.EventType, err)
	}
	return &models.OutboxEvent{
		EventType:     e.EventType,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		Payload:       body,
	}, env.EventID, nil
}
