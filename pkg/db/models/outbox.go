package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/pkg/enums"
)

// OutboxEvent is one queued domain event. Rows are written in the same
// transaction as the change they describe and relayed to Pub/Sub later.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"type:uuid;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                 `gorm:"type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"type:jsonb;not null"`
	AttemptCount  int                       `gorm:"not null;default:0"`
	LastError     *string
	PublishedAt   *time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (e *OutboxEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// OutboxDLQ is the dead letter copy of an event the relay gave up on.
type OutboxDLQ struct {
	ID            uuid.UUID                  `gorm:"type:uuid;primaryKey"`
	EventID       uuid.UUID                  `gorm:"type:uuid;not null"`
	EventType     enums.OutboxEventType      `gorm:"type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType  `gorm:"type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                  `gorm:"type:uuid;not null"`
	Payload       json.RawMessage            `gorm:"column:payload_json;type:jsonb;not null"`
	ErrorReason   enums.OutboxDLQErrorReason `gorm:"type:outbox_dlq_error_reason_enum;not null"`
	ErrorMessage  *string
	AttemptCount  int       `gorm:"not null;default:0"`
	FailedAt      time.Time `gorm:"autoCreateTime"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (OutboxDLQ) TableName() string { return "outbox_dlq" }

func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
