package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
)

const maxDLQMessageLen = 1024

var errTxRequired = errors.New("transaction required")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, row *models.OutboxEvent) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Create(row).Error
}

// Claim returns up to limit unpublished rows, oldest first, that have not
// used up maxAttempts. On Postgres the rows stay locked (SKIP LOCKED) until
// tx ends, so concurrent relays never claim the same row.
func (r *Repository) Claim(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errTxRequired
	}
	query := tx.Where("published_at IS NULL")
	if maxAttempts > 0 {
		query = query.Where("attempt_count < ?", maxAttempts)
	}
	if tx.Dialector != nil && tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var rows []models.OutboxEvent
	err := query.Order("created_at ASC").Order("id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, ids ...uuid.UUID) error {
	if tx == nil {
		return errTxRequired
	}
	if len(ids) == 0 {
		return nil
	}
	return tx.Model(&models.OutboxEvent{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"published_at": time.Now().UTC(), "last_error": nil}).Error
}

// MarkRetryTx records a failed attempt; the row stays claimable.
func (r *Repository) MarkRetryTx(tx *gorm.DB, id uuid.UUID, cause error) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    causeText(cause, 0),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// DeadLetterTx copies row into outbox_dlq and pins its attempt_count at
// exhaustedAttempts so Claim skips it from now on.
func (r *Repository) DeadLetterTx(tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, exhaustedAttempts int) error {
	if tx == nil {
		return errTxRequired
	}
	if exhaustedAttempts <= row.AttemptCount {
		exhaustedAttempts = row.AttemptCount + 1
	}
	entry := models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  causeText(cause, maxDLQMessageLen),
		AttemptCount:  row.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"last_error":    causeText(cause, 0),
			"attempt_count": exhaustedAttempts,
		}).Error
}

// ExistsTx reports whether an event of eventType was already queued for the aggregate.
func (r *Repository) ExistsTx(tx *gorm.DB, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, errTxRequired
	}
	var count int64
	err := tx.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_type = ? AND aggregate_id = ?", eventType, aggregateType, aggregateID).
		Count(&count).Error
	return count > 0, err
}

// DeletePublishedBefore removes rows created before cutoff that were
// published or that reached minAttemptCount attempts.
func (r *Repository) DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error) {
	conn := tx
	if conn == nil {
		conn = r.db
	}
	query := conn.WithContext(ctx).Where("created_at < ?", cutoff)
	if minAttemptCount > 0 {
		query = query.Where("(published_at IS NOT NULL OR attempt_count >= ?)", minAttemptCount)
	} else {
		query = query.Where("published_at IS NOT NULL")
	}
	res := query.Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func causeText(err error, limit int) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if limit > 0 && len(msg) > limit {
		msg = msg[:limit]
	}
	return &msg
}
