package outbox

import (
	"context"
	"time"

	"gorm.io/gorm"

	dbpkg "github.com/livemart/livemart-backend/pkg/db"
	"github.com/livemart/livemart-backend/pkg/logger"
)

// aggregateEventKey makes (event_type, aggregate_type, aggregate_id) unique.
const aggregateEventKey = "outbox_events_event_aggregate_key"

// Service writes domain events into the outbox inside the caller's
// transaction, so an event exists exactly when the change that caused it
// commits.
type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errTxRequired
	}
	row, eventID, err := event.record(s.now())
	if err != nil {
		return err
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return err
	}
	if s.logg != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"event_id":     eventID,
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID.String(),
		}), "outbox event queued")
	}
	return nil
}

// EmitIfNotExists is Emit for events that may only happen once per
// aggregate. Losing the race to a concurrent emitter is not an error.
func (s *Service) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errTxRequired
	}
	exists, err := s.repo.ExistsTx(tx, event.EventType, event.AggregateType, event.AggregateID)
	if err != nil || exists {
		return err
	}
	if err := s.Emit(ctx, tx, event); err != nil && !dbpkg.IsUniqueViolation(err, aggregateEventKey) {
		return err
	}
	return nil
}
