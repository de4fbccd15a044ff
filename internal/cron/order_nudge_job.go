package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	"github.com/livemart/livemart-backend/pkg/logger"
	"github.com/livemart/livemart-backend/pkg/outbox"
	"github.com/livemart/livemart-backend/pkg/outbox/payloads"
)

const defaultPendingNudgeDays = 2

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type pendingOrderReader interface {
	FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

// OrderNudgeJobParams configure the pending order reminder.
type OrderNudgeJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	PendingReader pendingOrderReader
	Outbox        outboxEmitter
	PendingDays   int
}

// NewOrderNudgeJob builds the job that reminds sellers about orders stuck in pending.
func NewOrderNudgeJob(params OrderNudgeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.PendingReader == nil {
		return nil, fmt.Errorf("pending orders reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	days := params.PendingDays
	if days <= 0 {
		days = defaultPendingNudgeDays
	}
	return &orderNudgeJob{
		logg:          params.Logger,
		db:            params.DB,
		pendingReader: params.PendingReader,
		outbox:        params.Outbox,
		pendingDays:   days,
		now:           time.Now,
	}, nil
}

type orderNudgeJob struct {
	logg          *logger.Logger
	db            txRunner
	pendingReader pendingOrderReader
	outbox        outboxEmitter
	pendingDays   int
	now           func() time.Time
}

func (j *orderNudgeJob) Name() string { return "order-pending-nudge" }

// Run emits at most one order_pending_nudge per order. A failure on one order
// does not stop the rest of the batch.
func (j *orderNudgeJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.pendingDays) * 24 * time.Hour)
	pending, err := j.pendingReader.FindPendingBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query pending orders for nudge: %w", err)
	}

	var errs error
	nudged := 0
	for _, order := range pending {
		if err := j.emitPendingNudge(ctx, order); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("nudge order %s: %w", order.ID, err))
			continue
		}
		nudged++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"pending_days": j.pendingDays,
		"candidates":   len(pending),
		"nudged":       nudged,
	})
	j.logg.Info(logCtx, "order pending nudge loop complete")
	return errs
}

func (j *orderNudgeJob) emitPendingNudge(ctx context.Context, order models.Order) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderPendingNudge,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			OccurredAt:    j.now().UTC(),
			Data: payloads.OrderPendingNudgeEvent{
				OrderID:      order.ID,
				CustomerID:   order.CustomerID,
				RetailerID:   order.RetailerID,
				WholesalerID: order.WholesalerID,
				PendingDays:  j.pendingDays,
				CreatedAt:    order.CreatedAt.UTC(),
			},
		}
		return j.outbox.EmitIfNotExists(ctx, tx, event)
	})
}
