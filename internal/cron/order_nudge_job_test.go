package cron

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/internal/orders"
	dbpkg "github.com/livemart/livemart-backend/pkg/db"
	"github.com/livemart/livemart-backend/pkg/db/dbtest"
	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	"github.com/livemart/livemart-backend/pkg/logger"
	"github.com/livemart/livemart-backend/pkg/outbox"
	"github.com/livemart/livemart-backend/pkg/outbox/payloads"
)

func seedOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus, createdAt time.Time) models.Order {
	t.Helper()
	retailer := uuid.New()
	order := models.Order{
		CustomerID:      uuid.New(),
		RetailerID:      &retailer,
		TotalAmount:     decimal.NewFromInt(20),
		Status:          status,
		PaymentMethod:   enums.PaymentMethodCOD,
		PaymentStatus:   enums.PaymentStatusPending,
		OrderType:       enums.OrderTypeOnline,
		DeliveryAddress: "12 MG Road",
		Delivery:        models.DeliveryDetails{Status: enums.DeliveryStatusFor(status), TrackingNumber: "TRK"},
		CreatedAt:       createdAt,
	}
	require.NoError(t, orders.NewRepository(db).Create(context.Background(), &order))
	return order
}

func newNudgeJob(t *testing.T, db *gorm.DB, now time.Time) *orderNudgeJob {
	t.Helper()
	job, err := NewOrderNudgeJob(OrderNudgeJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "cron-test"}),
		DB:            dbpkg.FromGorm(db),
		PendingReader: orders.NewRepository(db),
		Outbox:        outbox.NewService(outbox.NewRepository(db), nil),
		PendingDays:   2,
	})
	require.NoError(t, err)
	nudge := job.(*orderNudgeJob)
	nudge.now = func() time.Time { return now }
	return nudge
}

func TestOrderNudgeJobEmitsOncePerStaleOrder(t *testing.T) {
	db := dbtest.Open(t, "cron_nudge")
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	stale := seedOrder(t, db, enums.OrderStatusPending, now.Add(-72*time.Hour))
	seedOrder(t, db, enums.OrderStatusPending, now.Add(-time.Hour))
	seedOrder(t, db, enums.OrderStatusProcessing, now.Add(-96*time.Hour))
	job := newNudgeJob(t, db, now)

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))

	var events []models.OutboxEvent
	require.NoError(t, db.Where("event_type = ?", enums.EventOrderPendingNudge).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, stale.ID, events[0].AggregateID)
	assert.Equal(t, enums.AggregateOrder, events[0].AggregateType)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	var payload payloads.OrderPendingNudgeEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, stale.ID, payload.OrderID)
	assert.Equal(t, stale.CustomerID, payload.CustomerID)
	assert.Equal(t, 2, payload.PendingDays)
	require.NotNil(t, payload.RetailerID)
	assert.Equal(t, *stale.RetailerID, *payload.RetailerID)
}

type failingEmitter struct {
	calls int
}

func (f *failingEmitter) EmitIfNotExists(context.Context, *gorm.DB, outbox.DomainEvent) error {
	f.calls++
	return errors.New("outbox unavailable")
}

type staticPending struct {
	orders []models.Order
}

func (s staticPending) FindPendingBefore(context.Context, time.Time) ([]models.Order, error) {
	return s.orders, nil
}

func TestOrderNudgeJobContinuesPastFailures(t *testing.T) {
	emitter := &failingEmitter{}
	job, err := NewOrderNudgeJob(OrderNudgeJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "cron-test"}),
		DB:            passthroughTx{},
		PendingReader: staticPending{orders: []models.Order{{ID: uuid.New()}, {ID: uuid.New()}}},
		Outbox:        emitter,
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, emitter.calls)
	assert.Equal(t, "order-pending-nudge", job.Name())
}
