package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/pkg/config"
	"github.com/livemart/livemart-backend/pkg/db/dbtest"
	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	"github.com/livemart/livemart-backend/pkg/logger"
	"github.com/livemart/livemart-backend/pkg/metrics"
	"github.com/livemart/livemart-backend/pkg/outbox"
	"github.com/livemart/livemart-backend/pkg/outbox/payloads"
	"github.com/livemart/livemart-backend/pkg/outbox/registry"
)

type gormTx struct {
	db *gorm.DB
}

func (g gormTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type fakeResult struct {
	err error
}

func (r fakeResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "server-id", nil
}

type sent struct {
	topic string
	msg   *gcppubsub.Message
}

type fakeSender struct {
	mu       sync.Mutex
	messages []sent
	failWith error
}

func (s *fakeSender) Send(_ context.Context, topic string, msg *gcppubsub.Message) pendingPublish {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, sent{topic: topic, msg: msg})
	return fakeResult{err: s.failWith}
}

type relayFixture struct {
	db     *gorm.DB
	relay  *Relay
	sender *fakeSender
	reg    *prometheus.Registry
}

func newRelayFixture(t *testing.T, cfg RelayConfig) *relayFixture {
	t.Helper()
	db := dbtest.Open(t, "relay")
	router, err := registry.NewRouter(config.PubSubConfig{OrdersTopic: "lm-orders", NotificationTopic: "lm-notifications"})
	require.NoError(t, err)
	sender := &fakeSender{}
	reg := prometheus.NewRegistry()
	relay, err := NewRelay(RelayParams{
		Config:  cfg,
		DB:      gormTx{db: db},
		Store:   outbox.NewRepository(db),
		Router:  router,
		Sender:  sender,
		Metrics: metrics.NewOutboxMetrics(reg),
		Logger:  logger.New(logger.Options{ServiceName: "relay-test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return &relayFixture{db: db, relay: relay, sender: sender, reg: reg}
}

func (f *relayFixture) emit(t *testing.T, event outbox.DomainEvent) {
	t.Helper()
	svc := outbox.NewService(outbox.NewRepository(f.db), nil)
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, event)
	}))
}

func (f *relayFixture) outcomes(t *testing.T, outcome string) float64 {
	t.Helper()
	families, err := f.reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, family := range families {
		if family.GetName() != "outbox_events_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func orderCreated(orderID uuid.UUID) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Data:          payloads.OrderEvent{OrderID: orderID, CustomerID: uuid.New(), TotalAmount: "42.00"},
	}
}

func TestRelayPublishesToRoutedTopics(t *testing.T) {
	f := newRelayFixture(t, RelayConfig{})
	orderID := uuid.New()
	requestID := uuid.New()
	f.emit(t, orderCreated(orderID))
	f.emit(t, outbox.DomainEvent{
		EventType:     enums.EventRestockNotified,
		AggregateType: enums.AggregateNotificationRequest,
		AggregateID:   requestID,
		Data:          payloads.RestockNotifiedEvent{RequestID: requestID, UserID: uuid.New(), ProductID: uuid.New(), ProductName: "Basmati 5kg"},
	})

	claimed, err := f.relay.RelayBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, claimed)

	require.Len(t, f.sender.messages, 2)
	topics := map[string]*gcppubsub.Message{}
	for _, s := range f.sender.messages {
		topics[s.topic] = s.msg
	}
	require.Contains(t, topics, "lm-orders")
	require.Contains(t, topics, "lm-notifications")

	orderMsg := topics["lm-orders"]
	assert.Equal(t, string(enums.EventOrderCreated), orderMsg.Attributes["event_type"])
	assert.Equal(t, orderID.String(), orderMsg.Attributes["aggregate_id"])
	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(orderMsg.Data, &envelope))
	assert.Equal(t, envelope.EventID, orderMsg.Attributes["event_id"])

	var unpublished int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).Where("published_at IS NULL").Count(&unpublished).Error)
	assert.Zero(t, unpublished)
	assert.Equal(t, 2.0, f.outcomes(t, outcomePublished))

	claimed, err = f.relay.RelayBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, claimed)
}

func TestRelayRecordsRetryOnTransientFailure(t *testing.T) {
	f := newRelayFixture(t, RelayConfig{MaxAttempts: 3})
	f.sender.failWith = errors.New("deadline exceeded")
	f.emit(t, orderCreated(uuid.New()))

	_, err := f.relay.RelayBatch(context.Background())
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, f.db.First(&row).Error)
	assert.Nil(t, row.PublishedAt)
	assert.Equal(t, 1, row.AttemptCount)
	require.NotNil(t, row.LastError)
	assert.Contains(t, *row.LastError, "deadline exceeded")
	assert.Equal(t, 1.0, f.outcomes(t, outcomeRetried))

	var dlq int64
	require.NoError(t, f.db.Model(&models.OutboxDLQ{}).Count(&dlq).Error)
	assert.Zero(t, dlq)
}

func TestRelayDeadLettersAtMaxAttempts(t *testing.T) {
	f := newRelayFixture(t, RelayConfig{MaxAttempts: 3})
	f.sender.failWith = errors.New("unavailable")
	f.emit(t, orderCreated(uuid.New()))
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).Where("1 = 1").Update("attempt_count", 2).Error)

	_, err := f.relay.RelayBatch(context.Background())
	require.NoError(t, err)

	var entry models.OutboxDLQ
	require.NoError(t, f.db.First(&entry).Error)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, entry.ErrorReason)
	assert.Equal(t, 1.0, f.outcomes(t, outcomeDeadLettered))

	claimed, err := f.relay.RelayBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, claimed, "dead-lettered rows are no longer claimable")
}

func TestRelayDeadLettersUnroutableRows(t *testing.T) {
	f := newRelayFixture(t, RelayConfig{})
	row := &models.OutboxEvent{
		EventType:     enums.OutboxEventType("coupon_issued"),
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1,"eventId":"e","data":{}}`),
	}
	require.NoError(t, outbox.NewRepository(f.db).Insert(f.db, row))

	_, err := f.relay.RelayBatch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.sender.messages)

	var entry models.OutboxDLQ
	require.NoError(t, f.db.First(&entry).Error)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	assert.Equal(t, row.ID, entry.EventID)
}

func TestRelayRunStopsWithContext(t *testing.T) {
	f := newRelayFixture(t, RelayConfig{PollInterval: time.Millisecond})
	f.emit(t, orderCreated(uuid.New()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := f.relay.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, f.sender.messages, 1)
}

func TestNewRelayRequiresDependencies(t *testing.T) {
	_, err := NewRelay(RelayParams{})
	assert.Error(t, err)
}

func TestRelayConfigDefaults(t *testing.T) {
	cfg := RelayConfig{}.withDefaults()
	assert.Equal(t, defaultBatchSize, cfg.BatchSize)
	assert.Equal(t, defaultMaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, defaultPollInterval, cfg.PollInterval)
	assert.Equal(t, defaultPublishTimeout, cfg.PublishTimeout)
}
