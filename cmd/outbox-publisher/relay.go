package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	"github.com/livemart/livemart-backend/pkg/logger"
	"github.com/livemart/livemart-backend/pkg/metrics"
	"github.com/livemart/livemart-backend/pkg/outbox/registry"
	"github.com/livemart/livemart-backend/pkg/pubsub"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultMaxAttempts    = 10
	defaultPublishTimeout = 15 * time.Second
	maxIdleBackoff        = 10 * time.Second
	backoffJitter         = 250 * time.Millisecond
)

const (
	outcomePublished    = "published"
	outcomeRetried      = "retried"
	outcomeDeadLettered = "dead_lettered"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxStore interface {
	Claim(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, ids ...uuid.UUID) error
	MarkRetryTx(tx *gorm.DB, id uuid.UUID, cause error) error
	DeadLetterTx(tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, exhaustedAttempts int) error
}

type resolver interface {
	Resolve(row models.OutboxEvent) (*registry.Routed, error)
}

type pendingPublish interface {
	Get(ctx context.Context) (string, error)
}

type sender interface {
	Send(ctx context.Context, topic string, msg *gcppubsub.Message) pendingPublish
}

// pubsubSender adapts pubsub.Client to sender.
type pubsubSender struct {
	client *pubsub.Client
}

func (s pubsubSender) Send(ctx context.Context, topic string, msg *gcppubsub.Message) pendingPublish {
	result := s.client.Publish(ctx, topic, msg)
	if result == nil {
		return nil
	}
	return result
}

type RelayConfig struct {
	BatchSize      int
	MaxAttempts    int
	PollInterval   time.Duration
	PublishTimeout time.Duration
}

func (c RelayConfig) withDefaults() RelayConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = defaultPublishTimeout
	}
	return c
}

type RelayParams struct {
	Config  RelayConfig
	DB      txRunner
	Store   outboxStore
	Router  resolver
	Sender  sender
	Metrics *metrics.OutboxMetrics
	Logger  *logger.Logger
}

// Relay moves committed outbox rows onto Pub/Sub. Each batch is claimed,
// published and settled inside one transaction, so a crash mid-batch
// leaves the rows claimable again and delivery is at least once.
type Relay struct {
	cfg     RelayConfig
	db      txRunner
	store   outboxStore
	router  resolver
	sender  sender
	metrics *metrics.OutboxMetrics
	logg    *logger.Logger
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.DB == nil:
		return nil, errors.New("database is required")
	case p.Store == nil:
		return nil, errors.New("outbox store is required")
	case p.Router == nil:
		return nil, errors.New("event router is required")
	case p.Sender == nil:
		return nil, errors.New("sender is required")
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	}
	return &Relay{
		cfg:     p.Config.withDefaults(),
		db:      p.DB,
		store:   p.Store,
		router:  p.Router,
		sender:  p.Sender,
		metrics: p.Metrics,
		logg:    p.Logger,
	}, nil
}

// Run relays batches until ctx ends. A full batch is followed immediately
// by the next one; an empty batch waits one poll interval; a failed batch
// backs off exponentially.
func (r *Relay) Run(ctx context.Context) error {
	failures := r.failureBackoff()
	for {
		claimed, err := r.RelayBatch(ctx)
		wait := r.cfg.PollInterval
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logg.Error(ctx, "outbox batch failed", err)
			wait, _ = failures.Next()
		case claimed >= r.cfg.BatchSize:
			failures = r.failureBackoff()
			wait = 0
		default:
			failures = r.failureBackoff()
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (r *Relay) failureBackoff() retry.Backoff {
	b := retry.NewExponential(r.cfg.PollInterval)
	b = retry.WithCappedDuration(maxIdleBackoff, b)
	return retry.WithJitter(backoffJitter, b)
}

type inflight struct {
	row    models.OutboxEvent
	topic  string
	result pendingPublish
	err    error
}

// RelayBatch claims one batch and settles every row in it. It returns the
// number of rows claimed.
func (r *Relay) RelayBatch(ctx context.Context) (int, error) {
	claimed := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.store.Claim(tx, r.cfg.BatchSize, r.cfg.MaxAttempts)
		if err != nil {
			return fmt.Errorf("claim: %w", err)
		}
		claimed = len(rows)
		r.metrics.ObserveBatch(claimed)
		if claimed == 0 {
			return nil
		}

		sendCtx, cancel := context.WithTimeout(ctx, r.cfg.PublishTimeout)
		defer cancel()

		flights := make([]inflight, 0, len(rows))
		for _, row := range rows {
			flights = append(flights, r.send(sendCtx, row))
		}

		published := make([]uuid.UUID, 0, len(flights))
		for _, f := range flights {
			if f.err == nil {
				_, f.err = f.result.Get(sendCtx)
			}
			if f.err == nil {
				published = append(published, f.row.ID)
				r.metrics.IncEvent(string(f.row.EventType), outcomePublished)
				continue
			}
			if err := r.settleFailure(ctx, tx, f); err != nil {
				return err
			}
		}
		if err := r.store.MarkPublishedTx(tx, published...); err != nil {
			return fmt.Errorf("mark published: %w", err)
		}
		if len(published) > 0 {
			r.logg.Info(r.logg.WithFields(ctx, map[string]any{
				"claimed":   claimed,
				"published": len(published),
			}), "outbox batch relayed")
		}
		return nil
	})
	return claimed, err
}

// send resolves row and hands it to the sender without waiting for the
// publish to complete.
func (r *Relay) send(ctx context.Context, row models.OutboxEvent) inflight {
	routed, err := r.router.Resolve(row)
	if err != nil {
		return inflight{row: row, err: err}
	}
	result := r.sender.Send(ctx, routed.Topic, message(row, routed))
	if result == nil {
		return inflight{row: row, topic: routed.Topic, err: registry.Permanent(fmt.Errorf("no publisher for topic %q", routed.Topic))}
	}
	return inflight{row: row, topic: routed.Topic, result: result}
}

func (r *Relay) settleFailure(ctx context.Context, tx *gorm.DB, f inflight) error {
	attempt := f.row.AttemptCount + 1
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     f.row.ID.String(),
		"event_type":    f.row.EventType,
		"aggregate_id":  f.row.AggregateID.String(),
		"topic":         f.topic,
		"attempt_count": attempt,
		"error":         f.err.Error(),
	})

	var reason enums.OutboxDLQErrorReason
	switch {
	case registry.IsPermanent(f.err):
		reason = enums.OutboxDLQReasonNonRetryable
	case attempt >= r.cfg.MaxAttempts:
		reason = enums.OutboxDLQReasonMaxAttempts
	default:
		r.logg.Warn(logCtx, "outbox publish failed, will retry")
		if err := r.store.MarkRetryTx(tx, f.row.ID, f.err); err != nil {
			return fmt.Errorf("mark retry %s: %w", f.row.ID, err)
		}
		r.metrics.IncEvent(string(f.row.EventType), outcomeRetried)
		return nil
	}

	r.logg.Warn(r.logg.WithField(logCtx, "error_reason", reason), "outbox event dead-lettered")
	if err := r.store.DeadLetterTx(tx, f.row, reason, f.err, r.cfg.MaxAttempts); err != nil {
		return fmt.Errorf("dead-letter %s: %w", f.row.ID, err)
	}
	r.metrics.IncEvent(string(f.row.EventType), outcomeDeadLettered)
	return nil
}

// message carries the stored envelope verbatim; subscribers filter on the
// attributes without decoding the body.
func message(row models.OutboxEvent, routed *registry.Routed) *gcppubsub.Message {
	eventID := routed.Envelope.EventID
	if eventID == "" {
		eventID = row.ID.String()
	}
	return &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       eventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
