package enums

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder               OutboxAggregateType = "order"
	AggregateProduct             OutboxAggregateType = "product"
	AggregateNotificationRequest OutboxAggregateType = "notification_request"
)

var validAggregateTypes = set[OutboxAggregateType]{
	AggregateOrder,
	AggregateProduct,
	AggregateNotificationRequest,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	return validAggregateTypes.has(a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return validAggregateTypes.parse("aggregate type", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated         OutboxEventType = "order_created"
	EventOrderStatusUpdated   OutboxEventType = "order_status_updated"
	EventOrderUpdateBroadcast OutboxEventType = "order_update_broadcast"
	EventPaymentUpdated       OutboxEventType = "payment_updated"
	EventOrderPendingNudge    OutboxEventType = "order_pending_nudge"
	EventProductChanged       OutboxEventType = "product_changed"
	EventRestockNotified      OutboxEventType = "restock_notified"
)

var validOutboxEventTypes = set[OutboxEventType]{
	EventOrderCreated,
	EventOrderStatusUpdated,
	EventOrderUpdateBroadcast,
	EventPaymentUpdated,
	EventOrderPendingNudge,
	EventProductChanged,
	EventRestockNotified,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	return validOutboxEventTypes.has(e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return validOutboxEventTypes.parse("event type", value)
}

// OutboxDLQErrorReason explains why a row was moved to outbox_dlq.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
