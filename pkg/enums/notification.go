package enums

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeOrderCreated  NotificationType = "order_created"
	NotificationTypeOrderStatus   NotificationType = "order_status"
	NotificationTypePaymentUpdate NotificationType = "payment_update"
	NotificationTypeOrderPending  NotificationType = "order_pending"
	NotificationTypeRestock       NotificationType = "restock"
)

var validNotificationTypes = set[NotificationType]{
	NotificationTypeOrderCreated,
	NotificationTypeOrderStatus,
	NotificationTypePaymentUpdate,
	NotificationTypeOrderPending,
	NotificationTypeRestock,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	return validNotificationTypes.has(n)
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	return validNotificationTypes.parse("notification type", value)
}

// ProductChangeKind labels catalog mutations broadcast to listeners.
type ProductChangeKind string

const (
	ProductChangeCreated   ProductChangeKind = "created"
	ProductChangeUpdated   ProductChangeKind = "updated"
	ProductChangeDeleted   ProductChangeKind = "deleted"
	ProductChangeRestocked ProductChangeKind = "restocked"
)
