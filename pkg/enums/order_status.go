package enums

// OrderStatus maps to the order_status enum in Postgres.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusInTransit  OrderStatus = "in_transit"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var validOrderStatuses = set[OrderStatus]{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusInTransit,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	return validOrderStatuses.has(s)
}

// IsTerminal reports whether no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	return validOrderStatuses.parse("order status", value)
}

// DeliveryStatus mirrors the order status inside delivery details.
type DeliveryStatus string

const (
	DeliveryStatusPending    DeliveryStatus = "pending"
	DeliveryStatusProcessing DeliveryStatus = "processing"
	DeliveryStatusInTransit  DeliveryStatus = "in_transit"
	DeliveryStatusDelivered  DeliveryStatus = "delivered"
	DeliveryStatusCancelled  DeliveryStatus = "cancelled"
)

// DeliveryStatusFor returns the delivery sub-status tracked for an order status.
func DeliveryStatusFor(status OrderStatus) DeliveryStatus {
	switch status {
	case OrderStatusProcessing:
		return DeliveryStatusProcessing
	case OrderStatusInTransit:
		return DeliveryStatusInTransit
	case OrderStatusDelivered:
		return DeliveryStatusDelivered
	case OrderStatusCancelled:
		return DeliveryStatusCancelled
	default:
		return DeliveryStatusPending
	}
}
