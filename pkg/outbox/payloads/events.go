package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/livemart/livemart-backend/pkg/enums"
)

// OrderEvent is shared by order_created, order_status_updated,
// order_update_broadcast and payment_updated.
type OrderEvent struct {
	OrderID        uuid.UUID           `json:"orderId"`
	CustomerID     uuid.UUID           `json:"customerId"`
	RetailerID     *uuid.UUID          `json:"retailerId,omitempty"`
	WholesalerID   *uuid.UUID          `json:"wholesalerId,omitempty"`
	Status         enums.OrderStatus   `json:"status"`
	PreviousStatus *enums.OrderStatus  `json:"previousStatus,omitempty"`
	PaymentStatus  enums.PaymentStatus `json:"paymentStatus"`
	PaymentMethod  enums.PaymentMethod `json:"paymentMethod"`
	TotalAmount    string              `json:"totalAmount"`
	ItemCount      int                 `json:"itemCount"`
	TrackingNumber string              `json:"trackingNumber,omitempty"`
	OccurredAt     time.Time           `json:"occurredAt"`
}

// ProductChangedEvent signals a catalog mutation to listeners.
type ProductChangedEvent struct {
	ProductID uuid.UUID               `json:"productId"`
	Kind      enums.ProductChangeKind `json:"kind"`
}

// RestockNotifiedEvent is emitted once per claimed notification request.
type RestockNotifiedEvent struct {
	RequestID   uuid.UUID `json:"requestId"`
	UserID      uuid.UUID `json:"userId"`
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName"`
	Email       string    `json:"email"`
}

// OrderPendingNudgeEvent reminds the seller of an order still pending.
type OrderPendingNudgeEvent struct {
	OrderID      uuid.UUID  `json:"orderId"`
	CustomerID   uuid.UUID  `json:"customerId"`
	RetailerID   *uuid.UUID `json:"retailerId,omitempty"`
	WholesalerID *uuid.UUID `json:"wholesalerId,omitempty"`
	PendingDays  int        `json:"pendingDays"`
	CreatedAt    time.Time  `json:"createdAt"`
}
