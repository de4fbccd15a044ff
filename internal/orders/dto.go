package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
)

// Actor is the authenticated principal performing an order operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// LineInput is one requested product quantity. Price is set only by payment
// reconciliation, which charges what the session recorded.
type LineInput struct {
	ProductID uuid.UUID
	Quantity  int
	Price     *decimal.Decimal
}

// PlaceInput captures a checkout request.
type PlaceInput struct {
	CustomerID       uuid.UUID
	Items            []LineInput
	DeliveryAddress  string
	PaymentMethod    enums.PaymentMethod
	OrderType        enums.OrderType
	ScheduledDate    *time.Time
	PaymentSessionID *string
}

// PlaceResult returns the persisted order. AlreadyExists is true when the
// payment session had already produced this order.
type PlaceResult struct {
	Order         *models.Order
	AlreadyExists bool
}

// UpdateStatusInput requests a status transition by a seller.
type UpdateStatusInput struct {
	OrderID uuid.UUID
	Actor   Actor
	Status  enums.OrderStatus
	Carrier CarrierUpdate
}

// UpdatePaymentInput requests a payment status change by a seller.
type UpdatePaymentInput struct {
	OrderID uuid.UUID
	Actor   Actor
	Status  enums.PaymentStatus
}

// ListInput configures the role-scoped order listing.
type ListInput struct {
	Actor  Actor
	Status *enums.OrderStatus
	Limit  int
	Cursor string
}

// ListResult wraps one page of orders plus the cursor for the next page.
type ListResult struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// OrderItemDTO is the API shape of an order line.
type OrderItemDTO struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
}

// DeliveryDTO is the API shape of the embedded delivery details.
type DeliveryDTO struct {
	Status            enums.DeliveryStatus `json:"status"`
	TrackingNumber    string               `json:"trackingNumber"`
	EstimatedDelivery *time.Time           `json:"estimatedDelivery,omitempty"`
	Carrier           *string              `json:"carrier,omitempty"`
	TrackingURL       *string              `json:"trackingUrl,omitempty"`
	Notes             *string              `json:"notes,omitempty"`
}

// OrderDTO is the API shape of an order.
type OrderDTO struct {
	ID               uuid.UUID           `json:"id"`
	CustomerID       uuid.UUID           `json:"customerId"`
	RetailerID       *uuid.UUID          `json:"retailerId,omitempty"`
	WholesalerID     *uuid.UUID          `json:"wholesalerId,omitempty"`
	Items            []OrderItemDTO      `json:"items"`
	TotalAmount      decimal.Decimal     `json:"totalAmount"`
	Status           enums.OrderStatus   `json:"status"`
	PaymentMethod    enums.PaymentMethod `json:"paymentMethod"`
	PaymentStatus    enums.PaymentStatus `json:"paymentStatus"`
	OrderType        enums.OrderType     `json:"orderType"`
	DeliveryAddress  string              `json:"deliveryAddress"`
	ScheduledDate    *time.Time          `json:"scheduledDate,omitempty"`
	DeliveryDetails  DeliveryDTO         `json:"deliveryDetails"`
	DeliveredAt      *time.Time          `json:"deliveredAt,omitempty"`
	EmailSent        bool                `json:"emailSent"`
	SMSSent          bool                `json:"smsSent"`
	PaymentSessionID *string             `json:"paymentSessionId,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// FromModel maps a stored order to its API shape.
func FromModel(order *models.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemDTO{
			ProductID: item.ProductID,
			Name:      item.ProductName,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Total:     item.Total,
		})
	}
	return OrderDTO{
		ID:              order.ID,
		CustomerID:      order.CustomerID,
		RetailerID:      order.RetailerID,
		WholesalerID:    order.WholesalerID,
		Items:           items,
		TotalAmount:     order.TotalAmount,
		Status:          order.Status,
		PaymentMethod:   order.PaymentMethod,
		PaymentStatus:   order.PaymentStatus,
		OrderType:       order.OrderType,
		DeliveryAddress: order.DeliveryAddress,
		ScheduledDate:   order.ScheduledDate,
		DeliveryDetails: DeliveryDTO{
			Status:            order.Delivery.Status,
			TrackingNumber:    order.Delivery.TrackingNumber,
			EstimatedDelivery: order.Delivery.EstimatedDelivery,
			Carrier:           order.Delivery.Carrier,
			TrackingURL:       order.Delivery.TrackingURL,
			Notes:             order.Delivery.Notes,
		},
		DeliveredAt:      order.DeliveredAt,
		EmailSent:        order.EmailSent,
		SMSSent:          order.SMSSent,
		PaymentSessionID: order.PaymentSessionID,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
}
