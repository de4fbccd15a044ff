package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/pkg/enums"
)

// Order is a customer purchase attributed to a single seller.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID       uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	RetailerID       *uuid.UUID          `gorm:"column:retailer_id;type:uuid"`
	WholesalerID     *uuid.UUID          `gorm:"column:wholesaler_id;type:uuid"`
	Items            []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	TotalAmount      decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Status           enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null"`
	OrderType        enums.OrderType     `gorm:"column:order_type;type:order_type;not null;default:'online'"`
	DeliveryAddress  string              `gorm:"column:delivery_address;not null"`
	ScheduledDate    *time.Time          `gorm:"column:scheduled_date"`
	Delivery         DeliveryDetails     `gorm:"embedded;embeddedPrefix:delivery_"`
	DeliveredAt      *time.Time          `gorm:"column:delivered_at"`
	EmailSent        bool                `gorm:"column:email_sent;not null;default:false"`
	SMSSent          bool                `gorm:"column:sms_sent;not null;default:false"`
	PaymentSessionID *string             `gorm:"column:payment_session_id;uniqueIndex:orders_payment_session_id_key"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// DeliveryDetails is stored inline on orders with the delivery_ prefix.
type DeliveryDetails struct {
	Status            enums.DeliveryStatus `gorm:"column:status;type:delivery_status;not null;default:'pending'"`
	TrackingNumber    string               `gorm:"column:tracking_number;not null"`
	EstimatedDelivery *time.Time           `gorm:"column:estimated_delivery"`
	Carrier           *string              `gorm:"column:carrier"`
	TrackingURL       *string              `gorm:"column:tracking_url"`
	Notes             *string              `gorm:"column:notes"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// SellerID returns whichever seller owns the order.
func (o Order) SellerID() *uuid.UUID {
	if o.RetailerID != nil {
		return o.RetailerID
	}
	return o.WholesalerID
}

// OrderItem snapshots the product name and price at order time.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	Position    int             `gorm:"column:position;not null"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName string          `gorm:"column:product_name;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
	Total       decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
