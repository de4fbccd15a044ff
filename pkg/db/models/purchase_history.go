package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PurchaseHistory is appended for every line of a persisted order.
type PurchaseHistory struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	OrderID     uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	Quantity    int       `gorm:"column:quantity;not null"`
	PurchasedAt time.Time `gorm:"column:purchased_at;not null"`
}

func (PurchaseHistory) TableName() string {
	return "purchase_history"
}

func (h *PurchaseHistory) BeforeCreate(*gorm.DB) error {
	ensureID(&h.ID)
	return nil
}
