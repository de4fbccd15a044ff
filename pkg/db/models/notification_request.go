package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationRequest is a restock subscription. Notified flips to true once
// per stock-out cycle.
type NotificationRequest struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:notification_requests_user_product_key"`
	ProductID  uuid.UUID  `gorm:"column:product_id;type:uuid;not null;uniqueIndex:notification_requests_user_product_key"`
	Email      string     `gorm:"column:email;not null"`
	Notified   bool       `gorm:"column:notified;not null;default:false"`
	NotifiedAt *time.Time `gorm:"column:notified_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *NotificationRequest) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
