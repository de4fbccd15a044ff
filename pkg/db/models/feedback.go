package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/pkg/enums"
)

// Feedback is a 1..5 rating left by a user on a product, an order, or the
// service as a whole.
type Feedback struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID          `gorm:"column:user_id;type:uuid;not null"`
	ProductID *uuid.UUID         `gorm:"column:product_id;type:uuid"`
	OrderID   *uuid.UUID         `gorm:"column:order_id;type:uuid"`
	Rating    int                `gorm:"column:rating;not null"`
	Comment   string             `gorm:"column:comment;not null;default:''"`
	Type      enums.FeedbackType `gorm:"column:type;type:feedback_type;not null"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (Feedback) TableName() string {
	return "feedback"
}

func (f *Feedback) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}

// BrowsingView is the latest time a user opened a product page. A user keeps
// one row per product.
type BrowsingView struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ViewedAt  time.Time `gorm:"column:viewed_at;not null"`
}

func (BrowsingView) TableName() string {
	return "browsing_history"
}

func (v *BrowsingView) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
