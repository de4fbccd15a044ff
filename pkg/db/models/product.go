package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a listing owned by a retailer, a wholesaler, or both when a
// retailer proxies a wholesaler's stock.
type Product struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string          `gorm:"column:name;not null"`
	Description    string          `gorm:"column:description;not null;default:''"`
	Price          decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Stock          int             `gorm:"column:stock;not null;default:0"`
	Category       string          `gorm:"column:category;not null"`
	ImageURL       *string         `gorm:"column:image_url"`
	AvailableAt    *time.Time      `gorm:"column:available_at"`
	RetailerID     *uuid.UUID      `gorm:"column:retailer_id;type:uuid"`
	WholesalerID   *uuid.UUID      `gorm:"column:wholesaler_id;type:uuid"`
	ProxyAvailable bool            `gorm:"column:proxy_available;not null;default:false"`
	Region         *string         `gorm:"column:region"`
	Views          int             `gorm:"column:views;not null;default:0"`
	Rating         float64         `gorm:"column:rating;not null;default:0"`
	RatingCount    int             `gorm:"column:rating_count;not null;default:0"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// SellerID returns the owner that sells the listing to customers. Proxy
// listings carry both ids and are sold by the retailer.
func (p Product) SellerID() *uuid.UUID {
	if p.RetailerID != nil {
		return p.RetailerID
	}
	return p.WholesalerID
}

// OwnedBy reports whether the user owns the listing in either seller slot.
func (p Product) OwnedBy(userID uuid.UUID) bool {
	return (p.RetailerID != nil && *p.RetailerID == userID) ||
		(p.WholesalerID != nil && *p.WholesalerID == userID)
}
