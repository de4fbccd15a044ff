package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/livemart/livemart-backend/internal/users"
	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	"github.com/livemart/livemart-backend/pkg/geo"
)

// Viewer is the caller of a catalog read. A zero Role is an anonymous viewer.
type Viewer struct {
	UserID *uuid.UUID
	Role   enums.Role
}

// Actor is the authenticated seller mutating a listing.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// Filters are the caller predicates applied in SQL.
type Filters struct {
	Category     string
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	InStock      bool
	MinQuantity  *int
	RetailerID   *uuid.UUID
	WholesalerID *uuid.UUID
	Region       string
	Query        string
}

// ListInput configures a catalog query.
type ListInput struct {
	Viewer        Viewer
	Filters       Filters
	Location      *geo.Point
	SortBy        SortBy
	MaxDistanceKm *float64
	Limit         int
}

// ProductView is a visible product enriched with its seller and, when the
// viewer supplied a location, the distance to that seller.
type ProductView struct {
	ID             uuid.UUID        `json:"id"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	Price          decimal.Decimal  `json:"price"`
	Stock          int              `json:"stock"`
	Category       string           `json:"category"`
	ImageURL       *string          `json:"image,omitempty"`
	AvailableAt    *time.Time       `json:"availabilityDate,omitempty"`
	RetailerID     *uuid.UUID       `json:"retailerId,omitempty"`
	WholesalerID   *uuid.UUID       `json:"wholesalerId,omitempty"`
	ProxyAvailable bool             `json:"proxyAvailable"`
	Region         *string          `json:"region,omitempty"`
	Views          int              `json:"views"`
	Rating         float64          `json:"averageRating"`
	RatingCount    int              `json:"ratingCount"`
	Seller         *users.SellerDTO `json:"seller"`
	DistanceKm     *float64         `json:"distanceKm,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// CreateProductInput holds a validated listing payload.
type CreateProductInput struct {
	Actor             Actor
	Name              string
	Description       string
	Price             decimal.Decimal
	Stock             int
	Category          string
	ImageURL          *string
	AvailableAt       *time.Time
	ProxyWholesalerID *uuid.UUID
	Region            *string
}

// UpdateProductInput carries optional field changes for a listing.
type UpdateProductInput struct {
	ProductID   uuid.UUID
	Actor       Actor
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	Category    *string
	ImageURL    *string
	AvailableAt *time.Time
	Region      *string
}

func viewFromModel(p *models.Product) ProductView {
	return ProductView{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		Stock:          p.Stock,
		Category:       p.Category,
		ImageURL:       p.ImageURL,
		AvailableAt:    p.AvailableAt,
		RetailerID:     p.RetailerID,
		WholesalerID:   p.WholesalerID,
		ProxyAvailable: p.ProxyAvailable,
		Region:         p.Region,
		Views:          p.Views,
		Rating:         p.Rating,
		RatingCount:    p.RatingCount,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}
