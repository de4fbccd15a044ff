package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	"github.com/livemart/livemart-backend/pkg/geo"
)

// SellerDTO is the public seller summary attached to catalog items.
type SellerDTO struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	Role     enums.Role `json:"role"`
	Address  *string    `json:"address,omitempty"`
	Location *geo.Point `json:"location"`
}

// ShopDTO is a seller annotated with the distance from the viewer.
type ShopDTO struct {
	SellerDTO
	DistanceKm float64 `json:"distanceKm"`
}

// Contact carries the delivery channels of a customer.
type Contact struct {
	UserID uuid.UUID
	Name   string
	Email  string
	Phone  string
}

// PurchaseDTO is one row of the customer's purchase history.
type PurchaseDTO struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName"`
	OrderID     uuid.UUID `json:"orderId"`
	Quantity    int       `json:"quantity"`
	PurchasedAt time.Time `json:"purchasedAt"`
}

// ProfileDTO is the account as its owner sees it.
type ProfileDTO struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     *string    `json:"phone,omitempty"`
	Role      enums.Role `json:"role"`
	Address   *string    `json:"address,omitempty"`
	Location  *geo.Point `json:"location"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// UpdateProfileInput carries the fields to change. Nil or blank values keep
// the stored value.
type UpdateProfileInput struct {
	UserID   uuid.UUID
	Name     *string
	Phone    *string
	Address  *string
	Location *geo.Point
}

// ViewDTO is one entry of the browsing history.
type ViewDTO struct {
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName"`
	ViewedAt    time.Time `json:"viewedAt"`
}

func SellerFromModel(u *models.User) *SellerDTO {
	if u == nil {
		return nil
	}
	return &SellerDTO{
		ID:       u.ID,
		Name:     u.Name,
		Role:     u.Role,
		Address:  u.Address,
		Location: geo.NewPoint(u.Latitude, u.Longitude),
	}
}

func ContactFromModel(u *models.User) Contact {
	c := Contact{UserID: u.ID, Name: u.Name, Email: u.Email}
	if u.Phone != nil {
		c.Phone = *u.Phone
	}
	return c
}

func ProfileFromModel(u *models.User) *ProfileDTO {
	return &ProfileDTO{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		Address:   u.Address,
		Location:  geo.NewPoint(u.Latitude, u.Longitude),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
