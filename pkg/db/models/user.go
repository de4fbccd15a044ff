package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/pkg/enums"
)

// User is the marketplace account. Accounts are created by the auth service;
// this service edits profile fields only.
type User struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string     `gorm:"column:name;not null"`
	Email     string     `gorm:"column:email;type:text;not null;uniqueIndex"`
	Phone     *string    `gorm:"column:phone"`
	Role      enums.Role `gorm:"column:role;type:user_role;not null"`
	Address   *string    `gorm:"column:address"`
	Latitude  *float64   `gorm:"column:latitude"`
	Longitude *float64   `gorm:"column:longitude"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// Coordinates returns the stored location. ok is false when either value is
// missing, not finite, or the (0,0) placeholder written at signup.
func (u User) Coordinates() (lat, lng float64, ok bool) {
	if u.Latitude == nil || u.Longitude == nil {
		return 0, 0, false
	}
	lat, lng = *u.Latitude, *u.Longitude
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return 0, 0, false
	}
	if lat == 0 && lng == 0 {
		return 0, 0, false
	}
	return lat, lng, true
}
