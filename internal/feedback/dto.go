package feedback

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
)

// Actor is the authenticated principal reading or leaving feedback.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

type SubmitInput struct {
	UserID    uuid.UUID
	ProductID *uuid.UUID
	OrderID   *uuid.UUID
	Rating    int
	Comment   string
	Type      enums.FeedbackType
}

type ListInput struct {
	Actor Actor
	Limit int
}

type FeedbackDTO struct {
	ID          uuid.UUID          `json:"id"`
	UserID      uuid.UUID          `json:"userId"`
	AuthorName  string             `json:"authorName,omitempty"`
	ProductID   *uuid.UUID         `json:"productId,omitempty"`
	ProductName string             `json:"productName,omitempty"`
	OrderID     *uuid.UUID         `json:"orderId,omitempty"`
	Rating      int                `json:"rating"`
	Comment     string             `json:"comment"`
	Type        enums.FeedbackType `json:"type"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// ProductRating is the product's rating after a submission was counted.
type ProductRating struct {
	ProductID     uuid.UUID `json:"productId"`
	AverageRating float64   `json:"averageRating"`
	RatingCount   int       `json:"ratingCount"`
}

type SubmitResult struct {
	Feedback      FeedbackDTO    `json:"feedback"`
	ProductRating *ProductRating `json:"productRating,omitempty"`
}

func fromModel(f *models.Feedback) FeedbackDTO {
	return FeedbackDTO{
		ID:        f.ID,
		UserID:    f.UserID,
		ProductID: f.ProductID,
		OrderID:   f.OrderID,
		Rating:    f.Rating,
		Comment:   f.Comment,
		Type:      f.Type,
		CreatedAt: f.CreatedAt,
	}
}

func roundRating(v float64) float64 {
	return math.Round(v*100) / 100
}
