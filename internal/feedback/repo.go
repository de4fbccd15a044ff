package feedback

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/pkg/db/models"
)

// Repository persists feedback and keeps the product rating columns in step.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, entry *models.Feedback) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *Repository) ProductExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// OrderCustomer returns the customer that placed the order.
func (r *Repository) OrderCustomer(ctx context.Context, orderID uuid.UUID) (uuid.UUID, error) {
	var row struct {
		CustomerID uuid.UUID `gorm:"column:customer_id"`
	}
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("customer_id").
		Where("id = ?", orderID).
		Take(&row).Error
	return row.CustomerID, err
}

// RefreshProductRating recomputes the product's average and count from every
// feedback row that rates it.
func (r *Repository) RefreshProductRating(ctx context.Context, productID uuid.UUID) (ProductRating, error) {
	var agg struct {
		Average float64 `gorm:"column:average"`
		Total   int     `gorm:"column:total"`
	}
	err := r.db.WithContext(ctx).
		Model(&models.Feedback{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS total").
		Where("product_id = ?", productID).
		Scan(&agg).Error
	if err != nil {
		return ProductRating{}, err
	}
	err = r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumns(map[string]any{"rating": agg.Average, "rating_count": agg.Total}).Error
	if err != nil {
		return ProductRating{}, err
	}
	return ProductRating{ProductID: productID, AverageRating: roundRating(agg.Average), RatingCount: agg.Total}, nil
}

type listFilter struct {
	ProductID *uuid.UUID
	OrderID   *uuid.UUID
	UserID    *uuid.UUID
	Limit     int
}

type feedbackRow struct {
	models.Feedback
	AuthorName  *string `gorm:"column:author_name"`
	ProductName *string `gorm:"column:product_name"`
}

// List returns matching feedback newest first, with the author's name and
// the product's current name joined in.
func (r *Repository) List(ctx context.Context, f listFilter) ([]FeedbackDTO, error) {
	q := r.db.WithContext(ctx).
		Table("feedback").
		Select("feedback.*, users.name AS author_name, products.name AS product_name").
		Joins("LEFT JOIN users ON users.id = feedback.user_id").
		Joins("LEFT JOIN products ON products.id = feedback.product_id")
	if f.ProductID != nil {
		q = q.Where("feedback.product_id = ?", *f.ProductID)
	}
	if f.OrderID != nil {
		q = q.Where("feedback.order_id = ?", *f.OrderID)
	}
	if f.UserID != nil {
		q = q.Where("feedback.user_id = ?", *f.UserID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []feedbackRow
	if err := q.Order("feedback.created_at DESC").Order("feedback.id DESC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]FeedbackDTO, 0, len(rows))
	for i := range rows {
		dto := fromModel(&rows[i].Feedback)
		if rows[i].AuthorName != nil {
			dto.AuthorName = *rows[i].AuthorName
		}
		if rows[i].ProductName != nil {
			dto.ProductName = *rows[i].ProductName
		}
		out = append(out, dto)
	}
	return out, nil
}
