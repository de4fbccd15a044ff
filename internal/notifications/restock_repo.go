package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/livemart/livemart-backend/pkg/db/models"
)

// RequestRepository persists restock subscriptions.
type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

func (r *RequestRepository) FindProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.conn(ctx, tx).First(&product, "id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// Find returns the request for (user, product) or nil when none exists.
func (r *RequestRepository) Find(ctx context.Context, tx *gorm.DB, userID, productID uuid.UUID) (*models.NotificationRequest, error) {
	var req models.NotificationRequest
	err := r.conn(ctx, tx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *RequestRepository) Create(ctx context.Context, tx *gorm.DB, req *models.NotificationRequest) error {
	return r.conn(ctx, tx).Create(req).Error
}

// Rearm resets a notified request so the next restock reaches the user again.
func (r *RequestRepository) Rearm(ctx context.Context, tx *gorm.DB, id uuid.UUID, email string) error {
	return r.conn(ctx, tx).
		Model(&models.NotificationRequest{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"notified":    false,
			"notified_at": nil,
			"email":       email,
			"updated_at":  time.Now().UTC(),
		}).Error
}

// ClaimPending flips every pending request for the product to notified and
// returns the rows it claimed. Rows are locked first on Postgres so
// concurrent restocks cannot claim the same request twice.
func (r *RequestRepository) ClaimPending(ctx context.Context, tx *gorm.DB, productID uuid.UUID, now time.Time) ([]models.NotificationRequest, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	query := tx.WithContext(ctx).Where("product_id = ? AND notified = ?", productID, false)
	if tx.Dialector != nil && tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var pending []models.NotificationRequest
	if err := query.Order("created_at ASC").Find(&pending).Error; err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(pending))
	for _, req := range pending {
		ids = append(ids, req.ID)
	}
	res := tx.WithContext(ctx).
		Model(&models.NotificationRequest{}).
		Where("id IN ? AND notified = ?", ids, false).
		Updates(map[string]any{
			"notified":    true,
			"notified_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != int64(len(pending)) {
		return nil, errors.New("restock claim raced with another update")
	}
	for i := range pending {
		pending[i].Notified = true
		at := now
		pending[i].NotifiedAt = &at
	}
	return pending, nil
}
