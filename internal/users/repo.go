package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDs loads every user in ids with a single query.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.User
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

// ListSellers returns retailers and wholesalers that recorded coordinates.
func (r *Repository) ListSellers(ctx context.Context) ([]models.User, error) {
	var rows []models.User
	err := r.db.WithContext(ctx).
		Where("role IN ?", []enums.Role{enums.RoleRetailer, enums.RoleWholesaler}).
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}

// AppendPurchases inserts purchase history rows.
func (r *Repository) AppendPurchases(ctx context.Context, rows []models.PurchaseHistory) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// RecordPurchases appends purchase history inside the order transaction.
func (r *Repository) RecordPurchases(ctx context.Context, tx *gorm.DB, rows []models.PurchaseHistory) error {
	return r.WithTx(tx).AppendPurchases(ctx, rows)
}

type purchaseRow struct {
	models.PurchaseHistory
	ProductName *string `gorm:"column:product_name"`
}

// PurchaseHistory returns the user's purchases newest first, joined with the
// current product name when the product still exists.
func (r *Repository) PurchaseHistory(ctx context.Context, userID uuid.UUID) ([]PurchaseDTO, error) {
	var rows []purchaseRow
	err := r.db.WithContext(ctx).
		Table("purchase_history").
		Select("purchase_history.*, products.name AS product_name").
		Joins("LEFT JOIN products ON products.id = purchase_history.product_id").
		Where("purchase_history.user_id = ?", userID).
		Order("purchase_history.purchased_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]PurchaseDTO, 0, len(rows))
	for _, row := range rows {
		dto := PurchaseDTO{
			ID:          row.ID,
			ProductID:   row.ProductID,
			OrderID:     row.OrderID,
			Quantity:    row.Quantity,
			PurchasedAt: row.PurchasedAt,
		}
		if row.ProductName != nil {
			dto.ProductName = *row.ProductName
		}
		out = append(out, dto)
	}
	return out, nil
}

// UpdateProfile writes only the given columns.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, fields map[string]any) (*models.User, error) {
	if len(fields) > 0 {
		res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return nil, res.Error
		}
	}
	return r.FindByID(ctx, id)
}

func (r *Repository) ProductExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// RecordView moves the product to the front of the user's browsing history
// and drops everything beyond the newest keep entries.
func (r *Repository) RecordView(ctx context.Context, userID, productID uuid.UUID, viewedAt time.Time, keep int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		view := models.BrowsingView{UserID: userID, ProductID: productID, ViewedAt: viewedAt}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"viewed_at"}),
		}).Create(&view).Error
		if err != nil {
			return err
		}
		newest := tx.Model(&models.BrowsingView{}).
			Select("id").
			Where("user_id = ?", userID).
			Order("viewed_at DESC").
			Order("id DESC").
			Limit(keep)
		return tx.Where("user_id = ? AND id NOT IN (?)", userID, newest).
			Delete(&models.BrowsingView{}).Error
	})
}

type viewRow struct {
	models.BrowsingView
	ProductName *string `gorm:"column:product_name"`
}

// BrowsingHistory returns the user's viewed products, most recent first.
func (r *Repository) BrowsingHistory(ctx context.Context, userID uuid.UUID) ([]ViewDTO, error) {
	var rows []viewRow
	err := r.db.WithContext(ctx).
		Table("browsing_history").
		Select("browsing_history.*, products.name AS product_name").
		Joins("LEFT JOIN products ON products.id = browsing_history.product_id").
		Where("browsing_history.user_id = ?", userID).
		Order("browsing_history.viewed_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]ViewDTO, 0, len(rows))
	for _, row := range rows {
		dto := ViewDTO{ProductID: row.ProductID, ViewedAt: row.ViewedAt}
		if row.ProductName != nil {
			dto.ProductName = *row.ProductName
		}
		out = append(out, dto)
	}
	return out, nil
}
