package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	"github.com/livemart/livemart-backend/pkg/visibility"
)

// Repository persists product listings.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// List returns the products matching filters that role may see, newest first.
func (r *Repository) List(ctx context.Context, role enums.Role, filters Filters) ([]models.Product, error) {
	qb := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Scopes(visibility.Scope(role))

	if category := strings.TrimSpace(filters.Category); category != "" {
		qb = qb.Where("products.category = ?", category)
	}
	if filters.MinPrice != nil {
		qb = qb.Where("products.price >= ?", *filters.MinPrice)
	}
	if filters.MaxPrice != nil {
		qb = qb.Where("products.price <= ?", *filters.MaxPrice)
	}
	if filters.InStock {
		qb = qb.Where("products.stock > 0")
	}
	if filters.MinQuantity != nil {
		qb = qb.Where("products.stock >= ?", *filters.MinQuantity)
	}
	if filters.RetailerID != nil {
		qb = qb.Where("products.retailer_id = ?", *filters.RetailerID)
	}
	if filters.WholesalerID != nil {
		qb = qb.Where("products.wholesaler_id = ?", *filters.WholesalerID)
	}
	if region := strings.TrimSpace(filters.Region); region != "" {
		qb = qb.Where("products.region = ?", region)
	}
	if search := strings.TrimSpace(filters.Query); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("(LOWER(products.name) LIKE ? OR LOWER(products.description) LIKE ? OR LOWER(products.category) LIKE ?)",
			pattern, pattern, pattern)
	}

	var rows []models.Product
	err := qb.Order("products.created_at DESC").Order("products.id DESC").Find(&rows).Error
	return rows, err
}

// FindByID loads one product.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// IncrementViews bumps the view counter without touching other columns.
func (r *Repository) IncrementViews(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).
		Error
}

// Categories returns the distinct non-empty categories in name order.
func (r *Repository) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("category <> ''").
		Distinct("category").
		Order("category ASC").
		Pluck("category", &categories).
		Error
	return categories, err
}

// ProxyListings returns the proxy listings a retailer publishes.
func (r *Repository) ProxyListings(ctx context.Context, retailerID uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("retailer_id = ? AND proxy_available = ?", retailerID, true).
		Order("created_at DESC").
		Find(&rows).
		Error
	return rows, err
}

// Create inserts a product row.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// Update writes the changed columns of a product.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(updates).
		Error
}

// Delete removes a product and its pending restock requests.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("product_id = ?", id).Delete(&models.NotificationRequest{}).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", id).Delete(&models.Product{}).Error
}
