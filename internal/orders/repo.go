package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	"github.com/livemart/livemart-backend/pkg/pagination"
)

const paymentSessionUniqueKey = "orders_payment_session_id_key"

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

type listOrdersParams struct {
	CustomerID   *uuid.UUID
	RetailerID   *uuid.UUID
	WholesalerID *uuid.UUID
	Status       *enums.OrderStatus
	Limit        int
	Cursor       *pagination.Cursor
}

// Create inserts the order and then its items in position order.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	items := order.Items
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if err := r.db.WithContext(ctx).Create(&items).Error; err != nil {
		return err
	}
	order.Items = items
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.withItems(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByPaymentSession returns nil when no order carries the session id.
func (r *repository) FindByPaymentSession(ctx context.Context, sessionID string) (*models.Order, error) {
	var order models.Order
	err := r.withItems(ctx).Where("payment_session_id = ?", sessionID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindRecentOnline returns the customer's completed online orders created at
// or after since, newest first.
func (r *repository) FindRecentOnline(ctx context.Context, customerID uuid.UUID, since time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.withItems(ctx).
		Where("customer_id = ? AND payment_method = ? AND payment_status = ? AND created_at >= ?",
			customerID, enums.PaymentMethodOnline, enums.PaymentStatusCompleted, since).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

// FindPendingBefore returns pending orders created before cutoff, oldest first.
func (r *repository) FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

func (r *repository) List(ctx context.Context, params listOrdersParams) ([]models.Order, *pagination.Cursor, error) {
	query := r.withItems(ctx).Model(&models.Order{})
	switch {
	case params.CustomerID != nil:
		query = query.Where("customer_id = ?", *params.CustomerID)
	case params.RetailerID != nil:
		query = query.Where("retailer_id = ?", *params.RetailerID)
	case params.WholesalerID != nil:
		query = query.Where("wholesaler_id = ?", *params.WholesalerID)
	default:
		return nil, nil, errors.New("order list requires an owner scope")
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var orders []models.Order
	if err := pagination.Keyset(query, params.Cursor, params.Limit).Find(&orders).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Page(orders, params.Limit, func(o *models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return page, next, nil
}

// UpdateStatus applies updates only while the order still has the observed
// status. It reports false when another writer moved the order first.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, observed enums.OrderStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, observed).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{"payment_status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkNotificationsSent sets the channel flags that succeeded. A false
// argument leaves the stored flag untouched.
func (r *repository) MarkNotificationsSent(ctx context.Context, id uuid.UUID, email, sms bool) error {
	updates := map[string]any{}
	if email {
		updates["email_sent"] = true
	}
	if sms {
		updates["sms_sent"] = true
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) withItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}
