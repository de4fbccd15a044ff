package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/internal/inventory"
	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	"github.com/livemart/livemart-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentSession(ctx context.Context, sessionID string) (*models.Order, error)
	FindRecentOnline(ctx context.Context, customerID uuid.UUID, since time.Time) ([]models.Order, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	List(ctx context.Context, params listOrdersParams) ([]models.Order, *pagination.Cursor, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, observed enums.OrderStatus, updates map[string]any) (bool, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus) error
	MarkNotificationsSent(ctx context.Context, id uuid.UUID, email, sms bool) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type reserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, lines []inventory.Line) (map[uuid.UUID]models.Product, error)
}

type purchaseRecorder interface {
	RecordPurchases(ctx context.Context, tx *gorm.DB, rows []models.PurchaseHistory) error
}

type dispatcher interface {
	OrderConfirmation(ctx context.Context, order *models.Order)
	DeliveryConfirmation(ctx context.Context, order *models.Order)
}
