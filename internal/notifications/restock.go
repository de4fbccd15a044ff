package notifications

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/livemart/livemart-backend/pkg/db"
	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
	"github.com/livemart/livemart-backend/pkg/logger"
	"github.com/livemart/livemart-backend/pkg/outbox"
	"github.com/livemart/livemart-backend/pkg/outbox/payloads"
)

const notificationRequestUniqueKey = "notification_requests_user_product_key"

type requestStore interface {
	FindProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error)
	Find(ctx context.Context, tx *gorm.DB, userID, productID uuid.UUID) (*models.NotificationRequest, error)
	Create(ctx context.Context, tx *gorm.DB, req *models.NotificationRequest) error
	Rearm(ctx context.Context, tx *gorm.DB, id uuid.UUID, email string) error
	ClaimPending(ctx context.Context, tx *gorm.DB, productID uuid.UUID, now time.Time) ([]models.NotificationRequest, error)
}

type restockDispatcher interface {
	Restock(ctx context.Context, product *models.Product, requests []models.NotificationRequest)
}

type SubscribeInput struct {
	UserID    uuid.UUID
	Email     string
	ProductID uuid.UUID
}

type SubscribeResult struct {
	Request           *models.NotificationRequest `json:"request"`
	AlreadySubscribed bool                        `json:"alreadySubscribed"`
}

// RestockBatch holds the requests claimed inside a product update transaction.
type RestockBatch struct {
	Product  models.Product
	Requests []models.NotificationRequest
}

type RestockServiceParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Requests   requestStore
	Outbox     outboxEmitter
	Dispatcher restockDispatcher
}

// RestockService manages "notify me when back in stock" requests.
type RestockService struct {
	logg       *logger.Logger
	db         txRunner
	requests   requestStore
	outbox     outboxEmitter
	dispatcher restockDispatcher
	now        func() time.Time
}

func NewRestockService(params RestockServiceParams) (*RestockService, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Requests == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notification request repository required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	if params.Dispatcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "restock dispatcher required")
	}
	return &RestockService{
		logg:       params.Logger,
		db:         params.DB,
		requests:   params.Requests,
		outbox:     params.Outbox,
		dispatcher: params.Dispatcher,
		now:        time.Now,
	}, nil
}

// Subscribe registers interest in an out-of-stock product.
func (s *RestockService) Subscribe(ctx context.Context, input SubscribeInput) (*SubscribeResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
	}
	email := strings.TrimSpace(input.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	var result *SubscribeResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		product, err := s.requests.FindProduct(ctx, tx, input.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if product.Stock > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "product is already in stock")
		}

		existing, err := s.requests.Find(ctx, tx, input.UserID, input.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notification request")
		}
		if existing != nil {
			if !existing.Notified {
				result = &SubscribeResult{Request: existing, AlreadySubscribed: true}
				return nil
			}
			if err := s.requests.Rearm(ctx, tx, existing.ID, email); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "re-arm notification request")
			}
			existing.Notified = false
			existing.NotifiedAt = nil
			existing.Email = email
			result = &SubscribeResult{Request: existing}
			return nil
		}

		req := &models.NotificationRequest{
			UserID:    input.UserID,
			ProductID: input.ProductID,
			Email:     email,
		}
		if err := s.requests.Create(ctx, tx, req); err != nil {
			if dbpkg.IsUniqueViolation(err, notificationRequestUniqueKey) {
				return pkgerrors.New(pkgerrors.CodeConflict, "already subscribed to this product")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification request")
		}
		result = &SubscribeResult{Request: req}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// NotifyRestocked claims the pending requests for product inside tx and
// queues one restock_notified event per request. Call DispatchRestock with
// the returned batch once tx has committed.
func (s *RestockService) NotifyRestocked(ctx context.Context, tx *gorm.DB, product *models.Product) (*RestockBatch, error) {
	if product == nil || product.Stock <= 0 {
		return nil, nil
	}
	claimed, err := s.requests.ClaimPending(ctx, tx, product.ID, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim restock requests")
	}
	if len(claimed) == 0 {
		return nil, nil
	}
	for _, req := range claimed {
		event := outbox.DomainEvent{
			EventType:     enums.EventRestockNotified,
			AggregateType: enums.AggregateNotificationRequest,
			AggregateID:   req.ID,
			Version:       1,
			Data: payloads.RestockNotifiedEvent{
				RequestID:   req.ID,
				UserID:      req.UserID,
				ProductID:   product.ID,
				ProductName: product.Name,
				Email:       req.Email,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit restock event")
		}
	}
	return &RestockBatch{Product: *product, Requests: claimed}, nil
}

// DispatchRestock sends the emails for a committed batch.
func (s *RestockService) DispatchRestock(ctx context.Context, batch *RestockBatch) {
	if batch == nil || len(batch.Requests) == 0 {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"product_id": batch.Product.ID.String(),
		"requests":   len(batch.Requests),
	})
	s.logg.Info(logCtx, "dispatching restock notifications")
	s.dispatcher.Restock(ctx, &batch.Product, batch.Requests)
}
