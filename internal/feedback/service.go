package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/internal/notifications"
	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
	"github.com/livemart/livemart-backend/pkg/logger"
	"github.com/livemart/livemart-backend/pkg/pagination"
)

const (
	minRating = 1
	maxRating = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Logger *logger.Logger
	DB     txRunner
	Repo   *Repository
	Sink   notifications.Sink
}

// Service records ratings and serves them back per product, per order and
// per author.
type Service struct {
	logg *logger.Logger
	db   txRunner
	repo *Repository
	sink notifications.Sink
	now  func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("feedback repository required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "feedback"})
	}
	sink := params.Sink
	if sink == nil {
		sink = notifications.NopSink{}
	}
	return &Service{
		logg: logg,
		db:   params.DB,
		repo: params.Repo,
		sink: sink,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Submit stores one rating. Product feedback refreshes the product's
// average and count in the same transaction.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	entry, err := s.newEntry(input)
	if err != nil {
		return nil, err
	}

	var rating *ProductRating
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if entry.ProductID != nil {
			ok, err := repo.ProductExists(ctx, *entry.ProductID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
		}
		if entry.OrderID != nil {
			if err := s.authorizeOrder(ctx, repo, *entry.OrderID, entry.UserID); err != nil {
				return err
			}
		}
		if err := repo.Create(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create feedback")
		}
		if entry.ProductID != nil {
			refreshed, err := repo.RefreshProductRating(ctx, *entry.ProductID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product rating")
			}
			rating = &refreshed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if rating != nil {
		if err := s.sink.ProductChanged(ctx, enums.ProductChangeUpdated, rating.ProductID); err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"product_id": rating.ProductID.String(),
				"error":      err.Error(),
			}), "rating change notification failed")
		}
	}
	return &SubmitResult{Feedback: fromModel(entry), ProductRating: rating}, nil
}

func (s *Service) newEntry(input SubmitInput) (*models.Feedback, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if input.ProductID == nil && input.OrderID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId or orderId is required")
	}
	if input.Rating < minRating || input.Rating > maxRating {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	kind := input.Type
	if kind == "" {
		kind = enums.FeedbackTypeProduct
	}
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid feedback type %q", kind))
	}
	return &models.Feedback{
		UserID:    input.UserID,
		ProductID: input.ProductID,
		OrderID:   input.OrderID,
		Rating:    input.Rating,
		Comment:   strings.TrimSpace(input.Comment),
		Type:      kind,
		CreatedAt: s.now(),
	}, nil
}

// authorizeOrder allows feedback on an order only from the customer that
// placed it.
func (s *Service) authorizeOrder(ctx context.Context, repo *Repository, orderID, userID uuid.UUID) error {
	customer, err := repo.OrderCustomer(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if customer != userID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "feedback can only be left on your own orders")
	}
	return nil
}

// ForProduct is public: every rating of the product, newest first.
func (s *Service) ForProduct(ctx context.Context, productID uuid.UUID) ([]FeedbackDTO, error) {
	rows, err := s.repo.List(ctx, listFilter{ProductID: &productID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list product feedback")
	}
	return rows, nil
}

// ForOrder returns the feedback left on an order. Sellers may read any
// order's feedback; a customer only feedback they wrote.
func (s *Service) ForOrder(ctx context.Context, orderID uuid.UUID, actor Actor) ([]FeedbackDTO, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	rows, err := s.repo.List(ctx, listFilter{OrderID: &orderID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order feedback")
	}
	if actor.Role.IsSeller() {
		return rows, nil
	}
	for _, row := range rows {
		if row.UserID != actor.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not authorized to view this feedback")
		}
	}
	return rows, nil
}

// List returns the customer's own feedback, or every feedback row for
// sellers, newest first.
func (s *Service) List(ctx context.Context, input ListInput) ([]FeedbackDTO, error) {
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	filter := listFilter{Limit: pagination.NormalizeLimit(input.Limit)}
	if !input.Actor.Role.IsSeller() {
		filter.UserID = &input.Actor.UserID
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list feedback")
	}
	return rows, nil
}
