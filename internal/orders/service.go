package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/internal/inventory"
	"github.com/livemart/livemart-backend/internal/notifications"
	dbpkg "github.com/livemart/livemart-backend/pkg/db"
	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
	"github.com/livemart/livemart-backend/pkg/logger"
	"github.com/livemart/livemart-backend/pkg/metrics"
	"github.com/livemart/livemart-backend/pkg/pagination"
)

type ServiceParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Repo         Repository
	Inventory    reserver
	Purchases    purchaseRecorder
	Sink         notifications.Sink
	Dispatcher   dispatcher
	Metrics      *metrics.OrderMetrics
	DeliveryDays int
}

// Service owns order placement, status transitions and order reads.
type Service struct {
	logg         *logger.Logger
	db           txRunner
	repo         Repository
	inventory    reserver
	purchases    purchaseRecorder
	sink         notifications.Sink
	dispatcher   dispatcher
	metrics      *metrics.OrderMetrics
	deliveryDays int
	now          func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory reserver required")
	}
	if params.Purchases == nil {
		return nil, fmt.Errorf("purchase recorder required")
	}
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("notification dispatcher required")
	}
	sink := params.Sink
	if sink == nil {
		sink = notifications.NopSink{}
	}
	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repo,
		inventory:    params.Inventory,
		purchases:    params.Purchases,
		sink:         sink,
		dispatcher:   params.Dispatcher,
		metrics:      params.Metrics,
		deliveryDays: params.DeliveryDays,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// Place reserves stock and persists the order, its items and the customer's
// purchase history in one transaction. Notifications run after commit.
func (s *Service) Place(ctx context.Context, input PlaceInput) (*PlaceResult, error) {
	if _, err := validateHeader(input.CustomerID, input.DeliveryAddress, input.PaymentMethod, &input.OrderType); err != nil {
		return nil, err
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}

	if input.PaymentSessionID != nil {
		existing, err := s.repo.FindByPaymentSession(ctx, *input.PaymentSessionID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment session order")
		}
		if existing != nil {
			return &PlaceResult{Order: existing, AlreadyExists: true}, nil
		}
	}

	lines := make([]inventory.Line, 0, len(input.Items))
	for _, item := range input.Items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	now := s.now()
	var order *models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		products, err := s.inventory.Reserve(ctx, tx, lines)
		if err != nil {
			return err
		}

		buildLines := make([]BuildLine, 0, len(input.Items))
		for _, item := range input.Items {
			buildLines = append(buildLines, BuildLine{
				Product:  products[item.ProductID],
				Quantity: item.Quantity,
				Price:    item.Price,
			})
		}
		built, err := Build(BuildInput{
			CustomerID:       input.CustomerID,
			Lines:            buildLines,
			DeliveryAddress:  input.DeliveryAddress,
			PaymentMethod:    input.PaymentMethod,
			OrderType:        input.OrderType,
			ScheduledDate:    input.ScheduledDate,
			PaymentSessionID: input.PaymentSessionID,
			DeliveryDays:     s.deliveryDays,
			Now:              now,
		})
		if err != nil {
			return err
		}

		if err := s.repo.WithTx(tx).Create(ctx, built); err != nil {
			return err
		}

		history := make([]models.PurchaseHistory, 0, len(built.Items))
		for _, item := range built.Items {
			history = append(history, models.PurchaseHistory{
				UserID:      input.CustomerID,
				ProductID:   item.ProductID,
				OrderID:     built.ID,
				Quantity:    item.Quantity,
				PurchasedAt: now,
			})
		}
		if err := s.purchases.RecordPurchases(ctx, tx, history); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record purchase history")
		}
		order = built
		return nil
	})
	if err != nil {
		if input.PaymentSessionID != nil && dbpkg.IsUniqueViolation(err, paymentSessionUniqueKey) {
			existing, lookupErr := s.repo.FindByPaymentSession(ctx, *input.PaymentSessionID)
			if lookupErr == nil && existing != nil {
				return &PlaceResult{Order: existing, AlreadyExists: true}, nil
			}
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}

	s.metrics.IncCreated(string(order.PaymentMethod))
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"customer_id":    order.CustomerID.String(),
		"payment_method": order.PaymentMethod,
		"total_amount":   order.TotalAmount.StringFixed(2),
	}), "order placed")

	if err := s.sink.OrderCreated(ctx, order.CustomerID, order); err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "order created notification failed")
	}
	if err := s.sink.OrderUpdateBroadcast(ctx, order); err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "order broadcast failed")
	}
	s.dispatcher.OrderConfirmation(ctx, order)

	return &PlaceResult{Order: order}, nil
}

// UpdateStatus moves an order through the status state machine on behalf of
// its seller.
func (s *Service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", input.Status))
	}
	if err := requireSeller(input.Actor); err != nil {
		return nil, err
	}

	var (
		order    *models.Order
		previous enums.OrderStatus
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := s.load(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if err := authorizeSeller(input.Actor, loaded); err != nil {
			return err
		}
		previous = loaded.Status
		if !CanTransition(previous, input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot change order status from %s to %s", previous, input.Status))
		}

		updates := applyTransition(loaded, input.Status, input.Carrier, s.now())
		applied, err := repo.UpdateStatus(ctx, loaded.ID, previous, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}
		order = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(order.Status))
	logCtx := s.logg.WithActorRole(s.logg.WithOrderID(ctx, order.ID.String()), string(input.Actor.Role))
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"from": previous,
		"to":   order.Status,
	}), "order status updated")

	if err := s.sink.OrderStatusUpdated(ctx, order.CustomerID, order, previous); err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "order status notification failed")
	}
	if err := s.sink.OrderUpdateBroadcast(ctx, order); err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "order broadcast failed")
	}
	if order.Status == enums.OrderStatusDelivered {
		s.dispatcher.DeliveryConfirmation(ctx, order)
	}
	return order, nil
}

// UpdatePaymentStatus records a payment status change by the owning seller.
func (s *Service) UpdatePaymentStatus(ctx context.Context, input UpdatePaymentInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment status %q", input.Status))
	}
	if err := requireSeller(input.Actor); err != nil {
		return nil, err
	}

	order, err := s.load(ctx, s.repo, input.OrderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeSeller(input.Actor, order); err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePaymentStatus(ctx, order.ID, input.Status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
	}
	order.PaymentStatus = input.Status
	order.UpdatedAt = s.now()

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(s.logg.WithField(logCtx, "payment_status", input.Status), "order payment status updated")
	if err := s.sink.PaymentUpdated(ctx, order.CustomerID, order); err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "payment notification failed")
	}
	return order, nil
}

// Get returns an order visible to its customer or its seller.
func (s *Service) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID == actor.UserID {
		return order, nil
	}
	if err := authorizeSeller(actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

// List pages through the actor's orders, newest first. Customers see orders
// they placed; sellers see orders addressed to them.
func (s *Service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	params := listOrdersParams{Status: input.Status, Limit: input.Limit}
	userID := input.Actor.UserID
	switch input.Actor.Role {
	case enums.RoleCustomer:
		params.CustomerID = &userID
	case enums.RoleRetailer:
		params.RetailerID = &userID
	case enums.RoleWholesaler:
		params.WholesalerID = &userID
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "unknown role")
	}
	if input.Cursor != "" {
		cursor, err := pagination.ParseCursor(input.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		params.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	result := &ListResult{Orders: make([]OrderDTO, 0, len(rows))}
	for i := range rows {
		result.Orders = append(result.Orders, FromModel(&rows[i]))
	}
	if next != nil {
		result.NextCursor = next.String()
	}
	return result, nil
}

// FindByPaymentSession returns the order materialized from a payment
// session, or nil.
func (s *Service) FindByPaymentSession(ctx context.Context, sessionID string) (*models.Order, error) {
	order, err := s.repo.FindByPaymentSession(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment session order")
	}
	return order, nil
}

// RecentOnlineOrders returns the customer's completed online orders created
// within window.
func (s *Service) RecentOnlineOrders(ctx context.Context, customerID uuid.UUID, window time.Duration) ([]models.Order, error) {
	orders, err := s.repo.FindRecentOnline(ctx, customerID, s.now().Add(-window))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup recent orders")
	}
	return orders, nil
}

func (s *Service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func requireSeller(actor Actor) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !actor.Role.IsSeller() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only sellers can update orders")
	}
	return nil
}

func authorizeSeller(actor Actor, order *models.Order) error {
	var owner *uuid.UUID
	switch actor.Role {
	case enums.RoleRetailer:
		owner = order.RetailerID
	case enums.RoleWholesaler:
		owner = order.WholesalerID
	}
	if owner == nil || *owner != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to you")
	}
	return nil
}
