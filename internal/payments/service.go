package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/livemart/livemart-backend/internal/orders"
	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
	"github.com/livemart/livemart-backend/pkg/logger"
	"github.com/livemart/livemart-backend/pkg/metrics"
	pkgstripe "github.com/livemart/livemart-backend/pkg/stripe"
)

const defaultDedupWindow = 5 * time.Minute

const (
	outcomeCreated      = "created"
	outcomeDeduplicated = "deduplicated"
	outcomeRejected     = "rejected"
)

type sessionResolver interface {
	Session(ctx context.Context, id string) (*pkgstripe.CheckoutSession, error)
}

type orderPlacer interface {
	Place(ctx context.Context, input orders.PlaceInput) (*orders.PlaceResult, error)
	FindByPaymentSession(ctx context.Context, sessionID string) (*models.Order, error)
	RecentOnlineOrders(ctx context.Context, customerID uuid.UUID, window time.Duration) ([]models.Order, error)
}

type ServiceParams struct {
	Logger      *logger.Logger
	Sessions    sessionResolver
	Orders      orderPlacer
	Metrics     *metrics.OrderMetrics
	DedupWindow time.Duration
}

// Service turns paid checkout sessions into orders exactly once.
type Service struct {
	logg        *logger.Logger
	sessions    sessionResolver
	orders      orderPlacer
	metrics     *metrics.OrderMetrics
	dedupWindow time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Sessions == nil {
		return nil, fmt.Errorf("session resolver required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "payments"})
	}
	window := params.DedupWindow
	if window <= 0 {
		window = defaultDedupWindow
	}
	return &Service{
		logg:        logg,
		sessions:    params.Sessions,
		orders:      params.Orders,
		metrics:     params.Metrics,
		dedupWindow: window,
	}, nil
}

// VerifyInput identifies the session a signed-in customer returned from.
type VerifyInput struct {
	SessionID string
	CallerID  uuid.UUID
}

// VerifyResult carries the reconciled order. AlreadyApplied is true when an
// earlier verification or webhook had created it.
type VerifyResult struct {
	Order          *models.Order
	AlreadyApplied bool
	PaymentStatus  enums.PaymentStatus
}

// Verify reconciles a checkout session on behalf of the caller.
func (s *Service) Verify(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}

	sess, err := s.sessions.Session(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pkgstripe.ErrSessionNotFound) {
			s.metrics.IncReconciliation(outcomeRejected)
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve payment session")
	}
	if !sess.Paid() {
		s.metrics.IncReconciliation(outcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodePaymentNotCompleted, "payment not completed")
	}

	parsed, err := parseMetadata(sess.Metadata)
	if err != nil {
		s.metrics.IncReconciliation(outcomeRejected)
		return nil, err
	}
	if parsed.UserID != input.CallerID {
		s.metrics.IncReconciliation(outcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment session belongs to another user")
	}

	return s.reconcile(ctx, sessionID, parsed)
}

// HandleEvent processes a verified Stripe webhook event. Only completed
// checkout sessions are acted on; other event types are acknowledged.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": string(event.Type)})

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		s.logg.Info(ctx, "stripe event ignored")
		return nil
	}

	var raw stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &raw); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
	}
	sess := pkgstripe.FromCheckoutSession(&raw)
	ctx = s.logg.WithField(ctx, "payment_session_id", sess.ID)
	if sess.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}
	if !sess.Paid() {
		s.logg.Info(ctx, "checkout session completed without payment, waiting for async capture")
		return nil
	}

	parsed, err := parseMetadata(sess.Metadata)
	if err != nil {
		s.metrics.IncReconciliation(outcomeRejected)
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "checkout session metadata rejected")
		return nil
	}

	result, err := s.reconcile(ctx, sess.ID, parsed)
	if err != nil {
		// Permanent business failures are acknowledged so Stripe stops retrying.
		if !pkgerrors.Retryable(err) {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "checkout session could not be reconciled")
			return nil
		}
		return err
	}
	s.logg.Info(s.logg.WithOrderID(ctx, result.Order.ID.String()), "checkout session reconciled from webhook")
	return nil
}

func (s *Service) reconcile(ctx context.Context, sessionID string, parsed *sessionOrder) (*VerifyResult, error) {
	existing, err := s.orders.FindByPaymentSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.metrics.IncReconciliation(outcomeDeduplicated)
		return &VerifyResult{Order: existing, AlreadyApplied: true, PaymentStatus: existing.PaymentStatus}, nil
	}

	recent, err := s.orders.RecentOnlineOrders(ctx, parsed.UserID, s.dedupWindow)
	if err != nil {
		return nil, err
	}
	for i := range recent {
		if matchesSession(&recent[i], parsed) {
			s.metrics.IncReconciliation(outcomeDeduplicated)
			s.logg.Info(s.logg.WithOrderID(ctx, recent[i].ID.String()), "payment session matched a recent order")
			return &VerifyResult{Order: &recent[i], AlreadyApplied: true, PaymentStatus: recent[i].PaymentStatus}, nil
		}
	}

	items := make([]orders.LineInput, 0, len(parsed.Items))
	for _, line := range parsed.Items {
		price := line.Price
		items = append(items, orders.LineInput{ProductID: line.ProductID, Quantity: line.Quantity, Price: &price})
	}
	session := sessionID
	placed, err := s.orders.Place(ctx, orders.PlaceInput{
		CustomerID:       parsed.UserID,
		Items:            items,
		DeliveryAddress:  parsed.DeliveryAddress,
		PaymentMethod:    enums.PaymentMethodOnline,
		OrderType:        enums.OrderTypeOnline,
		ScheduledDate:    parsed.ScheduledDate,
		PaymentSessionID: &session,
	})
	if err != nil {
		s.metrics.IncReconciliation(outcomeRejected)
		return nil, err
	}

	if placed.AlreadyExists {
		s.metrics.IncReconciliation(outcomeDeduplicated)
	} else {
		s.metrics.IncReconciliation(outcomeCreated)
	}
	return &VerifyResult{
		Order:          placed.Order,
		AlreadyApplied: placed.AlreadyExists,
		PaymentStatus:  placed.Order.PaymentStatus,
	}, nil
}

// matchesSession is the best-effort match for orders created before the
// session id was recorded: equal total, equal first line and equal item count.
func matchesSession(order *models.Order, parsed *sessionOrder) bool {
	if order.PaymentSessionID != nil {
		return false
	}
	if !order.TotalAmount.Equal(parsed.TotalAmount) {
		return false
	}
	if len(order.Items) != len(parsed.Items) || len(order.Items) == 0 {
		return false
	}
	first := order.Items[0]
	return first.ProductID == parsed.Items[0].ProductID && first.Quantity == parsed.Items[0].Quantity
}
