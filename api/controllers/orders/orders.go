package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/livemart/livemart-backend/api/middleware"
	"github.com/livemart/livemart-backend/api/responses"
	"github.com/livemart/livemart-backend/api/validators"
	internalorders "github.com/livemart/livemart-backend/internal/orders"
	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
	"github.com/livemart/livemart-backend/pkg/logger"
	"github.com/livemart/livemart-backend/pkg/pagination"
)

// Service is the order surface the handlers depend on.
type Service interface {
	Place(ctx context.Context, input internalorders.PlaceInput) (*internalorders.PlaceResult, error)
	UpdateStatus(ctx context.Context, input internalorders.UpdateStatusInput) (*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, input internalorders.UpdatePaymentInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID, actor internalorders.Actor) (*models.Order, error)
	List(ctx context.Context, input internalorders.ListInput) (*internalorders.ListResult, error)
}

type lineRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type placeOrderRequest struct {
	Items           []lineRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod   string        `json:"paymentMethod,omitempty"`
	DeliveryAddress string        `json:"deliveryAddress" validate:"required,max=500"`
	ScheduledDate   *string       `json:"scheduledDate,omitempty"`
	OrderType       string        `json:"orderType,omitempty"`
}

func (p placeOrderRequest) toInput(customerID uuid.UUID) (internalorders.PlaceInput, error) {
	method := enums.PaymentMethodCOD
	if raw := strings.TrimSpace(p.PaymentMethod); raw != "" {
		parsed, err := enums.ParsePaymentMethod(raw)
		if err != nil {
			return internalorders.PlaceInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, `invalid payment method, must be "online" or "cod"`)
		}
		method = parsed
	}
	if method == enums.PaymentMethodOnline {
		return internalorders.PlaceInput{}, pkgerrors.New(pkgerrors.CodeValidation, "online orders are created by payment verification")
	}

	input := internalorders.PlaceInput{
		CustomerID:      customerID,
		Items:           make([]internalorders.LineInput, 0, len(p.Items)),
		DeliveryAddress: p.DeliveryAddress,
		PaymentMethod:   method,
		OrderType:       enums.OrderType(strings.ToLower(strings.TrimSpace(p.OrderType))),
	}
	for _, line := range p.Items {
		productID, err := uuid.Parse(strings.TrimSpace(line.ProductID))
		if err != nil {
			return internalorders.PlaceInput{}, pkgerrors.New(pkgerrors.CodeProductNotFound, "product "+line.ProductID+" not found").
				WithDetails(map[string]any{"productIds": []string{line.ProductID}})
		}
		input.Items = append(input.Items, internalorders.LineInput{ProductID: productID, Quantity: line.Quantity})
	}
	if p.ScheduledDate != nil {
		date, err := validators.ParseDate("scheduledDate", *p.ScheduledDate)
		if err != nil {
			return internalorders.PlaceInput{}, err
		}
		input.ScheduledDate = date
	}
	return input, nil
}

// PlaceOrder creates a cash-on-delivery order for the calling customer.
func PlaceOrder(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		customerID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload placeOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Place(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, internalorders.FromModel(result.Order))
	}
}

// List returns the caller's orders: placed ones for customers, received
// ones for sellers.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := internalorders.ListInput{
			Actor:  actor,
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			input.Status = &status
		}

		list, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one order to its customer or owning seller.
func Detail(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.FromModel(order))
	}
}

type deliveryDetailsRequest struct {
	Carrier     *string `json:"carrier,omitempty" validate:"omitempty,max=100"`
	TrackingURL *string `json:"trackingUrl,omitempty" validate:"omitempty,max=500"`
	Notes       *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type updateStatusRequest struct {
	Status          string                  `json:"status" validate:"required"`
	DeliveryDetails *deliveryDetailsRequest `json:"deliveryDetails,omitempty"`
}

// UpdateStatus moves an order through the status machine on behalf of its seller.
func UpdateStatus(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status"))
			return
		}
		input := internalorders.UpdateStatusInput{OrderID: orderID, Actor: actor, Status: status}
		if d := payload.DeliveryDetails; d != nil {
			input.Carrier = internalorders.CarrierUpdate{Carrier: d.Carrier, TrackingURL: d.TrackingURL, Notes: d.Notes}
		}

		order, err := svc.UpdateStatus(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.FromModel(order))
	}
}

type updatePaymentRequest struct {
	PaymentStatus string `json:"paymentStatus" validate:"required"`
}

func UpdatePayment(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updatePaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParsePaymentStatus(payload.PaymentStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status"))
			return
		}

		order, err := svc.UpdatePaymentStatus(r.Context(), internalorders.UpdatePaymentInput{OrderID: orderID, Actor: actor, Status: status})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.FromModel(order))
	}
}

func actorFromRequest(r *http.Request) (internalorders.Actor, error) {
	userID, err := middleware.CallerID(r.Context())
	if err != nil {
		return internalorders.Actor{}, err
	}
	return internalorders.Actor{UserID: userID, Role: middleware.RoleFromContext(r.Context())}, nil
}
