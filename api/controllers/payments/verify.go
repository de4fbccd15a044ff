package payments

import (
	"context"
	"net/http"

	"github.com/livemart/livemart-backend/api/middleware"
	"github.com/livemart/livemart-backend/api/responses"
	"github.com/livemart/livemart-backend/api/validators"
	internalorders "github.com/livemart/livemart-backend/internal/orders"
	internalpayments "github.com/livemart/livemart-backend/internal/payments"
	"github.com/livemart/livemart-backend/pkg/enums"
	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
	"github.com/livemart/livemart-backend/pkg/logger"
)

type Verifier interface {
	Verify(ctx context.Context, input internalpayments.VerifyInput) (*internalpayments.VerifyResult, error)
}

type verifyRequest struct {
	SessionID string `json:"sessionId" validate:"required,max=255"`
}

type verifyResponse struct {
	Order          internalorders.OrderDTO `json:"order"`
	PaymentStatus  enums.PaymentStatus     `json:"paymentStatus"`
	AlreadyApplied bool                    `json:"alreadyApplied"`
}

// VerifyPayment turns the customer's paid checkout session into an order,
// returning the existing one when the session was already reconciled.
func VerifyPayment(svc Verifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		callerID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload verifyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Verify(r.Context(), internalpayments.VerifyInput{SessionID: payload.SessionID, CallerID: callerID})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, verifyResponse{
			Order:          internalorders.FromModel(result.Order),
			PaymentStatus:  result.PaymentStatus,
			AlreadyApplied: result.AlreadyApplied,
		})
	}
}
