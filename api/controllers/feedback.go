package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/livemart/livemart-backend/api/middleware"
	"github.com/livemart/livemart-backend/api/responses"
	"github.com/livemart/livemart-backend/api/validators"
	"github.com/livemart/livemart-backend/internal/feedback"
	"github.com/livemart/livemart-backend/pkg/enums"
	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
	"github.com/livemart/livemart-backend/pkg/logger"
	"github.com/livemart/livemart-backend/pkg/pagination"
)

const maxCommentLength = 1000

// FeedbackService records ratings and lists them back.
type FeedbackService interface {
	Submit(ctx context.Context, input feedback.SubmitInput) (*feedback.SubmitResult, error)
	ForProduct(ctx context.Context, productID uuid.UUID) ([]feedback.FeedbackDTO, error)
	ForOrder(ctx context.Context, orderID uuid.UUID, actor feedback.Actor) ([]feedback.FeedbackDTO, error)
	List(ctx context.Context, input feedback.ListInput) ([]feedback.FeedbackDTO, error)
}

type feedbackRequest struct {
	ProductID *string `json:"productId,omitempty" validate:"omitempty,uuid"`
	OrderID   *string `json:"orderId,omitempty" validate:"omitempty,uuid"`
	Rating    int     `json:"rating" validate:"required,min=1,max=5"`
	Comment   string  `json:"comment,omitempty"`
	Type      string  `json:"type,omitempty"`
}

func (p feedbackRequest) toInput(userID uuid.UUID) (feedback.SubmitInput, error) {
	input := feedback.SubmitInput{
		UserID:  userID,
		Rating:  p.Rating,
		Comment: validators.SanitizeString(p.Comment, maxCommentLength),
	}
	if raw := strings.ToLower(strings.TrimSpace(p.Type)); raw != "" {
		kind, err := enums.ParseFeedbackType(raw)
		if err != nil {
			return feedback.SubmitInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, `type must be "product", "order" or "service"`)
		}
		input.Type = kind
	}
	var err error
	if input.ProductID, err = optionalUUID(p.ProductID); err != nil {
		return feedback.SubmitInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid productId")
	}
	if input.OrderID, err = optionalUUID(p.OrderID); err != nil {
		return feedback.SubmitInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid orderId")
	}
	return input, nil
}

func optionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// SubmitFeedback stores a 1..5 rating on a product or an order.
func SubmitFeedback(svc FeedbackService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "feedback service unavailable"))
			return
		}
		userID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload feedbackRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Submit(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, result)
	}
}

func ProductFeedback(svc FeedbackService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "feedback service unavailable"))
			return
		}
		productID, err := validators.PathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ForProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func OrderFeedback(svc FeedbackService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "feedback service unavailable"))
			return
		}
		userID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor := feedback.Actor{UserID: userID, Role: middleware.RoleFromContext(r.Context())}
		rows, err := svc.ForOrder(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// ListFeedback returns the caller's own feedback, or all feedback for sellers.
func ListFeedback(svc FeedbackService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "feedback service unavailable"))
			return
		}
		userID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.List(r.Context(), feedback.ListInput{
			Actor: feedback.Actor{UserID: userID, Role: middleware.RoleFromContext(r.Context())},
			Limit: limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
