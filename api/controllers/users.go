package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/livemart/livemart-backend/api/middleware"
	"github.com/livemart/livemart-backend/api/responses"
	"github.com/livemart/livemart-backend/api/validators"
	"github.com/livemart/livemart-backend/internal/users"
	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
	"github.com/livemart/livemart-backend/pkg/geo"
	"github.com/livemart/livemart-backend/pkg/logger"
)

const (
	maxPhoneLength   = 32
	maxAddressLength = 500
)

type PurchaseHistoryReader interface {
	PurchaseHistory(ctx context.Context, userID uuid.UUID) ([]users.PurchaseDTO, error)
}

// AccountService serves the caller's own account data.
type AccountService interface {
	PurchaseHistoryReader
	Profile(ctx context.Context, userID uuid.UUID) (*users.ProfileDTO, error)
	UpdateProfile(ctx context.Context, input users.UpdateProfileInput) (*users.ProfileDTO, error)
	RecordView(ctx context.Context, userID, productID uuid.UUID) error
	BrowsingHistory(ctx context.Context, userID uuid.UUID) ([]users.ViewDTO, error)
}

// PurchaseHistory returns the caller's purchases, newest first.
func PurchaseHistory(svc PurchaseHistoryReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}
		userID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		history, err := svc.PurchaseHistory(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, history)
	}
}

func GetProfile(svc AccountService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}
		userID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := svc.Profile(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

type updateProfileRequest struct {
	Name     *string    `json:"name,omitempty" validate:"omitempty,max=200"`
	Phone    *string    `json:"phone,omitempty" validate:"omitempty,max=32"`
	Address  *string    `json:"address,omitempty" validate:"omitempty,max=500"`
	Location *geo.Point `json:"location,omitempty"`
}

// UpdateProfile changes the fields present in the body and leaves the rest.
func UpdateProfile(svc AccountService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}
		userID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProfileRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := users.UpdateProfileInput{
			UserID:   userID,
			Name:     sanitized(payload.Name, maxNameLength),
			Phone:    sanitized(payload.Phone, maxPhoneLength),
			Address:  sanitized(payload.Address, maxAddressLength),
			Location: payload.Location,
		}

		profile, err := svc.UpdateProfile(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

type browsingRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
}

// RecordBrowsing notes a product page view for the caller.
func RecordBrowsing(svc AccountService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}
		userID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload browsingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := uuid.Parse(payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid productId"))
			return
		}

		if err := svc.RecordView(r.Context(), userID, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"success": true})
	}
}

func BrowsingHistory(svc AccountService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}
		userID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		history, err := svc.BrowsingHistory(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, history)
	}
}

func sanitized(value *string, maxLen int) *string {
	if value == nil {
		return nil
	}
	out := validators.SanitizeString(*value, maxLen)
	return &out
}
