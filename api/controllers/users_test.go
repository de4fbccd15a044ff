package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/livemart/livemart-backend/internal/users"
	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
)

type stubHistory struct {
	userID  uuid.UUID
	update  *users.UpdateProfileInput
	viewed  uuid.UUID
	viewErr error
}

func (s *stubHistory) Profile(ctx context.Context, userID uuid.UUID) (*users.ProfileDTO, error) {
	s.userID = userID
	return &users.ProfileDTO{ID: userID, Name: "Asha"}, nil
}

func (s *stubHistory) UpdateProfile(ctx context.Context, input users.UpdateProfileInput) (*users.ProfileDTO, error) {
	s.update = &input
	return &users.ProfileDTO{ID: input.UserID}, nil
}

func (s *stubHistory) RecordView(ctx context.Context, userID, productID uuid.UUID) error {
	s.userID = userID
	s.viewed = productID
	return s.viewErr
}

func (s *stubHistory) BrowsingHistory(ctx context.Context, userID uuid.UUID) ([]users.ViewDTO, error) {
	s.userID = userID
	return []users.ViewDTO{}, nil
}

func (s *stubHistory) PurchaseHistory(ctx context.Context, userID uuid.UUID) ([]users.PurchaseDTO, error) {
	s.userID = userID
	return []users.PurchaseDTO{}, nil
}

func TestPurchaseHistoryUsesCaller(t *testing.T) {
	svc := &stubHistory{}
	userID := uuid.New()
	req := withUser(httptest.NewRequest(http.MethodGet, "/api/users/purchase-history", nil), userID.String())
	rec := httptest.NewRecorder()

	PurchaseHistory(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if svc.userID != userID {
		t.Fatalf("expected %s got %s", userID, svc.userID)
	}
}

func TestPurchaseHistoryAnonymous(t *testing.T) {
	rec := httptest.NewRecorder()
	PurchaseHistory(&stubHistory{}, testLogger())(rec, httptest.NewRequest(http.MethodGet, "/api/users/purchase-history", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestUpdateProfilePassesOnlyGivenFields(t *testing.T) {
	svc := &stubHistory{}
	userID := uuid.New()
	body := strings.NewReader(`{"phone":"  +919800000001 ","location":{"lat":12.9,"lng":77.6}}`)
	req := withUser(httptest.NewRequest(http.MethodPut, "/api/users/profile", body), userID.String())
	rec := httptest.NewRecorder()

	UpdateProfile(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.update == nil || svc.update.UserID != userID {
		t.Fatalf("expected update for caller, got %+v", svc.update)
	}
	if svc.update.Name != nil || svc.update.Address != nil {
		t.Fatalf("absent fields must stay nil: %+v", svc.update)
	}
	if svc.update.Phone == nil || *svc.update.Phone != "+919800000001" {
		t.Fatalf("expected trimmed phone, got %v", svc.update.Phone)
	}
	if svc.update.Location == nil || svc.update.Location.Lat != 12.9 {
		t.Fatalf("expected location, got %v", svc.update.Location)
	}
}

func TestUpdateProfileRejectsUnknownFields(t *testing.T) {
	svc := &stubHistory{}
	body := strings.NewReader(`{"role":"wholesaler"}`)
	req := withUser(httptest.NewRequest(http.MethodPut, "/api/users/profile", body), uuid.NewString())
	rec := httptest.NewRecorder()

	UpdateProfile(svc, testLogger())(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if svc.update != nil {
		t.Fatalf("service should not be called")
	}
}

func TestRecordBrowsing(t *testing.T) {
	svc := &stubHistory{}
	userID := uuid.New()
	productID := uuid.New()
	body := strings.NewReader(`{"productId":"` + productID.String() + `"}`)
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/users/browsing-history", body), userID.String())
	rec := httptest.NewRecorder()

	RecordBrowsing(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.userID != userID || svc.viewed != productID {
		t.Fatalf("expected view of %s by %s, got %s by %s", productID, userID, svc.viewed, svc.userID)
	}

	svc.viewErr = pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	body = strings.NewReader(`{"productId":"` + uuid.NewString() + `"}`)
	rec = httptest.NewRecorder()
	RecordBrowsing(svc, testLogger())(rec, withUser(httptest.NewRequest(http.MethodPost, "/api/users/browsing-history", body), userID.String()))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}
