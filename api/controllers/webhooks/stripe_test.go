package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/livemart/livemart-backend/pkg/outbox/idempotency"
)

const testSecret = "whsec_test"

func newGuard(t *testing.T) *idempotency.ConsumerGuard {
	t.Helper()
	guard, err := idempotency.NewGuard(newInMemoryStore(), time.Minute)
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	return guard.For("stripe-webhook")
}

func deliver(t *testing.T, handler http.Handler, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhookHandlesEachEventOnce(t *testing.T) {
	payload, header := buildSignedEvent(t)
	service := &fakeStripeWebhookService{}
	handler := StripeWebhook(service, &fakeSigningClient{secret: testSecret}, newGuard(t), nil)

	first := deliver(t, handler, payload, header)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.JSONEq(t, `{"data":{"received":true}}`, first.Body.String())

	replay := deliver(t, handler, payload, header)
	require.Equal(t, http.StatusOK, replay.Code, replay.Body.String())
	assert.Equal(t, 1, service.calls)
}

func TestStripeWebhookRejectsBadSignatures(t *testing.T) {
	payload, _ := buildSignedEvent(t)
	cases := map[string]string{
		"missing": "",
		"forged":  "t=1,v1=invalid",
		"stale":   buildStripeSignatureHeader(payload, testSecret, time.Now().Add(-time.Hour).Unix()),
		"other":   buildStripeSignatureHeader(payload, "whsec_other", time.Now().Unix()),
	}
	for name, signature := range cases {
		t.Run(name, func(t *testing.T) {
			service := &fakeStripeWebhookService{}
			handler := StripeWebhook(service, &fakeSigningClient{secret: testSecret}, newGuard(t), nil)
			rec := deliver(t, handler, payload, signature)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, service.calls)
		})
	}
}

func TestStripeWebhookReleasesFailedEvent(t *testing.T) {
	payload, header := buildSignedEvent(t)
	service := &fakeStripeWebhookService{err: errors.New("database down")}
	handler := StripeWebhook(service, &fakeSigningClient{secret: testSecret}, newGuard(t), nil)

	rec := deliver(t, handler, payload, header)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	service.err = nil
	retry := deliver(t, handler, payload, header)
	require.Equal(t, http.StatusOK, retry.Code, retry.Body.String())
	if service.calls != 2 {
		t.Fatalf("expected retry to reach the service, call count %d", service.calls)
	}
}

func TestStripeWebhookReportsMissingDependency(t *testing.T) {
	payload, header := buildSignedEvent(t)
	handler := StripeWebhook(&fakeStripeWebhookService{}, &fakeSigningClient{secret: testSecret}, nil, nil)

	rec := deliver(t, handler, payload, header)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func buildSignedEvent(t *testing.T) ([]byte, string) {
	session := &stripe.CheckoutSession{
		ID:            "cs_test_" + uuid.NewString(),
		Object:        "checkout.session",
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		Status:        stripe.CheckoutSessionStatusComplete,
		Metadata: map[string]string{
			"userId": uuid.NewString(),
		},
	}
	rawSession, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	event := &stripe.Event{
		ID:         "evt_" + uuid.NewString(),
		Type:       stripe.EventTypeCheckoutSessionCompleted,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data: &stripe.EventData{
			Raw: rawSession,
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	header := buildStripeSignatureHeader(payload, testSecret, time.Now().Unix())
	return payload, header
}

func buildStripeSignatureHeader(payload []byte, secret string, ts int64) string {
	signedPayload := fmt.Sprintf("%d.%s", ts, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

type fakeStripeWebhookService struct {
	calls int
	err   error
}

func (f *fakeStripeWebhookService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	f.calls++
	return f.err
}

type fakeSigningClient struct {
	secret string
}

func (c *fakeSigningClient) SigningSecret() string {
	return c.secret
}

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{
		data: make(map[string]string),
	}
}

func (s *inMemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("lm:idempotency:%s:%s", scope, id)
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}
