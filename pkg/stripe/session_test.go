package stripe

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/livemart/livemart-backend/pkg/config"
)

func TestFromCheckoutSession(t *testing.T) {
	sess := FromCheckoutSession(&stripe.CheckoutSession{
		ID:            "cs_test_1",
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		Metadata:      map[string]string{"userId": "u1"},
	})
	assert.Equal(t, "cs_test_1", sess.ID)
	assert.True(t, sess.Paid())
	assert.Equal(t, "u1", sess.Metadata["userId"])

	unpaid := FromCheckoutSession(&stripe.CheckoutSession{PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid})
	assert.False(t, unpaid.Paid())
	assert.Nil(t, FromCheckoutSession(nil))
	assert.False(t, (*CheckoutSession)(nil).Paid())
}

func TestIsMissing(t *testing.T) {
	assert.True(t, isMissing(&stripe.Error{Code: stripe.ErrorCodeResourceMissing}))
	assert.True(t, isMissing(fmt.Errorf("wrapped: %w", &stripe.Error{HTTPStatusCode: http.StatusNotFound})))
	assert.False(t, isMissing(&stripe.Error{HTTPStatusCode: http.StatusBadGateway}))
	assert.False(t, isMissing(fmt.Errorf("boom")))
}

func TestNewClientValidatesKeyForEnvironment(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.StripeConfig
		wantErr error
		errText string
	}{
		{name: "test key", cfg: config.StripeConfig{APIKey: "sk_test_abc", WebhookSecret: "whsec_1"}},
		{name: "restricted live key", cfg: config.StripeConfig{APIKey: "rk_live_abc", WebhookSecret: "whsec_1", Env: "LIVE"}},
		{name: "missing key", cfg: config.StripeConfig{WebhookSecret: "whsec_1"}, wantErr: errAPIKeyRequired},
		{name: "missing secret", cfg: config.StripeConfig{APIKey: "sk_test_abc"}, wantErr: errSecretRequired},
		{name: "live key in test", cfg: config.StripeConfig{APIKey: "sk_live_abc", WebhookSecret: "whsec_1"}, errText: "sk_test_ or rk_test_"},
		{name: "unknown env", cfg: config.StripeConfig{APIKey: "sk_test_abc", WebhookSecret: "whsec_1", Env: "staging"}, errText: `"staging"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(context.Background(), tc.cfg, nil)
			switch {
			case tc.wantErr != nil:
				require.ErrorIs(t, err, tc.wantErr)
			case tc.errText != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errText)
			default:
				require.NoError(t, err)
				assert.Equal(t, "whsec_1", client.SigningSecret())
				assert.Equal(t, tc.cfg.Environment(), client.Environment())
			}
		})
	}
}

func TestSessionRejectsBlankID(t *testing.T) {
	_, err := (&Client{}).Session(context.Background(), "  ")
	require.ErrorIs(t, err, ErrSessionNotFound)
}
