package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/livemart/livemart-backend/pkg/config"
	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
)

type stubSender struct {
	messages []*mail.SGMailV3
	status   int
	err      error
}

func (s *stubSender) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	s.messages = append(s.messages, email)
	if s.err != nil {
		return nil, s.err
	}
	status := s.status
	if status == 0 {
		status = 202
	}
	return &rest.Response{StatusCode: status, Body: "accepted"}, nil
}

func newTestClient(s *stubSender) *Client {
	c := New(config.SendgridConfig{DefaultFrom: "orders@livemart.app", FromName: "LiveMart"}, nil)
	c.sender = s
	return c
}

func TestSendOrderConfirmation(t *testing.T) {
	s := &stubSender{}
	c := newTestClient(s)
	order := &models.Order{
		ID:            uuid.MustParse("3f2b9c1e-0000-4000-8000-000000000001"),
		TotalAmount:   decimal.RequireFromString("125.5"),
		PaymentStatus: enums.PaymentStatusPending,
		Delivery:      models.DeliveryDetails{TrackingNumber: "TRK1700000000000123"},
	}

	err := c.SendOrderConfirmation(context.Background(), Recipient{Name: "Asha", Email: "asha@example.com"}, order)
	require.NoError(t, err)
	require.Len(t, s.messages, 1)

	msg := s.messages[0]
	require.Equal(t, "Live Mart - Order Confirmation #3f2b9c1e", msg.Subject)
	require.Equal(t, "asha@example.com", msg.Personalizations[0].To[0].Address)
	html := msg.Content[len(msg.Content)-1].Value
	require.Contains(t, html, "125.50")
	require.Contains(t, html, "TRK1700000000000123")
	require.NotContains(t, html, "Scheduled Date")
}

func TestSendDeliveryConfirmationIncludesTimestamp(t *testing.T) {
	s := &stubSender{}
	c := newTestClient(s)
	delivered := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	order := &models.Order{ID: uuid.New(), DeliveredAt: &delivered}

	require.NoError(t, c.SendDeliveryConfirmation(context.Background(), Recipient{Email: "asha@example.com"}, order))
	html := s.messages[0].Content[len(s.messages[0].Content)-1].Value
	require.Contains(t, html, "2026-03-04 10:30")
}

func TestSendRestockEscapesProductName(t *testing.T) {
	s := &stubSender{}
	c := newTestClient(s)
	product := &models.Product{Name: "<b>Mangoes</b>", Price: decimal.NewFromInt(80), Stock: 12}

	require.NoError(t, c.SendRestockNotification(context.Background(), Recipient{Email: "b@example.com"}, product))
	html := s.messages[0].Content[len(s.messages[0].Content)-1].Value
	require.False(t, strings.Contains(html, "<b>Mangoes</b>"))
	require.Contains(t, html, "80.00")
}

func TestSendFailures(t *testing.T) {
	disabled := New(config.SendgridConfig{}, nil)
	err := disabled.SendRestockNotification(context.Background(), Recipient{Email: "x@example.com"}, &models.Product{})
	require.ErrorIs(t, err, ErrDisabled)

	rejected := newTestClient(&stubSender{status: 400})
	err = rejected.SendOrderConfirmation(context.Background(), Recipient{Email: "x@example.com"}, &models.Order{ID: uuid.New()})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status 400")

	transport := newTestClient(&stubSender{err: errors.New("dial tcp: timeout")})
	err = transport.SendOrderConfirmation(context.Background(), Recipient{Email: "x@example.com"}, &models.Order{ID: uuid.New()})
	require.Error(t, err)

	noRecipient := newTestClient(&stubSender{})
	require.Error(t, noRecipient.SendOrderConfirmation(context.Background(), Recipient{}, &models.Order{ID: uuid.New()}))
}

func TestShortID(t *testing.T) {
	require.Equal(t, "abc", ShortID("abc"))
	require.Equal(t, "12345678", ShortID("123456789abc"))
}
