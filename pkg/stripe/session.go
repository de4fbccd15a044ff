package stripe

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
)

// ErrSessionNotFound is returned when Stripe has no checkout session with the
// requested id.
var ErrSessionNotFound = errors.New("stripe checkout session not found")

// CheckoutSession is the subset of a Stripe checkout session the marketplace
// reconciles orders from.
type CheckoutSession struct {
	ID            string
	PaymentStatus string
	Metadata      map[string]string
}

// Paid reports whether Stripe captured the session's payment.
func (s *CheckoutSession) Paid() bool {
	return s != nil && s.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid)
}

// FromCheckoutSession converts the Stripe SDK type.
func FromCheckoutSession(sess *stripe.CheckoutSession) *CheckoutSession {
	if sess == nil {
		return nil
	}
	metadata := make(map[string]string, len(sess.Metadata))
	for k, v := range sess.Metadata {
		metadata[k] = v
	}
	return &CheckoutSession{
		ID:            sess.ID,
		PaymentStatus: string(sess.PaymentStatus),
		Metadata:      metadata,
	}
}

// Session fetches one checkout session. Unknown ids map to
// ErrSessionNotFound.
func (c *Client) Session(ctx context.Context, id string) (*CheckoutSession, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrSessionNotFound
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := session.Get(id, params)
	if isMissing(err) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return FromCheckoutSession(sess), nil
}

func isMissing(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	return stripeErr.Code == stripe.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == http.StatusNotFound
}
