package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/livemart/livemart-backend/api/responses"
	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
	"github.com/livemart/livemart-backend/pkg/logger"
)

const (
	maxWebhookBody  = 64 << 10
	signatureHeader = "Stripe-Signature"
)

var acknowledged = map[string]bool{"received": true}

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

type stripeClient interface {
	SigningSecret() string
}

type stripeReceiver struct {
	events StripeWebhookService
	client stripeClient
	guard  stripeWebhookGuard
	logg   *logger.Logger
}

// StripeWebhook verifies and dispatches Stripe checkout events. An event id
// is handled at most once; when handling fails the id is released so the
// next delivery from Stripe runs it again.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	if logg == nil {
		logg = logger.New(logger.Options{Output: io.Discard})
	}
	rcv := &stripeReceiver{events: svc, client: client, guard: guard, logg: logg}
	return rcv.serve
}

func (rcv *stripeReceiver) serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if missing := rcv.missingDependency(); missing != "" {
		responses.WriteError(ctx, rcv.logg, w, pkgerrors.New(pkgerrors.CodeInternal, missing+" unavailable"))
		return
	}

	event, err := rcv.verify(r)
	if err != nil {
		responses.WriteError(ctx, rcv.logg, w, err)
		return
	}
	ctx = rcv.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": string(event.Type),
	})

	fresh, err := rcv.guard.Claim(ctx, event.ID)
	if err != nil {
		responses.WriteError(ctx, rcv.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}
	if !fresh {
		rcv.logg.Info(ctx, "stripe event already handled")
		responses.WriteSuccess(w, acknowledged)
		return
	}

	if err := rcv.events.HandleEvent(ctx, &event); err != nil {
		if relErr := rcv.guard.Release(ctx, event.ID); relErr != nil {
			rcv.logg.Error(ctx, "release stripe event marker", relErr)
		}
		responses.WriteError(ctx, rcv.logg, w, err)
		return
	}

	rcv.logg.Info(ctx, "stripe event processed")
	responses.WriteSuccess(w, acknowledged)
}

func (rcv *stripeReceiver) missingDependency() string {
	switch {
	case rcv.events == nil:
		return "webhook service"
	case rcv.client == nil:
		return "stripe client"
	case rcv.guard == nil:
		return "idempotency guard"
	}
	return ""
}

// verify reads the capped body and checks it against the endpoint secret.
// Events from a newer API version are accepted; the handler only reads
// checkout session fields that are stable across versions.
func (rcv *stripeReceiver) verify(r *http.Request) (stripe.Event, error) {
	sig := r.Header.Get(signatureHeader)
	if sig == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing")
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	event, err := webhook.ConstructEventWithOptions(payload, sig, rcv.client.SigningSecret(), webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stripe signature")
	}
	return event, nil
}
