package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/livemart/livemart-backend/internal/users"
	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/logger"
	"github.com/livemart/livemart-backend/pkg/mailer"
)

const defaultDispatchTimeout = 15 * time.Second

// Mailer sends transactional email.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, to mailer.Recipient, order *models.Order) error
	SendDeliveryConfirmation(ctx context.Context, to mailer.Recipient, order *models.Order) error
	SendRestockNotification(ctx context.Context, to mailer.Recipient, product *models.Product) error
}

// SMSSender sends delivery text messages.
type SMSSender interface {
	SendDeliverySMS(ctx context.Context, phone string, order *models.Order) error
}

type contactLookup interface {
	Contact(ctx context.Context, userID uuid.UUID) (users.Contact, error)
}

// DeliveryFlagRecorder persists which channels reached the customer.
type DeliveryFlagRecorder interface {
	MarkNotificationsSent(ctx context.Context, orderID uuid.UUID, email, sms bool) error
}

// Runner executes fn outside the caller's request lifetime.
type Runner func(ctx context.Context, name string, fn func(ctx context.Context))

// AsyncRunner runs fn on its own goroutine with a context detached from the
// caller and bounded by timeout. Panics are logged and swallowed.
func AsyncRunner(logg *logger.Logger, timeout time.Duration) Runner {
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return func(ctx context.Context, name string, fn func(ctx context.Context)) {
		detached := context.WithoutCancel(ctx)
		go func() {
			runCtx, cancel := context.WithTimeout(detached, timeout)
			defer cancel()
			defer func() {
				if r := recover(); r != nil && logg != nil {
					logg.Error(logg.WithField(runCtx, "task", name), "notification task panicked", fmt.Errorf("%v", r))
				}
			}()
			fn(runCtx)
		}()
	}
}

// SyncRunner runs fn inline. Tests use it to observe side effects.
func SyncRunner(ctx context.Context, _ string, fn func(ctx context.Context)) {
	fn(ctx)
}

// DeliveryReport records which channels succeeded for a delivery confirmation.
type DeliveryReport struct {
	EmailSent bool
	SMSSent   bool
	Err       error
}

type DispatcherParams struct {
	Logger   *logger.Logger
	Mailer   Mailer
	SMS      SMSSender
	Contacts contactLookup
	Flags    DeliveryFlagRecorder
	Runner   Runner
}

// Dispatcher delivers email and SMS side effects after commit. Failures are
// logged and never surface to the caller.
type Dispatcher struct {
	logg     *logger.Logger
	mailer   Mailer
	sms      SMSSender
	contacts contactLookup
	flags    DeliveryFlagRecorder
	run      Runner
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if params.SMS == nil {
		return nil, fmt.Errorf("sms sender required")
	}
	if params.Contacts == nil {
		return nil, fmt.Errorf("contact lookup required")
	}
	run := params.Runner
	if run == nil {
		run = AsyncRunner(params.Logger, defaultDispatchTimeout)
	}
	return &Dispatcher{
		logg:     params.Logger,
		mailer:   params.Mailer,
		sms:      params.SMS,
		contacts: params.Contacts,
		flags:    params.Flags,
		run:      run,
	}, nil
}

// OrderConfirmation emails the customer and records email_sent on success.
func (d *Dispatcher) OrderConfirmation(ctx context.Context, order *models.Order) {
	if order == nil {
		return
	}
	snapshot := *order
	d.run(ctx, "order-confirmation", func(ctx context.Context) {
		logCtx := d.logg.WithOrderID(ctx, snapshot.ID.String())
		contact, err := d.contacts.Contact(ctx, snapshot.CustomerID)
		if err != nil {
			d.logg.Warn(d.logg.WithField(logCtx, "error", err.Error()), "order confirmation skipped: contact lookup failed")
			return
		}
		if err := d.mailer.SendOrderConfirmation(ctx, recipient(contact), &snapshot); err != nil {
			d.logg.Warn(d.logg.WithField(logCtx, "error", err.Error()), "order confirmation email failed")
			return
		}
		d.recordFlags(ctx, logCtx, snapshot.ID, true, false)
	})
}

// DeliveryConfirmation sends the delivered email and SMS concurrently.
func (d *Dispatcher) DeliveryConfirmation(ctx context.Context, order *models.Order) {
	if order == nil {
		return
	}
	snapshot := *order
	d.run(ctx, "delivery-confirmation", func(ctx context.Context) {
		report := d.deliver(ctx, &snapshot)
		logCtx := d.logg.WithFields(d.logg.WithOrderID(ctx, snapshot.ID.String()), map[string]any{
			"email_sent": report.EmailSent,
			"sms_sent":   report.SMSSent,
		})
		if report.Err != nil {
			d.logg.Warn(d.logg.WithField(logCtx, "error", report.Err.Error()), "delivery confirmation partially failed")
		}
		d.recordFlags(ctx, logCtx, snapshot.ID, report.EmailSent, report.SMSSent)
	})
}

func (d *Dispatcher) deliver(ctx context.Context, order *models.Order) DeliveryReport {
	contact, err := d.contacts.Contact(ctx, order.CustomerID)
	if err != nil {
		return DeliveryReport{Err: fmt.Errorf("contact lookup: %w", err)}
	}

	var (
		report           DeliveryReport
		emailErr, smsErr error
		g                errgroup.Group
	)
	g.Go(func() error {
		emailErr = d.mailer.SendDeliveryConfirmation(ctx, recipient(contact), order)
		report.EmailSent = emailErr == nil
		return nil
	})
	g.Go(func() error {
		if contact.Phone == "" {
			smsErr = fmt.Errorf("customer has no phone number")
			return nil
		}
		smsErr = d.sms.SendDeliverySMS(ctx, contact.Phone, order)
		report.SMSSent = smsErr == nil
		return nil
	})
	_ = g.Wait()

	report.Err = multierr.Combine(
		wrapChannel("email", emailErr),
		wrapChannel("sms", smsErr),
	)
	return report
}

// Restock emails every claimed request about the product being back in stock.
func (d *Dispatcher) Restock(ctx context.Context, product *models.Product, requests []models.NotificationRequest) {
	if product == nil || len(requests) == 0 {
		return
	}
	snapshot := *product
	claimed := append([]models.NotificationRequest(nil), requests...)
	d.run(ctx, "restock", func(ctx context.Context) {
		var errs error
		sent := 0
		for _, req := range claimed {
			if err := d.mailer.SendRestockNotification(ctx, mailer.Recipient{Email: req.Email}, &snapshot); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("request %s: %w", req.ID, err))
				continue
			}
			sent++
		}
		logCtx := d.logg.WithFields(ctx, map[string]any{
			"product_id": snapshot.ID.String(),
			"requests":   len(claimed),
			"sent":       sent,
		})
		if errs != nil {
			d.logg.Warn(d.logg.WithField(logCtx, "error", errs.Error()), "restock emails partially failed")
			return
		}
		d.logg.Info(logCtx, "restock emails sent")
	})
}

func (d *Dispatcher) recordFlags(ctx, logCtx context.Context, orderID uuid.UUID, email, sms bool) {
	if d.flags == nil || (!email && !sms) {
		return
	}
	if err := d.flags.MarkNotificationsSent(ctx, orderID, email, sms); err != nil {
		d.logg.Error(logCtx, "failed to record notification flags", err)
	}
}

func recipient(c users.Contact) mailer.Recipient {
	return mailer.Recipient{Name: c.Name, Email: c.Email}
}

func wrapChannel(channel string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", channel, err)
}
