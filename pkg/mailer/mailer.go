package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/livemart/livemart-backend/pkg/config"
	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/logger"
)

// ErrDisabled is returned when no SendGrid api key is configured.
var ErrDisabled = errors.New("mailer not configured")

// Recipient is the addressee of a transactional email.
type Recipient struct {
	Name  string
	Email string
}

type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Client sends LiveMart transactional mail through SendGrid.
type Client struct {
	sender sender
	from   *mail.Email
	logg   *logger.Logger
}

// New builds a SendGrid-backed mailer. An empty api key yields a client whose
// sends return ErrDisabled.
func New(cfg config.SendgridConfig, logg *logger.Logger) *Client {
	c := &Client{
		from: mail.NewEmail(cfg.FromName, cfg.DefaultFrom),
		logg: logg,
	}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		c.sender = sendgrid.NewSendClient(key)
	}
	return c
}

func (c *Client) SendOrderConfirmation(ctx context.Context, to Recipient, order *models.Order) error {
	if order == nil {
		return errors.New("order required")
	}
	subject := fmt.Sprintf("Live Mart - Order Confirmation #%s", ShortID(order.ID.String()))
	return c.send(ctx, to, subject, orderConfirmationTmpl, orderView(order))
}

func (c *Client) SendDeliveryConfirmation(ctx context.Context, to Recipient, order *models.Order) error {
	if order == nil {
		return errors.New("order required")
	}
	subject := fmt.Sprintf("Live Mart - Order Delivered #%s", ShortID(order.ID.String()))
	return c.send(ctx, to, subject, deliveryConfirmationTmpl, orderView(order))
}

func (c *Client) SendRestockNotification(ctx context.Context, to Recipient, product *models.Product) error {
	if product == nil {
		return errors.New("product required")
	}
	subject := fmt.Sprintf("Live Mart - %s is back in stock", product.Name)
	return c.send(ctx, to, subject, restockTmpl, map[string]any{
		"ProductName": product.Name,
		"Price":       product.Price.StringFixed(2),
		"Stock":       product.Stock,
	})
}

func (c *Client) send(ctx context.Context, to Recipient, subject string, tmpl *template.Template, data any) error {
	if c == nil || c.sender == nil {
		return ErrDisabled
	}
	if strings.TrimSpace(to.Email) == "" {
		return errors.New("recipient email required")
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}

	message := mail.NewSingleEmail(c.from, subject, mail.NewEmail(to.Name, to.Email), subject, body.String())
	resp, err := c.sender.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp != nil && resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: unexpected status %d: %s", resp.StatusCode, resp.Body)
	}
	if c.logg != nil {
		logCtx := c.logg.WithFields(ctx, map[string]any{
			"template": tmpl.Name(),
			"to":       to.Email,
		})
		c.logg.Info(logCtx, "email sent")
	}
	return nil
}

// ShortID returns the first eight characters of an identifier, as shown to customers.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func orderView(order *models.Order) map[string]any {
	view := map[string]any{
		"OrderID":        ShortID(order.ID.String()),
		"TotalAmount":    order.TotalAmount.StringFixed(2),
		"PaymentStatus":  string(order.PaymentStatus),
		"TrackingNumber": order.Delivery.TrackingNumber,
	}
	if order.ScheduledDate != nil {
		view["ScheduledDate"] = order.ScheduledDate.Format("2006-01-02")
	}
	if order.DeliveredAt != nil {
		view["DeliveredAt"] = order.DeliveredAt.Format("2006-01-02 15:04")
	}
	return view
}
