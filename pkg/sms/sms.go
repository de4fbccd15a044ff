package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/livemart/livemart-backend/pkg/config"
	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/logger"
	"github.com/livemart/livemart-backend/pkg/mailer"
)

// ErrDisabled is returned when Twilio credentials or the sender number are missing.
var ErrDisabled = errors.New("sms not configured")

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Client sends SMS through Twilio's messaging API.
type Client struct {
	api  messageCreator
	from string
	logg *logger.Logger
}

func New(cfg config.TwilioConfig, logg *logger.Logger) *Client {
	c := &Client{from: strings.TrimSpace(cfg.FromNumber), logg: logg}
	if cfg.AccountSID != "" && cfg.AuthToken != "" && c.from != "" {
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		c.api = rest.Api
	}
	return c
}

// SendDeliverySMS tells the customer their order arrived.
func (c *Client) SendDeliverySMS(ctx context.Context, phone string, order *models.Order) error {
	if order == nil {
		return errors.New("order required")
	}
	body := fmt.Sprintf("Live Mart: Your order #%s has been delivered! Thank you for shopping with us.", mailer.ShortID(order.ID.String()))
	return c.Send(ctx, phone, body)
}

func (c *Client) Send(ctx context.Context, phone, body string) error {
	if c == nil || c.api == nil {
		return ErrDisabled
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return errors.New("phone number required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(c.from)
	params.SetBody(body)

	resp, err := c.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}
	if c.logg != nil {
		fields := map[string]any{"to": phone}
		if resp != nil && resp.Sid != nil {
			fields["message_sid"] = *resp.Sid
		}
		c.logg.Info(c.logg.WithFields(ctx, fields), "sms sent")
	}
	return nil
}
