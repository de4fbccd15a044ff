package payments

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
)

// Checkout session metadata keys written when the session is created.
const (
	metaUserID          = "userId"
	metaDeliveryAddress = "deliveryAddress"
	metaScheduledDate   = "scheduledDate"
	metaOrderItems      = "orderItems"
	metaTotalAmount     = "totalAmount"
)

// SessionItem is one line of the orderItems snapshot stored on the session.
type SessionItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
}

type sessionOrder struct {
	UserID          uuid.UUID
	DeliveryAddress string
	ScheduledDate   *time.Time
	Items           []sessionLine
	TotalAmount     decimal.Decimal
}

type sessionLine struct {
	ProductID uuid.UUID
	Quantity  int
	Price     decimal.Decimal
}

func parseMetadata(meta map[string]string) (*sessionOrder, error) {
	userID, err := uuid.Parse(strings.TrimSpace(meta[metaUserID]))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment session has no valid owner")
	}

	raw := strings.TrimSpace(meta[metaOrderItems])
	if raw == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment session has no order items")
	}
	var items []SessionItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment session order items are malformed")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment session has no order items")
	}

	lines := make([]sessionLine, 0, len(items))
	for _, item := range items {
		productID, err := uuid.Parse(strings.TrimSpace(item.ProductID))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id provided").
				WithDetails(map[string]any{"productId": item.ProductID})
		}
		lines = append(lines, sessionLine{ProductID: productID, Quantity: item.Quantity, Price: item.Price})
	}

	total, err := decimal.NewFromString(strings.TrimSpace(meta[metaTotalAmount]))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment session total is malformed")
	}

	scheduled, err := parseScheduledDate(meta[metaScheduledDate])
	if err != nil {
		return nil, err
	}

	return &sessionOrder{
		UserID:          userID,
		DeliveryAddress: meta[metaDeliveryAddress],
		ScheduledDate:   scheduled,
		Items:           lines,
		TotalAmount:     total,
	}, nil
}

// parseScheduledDate accepts an empty value, an RFC 3339 timestamp or a bare
// calendar date.
func parseScheduledDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			parsed = parsed.UTC()
			return &parsed, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment session scheduled date is malformed")
}
