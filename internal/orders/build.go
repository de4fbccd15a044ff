package orders

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
)

const defaultDeliveryDays = 3

// BuildLine pairs a product snapshot with the requested quantity. Price
// overrides the product price when set (the amount actually paid in a
// payment session).
type BuildLine struct {
	Product  models.Product
	Quantity int
	Price    *decimal.Decimal
}

// BuildInput carries everything needed to construct an order without I/O.
type BuildInput struct {
	CustomerID       uuid.UUID
	Lines            []BuildLine
	DeliveryAddress  string
	PaymentMethod    enums.PaymentMethod
	OrderType        enums.OrderType
	ScheduledDate    *time.Time
	PaymentSessionID *string
	TrackingNumber   string
	DeliveryDays     int
	Now              time.Time
}

// Build assembles an unsaved order. The owners are copied from the first
// line's product: an order belongs to exactly one listing owner, and a proxy
// listing carries both its retailer and the fulfilling wholesaler.
func Build(input BuildInput) (*models.Order, error) {
	address, err := validateHeader(input.CustomerID, input.DeliveryAddress, input.PaymentMethod, &input.OrderType)
	if err != nil {
		return nil, err
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	days := input.DeliveryDays
	if days <= 0 {
		days = defaultDeliveryDays
	}

	items := make([]models.OrderItem, 0, len(input.Lines))
	total := decimal.Zero
	for i, line := range input.Lines {
		if line.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d].quantity must be at least 1", i))
		}
		price := line.Product.Price
		if line.Price != nil {
			price = *line.Price
		}
		if price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d].price must not be negative", i))
		}
		lineTotal := price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		items = append(items, models.OrderItem{
			Position:    i,
			ProductID:   line.Product.ID,
			ProductName: line.Product.Name,
			Price:       price,
			Quantity:    line.Quantity,
			Total:       lineTotal,
		})
		total = total.Add(lineTotal)
	}

	paymentStatus := enums.PaymentStatusPending
	if input.PaymentMethod == enums.PaymentMethodOnline {
		paymentStatus = enums.PaymentStatusCompleted
	}

	estimated := now.Add(time.Duration(days) * 24 * time.Hour)
	if input.ScheduledDate != nil {
		estimated = *input.ScheduledDate
	}

	tracking := input.TrackingNumber
	if tracking == "" {
		tracking = NewTrackingNumber(now)
	}

	first := input.Lines[0].Product
	order := &models.Order{
		CustomerID:      input.CustomerID,
		RetailerID:      first.RetailerID,
		WholesalerID:    first.WholesalerID,
		Items:           items,
		TotalAmount:     total,
		Status:          enums.OrderStatusPending,
		PaymentMethod:   input.PaymentMethod,
		PaymentStatus:   paymentStatus,
		OrderType:       input.OrderType,
		DeliveryAddress: address,
		ScheduledDate:   input.ScheduledDate,
		Delivery: models.DeliveryDetails{
			Status:            enums.DeliveryStatusPending,
			TrackingNumber:    tracking,
			EstimatedDelivery: &estimated,
		},
		PaymentSessionID: input.PaymentSessionID,
	}
	return order, nil
}

// NewTrackingNumber returns a display-only tracking reference.
func NewTrackingNumber(now time.Time) string {
	return fmt.Sprintf("TRK%d%d", now.UnixMilli(), rand.IntN(1000))
}

func validateHeader(customerID uuid.UUID, address string, method enums.PaymentMethod, orderType *enums.OrderType) (string, error) {
	if customerID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "deliveryAddress is required")
	}
	if !method.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", method))
	}
	if *orderType == "" {
		*orderType = enums.OrderTypeOnline
	}
	if !orderType.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order type %q", *orderType))
	}
	return trimmed, nil
}
