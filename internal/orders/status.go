package orders

import (
	"time"

	"github.com/livemart/livemart-backend/pkg/db/models"
	"github.com/livemart/livemart-backend/pkg/enums"
)

var forwardRank = map[enums.OrderStatus]int{
	enums.OrderStatusPending:    0,
	enums.OrderStatusProcessing: 1,
	enums.OrderStatusInTransit:  2,
	enums.OrderStatusDelivered:  3,
}

// CanTransition reports whether an order may move from one status to another.
// Forward moves may skip states; cancellation is allowed from any
// non-terminal state.
func CanTransition(from, to enums.OrderStatus) bool {
	if from.IsTerminal() || !to.IsValid() {
		return false
	}
	if to == enums.OrderStatusCancelled {
		return true
	}
	fromRank, ok := forwardRank[from]
	if !ok {
		return false
	}
	return forwardRank[to] > fromRank
}

// CarrierUpdate holds optional delivery details merged on a status change.
type CarrierUpdate struct {
	Carrier     *string
	TrackingURL *string
	Notes       *string
}

// applyTransition mutates order to the target status and returns the column
// updates to persist.
func applyTransition(order *models.Order, to enums.OrderStatus, carrier CarrierUpdate, now time.Time) map[string]any {
	updates := map[string]any{
		"status":          to,
		"delivery_status": enums.DeliveryStatusFor(to),
		"updated_at":      now,
	}
	order.Status = to
	order.Delivery.Status = enums.DeliveryStatusFor(to)

	switch to {
	case enums.OrderStatusProcessing:
		if eta := order.Delivery.EstimatedDelivery; eta == nil || !eta.After(now) {
			next := now.Add(3 * 24 * time.Hour)
			order.Delivery.EstimatedDelivery = &next
			updates["delivery_estimated_delivery"] = next
		}
	case enums.OrderStatusInTransit:
		if order.Delivery.EstimatedDelivery == nil {
			next := now.Add(2 * 24 * time.Hour)
			order.Delivery.EstimatedDelivery = &next
			updates["delivery_estimated_delivery"] = next
		}
	case enums.OrderStatusDelivered:
		if order.PaymentStatus == enums.PaymentStatusPending {
			order.PaymentStatus = enums.PaymentStatusCompleted
			updates["payment_status"] = enums.PaymentStatusCompleted
		}
		delivered := now
		order.DeliveredAt = &delivered
		updates["delivered_at"] = delivered
	}

	if carrier.Carrier != nil {
		order.Delivery.Carrier = carrier.Carrier
		updates["delivery_carrier"] = *carrier.Carrier
	}
	if carrier.TrackingURL != nil {
		order.Delivery.TrackingURL = carrier.TrackingURL
		updates["delivery_tracking_url"] = *carrier.TrackingURL
	}
	if carrier.Notes != nil {
		order.Delivery.Notes = carrier.Notes
		updates["delivery_notes"] = *carrier.Notes
	}
	order.UpdatedAt = now
	return updates
}
