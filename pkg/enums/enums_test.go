package enums

import "testing"

func TestParseRoleNormalizesCase(t *testing.T) {
	role, err := ParseRole(" Retailer ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role != RoleRetailer {
		t.Fatalf("expected retailer, got %s", role)
	}
	if !role.IsSeller() {
		t.Fatalf("expected retailer to be a seller")
	}
	if RoleCustomer.IsSeller() {
		t.Fatalf("customer must not be a seller")
	}
}

func TestParseRoleRejectsUnknown(t *testing.T) {
	if _, err := ParseRole("admin"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
	if Role("admin").IsValid() {
		t.Fatalf("admin must not be a valid role")
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	terminal := map[OrderStatus]bool{
		OrderStatusPending:    false,
		OrderStatusProcessing: false,
		OrderStatusInTransit:  false,
		OrderStatusDelivered:  true,
		OrderStatusCancelled:  true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Fatalf("status %s terminal=%v, want %v", status, got, want)
		}
	}
}

func TestDeliveryStatusFor(t *testing.T) {
	if got := DeliveryStatusFor(OrderStatusInTransit); got != DeliveryStatusInTransit {
		t.Fatalf("unexpected delivery status %s", got)
	}
	if got := DeliveryStatusFor(OrderStatusCancelled); got != DeliveryStatusCancelled {
		t.Fatalf("unexpected delivery status %s", got)
	}
}

func TestParsePaymentStatus(t *testing.T) {
	if _, err := ParsePaymentStatus("refunded"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParsePaymentStatus("settled"); err == nil {
		t.Fatalf("expected error for unknown payment status")
	}
}

func TestOutboxEventTypes(t *testing.T) {
	if !EventOrderCreated.IsValid() {
		t.Fatalf("order_created should be valid")
	}
	if _, err := ParseOutboxEventType("ad_created"); err == nil {
		t.Fatalf("expected error for unknown event type")
	}
}

func TestParseFeedbackType(t *testing.T) {
	if got, err := ParseFeedbackType("service"); err != nil || got != FeedbackTypeService {
		t.Fatalf("expected service, got %q (%v)", got, err)
	}
	if _, err := ParseFeedbackType("delivery"); err == nil {
		t.Fatalf("expected error for unknown feedback type")
	}
}
