package enums

// PaymentMethod describes how a customer settles an order.
type PaymentMethod string

const (
	PaymentMethodOnline PaymentMethod = "online"
	PaymentMethodCOD    PaymentMethod = "cod"
)

var validPaymentMethods = set[PaymentMethod]{
	PaymentMethodOnline,
	PaymentMethodCOD,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	return validPaymentMethods.has(p)
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return validPaymentMethods.parse("payment method", value)
}

// OrderType separates app orders from ones recorded by a seller in person.
type OrderType string

const (
	OrderTypeOnline  OrderType = "online"
	OrderTypeOffline OrderType = "offline"
)

// IsValid reports whether the value is a known OrderType.
func (o OrderType) IsValid() bool {
	return o == OrderTypeOnline || o == OrderTypeOffline
}
