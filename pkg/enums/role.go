package enums

import (
	"fmt"
	"strings"
)

// Role is the marketplace principal kind carried in access tokens.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleRetailer   Role = "retailer"
	RoleWholesaler Role = "wholesaler"
)

var validRoles = set[Role]{
	RoleCustomer,
	RoleRetailer,
	RoleWholesaler,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	return validRoles.has(r)
}

// IsSeller reports whether the role lists and fulfils products.
func (r Role) IsSeller() bool {
	return r == RoleRetailer || r == RoleWholesaler
}

// ParseRole converts raw input into a Role. Token issuers historically sent
// mixed-case values, so the input is normalized once here.
func ParseRole(value string) (Role, error) {
	role, err := validRoles.parse("role", strings.ToLower(strings.TrimSpace(value)))
	if err != nil {
		return "", fmt.Errorf("invalid role %q", value)
	}
	return role, nil
}
