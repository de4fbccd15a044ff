package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/livemart/livemart-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.Role
	Email  string
	JTI    string
}

// AccessTokenClaims represents the typed JWT presented by clients. Role stays
// a raw string here so an unknown value can be rejected at the HTTP boundary
// instead of failing the whole decode.
type AccessTokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	Email  string    `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ParsedRole converts the role claim into the closed Role enum.
func (c *AccessTokenClaims) ParsedRole() (enums.Role, error) {
	return enums.ParseRole(c.Role)
}

// NormalizedEmail returns the email claim lowercased and trimmed.
func (c *AccessTokenClaims) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(c.Email))
}
