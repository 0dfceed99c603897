package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims are the JWT claims the API trusts after JWKS verification.
// Subject is the user id; Role must be "authenticated" (anonymous tokens
// are rejected by the verifier).
type AccessClaims struct {
	jwt.RegisteredClaims
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
}

// UserID returns the authenticated user's id (the sub claim).
func (c *AccessClaims) UserID() string {
	return c.Subject
}
