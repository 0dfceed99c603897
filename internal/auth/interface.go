package auth

import "confluence/internal/domain/models"

// TokenVerifier validates bearer tokens and extracts the trusted claims.
// The abstraction keeps the middleware agnostic to where keys come from.
type TokenVerifier interface {
	// VerifyToken validates a JWT token string and returns the parsed claims.
	// Returns an error if the token is invalid, expired, or has an invalid signature.
	VerifyToken(tokenString string) (*models.AccessClaims, error)

	// Close releases any resources held by the verifier (e.g., HTTP connections for JWKS).
	Close() error
}
