package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaims is the bearer token issued by the hosted auth layer. Anonymous
// donors carry a token too; Role tells them apart.
type AccessTokenClaims struct {
	Role  string `json:"role,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AccessTokenPayload is what MintAccessToken signs.
type AccessTokenPayload struct {
	Subject string
	Role    string
	Email   string
	TTL     time.Duration
}
