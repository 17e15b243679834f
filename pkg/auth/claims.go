package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/fieldserve-app/fieldserve-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
// User IDs come from the external identity provider and stay opaque.
type AccessTokenPayload struct {
	UserID string
	Role   enums.ActorRole
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID string          `json:"user_id"`
	Role   enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}
