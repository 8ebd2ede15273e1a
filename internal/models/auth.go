package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeSession marks tokens minted on successful login
const TokenTypeSession = "session"

type TokenClaims struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
