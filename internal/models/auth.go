package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StudentLoginRequest holds student credentials.
type StudentLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AdminLoginRequest holds admin credentials.
type AdminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	UserID      string    `json:"user_id"`
	Role        UserRole  `json:"role"`
	IssuedAt    time.Time `json:"issued_at"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Login  string   `json:"login"`
	jwt.RegisteredClaims
}
