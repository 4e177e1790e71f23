package auth

import (
	"time"

	"github.com/solarquote/solarquote/internal/accounts"
)

// Tokens is returned by every successful login or refresh.
type Tokens struct {
	AccessToken      string            `json:"accessToken"`
	TokenType        string            `json:"tokenType"`
	ExpiresAt        time.Time         `json:"expiresAt"`
	RefreshToken     string            `json:"refreshToken"`
	RefreshExpiresAt time.Time         `json:"refreshExpiresAt"`
	Account          *accounts.Account `json:"account,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type ForgotPasswordRequest struct {
	Username string `json:"username" validate:"required"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}
