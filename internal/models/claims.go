package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token type tags. A session token gates the API; an mfa_challenge token is
// the short-lived payload issued between password verification and MFA code
// verification and is valid for nothing else.
const (
	TokenTypeSession      = "session"
	TokenTypeMFAChallenge = "mfa_challenge"
)

// SessionClaims is the signed claim set carried by every bearer token.
// Protected endpoints consume only UserID and Role; PasswordExpired lets
// clients force a change-password flow without blocking login.
type SessionClaims struct {
	Type            string `json:"type"`
	UserID          string `json:"user_id"`
	Email           string `json:"email,omitempty"`
	Role            string `json:"role,omitempty"`
	MFAEnabled      bool   `json:"mfa_enabled,omitempty"`
	PasswordExpired bool   `json:"password_expired,omitempty"`
	jwt.RegisteredClaims
}
