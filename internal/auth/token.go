package auth

import (
	"fmt"
	"time"

	"github.com/ewhitmore/riskledger/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager is the session token codec: it encodes the claim set issued
// after authentication and decodes/validates the bearer value presented on
// every request. Tokens are HMAC-SHA256 signed so a holder cannot forge
// roles by editing the payload.
type TokenManager struct {
	secret          []byte
	sessionExpiry   time.Duration
	challengeExpiry time.Duration
}

// NewTokenManager creates a new TokenManager. challengeExpiry bounds the
// window between password verification and MFA code submission.
func NewTokenManager(secret string, sessionExpiry, challengeExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:          []byte(secret),
		sessionExpiry:   sessionExpiry,
		challengeExpiry: challengeExpiry,
	}
}

// IssueSession creates a full session token for an authenticated user.
// passwordExpired is carried in the claims so clients can force a
// change-password flow without the server blocking login.
func (tm *TokenManager) IssueSession(user *models.User, passwordExpired bool) (string, error) {
	return tm.issue(&models.SessionClaims{
		Type:            models.TokenTypeSession,
		UserID:          user.ID,
		Email:           user.Email,
		Role:            user.Role,
		MFAEnabled:      user.MFAEnabled,
		PasswordExpired: passwordExpired,
	}, tm.sessionExpiry)
}

// IssueMFAChallenge creates the short-lived payload returned when a
// password verifies but an MFA code is still required. It carries identity
// but grants no API access.
func (tm *TokenManager) IssueMFAChallenge(user *models.User) (string, error) {
	return tm.issue(&models.SessionClaims{
		Type:   models.TokenTypeMFAChallenge,
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	}, tm.challengeExpiry)
}

func (tm *TokenManager) issue(claims *models.SessionClaims, expiry time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", claims.Type, err)
	}
	return signed, nil
}

// Validate verifies a token's signature and registered claims and returns
// the decoded claim set. Only session tokens pass: an MFA challenge token
// carries identity but grants no API access, so it fails here the same way
// a forged token would.
func (tm *TokenManager) Validate(tokenString string) (*models.SessionClaims, error) {
	claims, err := tm.decode(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != models.TokenTypeSession {
		return nil, models.ErrUnauthorized
	}
	return claims, nil
}

// ValidateChallenge decodes a token and requires the mfa_challenge type
// tag. Session tokens cannot be replayed into the MFA verification
// endpoint and vice versa.
func (tm *TokenManager) ValidateChallenge(tokenString string) (*models.SessionClaims, error) {
	claims, err := tm.decode(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != models.TokenTypeMFAChallenge {
		return nil, models.ErrUnauthorized
	}
	return claims, nil
}

// decode verifies the signature and registered claims without caring which
// token type it holds. It fails closed: parse errors, bad signatures,
// expiry, and missing type tags all return an error, never a panic.
func (tm *TokenManager) decode(tokenString string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Type == "" {
		return nil, fmt.Errorf("invalid token: missing type")
	}

	return claims, nil
}
