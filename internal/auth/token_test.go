package auth

import (
	"testing"
	"time"

	"github.com/ewhitmore/riskledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-with-enough-length"

func testUser() *models.User {
	return &models.User{
		ID:         "user123",
		Email:      "officer@example.com",
		Role:       models.RoleRiskOfficer,
		MFAEnabled: true,
	}
}

// ============================================================================
// Round-Trip Tests
// ============================================================================

func TestTokenManager_SessionRoundTrip(t *testing.T) {
	tm := NewTokenManager(testSecret, 12*time.Hour, 5*time.Minute)
	user := testUser()

	token, err := tm.IssueSession(user, true)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, models.TokenTypeSession, claims.Type)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, user.Role, claims.Role)
	assert.True(t, claims.MFAEnabled)
	assert.True(t, claims.PasswordExpired)
	assert.NotEmpty(t, claims.ID)
	assert.NotNil(t, claims.IssuedAt)
}

func TestTokenManager_ChallengeRoundTrip(t *testing.T) {
	tm := NewTokenManager(testSecret, 12*time.Hour, 5*time.Minute)

	token, err := tm.IssueMFAChallenge(testUser())
	require.NoError(t, err)

	claims, err := tm.ValidateChallenge(token)
	require.NoError(t, err)
	assert.Equal(t, models.TokenTypeMFAChallenge, claims.Type)
	assert.Equal(t, "user123", claims.UserID)
}

func TestTokenManager_UniqueTokenIDs(t *testing.T) {
	tm := NewTokenManager(testSecret, 12*time.Hour, 5*time.Minute)
	user := testUser()

	first, err := tm.IssueSession(user, false)
	require.NoError(t, err)
	second, err := tm.IssueSession(user, false)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

// ============================================================================
// Fail-Closed Tests
// ============================================================================

func TestTokenManager_Validate_CorruptedToken(t *testing.T) {
	tm := NewTokenManager(testSecret, 12*time.Hour, 5*time.Minute)

	token, err := tm.IssueSession(testUser(), false)
	require.NoError(t, err)

	// Corrupting any portion of the token must fail validation
	corrupted := []string{
		"",
		"not.a.token",
		token[:len(token)-4] + "XXXX",
		"X" + token[1:],
		token + "garbage",
	}
	for _, bad := range corrupted {
		claims, err := tm.Validate(bad)
		assert.Error(t, err)
		assert.Nil(t, claims)
	}
}

func TestTokenManager_Validate_WrongSecret(t *testing.T) {
	tm := NewTokenManager(testSecret, 12*time.Hour, 5*time.Minute)
	other := NewTokenManager("a-completely-different-secret-key", 12*time.Hour, 5*time.Minute)

	token, err := tm.IssueSession(testUser(), false)
	require.NoError(t, err)

	claims, err := other.Validate(token)
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestTokenManager_Validate_ExpiredToken(t *testing.T) {
	tm := NewTokenManager(testSecret, -1*time.Minute, -1*time.Minute)

	token, err := tm.IssueSession(testUser(), false)
	require.NoError(t, err)

	claims, err := tm.Validate(token)
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestTokenManager_Validate_RejectsChallengeToken(t *testing.T) {
	tm := NewTokenManager(testSecret, 12*time.Hour, 5*time.Minute)

	challenge, err := tm.IssueMFAChallenge(testUser())
	require.NoError(t, err)

	claims, err := tm.Validate(challenge)
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestTokenManager_ValidateChallenge_RejectsSessionToken(t *testing.T) {
	tm := NewTokenManager(testSecret, 12*time.Hour, 5*time.Minute)

	session, err := tm.IssueSession(testUser(), false)
	require.NoError(t, err)

	claims, err := tm.ValidateChallenge(session)
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestTokenManager_ExpiredChallenge(t *testing.T) {
	tm := NewTokenManager(testSecret, 12*time.Hour, -1*time.Minute)

	challenge, err := tm.IssueMFAChallenge(testUser())
	require.NoError(t, err)

	claims, err := tm.ValidateChallenge(challenge)
	assert.Error(t, err)
	assert.Nil(t, claims)
}
