package integration

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewhitmore/riskledger/internal/models"
)

var testDB *TestDB

func TestMain(m *testing.M) {
	if os.Getenv("SKIP_INTEGRATION") != "" {
		os.Exit(0)
	}

	ctx := context.Background()
	var err error
	testDB, err = SetupTestDatabase(ctx)
	if err != nil {
		panic("failed to set up test database: " + err.Error())
	}

	code := m.Run()

	testDB.Teardown(ctx)
	os.Exit(code)
}

type loginResponse struct {
	Token           string `json:"token"`
	RequiresMFA     bool   `json:"requires_mfa"`
	ChallengeToken  string `json:"challenge_token"`
	PasswordExpired bool   `json:"password_expired"`
}

func login(t *testing.T, ts *TestServer, email, password string) (*http.Response, *loginResponse) {
	t.Helper()
	resp, err := ts.PostJSON("/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.NoError(t, err)

	var body loginResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, DecodeBody(resp, &body))
	} else {
		resp.Body.Close()
	}
	return resp, &body
}

func TestLoginAndSessionFlow(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	ts, err := NewTestServer(testDB.DB)
	require.NoError(t, err)
	defer ts.Close()

	email := UniqueEmail("login")
	_, err = SeedUser(ctx, testDB.Pool, email, TestPassword, models.RoleRiskOfficer)
	require.NoError(t, err)

	resp, body := login(t, ts, email, TestPassword)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, body.Token)
	assert.False(t, body.RequiresMFA)
	assert.False(t, body.PasswordExpired)

	// The issued token works against authenticated endpoints.
	meResp, err := ts.GetJSON("/auth/me", body.Token)
	require.NoError(t, err)
	var me map[string]interface{}
	require.NoError(t, DecodeBody(meResp, &me))
	assert.Equal(t, http.StatusOK, meResp.StatusCode)
	assert.Equal(t, email, me["email"])
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	ts, err := NewTestServer(testDB.DB)
	require.NoError(t, err)
	defer ts.Close()

	email := UniqueEmail("wrongpw")
	_, err = SeedUser(ctx, testDB.Pool, email, TestPassword, models.RoleAuditor)
	require.NoError(t, err)

	resp, _ := login(t, ts, email, "WrongPassword1!")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Unknown accounts fail identically.
	resp, _ = login(t, ts, UniqueEmail("ghost"), "WrongPassword1!")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLockoutAfterRepeatedFailures(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	ts, err := NewTestServer(testDB.DB)
	require.NoError(t, err)
	defer ts.Close()

	email := UniqueEmail("lockout")
	_, err = SeedUser(ctx, testDB.Pool, email, TestPassword, models.RoleRiskOfficer)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		resp, _ := login(t, ts, email, "WrongPassword1!")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "attempt %d", i+1)
	}

	// Threshold reached: even the correct password is refused now.
	resp, _ := login(t, ts, email, TestPassword)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestExpiredLockoutAdmits(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	ts, err := NewTestServer(testDB.DB)
	require.NoError(t, err)
	defer ts.Close()

	email := UniqueEmail("unlocked")
	user, err := SeedUser(ctx, testDB.Pool, email, TestPassword, models.RoleRiskOfficer)
	require.NoError(t, err)
	require.NoError(t, LockUser(ctx, testDB.Pool, user.ID, time.Now().Add(-time.Minute)))

	resp, body := login(t, ts, email, TestPassword)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body.Token)
}

func TestExpiredPasswordFlagged(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	ts, err := NewTestServer(testDB.DB)
	require.NoError(t, err)
	defer ts.Close()

	email := UniqueEmail("expired")
	_, err = SeedExpiredPasswordUser(ctx, testDB.Pool, email, TestPassword)
	require.NoError(t, err)

	resp, body := login(t, ts, email, TestPassword)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body.Token)
	assert.True(t, body.PasswordExpired)
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	ts, err := NewTestServer(testDB.DB)
	require.NoError(t, err)
	defer ts.Close()

	email := UniqueEmail("reset")
	_, err = SeedUser(ctx, testDB.Pool, email, TestPassword, models.RoleRiskOfficer)
	require.NoError(t, err)

	resp, err := ts.PostJSON("/auth/reset/request", map[string]string{"email": email}, "")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	sent := ts.EmailService.LastEmail()
	require.NotNil(t, sent, "a reset email should have been captured")
	require.Equal(t, email, sent.To)
	require.NotEmpty(t, sent.Token)

	newPassword := "FreshPassword456$"
	resp, err = ts.PostJSON("/auth/reset/redeem", map[string]string{
		"token":        sent.Token,
		"new_password": newPassword,
	}, "")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Old password no longer works; the new one does.
	oldResp, _ := login(t, ts, email, TestPassword)
	assert.Equal(t, http.StatusUnauthorized, oldResp.StatusCode)

	newResp, body := login(t, ts, email, newPassword)
	assert.Equal(t, http.StatusOK, newResp.StatusCode)
	assert.NotEmpty(t, body.Token)

	// The token was consumed by the first redemption.
	resp, err = ts.PostJSON("/auth/reset/redeem", map[string]string{
		"token":        sent.Token,
		"new_password": "AnotherPassword789%",
	}, "")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestResetRequestForUnknownEmailStillAccepted(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	ts, err := NewTestServer(testDB.DB)
	require.NoError(t, err)
	defer ts.Close()

	resp, err := ts.PostJSON("/auth/reset/request", map[string]string{
		"email": UniqueEmail("nobody"),
	}, "")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Nil(t, ts.EmailService.LastEmail(), "no email for unknown accounts")
}

func TestMFAEnrollmentAndLogin(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	ts, err := NewTestServer(testDB.DB)
	require.NoError(t, err)
	defer ts.Close()

	email := UniqueEmail("mfa")
	_, err = SeedUser(ctx, testDB.Pool, email, TestPassword, models.RoleRiskOfficer)
	require.NoError(t, err)

	resp, body := login(t, ts, email, TestPassword)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sessionToken := body.Token

	// Begin enrollment: the response carries the plaintext secret once.
	setupResp, err := ts.PostJSON("/auth/mfa/setup", nil, sessionToken)
	require.NoError(t, err)
	var setup struct {
		Secret string `json:"secret"`
		URI    string `json:"uri"`
	}
	require.NoError(t, DecodeBody(setupResp, &setup))
	require.Equal(t, http.StatusOK, setupResp.StatusCode)
	require.NotEmpty(t, setup.Secret)

	code := currentTOTPCode(t, setup.Secret)
	confirmResp, err := ts.PostJSON("/auth/mfa/confirm", map[string]string{"code": code}, sessionToken)
	require.NoError(t, err)
	confirmResp.Body.Close()
	require.Equal(t, http.StatusNoContent, confirmResp.StatusCode)

	// Logging in again now yields a challenge rather than a session.
	resp, body = login(t, ts, email, TestPassword)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, body.RequiresMFA)
	require.NotEmpty(t, body.ChallengeToken)
	require.Empty(t, body.Token)

	// The challenge token alone does not grant API access.
	meResp, err := ts.GetJSON("/auth/me", body.ChallengeToken)
	require.NoError(t, err)
	meResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, meResp.StatusCode)

	// Verifying the code completes the login.
	verifyResp, err := ts.PostJSON("/auth/verify-mfa", map[string]string{
		"challenge_token": body.ChallengeToken,
		"code":            currentTOTPCode(t, setup.Secret),
	}, "")
	require.NoError(t, err)
	var verified loginResponse
	require.NoError(t, DecodeBody(verifyResp, &verified))
	require.Equal(t, http.StatusOK, verifyResp.StatusCode)
	require.NotEmpty(t, verified.Token)

	meResp, err = ts.GetJSON("/auth/me", verified.Token)
	require.NoError(t, err)
	meResp.Body.Close()
	assert.Equal(t, http.StatusOK, meResp.StatusCode)
}

func TestRoleEnforcementOnRegisterWrites(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.CleanupTables(ctx))

	ts, err := NewTestServer(testDB.DB)
	require.NoError(t, err)
	defer ts.Close()

	auditorEmail := UniqueEmail("auditor")
	_, err = SeedUser(ctx, testDB.Pool, auditorEmail, TestPassword, models.RoleAuditor)
	require.NoError(t, err)

	resp, body := login(t, ts, auditorEmail, TestPassword)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	riskBody := map[string]interface{}{
		"title":      "Vendor contract lapse",
		"likelihood": 2,
		"impact":     3,
	}

	// Auditors can read but not write the register.
	writeResp, err := ts.PostJSON("/risks", riskBody, body.Token)
	require.NoError(t, err)
	writeResp.Body.Close()
	assert.Equal(t, http.StatusForbidden, writeResp.StatusCode)

	readResp, err := ts.GetJSON("/risks", body.Token)
	require.NoError(t, err)
	readResp.Body.Close()
	assert.Equal(t, http.StatusOK, readResp.StatusCode)
}

// currentTOTPCode derives the code an authenticator app would show right
// now for the given secret.
func currentTOTPCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}
