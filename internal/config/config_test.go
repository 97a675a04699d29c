package config

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TOKEN_SECRET", "a-long-enough-development-secret")
	t.Setenv("DB_PASSWORD", "postgres")
	t.Setenv("TOTP_ENCRYPTION_KEY", hex.EncodeToString(make([]byte, 32)))
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "riskledger", cfg.Database.Name)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 12*time.Hour, cfg.Auth.SessionExpiry)
	assert.Equal(t, 5*time.Minute, cfg.Auth.MFAChallengeExpiry)
	assert.Equal(t, 5, cfg.Auth.LockoutThreshold)
	assert.Equal(t, 30*time.Minute, cfg.Auth.LockoutDuration)
	assert.Equal(t, 1*time.Hour, cfg.Auth.ResetTokenExpiry)
	assert.Equal(t, "RiskLedger", cfg.Auth.TOTPIssuer)
	assert.Len(t, cfg.Auth.TOTPEncryptionKey, 32)
}

func TestLoad_MissingTokenSecret(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "")
	t.Setenv("DB_PASSWORD", "postgres")
	t.Setenv("TOTP_ENCRYPTION_KEY", hex.EncodeToString(make([]byte, 32)))

	cfg, err := Load()
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_WeakSecretRejected(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TOKEN_SECRET", "short")

	cfg, err := Load()
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_ProductionRequiresLongerSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("TOKEN_SECRET", "only-twenty-chars-xx")

	cfg, err := Load()
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_TOTPKeyValidation(t *testing.T) {
	setRequiredEnv(t)

	// Not hex
	t.Setenv("TOTP_ENCRYPTION_KEY", "zzzz")
	cfg, err := Load()
	assert.Error(t, err)
	assert.Nil(t, cfg)

	// Wrong length
	t.Setenv("TOTP_ENCRYPTION_KEY", hex.EncodeToString(make([]byte, 16)))
	cfg, err = Load()
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LOCKOUT_THRESHOLD", "3")
	t.Setenv("LOCKOUT_DURATION", "10m")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Auth.LockoutThreshold)
	assert.Equal(t, 10*time.Minute, cfg.Auth.LockoutDuration)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: 5433, User: "app", Password: "pw", Name: "riskledger", SSLMode: "require",
	}
	assert.Equal(t, "host=db port=5433 user=app password=pw dbname=riskledger sslmode=require", cfg.DSN())
}
