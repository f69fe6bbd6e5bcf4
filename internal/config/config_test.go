package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://quilly:pw@localhost:5432/quilly")
	t.Setenv("SESSION_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("APP_ENV", "")
	t.Setenv("APP_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("EMAIL_API_KEY", "")
	t.Setenv("EMAIL_FROM", "")
	t.Setenv("RAZORPAY_KEY_ID", "")
	t.Setenv("RAZORPAY_KEY_SECRET", "")
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("GOOGLE_CLIENT_SECRET", "")
}

func TestLoad_defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, sandboxFromAddress, cfg.EmailFrom)
}

func TestLoad_requiredVariables(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")

	setBaseEnv(t)
	t.Setenv("SESSION_SECRET", "")
	_, err = Load()
	assert.ErrorContains(t, err, "SESSION_SECRET")
}

func TestLoad_productionStrictness(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_URL", "https://quilly.example.com")
	t.Setenv("EMAIL_API_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())

	t.Setenv("APP_URL", "http://quilly.example.com")
	_, err = Load()
	assert.ErrorContains(t, err, "https")

	t.Setenv("APP_URL", "https://quilly.example.com")
	t.Setenv("EMAIL_API_KEY", "")
	_, err = Load()
	assert.ErrorContains(t, err, "EMAIL_API_KEY")

	t.Setenv("EMAIL_API_KEY", "key")
	t.Setenv("SESSION_SECRET", "short")
	_, err = Load()
	assert.ErrorContains(t, err, "32 characters")
}

func TestLoad_shortSecretWarnsInDevelopment(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SESSION_SECRET", "short")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "short", cfg.SessionSecret)
}
