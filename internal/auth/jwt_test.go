package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhi-yo/quilly-sub000/internal/model"
)

func testUser() model.User {
	wallet := "0xabc123"
	return model.User{
		ID:            uuid.New(),
		Email:         "ann@example.com",
		Name:          "Ann",
		Role:          model.RoleWriter,
		WalletAddress: &wallet,
	}
}

func TestTokenService_signAndVerify(t *testing.T) {
	svc := NewTokenService("test-secret-test-secret-test-sec")
	u := testUser()

	token, err := svc.Sign(u)
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, model.RoleWriter, claims.Role)
	assert.Equal(t, "Ann", claims.Name)
	assert.Equal(t, "0xabc123", claims.WalletAddress)
	assert.False(t, claims.NeedsRoleSelection)
}

func TestTokenService_rejectsWrongSecret(t *testing.T) {
	token, err := NewTokenService("secret-one-secret-one-secret-one").Sign(testUser())
	require.NoError(t, err)

	_, err = NewTokenService("secret-two-secret-two-secret-two").Verify(token)
	assert.Error(t, err)
}

func TestTokenService_rejectsExpiredToken(t *testing.T) {
	svc := NewTokenService("test-secret-test-secret-test-sec")
	svc.now = func() time.Time { return time.Now().Add(-31 * 24 * time.Hour) }

	token, err := svc.Sign(testUser())
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Verify(token)
	assert.Error(t, err)
}

func TestRefreshIfStale_freshTokenUntouched(t *testing.T) {
	svc := NewTokenService("test-secret-test-secret-test-sec")
	u := testUser()

	token, err := svc.Sign(u)
	require.NoError(t, err)
	claims, err := svc.Verify(token)
	require.NoError(t, err)

	_, refreshed, err := svc.RefreshIfStale(claims, u)
	require.NoError(t, err)
	assert.False(t, refreshed)
}

func TestRefreshIfStale_missingIssuedAtErrors(t *testing.T) {
	svc := NewTokenService("test-secret-test-secret-test-sec")

	_, refreshed, err := svc.RefreshIfStale(&SessionClaims{}, testUser())
	assert.Error(t, err)
	assert.False(t, refreshed)
}

func TestRefreshIfStale_staleTokenResigned(t *testing.T) {
	svc := NewTokenService("test-secret-test-secret-test-sec")
	u := testUser()

	issued := time.Now().Add(-25 * time.Hour)
	svc.now = func() time.Time { return issued }
	token, err := svc.Sign(u)
	require.NoError(t, err)
	claims, err := svc.Verify(token)
	require.NoError(t, err)

	// The store promoted the user since the token was issued; the refresh
	// must pick up the current row.
	svc.now = time.Now
	u.Role = model.RoleAdmin
	newToken, refreshed, err := svc.RefreshIfStale(claims, u)
	require.NoError(t, err)
	require.True(t, refreshed)

	newClaims, err := svc.Verify(newToken)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, newClaims.Role)
}
