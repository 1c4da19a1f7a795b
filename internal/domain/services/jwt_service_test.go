package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService(testConfig())

	token, err := svc.GenerateToken("user-42", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ExtractClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
	assert.Equal(t, "user-42", claims.Subject)
}

func TestJWTRejectsForeignAndExpiredTokens(t *testing.T) {
	svc := NewJWTService(testConfig())

	other := testConfig()
	other.JWTSecretKey = "another-secret"
	foreign, err := NewJWTService(other).GenerateToken("user-1", time.Hour)
	require.NoError(t, err)
	_, err = svc.ExtractClaims(foreign)
	assert.Error(t, err)

	expired, err := svc.GenerateToken("user-1", time.Nanosecond)
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	_, err = svc.ExtractClaims(expired)
	assert.Error(t, err)

	_, err = svc.GenerateToken("", time.Hour)
	assert.Error(t, err)

	_, err = svc.ExtractClaims("not-a-token")
	assert.Error(t, err)
}
