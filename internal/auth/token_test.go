package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/permit-lifecycle/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 15)
	token, expiresAt, err := tm.GenerateToken("officer1", domain.RoleOfficer, "licensing")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "officer1", claims.Subject)
	assert.Equal(t, domain.RoleOfficer, claims.Role)
	assert.Equal(t, "licensing", claims.Department)
}

func TestTokenRejections(t *testing.T) {
	tm := NewTokenManager("secret", 15)
	_, _, err := tm.GenerateToken("  ", domain.RoleAdmin, "")
	assert.Error(t, err)

	token, _, err := tm.GenerateToken("officer1", domain.RoleOfficer, "")
	require.NoError(t, err)
	_, err = NewTokenManager("other", 15).ParseToken(token)
	assert.Error(t, err)

	_, err = tm.ParseToken("not-a-jwt")
	assert.Error(t, err)
}
