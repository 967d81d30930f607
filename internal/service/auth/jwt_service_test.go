package auth_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jiweiyuan/muse/internal/config"
	"github.com/jiweiyuan/muse/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:          strings.Repeat("s", 32),
		TokenLifetimeHours: 1,
	}
}

func TestNewJWTService_RejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:          "too-short",
		TokenLifetimeHours: 1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 characters")
}

func TestJWTService_GenerateAndValidate(t *testing.T) {
	t.Parallel()

	svc, err := auth.NewJWTService(testAuthConfig())
	require.NoError(t, err)

	userID := uuid.New()
	token, err := svc.GenerateToken(context.Background(), userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
}

func TestJWTService_ValidateToken_Failures(t *testing.T) {
	t.Parallel()

	svc, err := auth.NewJWTService(testAuthConfig())
	require.NoError(t, err)

	otherSvc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:          strings.Repeat("x", 32),
		TokenLifetimeHours: 1,
	})
	require.NoError(t, err)

	foreignToken, err := otherSvc.GenerateToken(context.Background(), uuid.New())
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "empty token", token: "", wantErr: auth.ErrMissingToken},
		{name: "garbage token", token: "not.a.jwt", wantErr: auth.ErrInvalidToken},
		{name: "wrong signing key", token: foreignToken, wantErr: auth.ErrInvalidToken},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := svc.ValidateToken(context.Background(), tc.token)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}
