package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jiweiyuan/muse/internal/api/middleware"
	"github.com/jiweiyuan/muse/internal/config"
	"github.com/jiweiyuan/muse/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture(t *testing.T) (auth.JWTService, http.Handler, *uuid.UUID) {
	t.Helper()

	jwtService, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:          strings.Repeat("k", 32),
		TokenLifetimeHours: 1,
	})
	require.NoError(t, err)

	var seenUserID uuid.UUID
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserID(r)
		require.True(t, ok)
		seenUserID = userID
		w.WriteHeader(http.StatusOK)
	})

	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	return jwtService, authMiddleware.Authenticate(inner), &seenUserID
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	t.Parallel()

	jwtService, handler, seenUserID := newAuthFixture(t)

	userID := uuid.New()
	token, err := jwtService.GenerateToken(context.Background(), userID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, *seenUserID)
}

func TestAuthMiddleware_Failures(t *testing.T) {
	t.Parallel()

	_, handler, _ := newAuthFixture(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "garbage token", header: "Bearer not.a.jwt"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}
