package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbon-scribe/project-portal/verification-backend/internal/directory"
	"carbon-scribe/project-portal/verification-backend/pkg/apperrors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	userID := uuid.New()

	token, expiresAt, err := issuer.GenerateToken(userID, directory.RoleVerifier)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	principal, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, userID, principal.UserID)
	assert.Equal(t, directory.RoleVerifier, principal.Role)
	assert.False(t, principal.System)
}

func TestParseRejectsForeignSecret(t *testing.T) {
	token, _, err := NewTokenIssuer("one", time.Hour).GenerateToken(uuid.New(), directory.RoleAdmin)
	require.NoError(t, err)

	_, err = NewTokenIssuer("two", time.Hour).Parse(token)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	token, _, err := issuer.GenerateToken(uuid.New(), directory.RoleAdmin)
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{name: "valid token", authHeader: "Bearer " + token, expectedStatus: http.StatusOK},
		{name: "missing header", authHeader: "", expectedStatus: http.StatusUnauthorized},
		{name: "missing bearer prefix", authHeader: token, expectedStatus: http.StatusUnauthorized},
		{name: "garbage token", authHeader: "Bearer invalid.token.here", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(issuer.Middleware())
			router.GET("/test", func(c *gin.Context) {
				p, ok := GetPrincipal(c)
				require.True(t, ok)
				fromCtx, ok := FromContext(c.Request.Context())
				require.True(t, ok)
				assert.Equal(t, p, fromCtx)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	verifierToken, _, err := issuer.GenerateToken(uuid.New(), directory.RoleVerifier)
	require.NoError(t, err)
	adminToken, _, err := issuer.GenerateToken(uuid.New(), directory.RoleAdmin)
	require.NoError(t, err)

	router := gin.New()
	router.Use(issuer.Middleware())
	router.GET("/admin", RequireRole(directory.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for token, want := range map[string]int{
		verifierToken: http.StatusForbidden,
		adminToken:    http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	assert.NoError(t, RequireAdmin(SystemPrincipal(), "rebalance"))
	assert.NoError(t, RequireAdmin(Principal{UserID: uuid.New(), Role: directory.RoleAdmin}, "rebalance"))

	err := RequireAdmin(Principal{UserID: uuid.New(), Role: directory.RoleVerifier}, "rebalance")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestPrincipalIs(t *testing.T) {
	id := uuid.New()
	assert.True(t, Principal{UserID: id}.Is(id))
	assert.False(t, Principal{UserID: id}.Is(uuid.New()))
	assert.False(t, SystemPrincipal().Is(uuid.Nil))
}
