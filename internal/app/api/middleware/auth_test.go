package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/rezars19/rz-automedata/internal/app/auth"
	"github.com/rezars19/rz-automedata/internal/app/policy"
	"github.com/rezars19/rz-automedata/pkg/config"
)

func mwTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth.ClientAPIKey = "client-key"
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.TokenTTL = time.Hour
	return cfg
}

func capturePrincipal(got *policy.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		*got = PrincipalFromGin(c)
		c.Status(http.StatusOK)
	}
}

func TestClientAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := mwTestConfig()
	var got policy.Principal
	r := gin.New()
	r.GET("/x", ClientAuthMiddleware(cfg), capturePrincipal(&got))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-API-Key", "client-key")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, policy.PrincipalAnonymous, got)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-API-Key", "wrong")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestClientAuthMiddleware_EmptyConfiguredKeyRejectsAll(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := mwTestConfig()
	cfg.Auth.ClientAPIKey = ""
	r := gin.New()
	r.GET("/x", ClientAuthMiddleware(cfg), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := mwTestConfig()
	token, _, err := auth.GenerateAdminToken(cfg, "admin@example.com")
	require.NoError(t, err)

	var got policy.Principal
	r := gin.New()
	r.GET("/x", AdminAuthMiddleware(cfg), capturePrincipal(&got))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, policy.PrincipalPrivileged, got)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
