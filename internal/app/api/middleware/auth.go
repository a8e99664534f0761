package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rezars19/rz-automedata/internal/app/auth"
	"github.com/rezars19/rz-automedata/internal/app/policy"
	"github.com/rezars19/rz-automedata/pkg/config"
	"github.com/rezars19/rz-automedata/pkg/response"
)

const (
	// CtxPrincipal holds the resolved policy.Principal in gin.Context.
	CtxPrincipal = "principal"
	// CtxPrincipalName holds its string form for access logs.
	CtxPrincipalName = "principal_name"
)

// ClientAuthMiddleware resolves the anonymous principal from the shared API
// key baked into desktop client builds. The key authenticates the *build*,
// not an installation: every client shares it.
func ClientAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if cfg.Auth.ClientAPIKey == "" || key != cfg.Auth.ClientAPIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				response.ErrorT[any](response.APIResponseCodeUnauthorized, "invalid api key"))
			return
		}
		setPrincipal(c, policy.PrincipalAnonymous)
		c.Next()
	}
}

// AdminAuthMiddleware resolves the privileged principal from a Bearer JWT
// minted by the admin login endpoint.
func AdminAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(authz, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				response.ErrorT[any](response.APIResponseCodeUnauthorized, "missing bearer token"))
			return
		}
		claims, err := auth.ParseAdminToken(cfg, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				response.ErrorT[any](response.APIResponseCodeUnauthorized, "invalid token"))
			return
		}
		if claims.Role != auth.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden,
				response.ErrorT[any](response.APIResponseCodeForbidden, "insufficient role"))
			return
		}
		setPrincipal(c, policy.PrincipalPrivileged)
		c.Next()
	}
}

func setPrincipal(c *gin.Context, p policy.Principal) {
	c.Set(CtxPrincipal, p)
	c.Set(CtxPrincipalName, p.String())
}

// PrincipalFromGin returns the resolved principal; requests that somehow
// reach a handler without one are treated as anonymous.
func PrincipalFromGin(c *gin.Context) policy.Principal {
	if v, ok := c.Get(CtxPrincipal); ok {
		if p, ok := v.(policy.Principal); ok {
			return p
		}
	}
	return policy.PrincipalAnonymous
}
