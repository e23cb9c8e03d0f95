package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/ems/internal/access"
	"github.com/geocoder89/ems/internal/actorctx"
	"github.com/geocoder89/ems/internal/auth"
	"github.com/geocoder89/ems/internal/service"
)

// Keep these small so tests can fake them easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type IdentityResolver interface {
	ResolveCaller(ctx context.Context, id int64, email string) (access.Caller, error)
}

type AuthMiddleware struct {
	jwt      TokenVerifier
	resolver IdentityResolver
}

func NewAuthMiddleware(jwt TokenVerifier, resolver IdentityResolver) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, resolver: resolver}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":      "unauthorized",
			"message":   message,
			"requestId": requestIDFrom(c),
		},
	})
}

// RequireAuth verifies the bearer token and loads the current caller. Tokens
// of deleted, deactivated or re-created accounts are rejected.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c, "Missing or invalid Authorization header")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			abortUnauthorized(c, "Missing or invalid access token")
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired access token")
			return
		}

		id, err := claims.EmployeeID()
		if err != nil {
			abortUnauthorized(c, "Invalid or expired access token")
			return
		}

		caller, err := m.resolver.ResolveCaller(c.Request.Context(), id, claims.Email)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrAccountInactive):
				abortUnauthorized(c, "Account is inactive")
			case errors.Is(err, service.ErrUnauthenticated):
				abortUnauthorized(c, "Account no longer exists")
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": gin.H{
						"code":      "internal_error",
						"message":   "Could not resolve identity",
						"requestId": requestIDFrom(c),
					},
				})
			}
			return
		}

		SetCaller(c, caller)

		c.Next()
	}
}

// SetCaller attaches the caller to both the gin context and the request context.
func SetCaller(c *gin.Context, caller access.Caller) {
	c.Set(ctxCallerKey, caller)
	c.Request = c.Request.WithContext(actorctx.WithCaller(c.Request.Context(), caller))
}

// Helper so handlers don't need to know the magic key.
func CallerFromContext(c *gin.Context) (access.Caller, bool) {
	v, ok := c.Get(ctxCallerKey)
	if !ok {
		return access.Caller{}, false
	}
	caller, ok := v.(access.Caller)
	return caller, ok
}
