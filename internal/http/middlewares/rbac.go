package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/ems/internal/domain/employee"
)

// RequireRole admits callers holding one of the given roles. Route-level
// gating only; per-record rules live in the access gate.
func (m *AuthMiddleware) RequireRole(roles ...employee.Role) gin.HandlerFunc {
	allowed := make(map[employee.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		caller, ok := CallerFromContext(c)

		if !ok || caller.Role == "" {
			abortUnauthorized(c, "Missing identity context")
			return
		}

		if _, ok := allowed[caller.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":      "forbidden",
					"message":   "Insufficient role for this operation",
					"requestId": requestIDFrom(c),
				},
			})
			return
		}
		c.Next()
	}
}
