package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireAnyRole gates catalog writes to the listed roles. The role
// comes from the access token, so a self-promoted creator gets write
// access on their next token refresh.
func (m *AuthMiddleware) RequireAnyRole(required ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(required))

	for _, r := range required {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)

		if !ok || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing identity context",
				},
			})
			return
		}

		if _, ok := allowed[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "forbidden",
					"message": "Insufficient role",
				},
			})
			return
		}
		c.Next()
	}
}
