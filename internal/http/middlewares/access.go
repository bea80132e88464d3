package middlewares

import (
	"net/http"

	"github.com/afterhours/backend/internal/entitlement"
	"github.com/gin-gonic/gin"
)

// RequireAccess admits subscribers and users inside their trial. Mount it after RequireAuth.
// It never deletes anything; the post cascade lives in the content service.
func RequireAccess(clock entitlement.Clock) gin.HandlerFunc {
	if clock == nil {
		clock = entitlement.SystemClock
	}

	return func(c *gin.Context) {
		u, ok := UserFromContext(c)
		if !ok {
			abortUnauthorized(c)
			return
		}

		if !entitlement.HasAccess(u.Subscriber, u.TrialEnd, clock()) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "entitlement_denied",
					"message": "Trial expired. Subscribe to keep posting.",
				},
			})
			return
		}
		c.Next()
	}
}
