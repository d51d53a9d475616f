package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/edutrack-id/timetable-api/internal/models"
	appErrors "github.com/edutrack-id/timetable-api/pkg/errors"
	"github.com/edutrack-id/timetable-api/pkg/response"
)

// RequireRoles enforces role-based access control for routes. Authorization
// is a boundary concern: the services below receive the actor id and never
// inspect roles themselves.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[claims.Role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}
