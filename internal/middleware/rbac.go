package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
)

// RequirePermission checks that the instructor JWT contains the required permission.
func RequirePermission(permission model.Permission) gin.HandlerFunc {
	return RequireAnyPermission(permission)
}

// RequireAnyPermission checks that the instructor JWT contains at least one of the specified permissions.
func RequireAnyPermission(permissions ...model.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		for _, p := range permissions {
			if claims.HasPermission(p) {
				c.Next()
				return
			}
		}

		response.AbortFail(c, http.StatusForbidden, response.ErrPermissionDenied)
	}
}
