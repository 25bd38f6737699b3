package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/schoolfees/backend/internal/domain/identity"
	"github.com/schoolfees/backend/internal/interfaces/http/dto"
)

// RequireRole rejects callers whose role is not listed. It must run after
// JWTAuthMiddleware.
func RequireRole(roles ...identity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized, "Authentication required", getRequestIDFromContext(c)))
			return
		}
		if !actor.HasRole(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeForbidden, "Role "+string(actor.Role)+" cannot perform this action", getRequestIDFromContext(c)))
			return
		}
		c.Next()
	}
}

// RequireFinanceStaff allows SUPER_ADMIN, PRINCIPAL and FINANCE_MANAGER
func RequireFinanceStaff() gin.HandlerFunc {
	return RequireRole(identity.FinanceStaff...)
}

// RequireApprover allows the roles that may decide approval requests
func RequireApprover() gin.HandlerFunc {
	return RequireRole(identity.Approvers...)
}
