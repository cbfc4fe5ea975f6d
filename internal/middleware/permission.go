package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steelforge/erpauth/internal/authz"
	"github.com/steelforge/erpauth/pkg/errors"
	"github.com/steelforge/erpauth/pkg/response"
)

// RequirePermission checks that the authenticated user may perform the given
// action on the resource, scoped to the branch the request acts in.
func RequirePermission(checker *authz.Checker, module, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(CtxUserIDKey)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		userID, _ := v.(string)
		branchID := c.GetString(CtxBranchIDKey)

		decision, err := checker.Check(c.Request.Context(), userID, branchID, module, action, resource)
		if err != nil {
			// Internal error while deciding
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": gin.H{"code": errors.ErrInternalServer.Code, "message": "authorization check failed"}})
			return
		}
		if !decision.Allowed {
			response.Error(c, errors.ErrForbidden.WithMessage(string(decision.Reason)))
			c.Abort()
			return
		}
		c.Next()
	}
}
