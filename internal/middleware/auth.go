package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/steelforge/erpauth/internal/auth"
	"github.com/steelforge/erpauth/pkg/errors"
	"github.com/steelforge/erpauth/pkg/response"
)

const (
	CtxClaimsKey   = "authClaims"
	CtxUserIDKey   = "userID"
	CtxBranchIDKey = "branchID"

	// BranchHeader lets a caller act in a different branch than the token
	// default, subject to the branch-scoped decision on every guarded route.
	BranchHeader = "X-Branch-ID"
)

// Auth enforces JWT authentication using the supplied JWT service.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		branchID := claims.BranchID
		if header := strings.TrimSpace(c.GetHeader(BranchHeader)); header != "" {
			branchID = header
		}

		// Propagate identity into request context
		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxBranchIDKey, branchID)

		c.Next()
	}
}
