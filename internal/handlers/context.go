package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/steelforge/erpauth/internal/middleware"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// actingScope returns the authenticated user id and the branch the request
// acts in, as resolved by the auth middleware.
func actingScope(c *gin.Context) (userID, branchID string) {
	return c.GetString(middleware.CtxUserIDKey), c.GetString(middleware.CtxBranchIDKey)
}
