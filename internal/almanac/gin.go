package almanac

import (
	"context"

	"github.com/gin-gonic/gin"

	"frameworks/almanac/pkg/middleware"
)

// RequestContext returns the request context carrying the tenant and user
// that IdentityMiddleware put on the gin context.
func RequestContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if tenantID := c.GetString(middleware.TenantIDKey); tenantID != "" {
		ctx = WithTenantID(ctx, tenantID)
	}
	if userID := c.GetString(middleware.UserIDKey); userID != "" {
		ctx = WithUserID(ctx, userID)
	}
	return ctx
}
