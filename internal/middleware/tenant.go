package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/slotwise/booking-api/internal/tenant"
)

const (
	HeaderXTenantID = "X-Tenant-ID"
	ContextTenantID = "tenant_id"
)

// Tenant resolves the caller's tenant and scopes the request context to
// it. Tenant/auth resolution itself happens upstream; this middleware
// only trusts and enforces the result. Requests without a tenant are
// rejected before any handler runs.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderXTenantID)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "missing tenant",
			})
			return
		}

		tenantID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "invalid tenant",
			})
			return
		}

		c.Set(ContextTenantID, tenantID)
		c.Request = c.Request.WithContext(tenant.WithTenant(c.Request.Context(), tenantID))
		c.Next()
	}
}
