package middleware

import (
	"context"

	"gatekit/internal/common"
	"gatekit/internal/models"
	"gatekit/internal/services"

	"github.com/labstack/echo/v4"
)

// TenantOverrideHeader names the tenant explicitly in development and test
// environments. It is ignored in the production posture; its absence is
// never an error, it just selects the host-derived path.
const TenantOverrideHeader = "X-Tenant-Override"

// ResolveTenant builds the tenant-resolution stage. It runs before
// authentication for all tenant-scoped routes and is omitted from
// platform-level routes (super-admin, auth, health).
func ResolveTenant(tenantSvc services.TenantService, allowOverride bool) Stage {
	return Stage{
		Name: "tenant_resolution",
		Run: func(c echo.Context, rc *models.RequestContext) *common.AppError {
			override := ""
			if allowOverride {
				override = c.Request().Header.Get(TenantOverrideHeader)
			}

			tenant, appErr := tenantSvc.Resolve(c.Request().Context(), c.Request().Host, override)
			if appErr != nil {
				return appErr
			}

			rc.Tenant = tenant
			ctx := context.WithValue(c.Request().Context(), common.TenantIDKey, tenant.ID)
			ctx = context.WithValue(ctx, common.TenantKey, tenant)
			c.SetRequest(c.Request().WithContext(ctx))
			return nil
		},
	}
}
