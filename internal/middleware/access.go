package middleware

import (
	"gatekit/internal/common"
	"gatekit/internal/models"
	"gatekit/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Permission stages. Each runs after authentication and denies with the
// failing resource/action attached for the audit trail.

func RequirePermission(accessSvc services.AccessService, resource, action, module string) Stage {
	return Stage{
		Name: "permission:" + resource + "." + action,
		Run: func(c echo.Context, rc *models.RequestContext) *common.AppError {
			principal, tenantID, appErr := stageIdentity(rc)
			if appErr != nil {
				return appErr
			}
			return accessSvc.RequirePermission(c.Request().Context(), principal, tenantID, resource, action, module, true)
		},
	}
}

func RequireAnyPermission(accessSvc services.AccessService, resources []string, action, module string) Stage {
	return Stage{
		Name: "permission_any:" + action,
		Run: func(c echo.Context, rc *models.RequestContext) *common.AppError {
			principal, tenantID, appErr := stageIdentity(rc)
			if appErr != nil {
				return appErr
			}
			return accessSvc.RequireAnyPermission(c.Request().Context(), principal, tenantID, resources, action, module)
		},
	}
}

func RequireHierarchicalPermission(accessSvc services.AccessService, parentResource, childResource, action, module string) Stage {
	return Stage{
		Name: "permission_hierarchical:" + childResource + "." + action,
		Run: func(c echo.Context, rc *models.RequestContext) *common.AppError {
			principal, tenantID, appErr := stageIdentity(rc)
			if appErr != nil {
				return appErr
			}
			return accessSvc.RequireHierarchicalPermission(c.Request().Context(), principal, tenantID, parentResource, childResource, action, module)
		},
	}
}

func RequireModuleAccess(accessSvc services.AccessService, moduleCode string) Stage {
	return Stage{
		Name: "module_access:" + moduleCode,
		Run: func(c echo.Context, rc *models.RequestContext) *common.AppError {
			principal, tenantID, appErr := stageIdentity(rc)
			if appErr != nil {
				return appErr
			}
			return accessSvc.RequireModuleAccess(c.Request().Context(), principal, tenantID, moduleCode)
		},
	}
}

// RequireRole gates platform-level routes on the principal's role alone,
// without a tenant context.
func RequireRole(roles ...string) Stage {
	return Stage{
		Name: "role_check",
		Run: func(_ echo.Context, rc *models.RequestContext) *common.AppError {
			if rc.Principal == nil {
				return common.ErrAuthentication("no token")
			}
			for _, role := range roles {
				if rc.Principal.Role == role {
					return nil
				}
			}
			return common.ErrAuthorization("insufficient role", "", "")
		},
	}
}

func stageIdentity(rc *models.RequestContext) (*models.Principal, uuid.UUID, *common.AppError) {
	if rc.Principal == nil {
		return nil, uuid.Nil, common.ErrAuthentication("no token")
	}
	if rc.Tenant != nil {
		return rc.Principal, rc.Tenant.ID, nil
	}
	// Platform routes have no resolved tenant; super-admins are the only
	// principals allowed there.
	if rc.Principal.IsSuperAdmin() {
		return rc.Principal, uuid.Nil, nil
	}
	return nil, uuid.Nil, common.ErrAuthorization("tenant-scoped credential on platform route", "", "")
}
