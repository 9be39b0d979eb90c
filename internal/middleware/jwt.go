package middleware

import (
	"context"
	"strings"

	"gatekit/internal/common"
	"gatekit/internal/models"
	"gatekit/internal/services"

	"github.com/labstack/echo/v4"
)

// Authenticate builds the token-authentication stage. It verifies the
// bearer credential, rebuilds the Principal from its claims, and rejects
// credentials bound to a tenant other than the resolved one. Super-admin
// credentials carry no tenant binding and pass the mismatch check.
func Authenticate(authSvc services.AuthService) Stage {
	return Stage{
		Name: "authentication",
		Run: func(c echo.Context, rc *models.RequestContext) *common.AppError {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return common.ErrAuthentication("no token")
			}

			// A header without the bearer scheme carries no credential at
			// all; "invalid token" is reserved for verification failures.
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader || tokenString == "" {
				return common.ErrAuthentication("no token")
			}

			principal, appErr := authSvc.VerifyToken(c.Request().Context(), tokenString)
			if appErr != nil {
				return appErr
			}

			if rc.Tenant != nil && !principal.IsSuperAdmin() {
				if principal.TenantID == nil || *principal.TenantID != rc.Tenant.ID {
					return common.ErrTenantMismatch()
				}
			}

			rc.Principal = principal
			ctx := context.WithValue(c.Request().Context(), common.UserIDKey, principal.UserID)
			ctx = context.WithValue(ctx, common.PrincipalKey, principal)
			c.SetRequest(c.Request().WithContext(ctx))
			return nil
		},
	}
}

// GetPrincipal extracts the authenticated principal from the request
// context.
func GetPrincipal(ctx context.Context) (*models.Principal, bool) {
	principal, ok := ctx.Value(common.PrincipalKey).(*models.Principal)
	return principal, ok
}
