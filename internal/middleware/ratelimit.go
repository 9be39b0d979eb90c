package middleware

import (
	"gatekit/internal/common"
	"gatekit/internal/models"
	"gatekit/internal/services"

	"github.com/labstack/echo/v4"
)

// PreAuthRateLimit builds the stage that runs before authentication: the
// global IP tier plus the route-selected module tier. Counting happens at
// admission; a client disconnect never uncounts it.
func PreAuthRateLimit(rateLimitSvc services.RateLimitService) Stage {
	return Stage{
		Name: "rate_limit_pre_auth",
		Run: func(c echo.Context, rc *models.RequestContext) *common.AppError {
			tiers := rateLimitSvc.PreAuthTiers(rc.Method, c.Request().URL.Path)
			return checkTiers(c, rc, rateLimitSvc, tiers)
		},
	}
}

// PostAuthRateLimit builds the stage that runs once identity is known: the
// role tier (when no module rule claimed the route) and any operation tier.
func PostAuthRateLimit(rateLimitSvc services.RateLimitService) Stage {
	return Stage{
		Name: "rate_limit_post_auth",
		Run: func(c echo.Context, rc *models.RequestContext) *common.AppError {
			if rc.Principal == nil {
				return common.ErrInternal("rate limit stage ordered before authentication", nil)
			}
			tiers := rateLimitSvc.PostAuthTiers(rc.Method, c.Request().URL.Path, rc.Principal)
			return checkTiers(c, rc, rateLimitSvc, tiers)
		},
	}
}

// checkTiers evaluates tiers in sequence and denies on the first exceeded
// ceiling with a retry-after hint equal to the remaining window.
func checkTiers(c echo.Context, rc *models.RequestContext, rateLimitSvc services.RateLimitService, tiers []models.RateLimitTier) *common.AppError {
	for _, tier := range tiers {
		decision, appErr := rateLimitSvc.Check(c.Request().Context(), tier, rc.ClientIP, rc.Principal)
		if appErr != nil {
			return appErr
		}
		if !decision.Allowed {
			return common.ErrRateLimited(decision.Tier, decision.ResetIn)
		}
	}
	return nil
}
