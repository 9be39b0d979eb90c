package handlers

import (
	"net/http"

	"gatekit/internal/common"
	"gatekit/internal/middleware"
	"gatekit/internal/services"

	"github.com/labstack/echo/v4"
)

type RateLimitHandlers struct {
	rateLimitSvc services.RateLimitService
}

func NewRateLimitHandlers(rateLimitSvc services.RateLimitService) *RateLimitHandlers {
	return &RateLimitHandlers{rateLimitSvc: rateLimitSvc}
}

// Introspect reports the caller's applicable tier ceilings, windows, and
// current remaining budget. Informational only; it never counts against
// any tier itself. Optional method/path query parameters describe the
// request shape to introspect; defaults cover the caller's own request.
func (h *RateLimitHandlers) Introspect(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c.Request().Context())
	if !ok {
		return common.ErrAuthentication("no token")
	}

	method := c.QueryParam("method")
	if method == "" {
		method = http.MethodGet
	}
	path := c.QueryParam("path")
	if path == "" {
		path = c.Request().URL.Path
	}

	statuses, err := h.rateLimitSvc.Statuses(c.Request().Context(), method, path, common.ClientIP(c.Request()), principal)
	if err != nil {
		return common.ErrInternal("rate limit introspection failed", err)
	}
	return common.SendSuccess(c, http.StatusOK, statuses)
}
