package handlers

import (
	"net/http"

	"gatekit/internal/common"
	"gatekit/internal/middleware"
	"gatekit/internal/models"
	"gatekit/internal/repositories"
	"gatekit/internal/services"

	"github.com/labstack/echo/v4"
)

// userScopeResource is the data-scope key for user records.
const userScopeResource = "core.users"

// userScopeColumns maps scope levels onto the users table. A user record
// is owned by itself.
var userScopeColumns = services.ScopeColumns{
	Owner:      "id",
	Team:       "team_id",
	Department: "department_id",
	Tenant:     "tenant_id",
}

type UserHandlers struct {
	userRepo repositories.UserRepository
	scopeSvc services.DataScopeService
}

func NewUserHandlers(userRepo repositories.UserRepository, scopeSvc services.DataScopeService) *UserHandlers {
	return &UserHandlers{userRepo: userRepo, scopeSvc: scopeSvc}
}

// ListUsers returns the tenant's users narrowed to the caller's data scope.
func (h *UserHandlers) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	principal, ok := middleware.GetPrincipal(ctx)
	if !ok {
		return common.ErrAuthentication("no authenticated principal")
	}
	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return common.ErrAuthorization("no tenant context", "users", models.ActionView)
	}

	limit, offset := common.ValidatePaginationParams(intQueryParam(c, "limit"), intQueryParam(c, "offset"))

	pred := h.scopeSvc.CollectionFilter(principal, userScopeResource)
	scopeSQL, scopeArgs := pred.SQL(userScopeColumns, 2)

	users, err := h.userRepo.ListForTenant(ctx, tenantID, scopeSQL, scopeArgs, limit, offset)
	if err != nil {
		return common.ErrInternal("failed to list users", err)
	}
	return common.SendSuccessWithMeta(c, http.StatusOK, users, map[string]int{"limit": limit, "offset": offset})
}

// GetUser returns a single user, subject to the caller's data scope.
func (h *UserHandlers) GetUser(c echo.Context) error {
	ctx := c.Request().Context()
	principal, ok := middleware.GetPrincipal(ctx)
	if !ok {
		return common.ErrAuthentication("no authenticated principal")
	}
	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return common.ErrAuthorization("no tenant context", "users", models.ActionView)
	}

	id, err := common.ValidateUUID(c.Param("id"), "user id")
	if err != nil {
		return common.ErrValidation(err.Error())
	}

	user, err := h.userRepo.GetByID(ctx, id)
	if err != nil {
		return common.ErrNotFound("user not found")
	}
	if user.TenantID == nil || *user.TenantID != tenantID {
		return common.ErrNotFound("user not found")
	}

	if appErr := h.scopeSvc.AdmitRecord(principal, userScopeResource, user.Attributes()); appErr != nil {
		return appErr
	}
	return common.SendSuccess(c, http.StatusOK, user)
}
