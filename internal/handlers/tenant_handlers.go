package handlers

import (
	"net/http"

	"gatekit/internal/common"
	"gatekit/internal/models"
	"gatekit/internal/services"

	"github.com/labstack/echo/v4"
)

// TenantHandlers serves the super-admin tenant administration surface.
// These routes are platform-level: no tenant resolution applies.
type TenantHandlers struct {
	tenantSvc services.TenantService
}

func NewTenantHandlers(tenantSvc services.TenantService) *TenantHandlers {
	return &TenantHandlers{tenantSvc: tenantSvc}
}

func (h *TenantHandlers) ListTenants(c echo.Context) error {
	limit, offset := common.ValidatePaginationParams(
		intQueryParam(c, "limit"), intQueryParam(c, "offset"))

	tenants, err := h.tenantSvc.ListTenants(c.Request().Context(), limit, offset)
	if err != nil {
		return common.ErrInternal("failed to list tenants", err)
	}
	return common.SendSuccessWithMeta(c, http.StatusOK, tenants, map[string]int{"limit": limit, "offset": offset})
}

func (h *TenantHandlers) GetTenant(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "tenant id")
	if err != nil {
		return common.ErrValidation(err.Error())
	}

	tenant, err := h.tenantSvc.GetTenant(c.Request().Context(), id)
	if err != nil {
		return common.ErrTenantNotFound(c.Param("id"))
	}
	return common.SendSuccess(c, http.StatusOK, tenant)
}

type tenantStatusRequest struct {
	Status string `json:"status"`
}

// UpdateTenantStatus suspends, reactivates, or deactivates a tenant.
// Tenants are never deleted.
func (h *TenantHandlers) UpdateTenantStatus(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "tenant id")
	if err != nil {
		return common.ErrValidation(err.Error())
	}

	var req tenantStatusRequest
	if err := c.Bind(&req); err != nil {
		return common.ErrValidation("malformed status payload")
	}

	if err := h.tenantSvc.SetTenantStatus(c.Request().Context(), id, req.Status); err != nil {
		if appErr, ok := err.(*common.AppError); ok {
			return appErr
		}
		return common.ErrInternal("failed to update tenant status", err)
	}
	return common.SendSuccess(c, http.StatusOK, map[string]string{"id": id.String(), "status": req.Status})
}

func (h *TenantHandlers) ListSubscriptions(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "tenant id")
	if err != nil {
		return common.ErrValidation(err.Error())
	}

	subs, err := h.tenantSvc.ListSubscriptions(c.Request().Context(), id)
	if err != nil {
		return common.ErrInternal("failed to list module subscriptions", err)
	}
	return common.SendSuccess(c, http.StatusOK, subs)
}

// ListOwnSubscriptions serves a tenant's own module subscription states.
// Unlike ListSubscriptions this is tenant-scoped: the tenant comes from
// the request context, not a path parameter.
func (h *TenantHandlers) ListOwnSubscriptions(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.ErrAuthorization("no tenant context", "subscriptions", models.ActionView)
	}

	subs, err := h.tenantSvc.ListSubscriptions(c.Request().Context(), tenantID)
	if err != nil {
		return common.ErrInternal("failed to list module subscriptions", err)
	}
	return common.SendSuccess(c, http.StatusOK, subs)
}

type subscriptionRequest struct {
	ModuleCode string `json:"module_code"`
	Status     string `json:"status"`
}

// UpdateSubscription changes a tenant's module subscription state. All
// permission checks inside the module follow the new state immediately.
func (h *TenantHandlers) UpdateSubscription(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "tenant id")
	if err != nil {
		return common.ErrValidation(err.Error())
	}

	var req subscriptionRequest
	if err := c.Bind(&req); err != nil {
		return common.ErrValidation("malformed subscription payload")
	}
	if err := common.ValidateRequiredString(req.ModuleCode, "module_code"); err != nil {
		return common.ErrValidation(err.Error())
	}

	if err := h.tenantSvc.SetSubscription(c.Request().Context(), id, req.ModuleCode, req.Status); err != nil {
		if appErr, ok := err.(*common.AppError); ok {
			return appErr
		}
		return common.ErrInternal("failed to update module subscription", err)
	}
	return common.SendSuccess(c, http.StatusOK, &models.ModuleSubscription{
		TenantID:   id,
		ModuleCode: req.ModuleCode,
		Status:     req.Status,
	})
}
