package handlers

import (
	"errors"
	"net/http"
	"time"

	"gatekit/internal/common"
	"gatekit/internal/models"
	"gatekit/internal/services"

	"github.com/labstack/echo/v4"
)

type AuditLogsHandlers struct {
	auditSvc services.AuditLogsService
}

func NewAuditLogsHandlers(auditSvc services.AuditLogsService) *AuditLogsHandlers {
	return &AuditLogsHandlers{auditSvc: auditSvc}
}

// ListAuditLogs serves the tenant's audit decision history.
func (h *AuditLogsHandlers) ListAuditLogs(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.ErrAuthorization("no tenant context", "audit", models.ActionView)
	}

	filters := &models.AuditLogFilters{
		Limit:  intQueryParam(c, "limit"),
		Offset: intQueryParam(c, "offset"),
	}
	if outcome := c.QueryParam("outcome"); outcome != "" {
		filters.Outcome = &outcome
	}
	if pathLike := c.QueryParam("path"); pathLike != "" {
		filters.PathLike = &pathLike
	}
	if userIDStr := c.QueryParam("user_id"); userIDStr != "" {
		userID, err := common.ValidateUUID(userIDStr, "user_id")
		if err != nil {
			return common.ErrValidation(err.Error())
		}
		filters.UserID = &userID
	}
	if start := c.QueryParam("start_date"); start != "" {
		t, err := time.Parse("2006-01-02", start)
		if err != nil {
			return common.ErrValidation("start_date must be YYYY-MM-DD")
		}
		filters.StartDate = &t
	}
	if end := c.QueryParam("end_date"); end != "" {
		t, err := time.Parse("2006-01-02", end)
		if err != nil {
			return common.ErrValidation("end_date must be YYYY-MM-DD")
		}
		filters.EndDate = &t
	}

	entries, err := h.auditSvc.ListAuditLogs(c.Request().Context(), tenantID, filters)
	if err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return common.ErrInternal("failed to list audit logs", err)
	}
	return common.SendSuccessWithMeta(c, http.StatusOK, entries, map[string]int{"limit": filters.Limit, "offset": filters.Offset})
}

func (h *AuditLogsHandlers) GetAuditLog(c echo.Context) error {
	tenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return common.ErrAuthorization("no tenant context", "audit", models.ActionView)
	}

	id, err := common.ValidateUUID(c.Param("id"), "audit log id")
	if err != nil {
		return common.ErrValidation(err.Error())
	}

	entry, err := h.auditSvc.GetAuditLog(c.Request().Context(), tenantID, id)
	if err != nil {
		return common.ErrNotFound("audit log entry not found")
	}
	return common.SendSuccess(c, http.StatusOK, entry)
}
