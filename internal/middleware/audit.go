package middleware

import (
	"time"

	"gatekit/internal/common"
	"gatekit/internal/models"
	"gatekit/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// DecisionRecorder turns pipeline outcomes into audit entries. Emission is
// unconditional: every request produces one entry, denied or not.
type DecisionRecorder struct {
	auditSvc services.AuditLogsService
}

func NewDecisionRecorder(auditSvc services.AuditLogsService) *DecisionRecorder {
	return &DecisionRecorder{auditSvc: auditSvc}
}

// RecordDenial emits the entry for a request a stage denied.
func (r *DecisionRecorder) RecordDenial(c echo.Context, rc *models.RequestContext, appErr *common.AppError) {
	entry := r.baseEntry(c, rc)
	kind := string(appErr.Kind)
	detail := appErr.Message

	entry.Outcome = models.AuditOutcomeDenied
	if appErr.Kind == common.KindAuthenticationError || appErr.Kind == common.KindInternalError {
		entry.Outcome = models.AuditOutcomeFailed
	}
	entry.DenyKind = &kind
	entry.DenyDetail = &detail
	if appErr.Resource != "" {
		entry.Metadata["resource"] = appErr.Resource
		entry.Metadata["action"] = appErr.Action
	}
	if appErr.Tier != "" {
		entry.Metadata["tier"] = appErr.Tier
	}

	r.auditSvc.RecordDecision(c.Request().Context(), entry)
}

// RecordOutcome emits the entry for a request that cleared every stage.
func (r *DecisionRecorder) RecordOutcome(c echo.Context, rc *models.RequestContext, handlerErr error) {
	entry := r.baseEntry(c, rc)
	entry.Outcome = models.AuditOutcomeAllowed
	if handlerErr != nil {
		entry.Outcome = models.AuditOutcomeFailed
		detail := handlerErr.Error()
		entry.DenyDetail = &detail
	}
	r.auditSvc.RecordDecision(c.Request().Context(), entry)
}

func (r *DecisionRecorder) baseEntry(c echo.Context, rc *models.RequestContext) *models.AuditLog {
	entry := &models.AuditLog{
		ID:         uuid.New(),
		Method:     rc.Method,
		Path:       c.Request().URL.Path,
		ClientIP:   rc.ClientIP,
		DurationMS: time.Since(rc.StartedAt).Milliseconds(),
		Metadata: models.JSONB{
			"route":      rc.Route,
			"user_agent": c.Request().UserAgent(),
			"trail":      rc.Trail,
		},
		CreatedAt: time.Now(),
	}
	if rc.Tenant != nil {
		tenantID := rc.Tenant.ID
		entry.TenantID = &tenantID
	}
	if rc.Principal != nil {
		userID := rc.Principal.UserID
		entry.UserID = &userID
	}
	return entry
}
