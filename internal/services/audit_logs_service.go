package services

import (
	"context"
	"log"

	"gatekit/internal/common"
	"gatekit/internal/models"
	"gatekit/internal/repositories"

	"github.com/google/uuid"
)

// AuditLogsService records pipeline decisions and serves the audit query
// surface. Recording failures are logged, never propagated: an audit
// outage must not turn into a request failure.
type AuditLogsService interface {
	RecordDecision(ctx context.Context, entry *models.AuditLog)
	ListAuditLogs(ctx context.Context, tenantID uuid.UUID, filters *models.AuditLogFilters) ([]*models.AuditLog, error)
	GetAuditLog(ctx context.Context, tenantID, id uuid.UUID) (*models.AuditLog, error)
}

type auditLogsService struct {
	auditLogsRepo repositories.AuditLogsRepository
}

func NewAuditLogsService(auditLogsRepo repositories.AuditLogsRepository) AuditLogsService {
	return &auditLogsService{auditLogsRepo: auditLogsRepo}
}

func (s *auditLogsService) RecordDecision(ctx context.Context, entry *models.AuditLog) {
	if entry.Method == "" || entry.Path == "" {
		log.Printf("WARN: dropping audit entry with missing method/path")
		return
	}
	if err := s.auditLogsRepo.Create(ctx, entry); err != nil {
		log.Printf("ERROR: failed to record audit decision for %s %s: %v", entry.Method, entry.Path, err)
	}
}

func (s *auditLogsService) ListAuditLogs(ctx context.Context, tenantID uuid.UUID, filters *models.AuditLogFilters) ([]*models.AuditLog, error) {
	if filters != nil {
		if filters.StartDate != nil && filters.EndDate != nil && filters.EndDate.Before(*filters.StartDate) {
			return nil, common.ErrValidation("end_date cannot be before start_date")
		}
		filters.Limit, filters.Offset = common.ValidatePaginationParams(filters.Limit, filters.Offset)
	}
	return s.auditLogsRepo.List(ctx, tenantID, filters)
}

func (s *auditLogsService) GetAuditLog(ctx context.Context, tenantID, id uuid.UUID) (*models.AuditLog, error) {
	return s.auditLogsRepo.GetByID(ctx, tenantID, id)
}
