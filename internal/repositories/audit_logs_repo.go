package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gatekit/internal/models"

	"github.com/google/uuid"
)

type AuditLogsRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.AuditLog, error)
	List(ctx context.Context, tenantID uuid.UUID, filters *models.AuditLogFilters) ([]*models.AuditLog, error)
	// ListUnarchivedBefore returns entries older than the cutoff that have
	// not yet been exported to the archive store.
	ListUnarchivedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.AuditLog, error)
	MarkArchived(ctx context.Context, ids []uuid.UUID) error
}

type auditLogsRepo struct {
	db Database
}

func NewAuditLogsRepo(db Database) AuditLogsRepository {
	return &auditLogsRepo{db: db}
}

const auditColumns = `id, tenant_id, user_id, method, path, outcome, deny_kind, deny_detail, client_ip, duration_ms, metadata, archived, created_at`

func (r *auditLogsRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	var metadata []byte
	if entry.Metadata != nil {
		var err error
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_logs (id, tenant_id, user_id, method, path, outcome, deny_kind, deny_detail, client_ip, duration_ms, metadata, archived, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.Exec(ctx, query,
		entry.ID, entry.TenantID, entry.UserID, entry.Method, entry.Path,
		entry.Outcome, entry.DenyKind, entry.DenyDetail, entry.ClientIP,
		entry.DurationMS, metadata, entry.Archived, entry.CreatedAt)
	return err
}

func (r *auditLogsRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE tenant_id = $1 AND id = $2
	`
	return r.scanOne(r.db.QueryRow(ctx, query, tenantID, id))
}

func (r *auditLogsRepo) List(ctx context.Context, tenantID uuid.UUID, filters *models.AuditLogFilters) ([]*models.AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE tenant_id = $1
	`
	args := []any{tenantID}

	if filters != nil {
		if filters.UserID != nil {
			args = append(args, *filters.UserID)
			query += fmt.Sprintf(" AND user_id = $%d", len(args))
		}
		if filters.Outcome != nil {
			args = append(args, *filters.Outcome)
			query += fmt.Sprintf(" AND outcome = $%d", len(args))
		}
		if filters.PathLike != nil {
			args = append(args, "%"+*filters.PathLike+"%")
			query += fmt.Sprintf(" AND path LIKE $%d", len(args))
		}
		if filters.StartDate != nil {
			args = append(args, *filters.StartDate)
			query += fmt.Sprintf(" AND created_at >= $%d", len(args))
		}
		if filters.EndDate != nil {
			args = append(args, *filters.EndDate)
			query += fmt.Sprintf(" AND created_at <= $%d", len(args))
		}
	}

	limit, offset := 50, 0
	if filters != nil {
		if filters.Limit > 0 {
			limit = filters.Limit
		}
		if filters.Offset > 0 {
			offset = filters.Offset
		}
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.AuditLog
	for rows.Next() {
		entry, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *auditLogsRepo) ListUnarchivedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE archived = false AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.AuditLog
	for rows.Next() {
		entry, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *auditLogsRepo) MarkArchived(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE audit_logs SET archived = true WHERE id = ANY($1)`
	_, err := r.db.Exec(ctx, query, ids)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *auditLogsRepo) scanOne(row rowScanner) (*models.AuditLog, error) {
	entry := &models.AuditLog{}
	var metadata []byte
	err := row.Scan(&entry.ID, &entry.TenantID, &entry.UserID, &entry.Method, &entry.Path,
		&entry.Outcome, &entry.DenyKind, &entry.DenyDetail, &entry.ClientIP,
		&entry.DurationMS, &metadata, &entry.Archived, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
		}
	}
	return entry, nil
}
