package repositories

import (
	"context"
	"errors"

	"gatekit/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ModuleSubscriptionRepository interface {
	// GetStatus returns the subscription status for (tenant, module).
	// A missing row reads as inactive.
	GetStatus(ctx context.Context, tenantID uuid.UUID, moduleCode string) (string, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.ModuleSubscription, error)
	Upsert(ctx context.Context, sub *models.ModuleSubscription) error
}

type moduleSubscriptionRepo struct {
	db Database
}

func NewModuleSubscriptionRepo(db Database) ModuleSubscriptionRepository {
	return &moduleSubscriptionRepo{db: db}
}

func (r *moduleSubscriptionRepo) GetStatus(ctx context.Context, tenantID uuid.UUID, moduleCode string) (string, error) {
	var status string
	query := `
		SELECT status
		FROM module_subscriptions
		WHERE tenant_id = $1 AND module_code = $2
	`
	err := r.db.QueryRow(ctx, query, tenantID, moduleCode).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.SubscriptionInactive, nil
	}
	if err != nil {
		return "", err
	}
	return status, nil
}

func (r *moduleSubscriptionRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.ModuleSubscription, error) {
	query := `
		SELECT id, tenant_id, module_code, status, created_at, updated_at
		FROM module_subscriptions
		WHERE tenant_id = $1
		ORDER BY module_code
	`
	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*models.ModuleSubscription
	for rows.Next() {
		sub := &models.ModuleSubscription{}
		if err := rows.Scan(&sub.ID, &sub.TenantID, &sub.ModuleCode, &sub.Status, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (r *moduleSubscriptionRepo) Upsert(ctx context.Context, sub *models.ModuleSubscription) error {
	query := `
		INSERT INTO module_subscriptions (id, tenant_id, module_code, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (tenant_id, module_code) DO UPDATE SET status = EXCLUDED.status, updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, sub.ID, sub.TenantID, sub.ModuleCode, sub.Status)
	return err
}
