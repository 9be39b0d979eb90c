package repositories

import (
	"context"
	"errors"

	"gatekit/internal/models"

	"github.com/jackc/pgx/v5"
)

type PermissionHierarchyRepository interface {
	// ParentOf returns the declared parent resource for a child within a
	// module, or "" when the child has no parent.
	ParentOf(ctx context.Context, module, childResource string) (string, error)
	List(ctx context.Context) ([]*models.ResourceHierarchy, error)
}

type permissionHierarchyRepo struct {
	db Database
}

func NewPermissionHierarchyRepo(db Database) PermissionHierarchyRepository {
	return &permissionHierarchyRepo{db: db}
}

func (r *permissionHierarchyRepo) ParentOf(ctx context.Context, module, childResource string) (string, error) {
	var parent string
	query := `
		SELECT parent_resource
		FROM resource_hierarchy
		WHERE module = $1 AND child_resource = $2
	`
	err := r.db.QueryRow(ctx, query, module, childResource).Scan(&parent)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return parent, nil
}

func (r *permissionHierarchyRepo) List(ctx context.Context) ([]*models.ResourceHierarchy, error) {
	query := `
		SELECT id, module, child_resource, parent_resource, created_at
		FROM resource_hierarchy
		ORDER BY module, child_resource
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.ResourceHierarchy
	for rows.Next() {
		entry := &models.ResourceHierarchy{}
		if err := rows.Scan(&entry.ID, &entry.Module, &entry.ChildResource, &entry.ParentResource, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
