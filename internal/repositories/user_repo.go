package repositories

import (
	"context"
	"fmt"

	"gatekit/internal/models"

	"github.com/google/uuid"
)

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// ListForTenant lists a tenant's users narrowed by a scope predicate.
	// scopeSQL must be rendered with positional arguments starting at $2;
	// scopeArgs supplies their values.
	ListForTenant(ctx context.Context, tenantID uuid.UUID, scopeSQL string, scopeArgs []any, limit, offset int) ([]*models.User, error)
	// ListGrantCodes returns the union of role-derived and directly granted
	// permission codes for a user, deduplicated.
	ListGrantCodes(ctx context.Context, userID uuid.UUID) ([]string, error)
	// ListScopes returns resource -> scope-name assignments for a user.
	ListScopes(ctx context.Context, userID uuid.UUID) (map[string]string, error)
}

type userRepo struct {
	db Database
}

func NewUserRepo(db Database) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `id, tenant_id, department_id, team_id, email, password_hash, first_name, last_name, role, status, created_at, updated_at`

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(&user.ID, &user.TenantID, &user.DepartmentID, &user.TeamID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.Role, &user.Status, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1
	`
	err := r.db.QueryRow(ctx, query, email).Scan(&user.ID, &user.TenantID, &user.DepartmentID, &user.TeamID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.Role, &user.Status, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepo) ListForTenant(ctx context.Context, tenantID uuid.UUID, scopeSQL string, scopeArgs []any, limit, offset int) ([]*models.User, error) {
	if scopeSQL == "" {
		scopeSQL = "FALSE"
	}
	limitIdx := len(scopeArgs) + 2
	query := fmt.Sprintf(`
		SELECT `+userColumns+`
		FROM users
		WHERE tenant_id = $1 AND (%s)
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, scopeSQL, limitIdx, limitIdx+1)

	args := make([]any, 0, len(scopeArgs)+3)
	args = append(args, tenantID)
	args = append(args, scopeArgs...)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.TenantID, &user.DepartmentID, &user.TeamID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.Role, &user.Status, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *userRepo) ListGrantCodes(ctx context.Context, userID uuid.UUID) ([]string, error) {
	query := `
		SELECT p.code
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN user_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1
		UNION
		SELECT p.code
		FROM permissions p
		JOIN user_permissions up ON up.permission_id = p.id
		WHERE up.user_id = $1
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (r *userRepo) ListScopes(ctx context.Context, userID uuid.UUID) (map[string]string, error) {
	query := `
		SELECT resource, scope
		FROM user_data_scopes
		WHERE user_id = $1
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scopes := make(map[string]string)
	for rows.Next() {
		var resource, scope string
		if err := rows.Scan(&resource, &scope); err != nil {
			return nil, err
		}
		scopes[resource] = scope
	}
	return scopes, rows.Err()
}
