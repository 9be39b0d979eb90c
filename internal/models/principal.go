package models

import (
	"github.com/google/uuid"
)

// Roles a credential may carry. Only super_admin has a nil tenant binding.
const (
	RoleSuperAdmin  = "super_admin"
	RoleTenantAdmin = "tenant_admin"
	RoleModuleAdmin = "module_admin"
	RoleUser        = "user"
	RoleReadonly    = "readonly"
	RoleAPIUser     = "api_user"
)

// ValidRole reports whether the role belongs to the closed role vocabulary.
func ValidRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleTenantAdmin, RoleModuleAdmin, RoleUser, RoleReadonly, RoleAPIUser:
		return true
	}
	return false
}

// Principal is the authenticated actor for a single request. It is built
// fresh from a verified credential on every request and never persisted.
type Principal struct {
	UserID       uuid.UUID        `json:"user_id"`
	Email        string           `json:"email"`
	Role         string           `json:"role"`
	TenantID     *uuid.UUID       `json:"tenant_id,omitempty"`
	DepartmentID string           `json:"department_id,omitempty"`
	TeamID       string           `json:"team_id,omitempty"`
	Permissions  []string         `json:"permissions"`
	Scopes       map[string]Scope `json:"scopes"`

	permSet map[string]struct{}
}

// IsSuperAdmin reports whether the principal is a platform super-admin.
func (p *Principal) IsSuperAdmin() bool {
	return p.Role == RoleSuperAdmin
}

// HasGrant reports whether the effective permission set contains the code.
// The set is the union of role-derived and directly granted codes, flattened
// into Permissions at credential issuance.
func (p *Principal) HasGrant(code string) bool {
	if p.permSet == nil {
		p.permSet = make(map[string]struct{}, len(p.Permissions))
		for _, g := range p.Permissions {
			p.permSet[g] = struct{}{}
		}
	}
	_, ok := p.permSet[code]
	return ok
}

// ScopeFor returns the principal's configured data scope for a resource.
// A resource with no configured scope defaults to none.
func (p *Principal) ScopeFor(resource string) Scope {
	if s, ok := p.Scopes[resource]; ok {
		return s
	}
	return ScopeNone
}
