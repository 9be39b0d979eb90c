package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Actions in the closed permission vocabulary. "manage" is the superset
// action: holding {resource}.manage satisfies any action on that resource.
const (
	ActionView    = "view"
	ActionManage  = "manage"
	ActionCreate  = "create"
	ActionEdit    = "edit"
	ActionDelete  = "delete"
	ActionApprove = "approve"
	ActionExport  = "export"
)

var validActions = map[string]struct{}{
	ActionView:    {},
	ActionManage:  {},
	ActionCreate:  {},
	ActionEdit:    {},
	ActionDelete:  {},
	ActionApprove: {},
	ActionExport:  {},
}

// PermissionCode is a parsed {module}.{resource}.{action} capability code.
type PermissionCode struct {
	Module   string
	Resource string
	Action   string
}

func (pc PermissionCode) String() string {
	return pc.Module + "." + pc.Resource + "." + pc.Action
}

// ParsePermissionCode validates a code against the closed vocabulary.
// Codes are checked at credential issuance, not trusted at evaluation time.
func ParsePermissionCode(code string) (PermissionCode, error) {
	parts := strings.Split(code, ".")
	if len(parts) != 3 {
		return PermissionCode{}, fmt.Errorf("permission code %q must be module.resource.action", code)
	}
	for _, p := range parts {
		if p == "" {
			return PermissionCode{}, fmt.Errorf("permission code %q has an empty segment", code)
		}
	}
	if _, ok := validActions[parts[2]]; !ok {
		return PermissionCode{}, fmt.Errorf("permission code %q has unknown action %q", code, parts[2])
	}
	return PermissionCode{Module: parts[0], Resource: parts[1], Action: parts[2]}, nil
}

// Permission is the persisted capability definition.
type Permission struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Code        string    `json:"code" db:"code"`
	Description *string   `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ResourceHierarchy maps a child resource to its declared parent within one
// module. Holding the parent's permission satisfies any child's check.
type ResourceHierarchy struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Module         string    `json:"module" db:"module"`
	ChildResource  string    `json:"child_resource" db:"child_resource"`
	ParentResource string    `json:"parent_resource" db:"parent_resource"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
