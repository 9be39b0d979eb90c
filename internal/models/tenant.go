package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant lifecycle states. Tenants are never physically deleted, only
// deactivated.
const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
	TenantStatusInactive  = "inactive"
	TenantStatusTrial     = "trial"
)

type Tenant struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Subdomain    string    `json:"subdomain" db:"subdomain"`
	CustomDomain *string   `json:"custom_domain,omitempty" db:"custom_domain"`
	PartitionKey string    `json:"partition_key" db:"partition_key"`
	Status       string    `json:"status" db:"status"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Resolvable reports whether requests may be routed to this tenant. Trial
// tenants resolve; suspended and inactive ones do not.
func (t *Tenant) Resolvable() bool {
	return t.Status == TenantStatusActive || t.Status == TenantStatusTrial
}
