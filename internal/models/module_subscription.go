package models

import (
	"time"

	"github.com/google/uuid"
)

// Functional module codes gated per tenant.
const (
	ModuleAuth    = "auth"
	ModuleCore    = "core"
	ModuleWMS     = "wms"
	ModulePOS     = "pos"
	ModuleReports = "reports"
)

// Module subscription states. Any state other than active blocks every
// permission check inside the module, regardless of the principal's grants.
const (
	SubscriptionActive    = "active"
	SubscriptionInactive  = "inactive"
	SubscriptionTrial     = "trial"
	SubscriptionSuspended = "suspended"
)

type ModuleSubscription struct {
	ID         uuid.UUID `json:"id" db:"id"`
	TenantID   uuid.UUID `json:"tenant_id" db:"tenant_id"`
	ModuleCode string    `json:"module_code" db:"module_code"`
	Status     string    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
