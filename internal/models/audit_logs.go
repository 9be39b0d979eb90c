package models

import (
	"time"

	"github.com/google/uuid"
)

// JSONB is a free-form metadata payload stored as jsonb.
type JSONB map[string]interface{}

// Audit outcomes.
const (
	AuditOutcomeAllowed = "allowed"
	AuditOutcomeDenied  = "denied"
	AuditOutcomeFailed  = "failed"
)

// AuditLog records one pipeline decision. Every request produces exactly
// one entry, allowed or not, including authentication failures.
type AuditLog struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	TenantID   *uuid.UUID `json:"tenant_id,omitempty" db:"tenant_id"`
	UserID     *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
	Method     string     `json:"method" db:"method"`
	Path       string     `json:"path" db:"path"`
	Outcome    string     `json:"outcome" db:"outcome"`
	DenyKind   *string    `json:"deny_kind,omitempty" db:"deny_kind"`
	DenyDetail *string    `json:"deny_detail,omitempty" db:"deny_detail"`
	ClientIP   string     `json:"client_ip" db:"client_ip"`
	DurationMS int64      `json:"duration_ms" db:"duration_ms"`
	Metadata   JSONB      `json:"metadata,omitempty" db:"metadata"`
	Archived   bool       `json:"archived" db:"archived"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// AuditLogFilters narrows audit queries.
type AuditLogFilters struct {
	UserID    *uuid.UUID
	Outcome   *string
	PathLike  *string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}
