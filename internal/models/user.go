package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	TenantID     *uuid.UUID `json:"tenant_id,omitempty" db:"tenant_id"` // nil only for super_admin
	DepartmentID *uuid.UUID `json:"department_id,omitempty" db:"department_id"`
	TeamID       *uuid.UUID `json:"team_id,omitempty" db:"team_id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"` // Never serialize in JSON
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	Role         string     `json:"role" db:"role"`
	Status       string     `json:"status" db:"status"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Attributes returns the ownership attributes used for data-scope
// admission. A user record is owned by itself.
func (u *User) Attributes() RecordAttributes {
	attrs := RecordAttributes{OwnerID: u.ID.String()}
	if u.TenantID != nil {
		attrs.TenantID = u.TenantID.String()
	}
	if u.DepartmentID != nil {
		attrs.DepartmentID = u.DepartmentID.String()
	}
	if u.TeamID != nil {
		attrs.TeamID = u.TeamID.String()
	}
	return attrs
}
