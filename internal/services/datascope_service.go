package services

import (
	"fmt"
	"strings"

	"gatekit/internal/common"
	"gatekit/internal/models"
)

// ScopeColumns names the ownership columns of the table a collection
// filter applies to.
type ScopeColumns struct {
	Owner      string
	Team       string
	Department string
	Tenant     string
}

// ScopePredicate is a declarative row filter derived from a principal's
// data scope for one resource.
type ScopePredicate struct {
	Scope        models.Scope
	OwnerID      string
	TeamID       string
	DepartmentID string
	TenantID     string
}

// SQL renders the predicate as a WHERE fragment with positional arguments
// starting at argIndex. Global scope yields no restriction; none yields an
// always-false clause.
func (p *ScopePredicate) SQL(cols ScopeColumns, argIndex int) (string, []any) {
	switch p.Scope {
	case models.ScopeGlobal:
		return "TRUE", nil
	case models.ScopeTenant:
		return fmt.Sprintf("%s = $%d", cols.Tenant, argIndex), []any{p.TenantID}
	case models.ScopeDepartment:
		return fmt.Sprintf("%s = $%d", cols.Department, argIndex), []any{p.DepartmentID}
	case models.ScopeTeam:
		return fmt.Sprintf("%s = $%d", cols.Team, argIndex), []any{p.TeamID}
	case models.ScopeOwn:
		return fmt.Sprintf("%s = $%d", cols.Owner, argIndex), []any{p.OwnerID}
	default:
		return "FALSE", nil
	}
}

// DataScopeService narrows data access to what a principal's scope permits.
// Permission governs the operation; scope governs which rows. An unset
// scope is none: deny-all for data, independent of the permission grant.
type DataScopeService interface {
	// CollectionFilter returns the predicate to apply to a list query.
	CollectionFilter(principal *models.Principal, resource string) *ScopePredicate
	// AdmitRecord checks a single record's ownership attributes against the
	// principal's scope for the resource.
	AdmitRecord(principal *models.Principal, resource string, record models.RecordAttributes) *common.AppError
}

type dataScopeService struct{}

func NewDataScopeService() DataScopeService {
	return &dataScopeService{}
}

func (s *dataScopeService) CollectionFilter(principal *models.Principal, resource string) *ScopePredicate {
	scope := s.effectiveScope(principal, resource)
	pred := &ScopePredicate{
		Scope:        scope,
		OwnerID:      principal.UserID.String(),
		DepartmentID: principal.DepartmentID,
		TeamID:       principal.TeamID,
	}
	if principal.TenantID != nil {
		pred.TenantID = principal.TenantID.String()
	}
	return pred
}

func (s *dataScopeService) AdmitRecord(principal *models.Principal, resource string, record models.RecordAttributes) *common.AppError {
	scope := s.effectiveScope(principal, resource)

	switch scope {
	case models.ScopeGlobal:
		return nil
	case models.ScopeTenant:
		if principal.TenantID != nil && strings.EqualFold(record.TenantID, principal.TenantID.String()) {
			return nil
		}
	case models.ScopeDepartment:
		if principal.DepartmentID != "" && strings.EqualFold(record.DepartmentID, principal.DepartmentID) {
			return nil
		}
	case models.ScopeTeam:
		if principal.TeamID != "" && strings.EqualFold(record.TeamID, principal.TeamID) {
			return nil
		}
	case models.ScopeOwn:
		if strings.EqualFold(record.OwnerID, principal.UserID.String()) {
			return nil
		}
	}

	return common.ErrAuthorization(
		fmt.Sprintf("record is outside your %s data scope for %s", scope, resource),
		resource, "")
}

// effectiveScope grants super-admins global visibility; everyone else gets
// their configured scope, defaulting to none.
func (s *dataScopeService) effectiveScope(principal *models.Principal, resource string) models.Scope {
	if principal.IsSuperAdmin() {
		return models.ScopeGlobal
	}
	return principal.ScopeFor(resource)
}
