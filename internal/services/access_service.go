package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gatekit/internal/caching"
	"gatekit/internal/common"
	"gatekit/internal/models"
	"gatekit/internal/repositories"

	"github.com/google/uuid"
)

const subscriptionCacheTTL = 5 * time.Minute

// AccessService decides whether a principal may perform an operation.
// Checks fail closed: a store error denies with an internal error, never an
// implicit allow. There is no explicit-deny grant; absence denies.
type AccessService interface {
	// RequirePermission succeeds iff the principal is super-admin (when
	// allowed), or the module subscription is active (when module is set)
	// and the effective grant set contains resource.action, a manage-level
	// superset, or the declared parent resource's equivalent grant.
	RequirePermission(ctx context.Context, principal *models.Principal, tenantID uuid.UUID, resource, action, module string, allowSuperAdmin bool) *common.AppError
	// RequireAnyPermission succeeds iff any listed resource passes the
	// single-resource check.
	RequireAnyPermission(ctx context.Context, principal *models.Principal, tenantID uuid.UUID, resources []string, action, module string) *common.AppError
	// RequireHierarchicalPermission succeeds iff the child check passes or
	// the parent check passes. Parent success takes precedence; the model
	// has no explicit-deny type for the child to override it with.
	RequireHierarchicalPermission(ctx context.Context, principal *models.Principal, tenantID uuid.UUID, parentResource, childResource, action, module string) *common.AppError
	// RequireModuleAccess succeeds iff the tenant subscription for the
	// module is active and the principal holds at least one permission
	// namespaced to it. Super-admins are exempt.
	RequireModuleAccess(ctx context.Context, principal *models.Principal, tenantID uuid.UUID, moduleCode string) *common.AppError
}

type accessService struct {
	hierarchyRepo    repositories.PermissionHierarchyRepository
	subscriptionRepo repositories.ModuleSubscriptionRepository
	cacheSvc         caching.CacheService
	storeTimeout     time.Duration
}

func NewAccessService(hierarchyRepo repositories.PermissionHierarchyRepository, subscriptionRepo repositories.ModuleSubscriptionRepository, cacheSvc caching.CacheService, storeTimeout time.Duration) AccessService {
	return &accessService{
		hierarchyRepo:    hierarchyRepo,
		subscriptionRepo: subscriptionRepo,
		cacheSvc:         cacheSvc,
		storeTimeout:     storeTimeout,
	}
}

func (s *accessService) RequirePermission(ctx context.Context, principal *models.Principal, tenantID uuid.UUID, resource, action, module string, allowSuperAdmin bool) *common.AppError {
	if allowSuperAdmin && principal.IsSuperAdmin() {
		return nil
	}

	if module != "" {
		if appErr := s.requireActiveSubscription(ctx, tenantID, module); appErr != nil {
			return appErr
		}
	}

	granted, appErr := s.holdsPermission(ctx, principal, resource, action, module)
	if appErr != nil {
		return appErr
	}
	if !granted {
		return common.ErrAuthorization(
			fmt.Sprintf("missing permission %s", qualifiedCode(module, resource, action)),
			resource, action)
	}
	return nil
}

func (s *accessService) RequireAnyPermission(ctx context.Context, principal *models.Principal, tenantID uuid.UUID, resources []string, action, module string) *common.AppError {
	if principal.IsSuperAdmin() {
		return nil
	}

	var lastDenial *common.AppError
	for _, resource := range resources {
		appErr := s.RequirePermission(ctx, principal, tenantID, resource, action, module, false)
		if appErr == nil {
			return nil
		}
		if appErr.Kind == common.KindInternalError {
			return appErr
		}
		lastDenial = appErr
	}
	if lastDenial == nil {
		return common.ErrAuthorization("no resources listed for permission check", "", action)
	}
	return common.ErrAuthorization(
		fmt.Sprintf("missing permission %q on any of %s", action, strings.Join(resources, ", ")),
		strings.Join(resources, ","), action)
}

func (s *accessService) RequireHierarchicalPermission(ctx context.Context, principal *models.Principal, tenantID uuid.UUID, parentResource, childResource, action, module string) *common.AppError {
	parentErr := s.RequirePermission(ctx, principal, tenantID, parentResource, action, module, true)
	if parentErr == nil {
		return nil
	}
	if parentErr.Kind == common.KindInternalError {
		return parentErr
	}

	childErr := s.RequirePermission(ctx, principal, tenantID, childResource, action, module, true)
	if childErr == nil {
		return nil
	}
	if childErr.Kind == common.KindInternalError {
		return childErr
	}

	return common.ErrAuthorization(
		fmt.Sprintf("missing permission %s (or parent %s)",
			qualifiedCode(module, childResource, action), qualifiedCode(module, parentResource, action)),
		childResource, action)
}

func (s *accessService) RequireModuleAccess(ctx context.Context, principal *models.Principal, tenantID uuid.UUID, moduleCode string) *common.AppError {
	if principal.IsSuperAdmin() {
		return nil
	}

	if appErr := s.requireActiveSubscription(ctx, tenantID, moduleCode); appErr != nil {
		return appErr
	}

	prefix := moduleCode + "."
	for _, code := range principal.Permissions {
		if strings.HasPrefix(code, prefix) {
			return nil
		}
	}
	return common.ErrModuleDenied(moduleCode, fmt.Sprintf("no permissions granted in module %q", moduleCode))
}

// holdsPermission checks the exact code, the manage-level superset, and the
// declared parent resource's grants, in that order.
func (s *accessService) holdsPermission(ctx context.Context, principal *models.Principal, resource, action, module string) (bool, *common.AppError) {
	if principal.HasGrant(qualifiedCode(module, resource, action)) {
		return true, nil
	}
	if action != models.ActionManage && principal.HasGrant(qualifiedCode(module, resource, models.ActionManage)) {
		return true, nil
	}

	parent, appErr := s.declaredParent(ctx, module, resource)
	if appErr != nil {
		return false, appErr
	}
	if parent == "" {
		return false, nil
	}
	if principal.HasGrant(qualifiedCode(module, parent, action)) {
		return true, nil
	}
	if action != models.ActionManage && principal.HasGrant(qualifiedCode(module, parent, models.ActionManage)) {
		return true, nil
	}
	return false, nil
}

func (s *accessService) declaredParent(ctx context.Context, module, resource string) (string, *common.AppError) {
	lookupModule := module
	lookupResource := resource
	// Unqualified checks carry the module inside the resource name.
	if module == "" {
		if idx := strings.IndexByte(resource, '.'); idx > 0 {
			lookupModule = resource[:idx]
			lookupResource = resource[idx+1:]
		} else {
			return "", nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	parent, err := s.hierarchyRepo.ParentOf(ctx, lookupModule, lookupResource)
	if err != nil {
		return "", common.ErrInternal("permission hierarchy lookup failed", err)
	}
	if parent != "" && module == "" {
		parent = lookupModule + "." + parent
	}
	return parent, nil
}

func (s *accessService) requireActiveSubscription(ctx context.Context, tenantID uuid.UUID, moduleCode string) *common.AppError {
	status, appErr := s.subscriptionStatus(ctx, tenantID, moduleCode)
	if appErr != nil {
		return appErr
	}
	if status != models.SubscriptionActive {
		return common.ErrModuleDenied(moduleCode, fmt.Sprintf("module %q subscription is %s", moduleCode, status))
	}
	return nil
}

func (s *accessService) subscriptionStatus(ctx context.Context, tenantID uuid.UUID, moduleCode string) (string, *common.AppError) {
	status, hit, err := s.cacheSvc.GetSubscriptionStatus(ctx, tenantID, moduleCode)
	if err == nil && hit {
		return status, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	status, err = s.subscriptionRepo.GetStatus(lookupCtx, tenantID, moduleCode)
	if err != nil {
		return "", common.ErrInternal("module subscription lookup failed", err)
	}

	if cacheErr := s.cacheSvc.SetSubscriptionStatus(ctx, tenantID, moduleCode, status, subscriptionCacheTTL); cacheErr != nil {
		// Cache write failures are tolerable; the next check rereads the store.
		_ = cacheErr
	}
	return status, nil
}

func qualifiedCode(module, resource, action string) string {
	if module == "" {
		return resource + "." + action
	}
	return module + "." + resource + "." + action
}
