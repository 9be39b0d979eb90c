package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gatekit/internal/caching"
	"gatekit/internal/common"
	"gatekit/internal/models"
	"gatekit/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const tenantCacheTTL = time.Minute

// TenantService resolves request hosts to tenants and backs the tenant
// administration surface.
type TenantService interface {
	// Resolve maps a request host to an active tenant. The leftmost host
	// label is tried as a subdomain; a dotted candidate that misses retries
	// as a full custom-domain lookup. override, when non-empty, names the
	// subdomain directly (development posture only).
	Resolve(ctx context.Context, host, override string) (*models.Tenant, *common.AppError)

	ListTenants(ctx context.Context, limit, offset int) ([]*models.Tenant, error)
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	SetTenantStatus(ctx context.Context, id uuid.UUID, status string) error
	ListSubscriptions(ctx context.Context, tenantID uuid.UUID) ([]*models.ModuleSubscription, error)
	SetSubscription(ctx context.Context, tenantID uuid.UUID, moduleCode, status string) error
}

type tenantService struct {
	tenantRepo       repositories.TenantRepository
	subscriptionRepo repositories.ModuleSubscriptionRepository
	cacheSvc         caching.CacheService
	storeTimeout     time.Duration
}

func NewTenantService(tenantRepo repositories.TenantRepository, subscriptionRepo repositories.ModuleSubscriptionRepository, cacheSvc caching.CacheService, storeTimeout time.Duration) TenantService {
	return &tenantService{
		tenantRepo:       tenantRepo,
		subscriptionRepo: subscriptionRepo,
		cacheSvc:         cacheSvc,
		storeTimeout:     storeTimeout,
	}
}

func (s *tenantService) Resolve(ctx context.Context, host, override string) (*models.Tenant, *common.AppError) {
	bareHost := stripPort(host)
	candidate := override
	if candidate == "" {
		candidate = subdomainOf(bareHost)
	}
	if candidate == "" {
		return nil, common.ErrTenantNotFound(bareHost)
	}

	if cached, err := s.cacheSvc.GetTenantBySubdomain(ctx, candidate); err == nil && cached != nil {
		if !cached.Resolvable() {
			return nil, common.ErrTenantNotFound(candidate)
		}
		return cached, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	tenant, err := s.tenantRepo.GetBySubdomain(lookupCtx, candidate)
	if errors.Is(err, pgx.ErrNoRows) && override == "" && strings.Contains(bareHost, ".") {
		// The host may be a tenant's custom domain rather than a
		// subdomain of the platform apex.
		tenant, err = s.tenantRepo.GetByCustomDomain(lookupCtx, bareHost)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrTenantNotFound(candidate)
	}
	if err != nil {
		return nil, common.ErrInternal("tenant lookup failed", err)
	}

	if cacheErr := s.cacheSvc.SetTenantBySubdomain(ctx, tenant, tenantCacheTTL); cacheErr != nil {
		_ = cacheErr // next resolve rereads the store
	}

	if !tenant.Resolvable() {
		return nil, common.ErrTenantNotFound(candidate)
	}
	return tenant, nil
}

func (s *tenantService) ListTenants(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	limit, offset = common.ValidatePaginationParams(limit, offset)
	return s.tenantRepo.List(ctx, limit, offset)
}

func (s *tenantService) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return s.tenantRepo.GetByID(ctx, id)
}

func (s *tenantService) SetTenantStatus(ctx context.Context, id uuid.UUID, status string) error {
	switch status {
	case models.TenantStatusActive, models.TenantStatusSuspended, models.TenantStatusInactive, models.TenantStatusTrial:
	default:
		return common.ErrValidation("invalid tenant status " + status)
	}
	return s.tenantRepo.UpdateStatus(ctx, id, status)
}

func (s *tenantService) ListSubscriptions(ctx context.Context, tenantID uuid.UUID) ([]*models.ModuleSubscription, error) {
	return s.subscriptionRepo.ListByTenant(ctx, tenantID)
}

func (s *tenantService) SetSubscription(ctx context.Context, tenantID uuid.UUID, moduleCode, status string) error {
	switch status {
	case models.SubscriptionActive, models.SubscriptionInactive, models.SubscriptionTrial, models.SubscriptionSuspended:
	default:
		return common.ErrValidation("invalid subscription status " + status)
	}
	err := s.subscriptionRepo.Upsert(ctx, &models.ModuleSubscription{
		ID:         uuid.New(),
		TenantID:   tenantID,
		ModuleCode: moduleCode,
		Status:     status,
	})
	if err != nil {
		return err
	}
	// Evaluators cache subscription status; stale entries must not outlive
	// an admin change.
	return s.cacheSvc.InvalidateTenantSubscriptions(ctx, tenantID)
}

func stripPort(host string) string {
	if idx := strings.LastIndexByte(host, ':'); idx > 0 {
		return host[:idx]
	}
	return host
}

// subdomainOf extracts the leftmost label of a host. Single-label hosts
// (localhost) have no subdomain.
func subdomainOf(host string) string {
	idx := strings.IndexByte(host, '.')
	if idx <= 0 {
		return ""
	}
	return host[:idx]
}
