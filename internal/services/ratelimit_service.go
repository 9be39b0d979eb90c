package services

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"gatekit/internal/caching"
	"gatekit/internal/common"
	"gatekit/internal/config"
	"gatekit/internal/models"
)

// RateLimitService applies the overlapping throttling tiers. The pipeline
// evaluates the global and route-selected tiers before authentication and
// the role/operation tiers once identity is known, denying on the first
// exceeded ceiling.
type RateLimitService interface {
	// PreAuthTiers returns the IP-keyed tiers for a request: the global
	// tier plus the module tier selected by the route rules, if any.
	PreAuthTiers(method, path string) []models.RateLimitTier
	// PostAuthTiers returns the identity-keyed tiers: the role tier (as
	// fallback when no module rule matched the route) and any operation
	// tier matched by the operation-class rules.
	PostAuthTiers(method, path string, principal *models.Principal) []models.RateLimitTier
	// Check counts one admission against a tier and reports the decision.
	Check(ctx context.Context, tier models.RateLimitTier, clientIP string, principal *models.Principal) (*models.RateLimitDecision, *common.AppError)
	// RefundAuthAttempt uncounts a successful authentication so only failed
	// attempts throttle credential guessing.
	RefundAuthAttempt(ctx context.Context, clientIP string) error
	// Statuses reports every tier applicable to the caller without counting.
	Statuses(ctx context.Context, method, path, clientIP string, principal *models.Principal) ([]models.TierStatus, error)
}

type routeRule struct {
	method  string // empty matches any method
	pattern *regexp.Regexp
	module  string
}

type operationRule struct {
	method    string
	pattern   *regexp.Regexp
	operation string
}

type rateLimitService struct {
	store        caching.RateLimitStore
	cfg          config.RateLimitConfig
	routeRules   []routeRule
	opRules      []operationRule
	storeTimeout time.Duration
}

// Route selection rules, ordered: auth first, then module-specific
// prefixes, then read-heavy report/dashboard reads, then core
// administrative paths. Compiled once at startup.
var routeRuleSpecs = []struct {
	method  string
	pattern string
	module  string
}{
	{"", `^/v1/auth(/|$)`, models.ModuleAuth},
	{"", `^/v1/wms(/|$)`, models.ModuleWMS},
	{"", `^/v1/pos(/|$)`, models.ModulePOS},
	{"GET", `^/v1/(dashboards?|reports)(/|$)`, models.ModuleReports},
	{"", `^/v1/(tenants|users|settings|audit-logs)(/|$)`, models.ModuleCore},
}

var operationRuleSpecs = []struct {
	method    string
	pattern   string
	operation string
}{
	{"POST", `/bulk(/|$)`, "bulk"},
	{"POST", `/upload(/|$)`, "upload"},
	{"POST", `^/v1/reports/generate(/|$)`, "report"},
	{"GET", `/export(/|$)`, "report"},
}

func NewRateLimitService(store caching.RateLimitStore, cfg config.RateLimitConfig, storeTimeout time.Duration) RateLimitService {
	s := &rateLimitService{store: store, cfg: cfg, storeTimeout: storeTimeout}
	for _, spec := range routeRuleSpecs {
		s.routeRules = append(s.routeRules, routeRule{
			method:  spec.method,
			pattern: regexp.MustCompile(spec.pattern),
			module:  spec.module,
		})
	}
	for _, spec := range operationRuleSpecs {
		s.opRules = append(s.opRules, operationRule{
			method:    spec.method,
			pattern:   regexp.MustCompile(spec.pattern),
			operation: spec.operation,
		})
	}
	return s
}

func (s *rateLimitService) PreAuthTiers(method, path string) []models.RateLimitTier {
	tiers := []models.RateLimitTier{s.globalTier()}
	if module, ok := s.selectModule(method, path); ok {
		tiers = append(tiers, s.moduleTier(module))
	}
	return tiers
}

func (s *rateLimitService) PostAuthTiers(method, path string, principal *models.Principal) []models.RateLimitTier {
	var tiers []models.RateLimitTier
	if _, matched := s.selectModule(method, path); !matched {
		tiers = append(tiers, s.roleTier(principal.Role))
	}
	for _, rule := range s.opRules {
		if rule.method != "" && rule.method != method {
			continue
		}
		if rule.pattern.MatchString(path) {
			tiers = append(tiers, s.operationTier(rule.operation))
		}
	}
	return tiers
}

func (s *rateLimitService) Check(ctx context.Context, tier models.RateLimitTier, clientIP string, principal *models.Principal) (*models.RateLimitDecision, *common.AppError) {
	key := tierKey(tier, clientIP, principal)

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	count, resetIn, err := s.store.Incr(ctx, key, tier.Window)
	if err != nil {
		if tier.FailOpen {
			// Explicit configuration choice for non-critical tiers only.
			return &models.RateLimitDecision{Tier: tier.Name, Allowed: true, Ceiling: tier.Ceiling}, nil
		}
		return nil, common.ErrInternal(fmt.Sprintf("rate limit store unavailable for tier %q", tier.Name), err)
	}

	decision := &models.RateLimitDecision{
		Tier:    tier.Name,
		Allowed: count <= int64(tier.Ceiling),
		Count:   count,
		Ceiling: tier.Ceiling,
		ResetIn: resetIn,
	}
	if remaining := int64(tier.Ceiling) - count; remaining > 0 {
		decision.Remaining = int(remaining)
	}
	return decision, nil
}

func (s *rateLimitService) RefundAuthAttempt(ctx context.Context, clientIP string) error {
	tier := s.moduleTier(models.ModuleAuth)
	return s.store.Decr(ctx, tierKey(tier, clientIP, nil))
}

func (s *rateLimitService) Statuses(ctx context.Context, method, path, clientIP string, principal *models.Principal) ([]models.TierStatus, error) {
	tiers := s.PreAuthTiers(method, path)
	if principal != nil {
		tiers = append(tiers, s.PostAuthTiers(method, path, principal)...)
	}

	statuses := make([]models.TierStatus, 0, len(tiers))
	for _, tier := range tiers {
		count, _, err := s.store.Peek(ctx, tierKey(tier, clientIP, principal))
		if err != nil {
			return nil, err
		}
		remaining := int64(tier.Ceiling) - count
		if remaining < 0 {
			remaining = 0
		}
		statuses = append(statuses, models.TierStatus{
			Name:      tier.Name,
			Window:    tier.Window.String(),
			Ceiling:   tier.Ceiling,
			Remaining: int(remaining),
		})
	}
	return statuses, nil
}

func (s *rateLimitService) selectModule(method, path string) (string, bool) {
	for _, rule := range s.routeRules {
		if rule.method != "" && rule.method != method {
			continue
		}
		if rule.pattern.MatchString(path) {
			return rule.module, true
		}
	}
	return "", false
}

func (s *rateLimitService) globalTier() models.RateLimitTier {
	return models.RateLimitTier{
		Name:     "global",
		Strategy: models.KeyByIP,
		Window:   s.cfg.GlobalWindow,
		Ceiling:  s.cfg.GlobalCeiling,
		FailOpen: s.cfg.GlobalFailOpen,
	}
}

func (s *rateLimitService) moduleTier(module string) models.RateLimitTier {
	ceiling, ok := s.cfg.ModuleCeilings[module]
	if !ok {
		ceiling = s.cfg.ModuleCeilings[models.ModuleCore]
	}
	return models.RateLimitTier{
		Name:     "module:" + module,
		Strategy: models.KeyByIP,
		Window:   s.cfg.ModuleWindow,
		Ceiling:  ceiling,
	}
}

// roleTier resolves the ceiling from the role lookup table per request, so
// new roles are a configuration change.
func (s *rateLimitService) roleTier(role string) models.RateLimitTier {
	ceiling, ok := s.cfg.RoleCeilings[role]
	if !ok {
		ceiling = s.cfg.RoleCeilings[models.RoleReadonly]
	}
	return models.RateLimitTier{
		Name:     "role:" + role,
		Strategy: models.KeyByPrincipalIP,
		Window:   s.cfg.RoleWindow,
		Ceiling:  ceiling,
	}
}

func (s *rateLimitService) operationTier(operation string) models.RateLimitTier {
	return models.RateLimitTier{
		Name:     "operation:" + operation,
		Strategy: models.KeyByPrincipal,
		Window:   s.cfg.OperationWindow,
		Ceiling:  s.cfg.OperationCeilings[operation],
	}
}

func tierKey(tier models.RateLimitTier, clientIP string, principal *models.Principal) string {
	switch tier.Strategy {
	case models.KeyByPrincipal:
		if principal != nil {
			return fmt.Sprintf("%s:user:%s", tier.Name, principal.UserID)
		}
		return fmt.Sprintf("%s:ip:%s", tier.Name, clientIP)
	case models.KeyByPrincipalIP:
		if principal != nil {
			return fmt.Sprintf("%s:user:%s:ip:%s", tier.Name, principal.UserID, clientIP)
		}
		return fmt.Sprintf("%s:ip:%s", tier.Name, clientIP)
	default:
		return fmt.Sprintf("%s:ip:%s", tier.Name, clientIP)
	}
}
