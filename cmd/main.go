package main

import (
	"context"
	"fmt"
	"log"

	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/labstack/echo/v4"

	"gatekit/internal/caching"
	"gatekit/internal/common"
	"gatekit/internal/config"
	"gatekit/internal/handlers"
	"gatekit/internal/jobs/background"
	"gatekit/internal/middleware"
	"gatekit/internal/models"
	"gatekit/internal/repositories"
	"gatekit/internal/services"
	"gatekit/pkg/database"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	development := !cfg.IsProduction()

	// Database connection pool
	pool, err := database.NewPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.ClosePool(pool)

	// Redis client shared by the cache service and the rate-limit store
	redisClient := caching.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Create repositories
	tenantRepo := repositories.NewTenantRepo(pool)
	userRepo := repositories.NewUserRepo(pool)
	hierarchyRepo := repositories.NewPermissionHierarchyRepo(pool)
	subscriptionRepo := repositories.NewModuleSubscriptionRepo(pool)
	auditLogsRepo := repositories.NewAuditLogsRepo(pool)

	// Create cache service and rate-limit store
	cacheSvc := caching.NewRedisCacheService(redisClient)
	rateLimitStore := caching.NewRedisRateLimitStore(redisClient)

	// Create services
	tenantSvc := services.NewTenantService(tenantRepo, subscriptionRepo, cacheSvc, cfg.StoreTimeout)
	authSvc, err := services.NewAuthService(userRepo, cacheSvc, cfg.JWTSecret, cfg.JWKSEndpoint, cfg.AccessTokenTTL, cfg.RefreshTTL)
	if err != nil {
		log.Fatalf("Failed to initialize auth service: %v", err)
	}
	accessSvc := services.NewAccessService(hierarchyRepo, subscriptionRepo, cacheSvc, cfg.StoreTimeout)
	scopeSvc := services.NewDataScopeService()
	rateLimitSvc := services.NewRateLimitService(rateLimitStore, cfg.RateLimits, cfg.StoreTimeout)
	auditSvc := services.NewAuditLogsService(auditLogsRepo)

	archiveSvc, err := services.NewArchiveService(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL, cfg.AuditBucket, auditLogsRepo)
	if err != nil {
		log.Fatalf("Failed to initialize archive service: %v", err)
	}
	if err := archiveSvc.EnsureBucketExists(context.Background()); err != nil {
		log.Printf("WARN: audit archive bucket unavailable: %v", err)
	}

	scheduler := background.NewJobScheduler(archiveSvc, cacheSvc, tenantRepo, subscriptionRepo, cfg.AuditRetention, cfg.AuditArchiveBatch)

	// Create handlers
	authHandlers := handlers.NewAuthHandlers(authSvc, rateLimitSvc)
	userHandlers := handlers.NewUserHandlers(userRepo, scopeSvc)
	tenantHandlers := handlers.NewTenantHandlers(tenantSvc)
	auditLogsHandlers := handlers.NewAuditLogsHandlers(auditSvc)
	rateLimitHandlers := handlers.NewRateLimitHandlers(rateLimitSvc)
	healthHandlers := handlers.NewHealthHandlers(pool, redisClient, version)
	jobHandlers := handlers.NewJobHandlers(scheduler)

	// Request pipelines. Every guarded route runs a fixed ordered stage
	// list; denial short-circuits and every decision is audited.
	recorder := middleware.NewDecisionRecorder(auditSvc)

	publicPipeline := middleware.NewPipeline(recorder, development,
		middleware.PreAuthRateLimit(rateLimitSvc),
	)
	tenantPipeline := middleware.NewPipeline(recorder, development,
		middleware.ResolveTenant(tenantSvc, development),
		middleware.PreAuthRateLimit(rateLimitSvc),
		middleware.Authenticate(authSvc),
		middleware.PostAuthRateLimit(rateLimitSvc),
	)
	coreStages := []middleware.Stage{
		middleware.ResolveTenant(tenantSvc, development),
		middleware.PreAuthRateLimit(rateLimitSvc),
		middleware.Authenticate(authSvc),
		middleware.PostAuthRateLimit(rateLimitSvc),
		middleware.RequireModuleAccess(accessSvc, models.ModuleCore),
	}
	usersPipeline := middleware.NewPipeline(recorder, development,
		append(coreStages, middleware.RequirePermission(accessSvc, "users", models.ActionView, models.ModuleCore))...,
	)
	userDetailPipeline := middleware.NewPipeline(recorder, development,
		append(coreStages, middleware.RequireHierarchicalPermission(accessSvc, "users", "profiles", models.ActionView, models.ModuleCore))...,
	)
	subscriptionsPipeline := middleware.NewPipeline(recorder, development,
		append(coreStages, middleware.RequireAnyPermission(accessSvc, []string{"settings", "subscriptions"}, models.ActionView, models.ModuleCore))...,
	)
	auditPipeline := middleware.NewPipeline(recorder, development,
		append(coreStages, middleware.RequirePermission(accessSvc, "audit", models.ActionView, models.ModuleCore))...,
	)
	platformPipeline := middleware.NewPipeline(recorder, development,
		middleware.PreAuthRateLimit(rateLimitSvc),
		middleware.Authenticate(authSvc),
		middleware.PostAuthRateLimit(rateLimitSvc),
		middleware.RequireRole(models.RoleSuperAdmin),
	)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = common.NewHTTPErrorHandler(development)

	// Global middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	// Health endpoints (no auth required)
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)

	v1 := e.Group("/v1")

	// Authentication routes (no tenant resolution, pre-auth throttling only)
	v1.POST("/auth/login", publicPipeline.Then(authHandlers.Login))
	v1.POST("/auth/refresh", publicPipeline.Then(authHandlers.Refresh))

	// Tenant-scoped routes
	v1.GET("/me", tenantPipeline.Then(authHandlers.Me))
	v1.GET("/rate-limits", tenantPipeline.Then(rateLimitHandlers.Introspect))
	v1.GET("/users", usersPipeline.Then(userHandlers.ListUsers))
	v1.GET("/users/:id", userDetailPipeline.Then(userHandlers.GetUser))
	v1.GET("/subscriptions", subscriptionsPipeline.Then(tenantHandlers.ListOwnSubscriptions))
	v1.GET("/audit-logs", auditPipeline.Then(auditLogsHandlers.ListAuditLogs))
	v1.GET("/audit-logs/:id", auditPipeline.Then(auditLogsHandlers.GetAuditLog))

	// Platform routes (super admin only, no tenant resolution)
	v1.GET("/tenants", platformPipeline.Then(tenantHandlers.ListTenants))
	v1.GET("/tenants/:id", platformPipeline.Then(tenantHandlers.GetTenant))
	v1.PUT("/tenants/:id/status", platformPipeline.Then(tenantHandlers.UpdateTenantStatus))
	v1.GET("/tenants/:id/subscriptions", platformPipeline.Then(tenantHandlers.ListSubscriptions))
	v1.PUT("/tenants/:id/subscriptions/:module", platformPipeline.Then(tenantHandlers.UpdateSubscription))
	v1.GET("/jobs", platformPipeline.Then(jobHandlers.ListJobs))
	v1.POST("/jobs/:name/run", platformPipeline.Then(jobHandlers.RunJob))

	// Background jobs
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start job scheduler: %v", err)
	}
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Printf("WARN: job scheduler shutdown: %v", err)
		}
	}()

	log.Printf("Gatekit server v%s starting on port %d (environment: %s)", version, cfg.Port, cfg.Environment)

	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", cfg.Port)))
}
