package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"gatekit/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type CacheService interface {
	// Module subscription caching, read on the permission hot path
	GetSubscriptionStatus(ctx context.Context, tenantID uuid.UUID, moduleCode string) (string, bool, error)
	SetSubscriptionStatus(ctx context.Context, tenantID uuid.UUID, moduleCode, status string, ttl time.Duration) error
	InvalidateTenantSubscriptions(ctx context.Context, tenantID uuid.UUID) error

	// Tenant caching for the resolver
	GetTenantBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)
	SetTenantBySubdomain(ctx context.Context, tenant *models.Tenant, ttl time.Duration) error

	// Generic string operations for refresh token management
	SetString(ctx context.Context, key string, value string, ttl time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type redisCacheService struct {
	client *redis.Client
}

// NewRedisClient builds the shared client, accepting plain host:port or
// redis:// URLs.
func NewRedisClient(addr, password string, db int) *redis.Client {
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Printf("WARN: Redis ping failed on initialization: %v (address: %s)", pingErr, parsedAddr)
	}

	return client
}

func NewRedisCacheService(client *redis.Client) CacheService {
	return &redisCacheService{client: client}
}

func (r *redisCacheService) GetSubscriptionStatus(ctx context.Context, tenantID uuid.UUID, moduleCode string) (string, bool, error) {
	key := fmt.Sprintf("gatekit:subscription:%s:%s", tenantID.String(), moduleCode)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil // cache miss
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *redisCacheService) SetSubscriptionStatus(ctx context.Context, tenantID uuid.UUID, moduleCode, status string, ttl time.Duration) error {
	key := fmt.Sprintf("gatekit:subscription:%s:%s", tenantID.String(), moduleCode)
	return r.client.Set(ctx, key, status, ttl).Err()
}

func (r *redisCacheService) InvalidateTenantSubscriptions(ctx context.Context, tenantID uuid.UUID) error {
	pattern := fmt.Sprintf("gatekit:subscription:%s:*", tenantID.String())
	keys, err := r.client.Keys(ctx, pattern).Result()
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		return r.client.Del(ctx, keys...).Err()
	}
	return nil
}

func (r *redisCacheService) GetTenantBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	key := fmt.Sprintf("gatekit:tenant:%s", subdomain)
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var tenant models.Tenant
	if err := json.Unmarshal(data, &tenant); err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *redisCacheService) SetTenantBySubdomain(ctx context.Context, tenant *models.Tenant, ttl time.Duration) error {
	key := fmt.Sprintf("gatekit:tenant:%s", tenant.Subdomain)
	data, err := json.Marshal(tenant)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *redisCacheService) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCacheService) GetString(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil // cache miss
		}
		return "", err
	}
	return val, nil
}

func (r *redisCacheService) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
