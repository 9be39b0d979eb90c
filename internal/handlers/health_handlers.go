package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandlers serves the liveness and readiness probes. These sit on
// the public allowlist: no tenant resolution, no authentication.
type HealthHandlers struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
	version     string
}

func NewHealthHandlers(db *pgxpool.Pool, redisClient *redis.Client, version string) *HealthHandlers {
	return &HealthHandlers{db: db, redisClient: redisClient, version: version}
}

type healthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services,omitempty"`
}

func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, &healthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
	})
}

// ReadinessCheck probes the stores the pipeline depends on.
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	services := map[string]string{"database": "ok", "redis": "ok"}
	code := http.StatusOK
	status := "ready"

	if err := h.db.Ping(ctx); err != nil {
		services["database"] = "unreachable"
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}
	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		services["redis"] = "unreachable"
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}

	return c.JSON(code, &healthStatus{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
		Services:  services,
	})
}
