package handlers

import (
	"net/http"
	"time"

	"mizan2/internal/caching"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// HealthCheck handles GET /health.
func HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ReadinessCheck handles GET /health/ready.
func ReadinessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

// HealthCheckDetailed handles GET /health/detailed: pings the database and the
// cache so operators can tell which dependency is down.
func HealthCheckDetailed(c echo.Context, pool *pgxpool.Pool, cache caching.CacheService) error {
	ctx := c.Request().Context()
	checks := map[string]string{
		"database": "ok",
		"cache":    "ok",
	}
	status := http.StatusOK

	if err := pool.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := cache.Ping(ctx); err != nil {
		// Cache loss degrades snapshots and retries, not correctness.
		checks["cache"] = err.Error()
	}

	return c.JSON(status, map[string]interface{}{
		"status":    http.StatusText(status),
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	})
}
