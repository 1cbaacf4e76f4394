package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const pingTimeout = 2 * time.Second

// Pinger is an interface for health check ping operations.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves health and metrics endpoints.
type HealthHandler struct {
	pool     Pinger
	gatherer prometheus.Gatherer
}

// NewHealthHandler creates a new HealthHandler.
// gatherer may be nil when metrics are not exposed.
func NewHealthHandler(pool Pinger, gatherer prometheus.Gatherer) *HealthHandler {
	return &HealthHandler{pool: pool, gatherer: gatherer}
}

// Check pings the database store of deal codes.
// Returns 200 {"status": "healthy"} or 503 {"status": "unhealthy", "error": "..."}.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), pingTimeout)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("health check failed: database unreachable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  "database connection failed",
		})
	}
	return c.JSON(fiber.Map{
		"status": "healthy",
	})
}

// Metrics returns a handler exposing the gatherer in Prometheus text format.
func (h *HealthHandler) Metrics() fiber.Handler {
	if h.gatherer == nil {
		return func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusNotFound)
		}
	}
	return adaptor.HTTPHandler(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}
