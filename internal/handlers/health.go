package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"meetsync/internal/services"
)

// HealthHandler handles server-level health check requests
type HealthHandler struct {
	registry  *services.Registry
	sessions  *services.SessionService
	keepAlive *services.KeepAliveScheduler
}

// NewHealthHandler creates a new health handler. keepAlive may be nil.
func NewHealthHandler(registry *services.Registry, sessions *services.SessionService, keepAlive *services.KeepAliveScheduler) *HealthHandler {
	return &HealthHandler{registry: registry, sessions: sessions, keepAlive: keepAlive}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := "healthy"
	store := "ok"
	code := fiber.StatusOK
	if err := h.sessions.Backend().Ping(ctx); err != nil {
		status = "degraded"
		store = err.Error()
		code = fiber.StatusServiceUnavailable
	}

	pending := 0
	if h.keepAlive != nil {
		pending = h.keepAlive.Pending()
	}

	return c.Status(code).JSON(fiber.Map{
		"status":            status,
		"store":             store,
		"actors":            h.registry.Actors(),
		"liveBrowsers":      h.registry.LiveBrowsers(),
		"pendingKeepAlives": pending,
		"timestamp":         time.Now().Format(time.RFC3339),
	})
}
