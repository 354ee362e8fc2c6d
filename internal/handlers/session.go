package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"meetsync/internal/models"
	"meetsync/internal/services"
)

// SessionHandler handles cookie upload, session health and disconnect
type SessionHandler struct {
	registry *services.Registry
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(registry *services.Registry) *SessionHandler {
	return &SessionHandler{registry: registry}
}

type uploadCookiesRequest struct {
	Cookies []models.Cookie `json:"cookies"`
}

// UploadCookies replaces the user's cookies
// POST /users/:userId/upload-cookies
func (h *SessionHandler) UploadCookies(c *fiber.Ctx) error {
	userID := c.Params("userId")

	var req uploadCookiesRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(req.Cookies) == 0 {
		return badRequest(c, "cookies must be a non-empty array")
	}

	session, err := h.registry.Get(userID).UploadCookies(c.UserContext(), req.Cookies)
	if err != nil {
		return respondError(c, "session", err)
	}

	log.Printf("✅ [SESSION] User %s uploaded %d cookies", userID, len(session.Cookies))
	return c.JSON(fiber.Map{
		"success":     true,
		"cookieCount": len(session.Cookies),
		"uploadedAt":  session.UploadedAt.Format(time.RFC3339),
		"active":      session.Active,
	})
}

type healthResponse struct {
	Success bool `json:"success"`
	models.SessionHealth
}

// Health reports whether the stored session is usable
// GET /users/:userId/health
func (h *SessionHandler) Health(c *fiber.Ctx) error {
	health, err := h.registry.Peek(c.Params("userId")).Health(c.UserContext())
	if err != nil {
		return respondError(c, "session", err)
	}
	return c.JSON(healthResponse{Success: true, SessionHealth: health})
}

// Disconnect clears the user's session state
// POST /users/:userId/disconnect
func (h *SessionHandler) Disconnect(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if err := h.registry.Disconnect(c.UserContext(), userID); err != nil {
		return respondError(c, "session", err)
	}
	log.Printf("👋 [SESSION] User %s disconnected", userID)
	return c.JSON(fiber.Map{"success": true})
}
