package handlers

import (
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"meetsync/internal/models"
)

// errorResponse is the shape of every failed response
type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	NeedsAuth bool   `json:"needsAuth,omitempty"`
}

// respondError maps a service error to its status code and the shared error shape
func respondError(c *fiber.Ctx, operation string, err error) error {
	kind := models.KindOf(err)
	status := kind.HTTPStatus()
	if status >= fiber.StatusInternalServerError {
		log.Printf("❌ [%s] User %s: %v", strings.ToUpper(operation), c.Params("userId"), err)
	}
	return c.Status(status).JSON(errorResponse{
		Success:   false,
		Error:     err.Error(),
		NeedsAuth: kind.NeedsAuth(),
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Success: false, Error: message})
}

// queryInt parses an optional integer query parameter
func queryInt(c *fiber.Ctx, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
