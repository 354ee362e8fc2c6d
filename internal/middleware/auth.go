package middleware

import (
	"log"
	"os"
	"regexp"

	"github.com/gofiber/fiber/v2"

	"meetsync/pkg/auth"
)

var userIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateUserID rejects user namespaces outside [a-zA-Z0-9_-]+
func ValidateUserID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Params("userId")
		if !userIDPattern.MatchString(userID) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid user id",
			})
		}
		c.Locals("user_id", userID)
		return c.Next()
	}
}

// PlatformAuthMiddleware verifies platform bearer tokens.
// With no verifier configured, requests pass through outside production.
func PlatformAuthMiddleware(jwtAuth *auth.PlatformJWTAuth) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if jwtAuth == nil {
			// CRITICAL: Never allow auth bypass in production
			if os.Getenv("ENVIRONMENT") == "production" {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"success": false,
					"error":   "Authentication service unavailable",
				})
			}
			return c.Next()
		}

		token, err := auth.ExtractToken(c.Get("Authorization"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Missing or invalid authorization token",
			})
		}

		caller, err := jwtAuth.VerifyToken(token)
		if err != nil {
			log.Printf("❌ [AUTH] Token rejected: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid or expired token",
			})
		}

		userID := c.Params("userId")
		if !caller.CanActFor(userID) {
			log.Printf("🚫 [AUTH] Caller %s may not act for user %s", caller.Subject, userID)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "Token does not grant access to this user",
			})
		}

		c.Locals("caller_role", caller.Role)
		return c.Next()
	}
}
