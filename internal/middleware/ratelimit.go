package middleware

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Global limits (per IP)
	GlobalMax        int
	GlobalExpiration time.Duration

	// Per-user limits, keyed by the :userId route parameter
	UserMax        int
	UserExpiration time.Duration

	// Browser-heavy operations (transcript, sync) per user
	HeavyMax        int
	HeavyExpiration time.Duration
}

// DefaultRateLimitConfig returns production-safe defaults
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		// Global: 300/min per IP; the platform calls from few addresses
		GlobalMax:        300,
		GlobalExpiration: 1 * time.Minute,

		UserMax:        30,
		UserExpiration: 1 * time.Minute,

		// Each heavy call drives a browser for seconds to minutes
		HeavyMax:        6,
		HeavyExpiration: 1 * time.Minute,
	}
}

// LoadRateLimitConfig loads config from environment variables with defaults.
// userMax comes from the main configuration.
func LoadRateLimitConfig(userMax int) *RateLimitConfig {
	config := DefaultRateLimitConfig()
	if userMax > 0 {
		config.UserMax = userMax
	}

	if v := os.Getenv("RATE_LIMIT_GLOBAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.GlobalMax = n
		}
	}

	if v := os.Getenv("RATE_LIMIT_HEAVY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.HeavyMax = n
		}
	}

	// Development mode: more lenient limits
	if os.Getenv("ENVIRONMENT") == "development" {
		config.GlobalMax = 1000
		config.HeavyMax = 60
		log.Println("⚠️  [RATE-LIMIT] Development mode: using relaxed rate limits")
	}

	return config
}

// GlobalRateLimiter creates a rate limiter for all requests
func GlobalRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.GlobalMax,
		Expiration: config.GlobalExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "global:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] Global limit reached for IP: %s", c.IP())
			return tooManyRequests(c, config.GlobalExpiration)
		},
	})
}

// UserRateLimiter limits requests per user namespace
func UserRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.UserMax,
		Expiration: config.UserExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "user:" + c.Params("userId")
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] User limit reached for %s on %s", c.Params("userId"), c.Path())
			return tooManyRequests(c, config.UserExpiration)
		},
	})
}

// HeavyOperationRateLimiter limits browser-driving operations per user
func HeavyOperationRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.HeavyMax,
		Expiration: config.HeavyExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "heavy:" + c.Params("userId")
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] Heavy operation limit reached for %s on %s", c.Params("userId"), c.Path())
			return tooManyRequests(c, config.HeavyExpiration)
		},
	})
}

func tooManyRequests(c *fiber.Ctx, window time.Duration) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"success":     false,
		"error":       "Too many requests. Please slow down.",
		"retry_after": int(window.Seconds()),
	})
}
