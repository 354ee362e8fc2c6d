package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"meetsync/pkg/auth"
)

func newTestApp(handlers ...fiber.Handler) *fiber.App {
	app := fiber.New()
	chain := append(handlers, func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/users/:userId/health", chain...)
	return app
}

func TestValidateUserID(t *testing.T) {
	app := newTestApp(ValidateUserID())

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"alphanumeric", "/users/abc123/health", fiber.StatusOK},
		{"dash and underscore", "/users/team_a-1/health", fiber.StatusOK},
		{"dot", "/users/a.b/health", fiber.StatusBadRequest},
		{"encoded slash", "/users/a%2Fb/health", fiber.StatusBadRequest},
		{"at sign", "/users/a@b/health", fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			if resp.StatusCode != tt.status {
				t.Errorf("GET %s = %d, want %d", tt.path, resp.StatusCode, tt.status)
			}
		})
	}
}

func TestPlatformAuthMiddleware(t *testing.T) {
	jwtAuth, err := auth.NewPlatformJWTAuth("secret", time.Minute)
	if err != nil {
		t.Fatalf("NewPlatformJWTAuth failed: %v", err)
	}
	app := newTestApp(PlatformAuthMiddleware(jwtAuth))

	own, _ := jwtAuth.IssueToken("user-1", "user")
	platform, _ := jwtAuth.IssueToken("orchestrator", auth.RolePlatform)

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"no token", "/users/user-1/health", "", fiber.StatusUnauthorized},
		{"bad token", "/users/user-1/health", "Bearer nope", fiber.StatusUnauthorized},
		{"own user", "/users/user-1/health", "Bearer " + own, fiber.StatusOK},
		{"other user", "/users/user-2/health", "Bearer " + own, fiber.StatusForbidden},
		{"platform token", "/users/user-2/health", "Bearer " + platform, fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			if resp.StatusCode != tt.status {
				t.Errorf("%s: status %d, want %d", tt.name, resp.StatusCode, tt.status)
			}
		})
	}
}

func TestPlatformAuthMiddleware_Disabled(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	app := newTestApp(PlatformAuthMiddleware(nil))

	resp, err := app.Test(httptest.NewRequest("GET", "/users/user-1/health", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected pass-through without a verifier, got %d", resp.StatusCode)
	}

	t.Setenv("ENVIRONMENT", "production")
	resp, _ = app.Test(httptest.NewRequest("GET", "/users/user-1/health", nil))
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("Expected 503 in production without a verifier, got %d", resp.StatusCode)
	}
}

func TestUserRateLimiter(t *testing.T) {
	config := &RateLimitConfig{UserMax: 2, UserExpiration: time.Minute}
	app := newTestApp(UserRateLimiter(config))

	for i := 0; i < 2; i++ {
		resp, _ := app.Test(httptest.NewRequest("GET", "/users/user-1/health", nil))
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("Request %d: status %d", i, resp.StatusCode)
		}
	}
	resp, _ := app.Test(httptest.NewRequest("GET", "/users/user-1/health", nil))
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Errorf("Expected 429 after the limit, got %d", resp.StatusCode)
	}

	// Other users have their own budget
	resp, _ = app.Test(httptest.NewRequest("GET", "/users/user-2/health", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected a separate budget for user-2, got %d", resp.StatusCode)
	}
}
