package preflight

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"time"

	"meetsync/internal/config"
)

// CheckResult represents the result of a preflight check
type CheckResult struct {
	Name    string
	Status  string // "pass", "fail", "warning"
	Message string
	Error   error
}

// Pinger is the session store's connectivity probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// chromeCandidates are looked up on PATH when CHROME_PATH is unset
var chromeCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
}

// Checker performs pre-flight checks before server starts
type Checker struct {
	store    Pinger
	cfg      *config.Config
	lookPath func(string) (string, error)
}

// NewChecker creates a new preflight checker
func NewChecker(store Pinger, cfg *config.Config) *Checker {
	return &Checker{
		store:    store,
		cfg:      cfg,
		lookPath: exec.LookPath,
	}
}

// RunAll runs all preflight checks and returns results
func (c *Checker) RunAll() []CheckResult {
	log.Println("🔍 Running pre-flight checks...")

	results := []CheckResult{
		c.checkStoreConnection(),
		c.checkBrowserBinary(),
		c.checkEncryptionKey(),
		c.checkPlatformAuth(),
	}

	passed, failed, warnings := 0, 0, 0
	for _, result := range results {
		switch result.Status {
		case "pass":
			log.Printf("   ✅ %s: %s", result.Name, result.Message)
			passed++
		case "fail":
			log.Printf("   ❌ %s: %s", result.Name, result.Message)
			if result.Error != nil {
				log.Printf("      Error: %v", result.Error)
			}
			failed++
		case "warning":
			log.Printf("   ⚠️  %s: %s", result.Name, result.Message)
			warnings++
		}
	}

	log.Printf("📊 Pre-flight summary: %d passed, %d failed, %d warnings", passed, failed, warnings)
	return results
}

// HasFailures returns true if any check failed
func HasFailures(results []CheckResult) bool {
	for _, result := range results {
		if result.Status == "fail" {
			return true
		}
	}
	return false
}

func (c *Checker) checkStoreConnection() CheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.store.Ping(ctx); err != nil {
		return CheckResult{
			Name:    "Session Store",
			Status:  "fail",
			Message: fmt.Sprintf("Cannot reach %s session store", c.cfg.StoreBackend),
			Error:   err,
		}
	}
	return CheckResult{
		Name:    "Session Store",
		Status:  "pass",
		Message: fmt.Sprintf("%s session store reachable", c.cfg.StoreBackend),
	}
}

// checkBrowserBinary only warns: chromedp searches a few more locations on its own
func (c *Checker) checkBrowserBinary() CheckResult {
	if c.cfg.ChromePath != "" {
		if _, err := c.lookPath(c.cfg.ChromePath); err != nil {
			return CheckResult{
				Name:    "Browser Binary",
				Status:  "fail",
				Message: fmt.Sprintf("CHROME_PATH %s is not executable", c.cfg.ChromePath),
				Error:   err,
			}
		}
		return CheckResult{Name: "Browser Binary", Status: "pass", Message: c.cfg.ChromePath}
	}

	for _, name := range chromeCandidates {
		if path, err := c.lookPath(name); err == nil {
			return CheckResult{Name: "Browser Binary", Status: "pass", Message: path}
		}
	}
	return CheckResult{
		Name:    "Browser Binary",
		Status:  "warning",
		Message: "No Chrome or Chromium found on PATH; set CHROME_PATH",
	}
}

func (c *Checker) checkEncryptionKey() CheckResult {
	if c.cfg.EncryptionMasterKey == "" {
		status := "warning"
		if c.cfg.IsProduction() {
			status = "fail"
		}
		return CheckResult{
			Name:    "Cookie Encryption",
			Status:  status,
			Message: "ENCRYPTION_MASTER_KEY not set, cookie jars are stored unencrypted",
		}
	}
	return CheckResult{Name: "Cookie Encryption", Status: "pass", Message: "Cookie jars encrypted at rest"}
}

func (c *Checker) checkPlatformAuth() CheckResult {
	if c.cfg.PlatformJWTSecret == "" {
		return CheckResult{
			Name:    "Platform Auth",
			Status:  "warning",
			Message: "PLATFORM_JWT_SECRET not set, /users routes are unauthenticated",
		}
	}
	return CheckResult{Name: "Platform Auth", Status: "pass", Message: "Bearer tokens required on /users routes"}
}
