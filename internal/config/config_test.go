package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE_BACKEND", "KEEPALIVE_INTERVAL", "SESSION_FRESHNESS", "EXECUTION_LOG_LIMIT", "WAIT_STRATEGY"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "8787" {
		t.Errorf("Port = %q, want 8787", cfg.Port)
	}
	if cfg.StoreBackend != "sql" {
		t.Errorf("StoreBackend = %q, want sql", cfg.StoreBackend)
	}
	if cfg.KeepAliveInterval != time.Hour {
		t.Errorf("KeepAliveInterval = %v, want 1h", cfg.KeepAliveInterval)
	}
	if cfg.SessionFreshness != 24*time.Hour {
		t.Errorf("SessionFreshness = %v, want 24h", cfg.SessionFreshness)
	}
	if cfg.ExecutionLogLimit != 50 {
		t.Errorf("ExecutionLogLimit = %d, want 50", cfg.ExecutionLogLimit)
	}
	if cfg.WaitStrategy != "fixed" {
		t.Errorf("WaitStrategy = %q, want fixed", cfg.WaitStrategy)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KEEPALIVE_INTERVAL", "90m")
	t.Setenv("SESSION_FRESHNESS", "3600")
	t.Setenv("EXECUTION_LOG_LIMIT", "10")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("ENVIRONMENT", "Production")

	cfg := Load()

	if cfg.KeepAliveInterval != 90*time.Minute {
		t.Errorf("KeepAliveInterval = %v, want 90m", cfg.KeepAliveInterval)
	}
	if cfg.SessionFreshness != time.Hour {
		t.Errorf("SessionFreshness = %v, want bare seconds to parse as 1h", cfg.SessionFreshness)
	}
	if cfg.ExecutionLogLimit != 10 {
		t.Errorf("ExecutionLogLimit = %d, want 10", cfg.ExecutionLogLimit)
	}
	if cfg.BrowserHeadless {
		t.Error("BrowserHeadless should be false")
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction should be true")
	}
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("EXECUTION_LOG_LIMIT", "-3")
	t.Setenv("KEEPALIVE_INTERVAL", "soon")

	cfg := Load()

	if cfg.ExecutionLogLimit != 50 {
		t.Errorf("ExecutionLogLimit = %d, want default 50", cfg.ExecutionLogLimit)
	}
	if cfg.KeepAliveInterval != time.Hour {
		t.Errorf("KeepAliveInterval = %v, want default 1h", cfg.KeepAliveInterval)
	}
}
