package preflight

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"meetsync/internal/config"
)

type fakeStore struct {
	err error
}

func (f fakeStore) Ping(ctx context.Context) error { return f.err }

func TestCheckStoreConnection(t *testing.T) {
	cfg := &config.Config{StoreBackend: "sql"}

	if r := NewChecker(fakeStore{}, cfg).checkStoreConnection(); r.Status != "pass" {
		t.Errorf("Expected pass, got %s (%s)", r.Status, r.Message)
	}

	r := NewChecker(fakeStore{err: errors.New("connection refused")}, cfg).checkStoreConnection()
	if r.Status != "fail" || r.Error == nil {
		t.Errorf("Expected fail with error, got %+v", r)
	}
}

func TestCheckBrowserBinary(t *testing.T) {
	found := func(name string) (string, error) { return "/usr/bin/" + name, nil }
	missing := func(string) (string, error) { return "", exec.ErrNotFound }

	tests := []struct {
		name       string
		chromePath string
		lookPath   func(string) (string, error)
		want       string
	}{
		{"explicit path found", "/opt/chrome", found, "pass"},
		{"explicit path missing", "/opt/chrome", missing, "fail"},
		{"discovered on PATH", "", found, "pass"},
		{"nothing installed", "", missing, "warning"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(fakeStore{}, &config.Config{ChromePath: tt.chromePath})
			c.lookPath = tt.lookPath
			if r := c.checkBrowserBinary(); r.Status != tt.want {
				t.Errorf("Expected %s, got %s (%s)", tt.want, r.Status, r.Message)
			}
		})
	}
}

func TestCheckEncryptionKey(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{"key set", config.Config{EncryptionMasterKey: "ab"}, "pass"},
		{"missing in development", config.Config{Environment: "development"}, "warning"},
		{"missing in production", config.Config{Environment: "production"}, "fail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			if r := NewChecker(fakeStore{}, &cfg).checkEncryptionKey(); r.Status != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, r.Status)
			}
		})
	}
}

func TestHasFailures(t *testing.T) {
	tests := []struct {
		name    string
		results []CheckResult
		want    bool
	}{
		{"all pass", []CheckResult{{Status: "pass"}, {Status: "pass"}}, false},
		{"warnings only", []CheckResult{{Status: "pass"}, {Status: "warning"}}, false},
		{"one failure", []CheckResult{{Status: "pass"}, {Status: "fail"}}, true},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasFailures(tt.results); got != tt.want {
				t.Errorf("HasFailures() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunAll(t *testing.T) {
	c := NewChecker(fakeStore{}, &config.Config{StoreBackend: "sql", EncryptionMasterKey: "ab", PlatformJWTSecret: "s"})
	c.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }

	results := c.RunAll()
	if len(results) != 4 {
		t.Fatalf("Expected 4 checks, got %d", len(results))
	}
	if HasFailures(results) {
		t.Errorf("Expected no failures, got %+v", results)
	}
}
