package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultSiteProfileLoginURLs(t *testing.T) {
	p := DefaultSiteProfile()

	tests := []struct {
		url  string
		want bool
	}{
		{"https://zoom.us/signin", true},
		{"https://zoom.us/signin#/login", true},
		{"https://zoom.us/login?redirect=/recording", true},
		{"https://zoom.us/recording", false},
		{"https://zoom.us/profile", false},
		{"https://zoom.us/rec/play/abc", false},
	}

	for _, tt := range tests {
		if got := p.IsLoginURL(tt.url); got != tt.want {
			t.Errorf("IsLoginURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestTranscriptURL(t *testing.T) {
	p := DefaultSiteProfile()

	got := p.TranscriptURL("123 456 7890")
	want := "https://zoom.us/rec/play/vtt?type=transcript&meetingId=123 456 7890"
	if got != want {
		t.Errorf("TranscriptURL = %q, want %q", got, want)
	}
	if p.TranscriptURL("") != "" {
		t.Error("empty meeting id should produce an empty URL")
	}
}

func TestLoadSiteProfileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	content := `
domain: .Example.com
login_patterns:
  - "/auth/start"
clips_url: https://example.com/library
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	p, err := LoadSiteProfile(path)
	if err != nil {
		t.Fatalf("LoadSiteProfile failed: %v", err)
	}

	if p.Domain != "example.com" {
		t.Errorf("Domain = %q, want example.com", p.Domain)
	}
	if p.ClipsURL != "https://example.com/library" {
		t.Errorf("ClipsURL = %q", p.ClipsURL)
	}
	if p.MeetingsURL != DefaultSiteProfile().MeetingsURL {
		t.Errorf("MeetingsURL should keep its default, got %q", p.MeetingsURL)
	}
	if !p.IsLoginURL("https://example.com/auth/start?x=1") {
		t.Error("custom login pattern not applied")
	}
	if p.IsLoginURL("https://example.com/signin") {
		t.Error("default login patterns should be replaced")
	}
}

func TestLoadSiteProfileRejectsBadPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	if err := os.WriteFile(path, []byte("login_patterns: [\"(unclosed\"]\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadSiteProfile(path); err == nil {
		t.Fatal("expected an error for an invalid regular expression")
	}
}

func TestSiteStoreWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.yaml")
	if err := os.WriteFile(path, []byte("domain: zoom.us\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	store := NewSiteStore(DefaultSiteProfile())
	stop := make(chan struct{})
	defer close(stop)
	go store.Watch(path, stop)

	// Give the watcher time to register the directory
	time.Sleep(200 * time.Millisecond)

	if err := os.WriteFile(path, []byte("domain: example.org\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if store.Current().Domain == "example.org" {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("profile not reloaded, domain still %q", store.Current().Domain)
}
