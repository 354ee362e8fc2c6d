package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"meetsync/internal/config"
	"meetsync/internal/database"
	"meetsync/internal/models"
)

func testSite() func() *config.SiteProfile {
	site := config.DefaultSiteProfile()
	return func() *config.SiteProfile { return site }
}

func newSQLBackend(t *testing.T) *SQLSessionBackend {
	t.Helper()
	db, err := database.New("sqlite://" + filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	return NewSQLSessionBackend(db)
}

func zoomCookies() []models.Cookie {
	return []models.Cookie{
		{Name: "_zm_ssid", Value: "aw1_c_abc", Domain: ".zoom.us", Path: "/", Secure: true, HTTPOnly: true},
		{Name: "zm_aid", Value: "xyz", Domain: "us05web.zoom.us", Path: "/"},
	}
}

// recordingArmer counts Arm and Cancel calls
type recordingArmer struct {
	mu      sync.Mutex
	armed   []string
	cancels []string
	next    map[string]time.Time
}

func (r *recordingArmer) Arm(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = append(r.armed, userID)
	if r.next == nil {
		r.next = make(map[string]time.Time)
	}
	r.next[userID] = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	return nil
}

func (r *recordingArmer) Cancel(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels = append(r.cancels, userID)
	delete(r.next, userID)
}

func (r *recordingArmer) NextRun(userID string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.next[userID]
	return at, ok
}

func (r *recordingArmer) armCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.armed)
}

func (r *recordingArmer) cancelCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}

// fakeScraper returns canned results and records what it was asked to do
type fakeScraper struct {
	mu sync.Mutex

	clips       []models.Clip
	meetings    []models.Meeting
	transcripts map[string]*models.TranscriptResult // by share URL
	jar         []models.Cookie
	err         error // returned by every browser call when set

	calls   []string
	running bool
	idle    time.Duration
	closed  int
}

func (f *fakeScraper) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeScraper) ExtractTranscript(ctx context.Context, cookies []models.Cookie, shareURL string) (*models.TranscriptResult, error) {
	if err := f.record("extract"); err != nil {
		return nil, err
	}
	if r, ok := f.transcripts[shareURL]; ok {
		return r, nil
	}
	return nil, models.NewError(models.KindNotFound, "no transcript", nil)
}

func (f *fakeScraper) ListMeetings(ctx context.Context, cookies []models.Cookie) ([]models.Meeting, error) {
	if err := f.record("meetings"); err != nil {
		return nil, err
	}
	return f.meetings, nil
}

func (f *fakeScraper) ListClips(ctx context.Context, cookies []models.Cookie, days int) ([]models.Clip, error) {
	if err := f.record("clips"); err != nil {
		return nil, err
	}
	return f.clips, nil
}

func (f *fakeScraper) CollectCookies(ctx context.Context, cookies []models.Cookie) ([]models.Cookie, error) {
	if err := f.record("cookies"); err != nil {
		return nil, err
	}
	return f.jar, nil
}

func (f *fakeScraper) IdleFor() time.Duration { return f.idle }
func (f *fakeScraper) Running() bool          { return f.running }

func (f *fakeScraper) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	f.running = false
}

func (f *fakeScraper) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type actorFixture struct {
	sessions *SessionService
	armer    *recordingArmer
	scraper  *fakeScraper
	registry *Registry
	actor    *Actor
}

func newActorFixture(t *testing.T, scraper *fakeScraper) *actorFixture {
	t.Helper()
	site := testSite()
	armer := &recordingArmer{}
	sessions := NewSessionService(newSQLBackend(t), nil, site, 5)
	sessions.SetArmer(armer)

	registry := NewRegistry(sessions, nil, func(string) Scraper { return scraper }, nil, site, RegistryConfig{
		OperationTimeout: 10 * time.Second,
	})
	registry.timers = armer
	actor := registry.Get("user-1")

	return &actorFixture{sessions: sessions, armer: armer, scraper: scraper, registry: registry, actor: actor}
}
