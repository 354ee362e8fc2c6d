package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"meetsync/internal/models"
)

func TestActor_Health(t *testing.T) {
	ctx := context.Background()
	fx := newActorFixture(t, &fakeScraper{})

	health, err := fx.actor.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Status != models.HealthNoCookies {
		t.Errorf("Expected no_cookies, got %s", health.Status)
	}

	if _, err := fx.actor.UploadCookies(ctx, zoomCookies()); err != nil {
		t.Fatalf("UploadCookies failed: %v", err)
	}
	health, _ = fx.actor.Health(ctx)
	if health.Status != models.HealthReady {
		t.Errorf("Expected ready, got %s", health.Status)
	}
	if health.CookieCount != 2 {
		t.Errorf("Expected 2 cookies, got %d", health.CookieCount)
	}
	if health.NextKeepAliveAt == nil {
		t.Error("Expected next keep-alive time to be reported")
	}
	if health.FreshnessWindowHours != 24 {
		t.Errorf("Expected 24h window, got %v", health.FreshnessWindowHours)
	}

	if err := fx.sessions.MarkInactive(ctx, "user-1"); err != nil {
		t.Fatalf("MarkInactive failed: %v", err)
	}
	health, _ = fx.actor.Health(ctx)
	if health.Status != models.HealthCookiesExpired {
		t.Errorf("Expected cookies_expired, got %s", health.Status)
	}
}

// A transcript request without cookies must fail with needs-auth and leave the execution log alone
func TestActor_ExtractTranscript_NoCredentials(t *testing.T) {
	ctx := context.Background()
	fx := newActorFixture(t, &fakeScraper{})

	_, err := fx.actor.ExtractTranscript(ctx, "https://zoom.us/rec/share/abc")
	if !errors.Is(err, models.ErrNoCredentials) {
		t.Fatalf("Expected NoCredentials, got %v", err)
	}
	if fx.scraper.callCount() != 0 {
		t.Error("Expected no browser work without cookies")
	}
	records, _ := fx.sessions.ListExecutions(ctx, "user-1")
	if len(records) != 0 {
		t.Errorf("Expected no execution records, got %d", len(records))
	}
}

func TestActor_ExtractTranscript_RejectsBadURLs(t *testing.T) {
	ctx := context.Background()
	fx := newActorFixture(t, &fakeScraper{})
	if _, err := fx.actor.UploadCookies(ctx, zoomCookies()); err != nil {
		t.Fatalf("UploadCookies failed: %v", err)
	}

	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"relative", "/rec/share/abc"},
		{"ftp scheme", "ftp://zoom.us/rec/share/abc"},
		{"other site", "https://example.com/rec/share/abc"},
		{"suffix trick", "https://notzoom.us/rec/share/abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.actor.ExtractTranscript(ctx, tt.url)
			if models.KindOf(err) != models.KindMalformedInput {
				t.Errorf("Expected MalformedInput for %q, got %v", tt.url, err)
			}
		})
	}
	if fx.scraper.callCount() != 0 {
		t.Error("Expected no browser work for invalid URLs")
	}
}

func TestActor_ExtractTranscript(t *testing.T) {
	ctx := context.Background()
	shareURL := "https://us05web.zoom.us/rec/share/abc"
	fx := newActorFixture(t, &fakeScraper{
		transcripts: map[string]*models.TranscriptResult{
			shareURL: {Transcript: "Ford: hi", SegmentCount: 1, Method: models.MethodStatic},
		},
	})
	if _, err := fx.actor.UploadCookies(ctx, zoomCookies()); err != nil {
		t.Fatalf("UploadCookies failed: %v", err)
	}

	result, err := fx.actor.ExtractTranscript(ctx, shareURL)
	if err != nil {
		t.Fatalf("ExtractTranscript failed: %v", err)
	}
	if result.SegmentCount != 1 {
		t.Errorf("Expected 1 segment, got %d", result.SegmentCount)
	}
}

func TestActor_SessionExpiredMarksInactive(t *testing.T) {
	ctx := context.Background()
	fx := newActorFixture(t, &fakeScraper{err: models.ErrSessionExpired})
	if _, err := fx.actor.UploadCookies(ctx, zoomCookies()); err != nil {
		t.Fatalf("UploadCookies failed: %v", err)
	}

	_, err := fx.actor.ListMeetings(ctx)
	if !errors.Is(err, models.ErrSessionExpired) {
		t.Fatalf("Expected SessionExpired, got %v", err)
	}

	session, _ := fx.sessions.GetSession(ctx, "user-1")
	if session.Active {
		t.Error("Expected session to be marked inactive")
	}
	if fx.armer.cancelCount() != 1 {
		t.Errorf("Expected keep-alive cancelled, got %d cancels", fx.armer.cancelCount())
	}

	// Later calls fail fast without touching the browser
	calls := fx.scraper.callCount()
	if _, err := fx.actor.ListClips(ctx, 7); !errors.Is(err, models.ErrSessionExpired) {
		t.Errorf("Expected SessionExpired, got %v", err)
	}
	if fx.scraper.callCount() != calls {
		t.Error("Expected no browser work for an inactive session")
	}
}

func TestActor_Sync_EmptyListings(t *testing.T) {
	ctx := context.Background()
	fx := newActorFixture(t, &fakeScraper{})
	if _, err := fx.actor.UploadCookies(ctx, zoomCookies()); err != nil {
		t.Fatalf("UploadCookies failed: %v", err)
	}

	result, err := fx.actor.Sync(ctx, 7, false)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(result.Clips) != 0 || len(result.Meetings) != 0 {
		t.Errorf("Expected empty listings, got %d clips and %d meetings", len(result.Clips), len(result.Meetings))
	}
	if !result.Execution.Success || result.Execution.ClipsCount != 0 || result.Execution.MeetingsCount != 0 {
		t.Errorf("Unexpected execution: %+v", result.Execution)
	}

	records, err := fx.sessions.ListExecutions(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListExecutions failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected exactly one execution record, got %d", len(records))
	}
	if records[0].ID != result.Execution.ID || !records[0].Success {
		t.Errorf("Unexpected stored record: %+v", records[0])
	}
}

func TestActor_Sync_NoCredentials(t *testing.T) {
	ctx := context.Background()
	fx := newActorFixture(t, &fakeScraper{})

	if _, err := fx.actor.Sync(ctx, 7, false); !errors.Is(err, models.ErrNoCredentials) {
		t.Fatalf("Expected NoCredentials, got %v", err)
	}
	records, _ := fx.sessions.ListExecutions(ctx, "user-1")
	if len(records) != 0 {
		t.Errorf("Expected no execution records, got %d", len(records))
	}
}

func TestActor_Sync_FailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	fx := newActorFixture(t, &fakeScraper{err: models.NewError(models.KindTransient, "navigation timed out", nil)})
	if _, err := fx.actor.UploadCookies(ctx, zoomCookies()); err != nil {
		t.Fatalf("UploadCookies failed: %v", err)
	}

	if _, err := fx.actor.Sync(ctx, 7, false); models.KindOf(err) != models.KindTransient {
		t.Fatalf("Expected Transient, got %v", err)
	}

	records, _ := fx.sessions.ListExecutions(ctx, "user-1")
	if len(records) != 1 {
		t.Fatalf("Expected one execution record, got %d", len(records))
	}
	if records[0].Success || records[0].Error == "" {
		t.Errorf("Expected failed record with error, got %+v", records[0])
	}
	session, _ := fx.sessions.GetSession(ctx, "user-1")
	if !session.Active {
		t.Error("A transient failure must not deactivate the session")
	}
}

func TestActor_Sync_WithTranscripts(t *testing.T) {
	ctx := context.Background()
	fx := newActorFixture(t, &fakeScraper{
		clips: []models.Clip{
			{ID: "c1", Title: "Standup", ShareURL: "https://zoom.us/clips/share/c1"},
			{ID: "c2", Title: "Silent", ShareURL: "https://zoom.us/clips/share/c2"},
		},
		meetings: []models.Meeting{{ID: "123", Title: "Planning"}},
		transcripts: map[string]*models.TranscriptResult{
			"https://zoom.us/clips/share/c1": {Transcript: "Ford: hello", SegmentCount: 1},
		},
	})
	if _, err := fx.actor.UploadCookies(ctx, zoomCookies()); err != nil {
		t.Fatalf("UploadCookies failed: %v", err)
	}

	result, err := fx.actor.Sync(ctx, 30, true)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(result.Transcripts) != 1 {
		t.Fatalf("Expected 1 transcript, got %d", len(result.Transcripts))
	}
	if _, ok := result.Transcripts["c1"]; !ok {
		t.Error("Expected transcript for clip c1")
	}
	if result.Execution.ClipsCount != 2 || result.Execution.MeetingsCount != 1 || result.Execution.TranscriptsExtracted != 1 {
		t.Errorf("Unexpected counts: %+v", result.Execution)
	}
}

func TestActor_KeepAlive(t *testing.T) {
	base := zoomCookies()
	rotated := zoomCookies()
	rotated[0].Value = "aw1_c_rotated"

	tests := []struct {
		name       string
		upload     bool
		scraper    *fakeScraper
		want       KeepAliveOutcome
		wantActive bool
		wantArms   int
	}{
		{"no session", false, &fakeScraper{}, KeepAliveSkipped, false, 0},
		{"unchanged jar", true, &fakeScraper{jar: base}, KeepAliveUnchanged, true, 1},
		{"rotated cookie", true, &fakeScraper{jar: rotated}, KeepAliveRefreshed, true, 2},
		{"sign-in redirect", true, &fakeScraper{err: models.ErrSessionExpired}, KeepAliveExpired, false, 1},
		{"navigation failure", true, &fakeScraper{err: models.ErrTransient}, KeepAliveTransient, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			fx := newActorFixture(t, tt.scraper)
			if tt.upload {
				if _, err := fx.actor.UploadCookies(ctx, base); err != nil {
					t.Fatalf("UploadCookies failed: %v", err)
				}
			}

			if got := fx.registry.KeepAlive(ctx, "user-1"); got != tt.want {
				t.Errorf("KeepAlive = %s, want %s", got, tt.want)
			}
			if fx.armer.armCount() != tt.wantArms {
				t.Errorf("Expected %d arms, got %d", tt.wantArms, fx.armer.armCount())
			}

			session, _ := fx.sessions.GetSession(ctx, "user-1")
			if tt.upload && session.Active != tt.wantActive {
				t.Errorf("Active = %v, want %v", session.Active, tt.wantActive)
			}
			if tt.want == KeepAliveRefreshed && session.Cookies[0].Value != "aw1_c_rotated" {
				t.Errorf("Expected rotated cookie to be stored, got %q", session.Cookies[0].Value)
			}
			if tt.want == KeepAliveUnchanged && session.LastKeepAliveAt == nil {
				t.Error("Expected lastKeepAliveAt to be recorded")
			}
		})
	}
}

func TestActor_MeetingTranscript(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("WEBVTT\n\n1\n00:00:01.000 --> 00:00:03.000\nFord: Hello there.\n\n2\n00:00:04.000 --> 00:00:06.000\nDanny: Hi Ford.\n"))
	}))
	defer server.Close()

	fx := newActorFixture(t, &fakeScraper{
		meetings: []models.Meeting{
			{ID: "111", Title: "Kickoff", TranscriptURL: server.URL + "/rec/play/vtt?meetingId=111"},
		},
	})
	fx.actor.captions = NewCaptionClient(testSite(), 5*time.Second)
	if _, err := fx.actor.UploadCookies(ctx, zoomCookies()); err != nil {
		t.Fatalf("UploadCookies failed: %v", err)
	}

	result, err := fx.actor.MeetingTranscript(ctx, 0)
	if err != nil {
		t.Fatalf("MeetingTranscript failed: %v", err)
	}
	if result.Meeting.ID != "111" {
		t.Errorf("Expected meeting 111, got %s", result.Meeting.ID)
	}
	if result.Transcript.SegmentCount != 2 || result.Transcript.Method != models.MethodVTT {
		t.Errorf("Unexpected transcript: %+v", result.Transcript)
	}

	// The listing is cached, so a second lookup does not list again
	calls := fx.scraper.callCount()
	if _, err := fx.actor.MeetingTranscript(ctx, 5); models.KindOf(err) != models.KindNotFound {
		t.Errorf("Expected NotFound for index 5, got %v", err)
	}
	if fx.scraper.callCount() != calls {
		t.Error("Expected cached meetings to be reused")
	}

	if _, err := fx.actor.MeetingTranscript(ctx, -1); models.KindOf(err) != models.KindMalformedInput {
		t.Errorf("Expected MalformedInput for negative index, got %v", err)
	}
}

func TestActor_Disconnect(t *testing.T) {
	ctx := context.Background()
	fx := newActorFixture(t, &fakeScraper{running: true})
	if _, err := fx.actor.UploadCookies(ctx, zoomCookies()); err != nil {
		t.Fatalf("UploadCookies failed: %v", err)
	}

	if err := fx.actor.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	health, _ := fx.actor.Health(ctx)
	if health.Status != models.HealthNoCookies {
		t.Errorf("Expected no_cookies after disconnect, got %s", health.Status)
	}
	if fx.scraper.closed != 1 {
		t.Errorf("Expected browser closed once, got %d", fx.scraper.closed)
	}
	if fx.armer.cancelCount() != 1 {
		t.Errorf("Expected keep-alive cancelled, got %d", fx.armer.cancelCount())
	}
}

func TestActor_DashboardAndAnalytics(t *testing.T) {
	ctx := context.Background()
	fx := newActorFixture(t, &fakeScraper{})
	if _, err := fx.actor.UploadCookies(ctx, zoomCookies()); err != nil {
		t.Fatalf("UploadCookies failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := fx.actor.Sync(ctx, 7, false); err != nil {
			t.Fatalf("Sync failed: %v", err)
		}
	}

	dashboard, err := fx.actor.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if dashboard.Session.Status != models.HealthReady {
		t.Errorf("Expected ready session, got %s", dashboard.Session.Status)
	}
	if len(dashboard.Recent) != 3 || dashboard.Summary.TotalRuns != 3 {
		t.Errorf("Unexpected dashboard: %d recent, %d runs", len(dashboard.Recent), dashboard.Summary.TotalRuns)
	}

	analytics, err := fx.actor.Analytics(ctx)
	if err != nil {
		t.Fatalf("Analytics failed: %v", err)
	}
	if analytics.Summary.SuccessRate != 1 || len(analytics.Summary.Daily) == 0 {
		t.Errorf("Unexpected analytics summary: %+v", analytics.Summary)
	}
}

func TestRegistry_ReapIdle(t *testing.T) {
	idle := &fakeScraper{running: true, idle: 20 * time.Minute}
	busy := &fakeScraper{running: true, idle: time.Minute}
	scrapers := map[string]*fakeScraper{"idle": idle, "busy": busy}

	registry := NewRegistry(NewSessionService(newSQLBackend(t), nil, testSite(), 50), nil,
		func(userID string) Scraper { return scrapers[userID] }, nil, testSite(), RegistryConfig{})
	registry.Get("idle")
	registry.Get("busy")

	if live := registry.LiveBrowsers(); live != 2 {
		t.Fatalf("Expected 2 live browsers, got %d", live)
	}
	if closed := registry.ReapIdle(15 * time.Minute); closed != 1 {
		t.Errorf("Expected 1 browser reaped, got %d", closed)
	}
	if idle.closed != 1 || busy.closed != 0 {
		t.Errorf("Wrong browser reaped: idle closed %d, busy closed %d", idle.closed, busy.closed)
	}
	if registry.Get("idle") != registry.Get("idle") {
		t.Error("Expected the same actor for the same user")
	}
}

func TestRegistry_ReadsDoNotRegisterActors(t *testing.T) {
	ctx := context.Background()
	fx := newActorFixture(t, &fakeScraper{})
	before := fx.registry.Actors()

	for i := 0; i < 50; i++ {
		userID := fmt.Sprintf("reader-%d", i)
		if _, err := fx.registry.Peek(userID).Health(ctx); err != nil {
			t.Fatalf("Health failed: %v", err)
		}
		if _, err := fx.registry.Peek(userID).Dashboard(ctx); err != nil {
			t.Fatalf("Dashboard failed: %v", err)
		}
		if _, err := fx.registry.Peek(userID).Analytics(ctx); err != nil {
			t.Fatalf("Analytics failed: %v", err)
		}
	}

	if got := fx.registry.Actors(); got != before {
		t.Errorf("Expected %d actors after reads, got %d", before, got)
	}
	if fx.registry.Peek("user-1") != fx.actor {
		t.Error("Expected Peek to return the registered actor")
	}
}

func TestRegistry_DisconnectDropsActor(t *testing.T) {
	ctx := context.Background()
	fx := newActorFixture(t, &fakeScraper{running: true})
	if _, err := fx.actor.UploadCookies(ctx, zoomCookies()); err != nil {
		t.Fatalf("UploadCookies failed: %v", err)
	}

	if err := fx.registry.Disconnect(ctx, "user-1"); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if got := fx.registry.Actors(); got != 0 {
		t.Errorf("Expected no actors after disconnect, got %d", got)
	}
	if fx.scraper.closed != 1 {
		t.Errorf("Expected browser closed once, got %d", fx.scraper.closed)
	}
	if fx.registry.Get("user-1") == fx.actor {
		t.Error("Expected a new actor after disconnect")
	}
}

func TestRegistry_ReapIdleDropsUnusedActors(t *testing.T) {
	scrapers := map[string]*fakeScraper{
		"stale":   {},
		"fresh":   {},
		"browser": {running: true, idle: time.Minute},
	}
	registry := NewRegistry(NewSessionService(newSQLBackend(t), nil, testSite(), 50), nil,
		func(userID string) Scraper { return scrapers[userID] }, nil, testSite(), RegistryConfig{})

	later := func() time.Time { return time.Now().Add(time.Hour) }
	registry.Get("stale").now = later
	registry.Get("fresh")
	registry.Get("browser").now = later

	if closed := registry.ReapIdle(15 * time.Minute); closed != 0 {
		t.Errorf("Expected no browsers reaped, got %d", closed)
	}
	if got := registry.Actors(); got != 2 {
		t.Fatalf("Expected 2 actors left, got %d", got)
	}
	if registry.Peek("stale").UserID() != "stale" || registry.Actors() != 2 {
		t.Error("Expected the stale actor to stay dropped")
	}
}

func TestActor_RetiredActorClosesBrowserAfterUse(t *testing.T) {
	ctx := context.Background()
	fx := newActorFixture(t, &fakeScraper{running: true})
	if _, err := fx.actor.UploadCookies(ctx, zoomCookies()); err != nil {
		t.Fatalf("UploadCookies failed: %v", err)
	}

	// A caller still holding the actor when it is dropped
	fx.actor.now = func() time.Time { return time.Now().Add(time.Hour) }
	fx.scraper.running = false
	fx.registry.ReapIdle(15 * time.Minute)
	if fx.registry.Actors() != 0 {
		t.Fatalf("Expected the actor dropped, got %d actors", fx.registry.Actors())
	}

	fx.scraper.running = true
	if _, err := fx.actor.ListClips(ctx, 7); err != nil {
		t.Fatalf("ListClips failed: %v", err)
	}
	if fx.scraper.closed != 1 {
		t.Errorf("Expected the dropped actor to close its browser, got %d closes", fx.scraper.closed)
	}
}

func TestMergeCookies(t *testing.T) {
	current := []models.Cookie{
		{Name: "a", Value: "1", Domain: ".zoom.us", Path: "/"},
		{Name: "b", Value: "2", Domain: "us05web.zoom.us", Path: "/"},
	}
	fresh := []models.Cookie{
		{Name: "a", Value: "9", Domain: "zoom.us", Path: "/"},
		{Name: "c", Value: "3", Domain: "zoom.us", Path: "/"},
	}

	merged := mergeCookies(current, fresh)
	if len(merged) != 3 {
		t.Fatalf("Expected 3 cookies, got %d", len(merged))
	}
	if merged[0].Value != "9" {
		t.Errorf("Expected cookie a to be replaced, got %q", merged[0].Value)
	}
	if merged[1].Name != "b" || merged[2].Name != "c" {
		t.Errorf("Unexpected order: %+v", merged)
	}
}
