package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"meetsync/internal/config"
	"meetsync/internal/logging"
	"meetsync/internal/models"
)

const meetingsCacheKey = "meetings"

// keepAliveTimers is the part of the scheduler an actor reads and cancels
type keepAliveTimers interface {
	NextRun(userID string) (time.Time, bool)
	Cancel(userID string)
}

// MeetingTranscript is the payload of /meeting-transcript
type MeetingTranscript struct {
	Meeting    models.Meeting           `json:"meeting"`
	Transcript *models.TranscriptResult `json:"transcript"`
}

// Actor owns one user's session, browser and listing cache.
// Every operation that touches the browser or writes the session holds mu.
// A retired actor is no longer registered and closes its browser after each operation.
type Actor struct {
	userID    string
	sessions  *SessionService
	scraper   Scraper
	captions  *CaptionClient
	timers    keepAliveTimers
	site      func() *config.SiteProfile
	listings  *cache.Cache
	freshness time.Duration
	opTimeout time.Duration
	now       func() time.Time

	mu       sync.Mutex
	lastUsed time.Time
	retired  bool
}

// UserID returns the user this actor serves
func (a *Actor) UserID() string {
	return a.userID
}

// run executes fn under the actor lock on a context detached from the caller's cancellation
func (a *Actor) run(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.opTimeout)
	defer cancel()

	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	err := fn(opCtx)
	elapsed := time.Since(start)

	a.lastUsed = a.now()
	if a.retired {
		a.scraper.Close()
	}

	outcome := "ok"
	logger := logging.WithUser(a.userID, operation)
	if err != nil {
		outcome = string(models.KindOf(err))
		logger.Warn("operation failed", "kind", outcome, "duration_ms", elapsed.Milliseconds(), "error", err)
	} else {
		logger.Info("operation completed", "duration_ms", elapsed.Milliseconds())
	}
	GetMetrics().RecordOperation(operation, outcome, elapsed.Seconds())
	return err
}

// session loads cookies for a browser operation.
// No cookies is NoCredentials; an inactive session fails fast with SessionExpired.
func (a *Actor) session(ctx context.Context) (*models.Session, error) {
	session, err := a.sessions.GetSession(ctx, a.userID)
	if err != nil {
		return nil, models.NewError(models.KindTransient, "failed to load session", err)
	}
	if !session.HasCookies() {
		return nil, models.ErrNoCredentials
	}
	if !session.Active {
		return nil, models.ErrSessionExpired
	}
	return session, nil
}

// checkExpired marks the session inactive when err is a sign-in redirect
func (a *Actor) checkExpired(ctx context.Context, err error) {
	if !errors.Is(err, models.ErrSessionExpired) {
		return
	}
	if markErr := a.sessions.MarkInactive(ctx, a.userID); markErr != nil {
		log.Printf("⚠️  [ACTOR] Failed to mark session inactive for user %s: %v", a.userID, markErr)
	}
	if a.timers != nil {
		a.timers.Cancel(a.userID)
	}
	a.listings.Flush()
	GetMetrics().RecordSessionExpired()
	log.Printf("🔒 [ACTOR] Session expired for user %s", a.userID)
}

// Health reports the session state relative to the freshness window. It only reads the store.
func (a *Actor) Health(ctx context.Context) (models.SessionHealth, error) {
	session, err := a.sessions.GetSession(ctx, a.userID)
	if err != nil {
		return models.SessionHealth{}, models.NewError(models.KindTransient, "failed to load session", err)
	}

	health := session.Evaluate(a.now(), a.freshness)
	if a.timers != nil && health.Status == models.HealthReady {
		if next, ok := a.timers.NextRun(a.userID); ok {
			health.NextKeepAliveAt = &next
		}
	}
	return health, nil
}

// UploadCookies replaces the stored cookies with the ones for the target site
func (a *Actor) UploadCookies(ctx context.Context, cookies []models.Cookie) (*models.Session, error) {
	var session *models.Session
	err := a.run(ctx, "upload_cookies", func(ctx context.Context) error {
		s, err := a.sessions.PutCookies(ctx, a.userID, cookies)
		if err != nil {
			return err
		}
		a.listings.Flush()
		session = s
		return nil
	})
	return session, err
}

// ExtractTranscript extracts the transcript behind a share link on the target site
func (a *Actor) ExtractTranscript(ctx context.Context, shareURL string) (*models.TranscriptResult, error) {
	if err := a.validateShareURL(shareURL); err != nil {
		return nil, err
	}

	var result *models.TranscriptResult
	err := a.run(ctx, "extract_transcript", func(ctx context.Context) error {
		session, err := a.session(ctx)
		if err != nil {
			return err
		}
		r, err := a.scraper.ExtractTranscript(ctx, session.Cookies, shareURL)
		if err != nil {
			a.checkExpired(ctx, err)
			return err
		}
		result = r
		return nil
	})
	return result, err
}

func (a *Actor) validateShareURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.NewError(models.KindMalformedInput, "url is required", nil)
	}
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return models.NewError(models.KindMalformedInput, "url must be an absolute http(s) link", err)
	}
	host := strings.ToLower(parsed.Hostname())
	domain := a.site().Domain
	if host != domain && !strings.HasSuffix(host, "."+domain) {
		return models.NewError(models.KindMalformedInput, fmt.Sprintf("url must point at %s", domain), nil)
	}
	return nil
}

// ListMeetings lists recorded meetings and caches them for index lookups
func (a *Actor) ListMeetings(ctx context.Context) ([]models.Meeting, error) {
	var meetings []models.Meeting
	err := a.run(ctx, "list_meetings", func(ctx context.Context) error {
		m, err := a.listMeetings(ctx)
		meetings = m
		return err
	})
	return meetings, err
}

func (a *Actor) listMeetings(ctx context.Context) ([]models.Meeting, error) {
	session, err := a.session(ctx)
	if err != nil {
		return nil, err
	}
	meetings, err := a.scraper.ListMeetings(ctx, session.Cookies)
	if err != nil {
		a.checkExpired(ctx, err)
		return nil, err
	}
	if meetings == nil {
		meetings = []models.Meeting{}
	}
	a.listings.SetDefault(meetingsCacheKey, meetings)
	return meetings, nil
}

// MeetingTranscript downloads the caption track of the index-th meeting of the latest listing
func (a *Actor) MeetingTranscript(ctx context.Context, index int) (*MeetingTranscript, error) {
	if index < 0 {
		return nil, models.NewError(models.KindMalformedInput, "index must be a non-negative integer", nil)
	}

	var result *MeetingTranscript
	err := a.run(ctx, "meeting_transcript", func(ctx context.Context) error {
		session, err := a.session(ctx)
		if err != nil {
			return err
		}

		meetings, cached := a.cachedMeetings()
		if !cached {
			if meetings, err = a.listMeetings(ctx); err != nil {
				return err
			}
		}
		if index >= len(meetings) {
			return models.NewError(models.KindNotFound, fmt.Sprintf("no meeting at index %d (%d listed)", index, len(meetings)), nil)
		}
		meeting := meetings[index]

		transcript, err := a.meetingTranscript(ctx, session.Cookies, meeting)
		if err != nil {
			a.checkExpired(ctx, err)
			return err
		}
		result = &MeetingTranscript{Meeting: meeting, Transcript: transcript}
		return nil
	})
	return result, err
}

func (a *Actor) cachedMeetings() ([]models.Meeting, bool) {
	value, ok := a.listings.Get(meetingsCacheKey)
	if !ok {
		return nil, false
	}
	meetings, ok := value.([]models.Meeting)
	return meetings, ok
}

// meetingTranscript prefers the caption track and falls back to the player page
func (a *Actor) meetingTranscript(ctx context.Context, cookies []models.Cookie, meeting models.Meeting) (*models.TranscriptResult, error) {
	if meeting.TranscriptURL != "" && a.captions != nil {
		result, err := a.captions.Fetch(ctx, cookies, meeting.TranscriptURL)
		if err == nil {
			return result, nil
		}
		if models.KindOf(err) != models.KindNotFound || meeting.ShareURL == "" {
			return nil, err
		}
		log.Printf("⚠️  [ACTOR] No caption track for meeting %s, reading the player page", meeting.ID)
	}
	if meeting.ShareURL == "" {
		return nil, models.NewError(models.KindNotFound, "meeting has no transcript link", nil)
	}
	return a.scraper.ExtractTranscript(ctx, cookies, meeting.ShareURL)
}

// ListClips lists clips created within the last days days
func (a *Actor) ListClips(ctx context.Context, days int) ([]models.Clip, error) {
	if days <= 0 {
		return nil, models.NewError(models.KindMalformedInput, "days must be a positive integer", nil)
	}

	var clips []models.Clip
	err := a.run(ctx, "list_clips", func(ctx context.Context) error {
		session, err := a.session(ctx)
		if err != nil {
			return err
		}
		c, err := a.scraper.ListClips(ctx, session.Cookies, days)
		if err != nil {
			a.checkExpired(ctx, err)
			return err
		}
		if c == nil {
			c = []models.Clip{}
		}
		clips = c
		return nil
	})
	return clips, err
}

// Sync lists clips and meetings (optionally extracting clip transcripts) and records exactly one
// execution for the run. A user without cookies gets NoCredentials and no record.
func (a *Actor) Sync(ctx context.Context, days int, withTranscripts bool) (*models.SyncResult, error) {
	if days <= 0 {
		return nil, models.NewError(models.KindMalformedInput, "days must be a positive integer", nil)
	}

	var result *models.SyncResult
	err := a.run(ctx, "sync", func(ctx context.Context) error {
		r, err := a.sync(ctx, days, withTranscripts)
		result = r
		return err
	})
	return result, err
}

func (a *Actor) sync(ctx context.Context, days int, withTranscripts bool) (*models.SyncResult, error) {
	started := a.now().UTC()
	record := models.ExecutionRecord{ID: uuid.New().String(), StartedAt: started}
	logger := logging.WithExecution(logging.WithUser(a.userID, "sync"), record.ID)

	session, err := a.sessions.GetSession(ctx, a.userID)
	if err != nil {
		return nil, models.NewError(models.KindTransient, "failed to load session", err)
	}
	if !session.HasCookies() {
		return nil, models.ErrNoCredentials
	}

	result := &models.SyncResult{Clips: []models.Clip{}, Meetings: []models.Meeting{}}
	runErr := func() error {
		if !session.Active {
			return models.ErrSessionExpired
		}

		clips, err := a.scraper.ListClips(ctx, session.Cookies, days)
		if err != nil {
			return fmt.Errorf("listing clips: %w", err)
		}
		if clips != nil {
			result.Clips = clips
		}

		meetings, err := a.scraper.ListMeetings(ctx, session.Cookies)
		if err != nil {
			return fmt.Errorf("listing meetings: %w", err)
		}
		if meetings != nil {
			result.Meetings = meetings
		}
		a.listings.SetDefault(meetingsCacheKey, result.Meetings)

		if withTranscripts {
			transcripts, err := a.clipTranscripts(ctx, session.Cookies, result.Clips)
			if err != nil {
				return err
			}
			result.Transcripts = transcripts
		}
		return nil
	}()

	completed := a.now().UTC()
	record.CompletedAt = completed
	record.DurationMs = completed.Sub(started).Milliseconds()
	record.ClipsCount = len(result.Clips)
	record.MeetingsCount = len(result.Meetings)
	record.TranscriptsExtracted = len(result.Transcripts)
	record.Success = runErr == nil
	if runErr != nil {
		record.Error = runErr.Error()
		a.checkExpired(ctx, runErr)
	}

	if err := a.sessions.AppendExecution(ctx, a.userID, record); err != nil {
		logger.Error("failed to record execution", "error", err)
	}

	if runErr != nil {
		return nil, runErr
	}

	GetMetrics().RecordSync(record.ClipsCount, record.MeetingsCount, record.TranscriptsExtracted)
	logger.Info("sync completed",
		"clips", record.ClipsCount,
		"meetings", record.MeetingsCount,
		"transcripts", record.TranscriptsExtracted,
		"duration_ms", record.DurationMs,
	)
	result.Execution = record
	return result, nil
}

// clipTranscripts extracts each clip's transcript. Clips without one are skipped; an expired session aborts.
func (a *Actor) clipTranscripts(ctx context.Context, cookies []models.Cookie, clips []models.Clip) (map[string]models.TranscriptResult, error) {
	transcripts := make(map[string]models.TranscriptResult)
	for _, clip := range clips {
		if clip.ShareURL == "" {
			continue
		}
		result, err := a.scraper.ExtractTranscript(ctx, cookies, clip.ShareURL)
		if err != nil {
			switch models.KindOf(err) {
			case models.KindSessionExpired:
				return nil, fmt.Errorf("extracting clip %s: %w", clip.ID, err)
			case models.KindNotFound:
				continue
			}
			if ctx.Err() != nil {
				return nil, fmt.Errorf("extracting clip %s: %w", clip.ID, err)
			}
			log.Printf("⚠️  [SYNC] Skipping transcript for clip %s: %v", clip.ID, err)
			continue
		}
		transcripts[clip.ID] = *result
	}
	return transcripts, nil
}

// Disconnect clears all session state, cancels keep-alive and closes the browser
func (a *Actor) Disconnect(ctx context.Context) error {
	return a.run(ctx, "disconnect", func(ctx context.Context) error {
		if err := a.sessions.Clear(ctx, a.userID); err != nil {
			return models.NewError(models.KindTransient, "failed to clear session", err)
		}
		a.listings.Flush()
		// run closes the browser once the actor is retired
		a.retired = true
		return nil
	})
}

// KeepAlive visits the keep-alive page and stores the cookies the site issued
func (a *Actor) KeepAlive(ctx context.Context) KeepAliveOutcome {
	outcome := KeepAliveSkipped
	_ = a.run(ctx, "keepalive", func(ctx context.Context) error {
		outcome = a.keepAlive(ctx)
		return nil
	})
	log.Printf("💓 [KEEPALIVE] User %s: %s", a.userID, outcome)
	return outcome
}

func (a *Actor) keepAlive(ctx context.Context) KeepAliveOutcome {
	session, err := a.sessions.GetSession(ctx, a.userID)
	if err != nil {
		log.Printf("⚠️  [KEEPALIVE] Failed to load session for user %s: %v", a.userID, err)
		return KeepAliveTransient
	}
	if !session.HasCookies() || !session.Active {
		return KeepAliveSkipped
	}

	jar, err := a.scraper.CollectCookies(ctx, session.Cookies)
	if err != nil {
		if errors.Is(err, models.ErrSessionExpired) {
			a.checkExpired(ctx, err)
			return KeepAliveExpired
		}
		log.Printf("⚠️  [KEEPALIVE] Visit failed for user %s: %v", a.userID, err)
		return KeepAliveTransient
	}

	merged := mergeCookies(session.Cookies, models.FilterCookies(jar, a.site().Domain))
	if models.SameCookies(merged, session.Cookies) {
		if err := a.sessions.TouchKeepAlive(ctx, a.userID); err != nil {
			log.Printf("⚠️  [KEEPALIVE] Failed to record visit for user %s: %v", a.userID, err)
		}
		return KeepAliveUnchanged
	}

	if _, err := a.sessions.PutCookies(ctx, a.userID, merged); err != nil {
		log.Printf("⚠️  [KEEPALIVE] Failed to store refreshed cookies for user %s: %v", a.userID, err)
		return KeepAliveTransient
	}
	return KeepAliveRefreshed
}

// mergeCookies overlays fresh onto current by domain, path and name, keeping cookies the browser did not report
func mergeCookies(current, fresh []models.Cookie) []models.Cookie {
	key := func(c models.Cookie) string {
		return strings.ToLower(strings.TrimPrefix(c.Domain, ".")) + "|" + c.Path + "|" + c.Name
	}
	merged := make([]models.Cookie, 0, len(current)+len(fresh))
	index := make(map[string]int, len(current)+len(fresh))
	for _, c := range current {
		index[key(c)] = len(merged)
		merged = append(merged, c)
	}
	for _, c := range fresh {
		if i, ok := index[key(c)]; ok {
			merged[i] = c
			continue
		}
		index[key(c)] = len(merged)
		merged = append(merged, c)
	}
	return merged
}

// Dashboard returns session health with recent executions
func (a *Actor) Dashboard(ctx context.Context) (*DashboardData, error) {
	health, err := a.Health(ctx)
	if err != nil {
		return nil, err
	}
	records, err := a.sessions.ListExecutions(ctx, a.userID)
	if err != nil {
		return nil, models.NewError(models.KindTransient, "failed to load executions", err)
	}

	summary := SummarizeExecutions(records)
	summary.Daily = nil
	recent := records
	if len(recent) > recentExecutions {
		recent = recent[:recentExecutions]
	}
	return &DashboardData{Session: health, Summary: summary, Recent: recent}, nil
}

// Analytics returns the full execution log with its summary
func (a *Actor) Analytics(ctx context.Context) (*AnalyticsData, error) {
	records, err := a.sessions.ListExecutions(ctx, a.userID)
	if err != nil {
		return nil, models.NewError(models.KindTransient, "failed to load executions", err)
	}
	return &AnalyticsData{Summary: SummarizeExecutions(records), Executions: records}, nil
}

// reap closes a browser idle for at least maxIdle and reports whether the actor can be dropped:
// no browser and no operation for maxIdle. A busy actor is left alone.
func (a *Actor) reap(maxIdle time.Duration) (closed, evict bool) {
	if !a.mu.TryLock() {
		return false, false
	}
	defer a.mu.Unlock()

	if a.scraper.Running() && a.scraper.IdleFor() >= maxIdle {
		a.scraper.Close()
		closed = true
	}
	if !a.scraper.Running() && a.now().Sub(a.lastUsed) >= maxIdle {
		a.retired = true
		evict = true
	}
	return closed, evict
}
