package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"meetsync/internal/config"
	"meetsync/internal/crypto"
	"meetsync/internal/models"
)

// StoredSession is the persisted form of a session. CookieJar holds the serialized
// (and, when a master key is configured, encrypted) cookie list.
type StoredSession struct {
	UserID          string     `json:"userId" bson:"userId"`
	CookieJar       string     `json:"cookieJar" bson:"cookieJar"`
	UploadedAt      time.Time  `json:"uploadedAt" bson:"uploadedAt"`
	Active          bool       `json:"active" bson:"active"`
	LastKeepAliveAt *time.Time `json:"lastKeepAliveAt,omitempty" bson:"lastKeepAliveAt,omitempty"`
}

// SessionBackend is the durable storage behind SessionService.
// LoadSession returns nil, nil when the user has no session.
// SaveSession replaces the stored session in a single write.
type SessionBackend interface {
	LoadSession(ctx context.Context, userID string) (*StoredSession, error)
	SaveSession(ctx context.Context, session *StoredSession) error
	DeleteSession(ctx context.Context, userID string) error
	AppendExecution(ctx context.Context, userID string, record models.ExecutionRecord, limit int) error
	ListExecutions(ctx context.Context, userID string) ([]models.ExecutionRecord, error)
	DeleteExecutions(ctx context.Context, userID string) error
	ActiveUsers(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// KeepAliveArmer schedules and cancels background refreshes
type KeepAliveArmer interface {
	Arm(userID string) error
	Cancel(userID string)
}

// SessionService is the session store: cookies, freshness and execution history per user
type SessionService struct {
	backend    SessionBackend
	encryption *crypto.EncryptionService
	site       func() *config.SiteProfile
	logLimit   int
	armer      KeepAliveArmer
	now        func() time.Time
}

// NewSessionService creates a session store. encryption may be nil, in which case cookie jars are stored as plain JSON.
func NewSessionService(backend SessionBackend, encryption *crypto.EncryptionService, site func() *config.SiteProfile, logLimit int) *SessionService {
	if logLimit <= 0 {
		logLimit = 50
	}
	return &SessionService{
		backend:    backend,
		encryption: encryption,
		site:       site,
		logLimit:   logLimit,
		now:        time.Now,
	}
}

// SetArmer wires the keep-alive scheduler; every cookie write arms it
func (s *SessionService) SetArmer(armer KeepAliveArmer) {
	s.armer = armer
}

// Backend exposes the storage for health checks
func (s *SessionService) Backend() SessionBackend {
	return s.backend
}

// GetSession returns the user's session, or nil when none was ever uploaded
func (s *SessionService) GetSession(ctx context.Context, userID string) (*models.Session, error) {
	stored, err := s.backend.LoadSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if stored == nil {
		return nil, nil
	}

	cookies, err := s.decodeJar(userID, stored.CookieJar)
	if err != nil {
		return nil, err
	}

	return &models.Session{
		UserID:          stored.UserID,
		Cookies:         cookies,
		UploadedAt:      stored.UploadedAt,
		Active:          stored.Active && len(cookies) > 0,
		LastKeepAliveAt: stored.LastKeepAliveAt,
	}, nil
}

// PutCookies replaces the user's cookies with those belonging to the target site.
// It fails with MalformedInput, leaving any previous session untouched, when none match.
func (s *SessionService) PutCookies(ctx context.Context, userID string, cookies []models.Cookie) (*models.Session, error) {
	kept := models.FilterCookies(cookies, s.site().Domain)
	if len(kept) == 0 {
		return nil, models.NewError(models.KindMalformedInput,
			fmt.Sprintf("no cookies for %s in upload (%d received)", s.site().Domain, len(cookies)), nil)
	}

	jar, err := s.encodeJar(userID, kept)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	stored := &StoredSession{
		UserID:     userID,
		CookieJar:  jar,
		UploadedAt: now,
		Active:     true,
	}
	if err := s.backend.SaveSession(ctx, stored); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	log.Printf("🍪 [SESSION] Stored %d of %d cookies for user %s", len(kept), len(cookies), userID)

	if s.armer != nil {
		if err := s.armer.Arm(userID); err != nil {
			log.Printf("⚠️  [SESSION] Failed to arm keep-alive for user %s: %v", userID, err)
		}
	}

	return &models.Session{UserID: userID, Cookies: kept, UploadedAt: now, Active: true}, nil
}

// MarkInactive flags the session as needing re-authentication. Cookies are kept.
func (s *SessionService) MarkInactive(ctx context.Context, userID string) error {
	return s.update(ctx, userID, func(stored *StoredSession) {
		stored.Active = false
	})
}

// TouchKeepAlive records a successful keep-alive visit that issued no new cookies
func (s *SessionService) TouchKeepAlive(ctx context.Context, userID string) error {
	return s.update(ctx, userID, func(stored *StoredSession) {
		now := s.now().UTC()
		stored.LastKeepAliveAt = &now
	})
}

func (s *SessionService) update(ctx context.Context, userID string, mutate func(*StoredSession)) error {
	stored, err := s.backend.LoadSession(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if stored == nil {
		return nil
	}
	mutate(stored)
	if err := s.backend.SaveSession(ctx, stored); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// AppendExecution prepends a record to the user's capped execution log
func (s *SessionService) AppendExecution(ctx context.Context, userID string, record models.ExecutionRecord) error {
	if err := s.backend.AppendExecution(ctx, userID, record, s.logLimit); err != nil {
		return fmt.Errorf("failed to append execution: %w", err)
	}
	return nil
}

// ListExecutions returns the execution log, newest first
func (s *SessionService) ListExecutions(ctx context.Context, userID string) ([]models.ExecutionRecord, error) {
	records, err := s.backend.ListExecutions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	return records, nil
}

// Clear removes the cookies and execution log and cancels any pending keep-alive
func (s *SessionService) Clear(ctx context.Context, userID string) error {
	if s.armer != nil {
		s.armer.Cancel(userID)
	}
	if err := s.backend.DeleteSession(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if err := s.backend.DeleteExecutions(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete executions: %w", err)
	}
	log.Printf("🗑️  [SESSION] Cleared session for user %s", userID)
	return nil
}

// ActiveUsers lists users whose sessions are active
func (s *SessionService) ActiveUsers(ctx context.Context) ([]string, error) {
	return s.backend.ActiveUsers(ctx)
}

func (s *SessionService) encodeJar(userID string, cookies []models.Cookie) (string, error) {
	data, err := json.Marshal(cookies)
	if err != nil {
		return "", fmt.Errorf("failed to encode cookies: %w", err)
	}
	if s.encryption == nil {
		return string(data), nil
	}
	sealed, err := s.encryption.Encrypt(userID, data)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt cookies: %w", err)
	}
	return sealed, nil
}

func (s *SessionService) decodeJar(userID, jar string) ([]models.Cookie, error) {
	if jar == "" {
		return nil, nil
	}
	data := []byte(jar)
	// Jars written before a master key was configured stay readable
	if crypto.IsSealed(jar) {
		if s.encryption == nil {
			return nil, fmt.Errorf("cookie jar for %s is encrypted but no master key is configured", userID)
		}
		opened, err := s.encryption.Decrypt(userID, jar)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt cookies: %w", err)
		}
		data = opened
	}
	var cookies []models.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to decode cookies: %w", err)
	}
	return cookies, nil
}
