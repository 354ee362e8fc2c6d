package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Selectors are the CSS hooks the extraction scripts rely on.
// Every one of them has a heuristic fallback, so a stale selector degrades instead of failing.
type Selectors struct {
	TranscriptButton      string   `yaml:"transcript_button"`
	TranscriptButtonTexts []string `yaml:"transcript_button_texts"`
	ScrollCandidates      string   `yaml:"scroll_candidates"`
	CaptionRow            string   `yaml:"caption_row"`
	CaptionTimestamp      string   `yaml:"caption_timestamp"`
	CaptionText           string   `yaml:"caption_text"`
	DownloadControl       string   `yaml:"download_control"`
	ClipCard              string   `yaml:"clip_card"`
	ClipTitle             string   `yaml:"clip_title"`
}

// SiteProfile describes the target web application
type SiteProfile struct {
	Domain                string    `yaml:"domain"`
	BaseURL               string    `yaml:"base_url"`
	LoginPatterns         []string  `yaml:"login_patterns"`
	KeepAliveURL          string    `yaml:"keepalive_url"`
	MeetingsURL           string    `yaml:"meetings_url"`
	ClipsURL              string    `yaml:"clips_url"`
	TranscriptURLTemplate string    `yaml:"transcript_url_template"` // {id} is replaced by the meeting id
	ShareLinkPatterns     []string  `yaml:"share_link_patterns"`
	Selectors             Selectors `yaml:"selectors"`

	loginRE []*regexp.Regexp
	shareRE []*regexp.Regexp
}

// DefaultSiteProfile targets the Zoom web portal
func DefaultSiteProfile() *SiteProfile {
	p := &SiteProfile{
		Domain:                "zoom.us",
		BaseURL:               "https://zoom.us",
		LoginPatterns:         []string{`(?i)/(signin|login|sso)([/?#]|$)`, `(?i)/oauth/signin`},
		KeepAliveURL:          "https://zoom.us/profile",
		MeetingsURL:           "https://zoom.us/recording",
		ClipsURL:              "https://zoom.us/clips/library",
		TranscriptURLTemplate: "https://zoom.us/rec/play/vtt?type=transcript&meetingId={id}",
		ShareLinkPatterns:     []string{`/rec/share/`, `/rec/play/`, `/clips/share/`},
		Selectors: Selectors{
			TranscriptButton:      `[aria-label*="transcript" i], button[data-testid="transcript-tab"]`,
			TranscriptButtonTexts: []string{"transcript", "audio transcript"},
			ScrollCandidates:      `[class*="transcript"], [class*="virtual"], [role="list"], [class*="scroll"]`,
			CaptionRow:            `[class*="transcript-list-item"], [class*="transcript-item"], [role="listitem"]`,
			CaptionTimestamp:      `[class*="timestamp"], [class*="time"]`,
			CaptionText:           `[class*="text"], [class*="content"]`,
			DownloadControl:       `[aria-label^="Download" i], a[download], button[title^="Download" i]`,
			ClipCard:              `.clip-card`,
			ClipTitle:             `[class*="clip-title"], [class*="title"]`,
		},
	}
	if err := p.compile(); err != nil {
		panic(err)
	}
	return p
}

// LoadSiteProfile reads a YAML profile. Fields left empty keep their defaults.
func LoadSiteProfile(path string) (*SiteProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read site profile: %w", err)
	}

	p := DefaultSiteProfile()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse site profile YAML: %w", err)
	}
	if err := p.compile(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *SiteProfile) compile() error {
	p.Domain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(p.Domain), "."))
	if p.Domain == "" {
		return fmt.Errorf("site profile domain is required")
	}

	p.loginRE = p.loginRE[:0]
	for _, pattern := range p.LoginPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid login pattern %q: %w", pattern, err)
		}
		p.loginRE = append(p.loginRE, re)
	}
	p.shareRE = p.shareRE[:0]
	for _, pattern := range p.ShareLinkPatterns {
		re, err := regexp.Compile(regexp.QuoteMeta(pattern))
		if err != nil {
			return fmt.Errorf("invalid share link pattern %q: %w", pattern, err)
		}
		p.shareRE = append(p.shareRE, re)
	}
	return nil
}

// IsLoginURL reports whether a navigation ended on the sign-in page
func (p *SiteProfile) IsLoginURL(rawURL string) bool {
	for _, re := range p.loginRE {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// IsShareLink reports whether an href points at a shareable recording
func (p *SiteProfile) IsShareLink(href string) bool {
	for _, re := range p.shareRE {
		if re.MatchString(href) {
			return true
		}
	}
	return false
}

// TranscriptURL builds the caption-track URL for a meeting id
func (p *SiteProfile) TranscriptURL(meetingID string) string {
	if p.TranscriptURLTemplate == "" || meetingID == "" {
		return ""
	}
	return strings.ReplaceAll(p.TranscriptURLTemplate, "{id}", meetingID)
}

// SiteStore holds the current profile and swaps it on reload
type SiteStore struct {
	current atomic.Pointer[SiteProfile]
}

// NewSiteStore creates a store seeded with the given profile
func NewSiteStore(p *SiteProfile) *SiteStore {
	s := &SiteStore{}
	s.current.Store(p)
	return s
}

// Current returns the active profile
func (s *SiteStore) Current() *SiteProfile {
	return s.current.Load()
}

// Replace installs a new profile
func (s *SiteStore) Replace(p *SiteProfile) {
	s.current.Store(p)
}

// Watch reloads the profile when the file changes. It blocks until stop is closed.
func (s *SiteStore) Watch(filePath string, stop <-chan struct{}) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  Failed to create site profile watcher: %v", err)
		return
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		log.Printf("⚠️  Failed to get absolute path for %s: %v", filePath, err)
		return
	}

	// Watch the directory; editors replace files rather than writing them in place
	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)
	if err := watcher.Add(dir); err != nil {
		log.Printf("⚠️  Failed to watch directory %s: %v", dir, err)
		return
	}

	log.Printf("👁️  Watching %s for changes (hot-reload enabled)", filePath)

	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case <-stop:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDuration, func() {
				profile, err := LoadSiteProfile(absPath)
				if err != nil {
					log.Printf("❌ [SITE] Keeping previous profile, reload failed: %v", err)
					return
				}
				s.Replace(profile)
				log.Printf("✅ [SITE] Site profile reloaded from %s (domain: %s)", filePath, profile.Domain)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  Site profile watcher error: %v", err)
		}
	}
}
