package models

import (
	"strings"
	"time"
)

// Cookie is one credential tuple harvested from the user's browser.
// Values are opaque: they are copied between the store and the browser, never interpreted.
type Cookie struct {
	Name     string  `json:"name" bson:"name"`
	Value    string  `json:"value" bson:"value"`
	Domain   string  `json:"domain" bson:"domain"`
	Path     string  `json:"path" bson:"path"`
	Secure   bool    `json:"secure" bson:"secure"`
	HTTPOnly bool    `json:"httpOnly" bson:"httpOnly"`
	Expires  float64 `json:"expires,omitempty" bson:"expires,omitempty"` // unix seconds, 0 = session cookie
	SameSite string  `json:"sameSite,omitempty" bson:"sameSite,omitempty"`
}

// MatchesDomain reports whether the cookie belongs to siteDomain or one of its subdomains.
func (c Cookie) MatchesDomain(siteDomain string) bool {
	domain := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Domain), "."))
	site := strings.ToLower(strings.TrimPrefix(siteDomain, "."))
	if domain == "" || site == "" {
		return false
	}
	return domain == site || strings.HasSuffix(domain, "."+site)
}

// FilterCookies keeps the cookies that belong to siteDomain and have a name.
func FilterCookies(cookies []Cookie, siteDomain string) []Cookie {
	kept := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" || !c.MatchesDomain(siteDomain) {
			continue
		}
		if c.Path == "" {
			c.Path = "/"
		}
		kept = append(kept, c)
	}
	return kept
}

// SameCookies compares two jars ignoring order.
func SameCookies(a, b []Cookie) bool {
	if len(a) != len(b) {
		return false
	}
	key := func(c Cookie) string { return c.Domain + "|" + c.Path + "|" + c.Name }
	index := make(map[string]string, len(a))
	for _, c := range a {
		index[key(c)] = c.Value
	}
	for _, c := range b {
		v, ok := index[key(c)]
		if !ok || v != c.Value {
			return false
		}
	}
	return true
}

// Session is the credential material and freshness state for one user
type Session struct {
	UserID          string     `json:"userId"`
	Cookies         []Cookie   `json:"-"`
	UploadedAt      time.Time  `json:"uploadedAt"`
	Active          bool       `json:"active"`
	LastKeepAliveAt *time.Time `json:"lastKeepAliveAt,omitempty"`
}

// HasCookies reports whether any credential material is stored
func (s *Session) HasCookies() bool {
	return s != nil && len(s.Cookies) > 0
}

// HealthStatus is the externally visible state of a session
type HealthStatus string

const (
	HealthNoCookies      HealthStatus = "no_cookies"
	HealthCookiesExpired HealthStatus = "cookies_expired"
	HealthReady          HealthStatus = "ready"
)

// SessionHealth is the payload of the per-user health endpoint
type SessionHealth struct {
	Status               HealthStatus `json:"status"`
	CookieCount          int          `json:"cookieCount"`
	UploadedAt           *time.Time   `json:"uploadedAt,omitempty"`
	AgeHours             float64      `json:"ageHours"`
	FreshnessWindowHours float64      `json:"freshnessWindowHours"`
	ExpiresAt            *time.Time   `json:"expiresAt,omitempty"`
	LastKeepAliveAt      *time.Time   `json:"lastKeepAliveAt,omitempty"`
	NextKeepAliveAt      *time.Time   `json:"nextKeepAliveAt,omitempty"`
}

// Evaluate derives the health of a session relative to now.
// A session is ready only while active and inside the freshness window measured from UploadedAt.
func (s *Session) Evaluate(now time.Time, window time.Duration) SessionHealth {
	health := SessionHealth{
		Status:               HealthNoCookies,
		FreshnessWindowHours: window.Hours(),
	}
	if !s.HasCookies() {
		return health
	}

	uploaded := s.UploadedAt
	expires := uploaded.Add(window)
	health.CookieCount = len(s.Cookies)
	health.UploadedAt = &uploaded
	health.ExpiresAt = &expires
	health.AgeHours = now.Sub(uploaded).Hours()
	health.LastKeepAliveAt = s.LastKeepAliveAt

	if !s.Active || now.After(expires) {
		health.Status = HealthCookiesExpired
	} else {
		health.Status = HealthReady
	}
	return health
}
