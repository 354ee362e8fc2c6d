package lister

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"meetsync/internal/config"
	"meetsync/internal/models"
)

// MeetingRow is the raw text gathered around one download control
type MeetingRow struct {
	Label string   `json:"label"`
	Text  string   `json:"text"`
	Links []string `json:"links"`
}

var (
	meetingIDRE     = regexp.MustCompile(`\b(\d{3})\s?(\d{3,4})\s?(\d{4})\b`)
	emailRE         = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	downloadLabelRE = regexp.MustCompile(`(?i)^\s*download\s*(?:(?:the\s+)?(?:audio\s+)?transcript\s*(?:of|for)?\s*)?[:\-]?\s*`)
	fullDateRE      = regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}(?:\s+\d{1,2}:\d{2}\s*[AP]M)?|\b\d{1,2}/\d{1,2}/\d{4}(?:\s+\d{1,2}:\d{2}\s*[AP]M)?`)
)

var meetingDateLayouts = []string{
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"January 2, 2006 3:04 PM",
	"January 2, 2006",
	"Jan 2 2006",
	"01/02/2006 3:04 PM",
	"1/2/2006 3:04 PM",
	"01/02/2006",
	"1/2/2006",
}

// ParseMeetings turns raw rows into meeting records.
// Fields that cannot be read are left empty; rows sharing title, id and date are kept once.
func ParseMeetings(rows []MeetingRow, site *config.SiteProfile, now time.Time) []models.Meeting {
	meetings := make([]models.Meeting, 0, len(rows))
	seen := make(map[string]bool)

	for _, row := range rows {
		m := models.Meeting{
			Title: meetingTitle(row),
			Host:  emailRE.FindString(row.Text),
			Date:  strings.Join(strings.Fields(fullDateRE.FindString(row.Text)), " "),
		}
		if id := meetingIDRE.FindStringSubmatch(row.Text); id != nil {
			m.ID = id[1] + id[2] + id[3]
		}

		for _, link := range row.Links {
			if site.IsShareLink(link) {
				m.ShareURL = absoluteURL(site.BaseURL, link)
				break
			}
		}
		if m.ID == "" {
			m.ID = lastPathSegment(m.ShareURL)
		}
		m.TranscriptURL = site.TranscriptURL(m.ID)
		m.CreatedAt = parseMeetingDate(m.Date, now)
		m.DurationSeconds = ParseDuration(strings.Replace(row.Text, m.Date, "", 1))

		key := m.Title + "|" + m.ID + "|" + m.Date
		if seen[key] {
			continue
		}
		seen[key] = true
		meetings = append(meetings, m)
	}
	return meetings
}

func meetingTitle(row MeetingRow) string {
	title := strings.TrimSpace(downloadLabelRE.ReplaceAllString(row.Label, ""))
	if title != "" {
		return title
	}
	for _, line := range strings.Split(row.Text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !emailRE.MatchString(line) && !meetingIDRE.MatchString(line) {
			return line
		}
	}
	return ""
}

func parseMeetingDate(value string, now time.Time) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range meetingDateLayouts {
		if t, err := time.ParseInLocation(layout, value, now.Location()); err == nil {
			return t
		}
	}
	if t, ok := parseMonthDay(value, now); ok {
		return t
	}
	return time.Time{}
}

// absoluteURL resolves href against base; unparseable input is returned unchanged
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// lastPathSegment returns the final path element of a URL without query or fragment
func lastPathSegment(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	seg := path.Base(strings.TrimRight(u.Path, "/"))
	if seg == "." || seg == "/" {
		return ""
	}
	return seg
}
