package lister

import (
	"regexp"
	"strings"
	"time"

	"meetsync/internal/config"
	"meetsync/internal/models"
)

// ClipRow is the raw content of one clip card
type ClipRow struct {
	Href      string `json:"href"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	Thumbnail string `json:"thumbnail"`
}

var titleNoiseRE = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:\d{1,2}:)?\d{1,2}:\d{2}\b`),
	regexp.MustCompile(`(?i)\b\d[\d,.]*\s*[kKmM]?\s*(?:views?|plays?)\b`),
	regexp.MustCompile(`(?i)\b(?:\d+|a|an)\s+(?:days?|hours?|hrs?|minutes?|mins?)\s+ago\b`),
	regexp.MustCompile(`(?i)\byesterday\b`),
}

// ParseClips turns raw card rows into clip records created within the last days days.
// days <= 0 keeps every clip. Clips are unique by id, the last path segment of the share link.
func ParseClips(rows []ClipRow, site *config.SiteProfile, now time.Time, days int) []models.Clip {
	clips := make([]models.Clip, 0, len(rows))
	seen := make(map[string]bool)
	var cutoff time.Time
	if days > 0 {
		cutoff = now.AddDate(0, 0, -days)
	}

	for _, row := range rows {
		shareURL := absoluteURL(site.BaseURL, row.Href)
		id := lastPathSegment(shareURL)
		if id == "" || seen[id] {
			continue
		}

		createdAt, _ := ParseCreatedAt(row.Text, now)
		if !cutoff.IsZero() && createdAt.Before(cutoff) {
			continue
		}
		seen[id] = true

		clips = append(clips, models.Clip{
			ID:              id,
			Title:           clipTitle(row),
			CreatedAt:       createdAt,
			DurationSeconds: ParseDuration(row.Text),
			ShareURL:        shareURL,
			ThumbnailURL:    absoluteURL(site.BaseURL, row.Thumbnail),
		})
	}
	return clips
}

// clipTitle prefers the title element, then the first text line with durations,
// play counts and relative dates removed
func clipTitle(row ClipRow) string {
	if title := strings.TrimSpace(row.Title); title != "" {
		return title
	}
	for _, line := range strings.Split(row.Text, "\n") {
		for _, re := range titleNoiseRE {
			line = re.ReplaceAllString(line, "")
		}
		line = strings.Trim(strings.Join(strings.Fields(line), " "), " ·•|-")
		if line != "" {
			return line
		}
	}
	return ""
}
