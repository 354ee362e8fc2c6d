package lister

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	daysAgoRE   = regexp.MustCompile(`(?i)\b(\d+|a|an)\s+days?\s+ago\b`)
	yesterdayRE = regexp.MustCompile(`(?i)\byesterday\b`)
	hoursAgoRE  = regexp.MustCompile(`(?i)\b(\d+|a|an)\s+(hours?|hrs?|minutes?|mins?)\s+ago\b`)
	monthDayRE  = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?`)
	slashDateRE = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)

	clockDurationRE = regexp.MustCompile(`\b(?:(\d{1,2}):)?(\d{1,2}):(\d{2})\b(\s*[AaPp][Mm])?`)
	wordDurationRE  = regexp.MustCompile(`(?i)\b(?:(\d+)\s*(?:h|hr|hrs|hours?))?\s*(\d+)\s*(?:m|min|mins|minutes?)\b`)
	agoSuffixRE     = regexp.MustCompile(`(?i)^\s+ago\b`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseCreatedAt reads a creation time out of listing text.
// Patterns are tried in order: days ago, hours ago, month and day.
// When nothing matches it returns now and false.
func ParseCreatedAt(text string, now time.Time) (time.Time, bool) {
	if m := daysAgoRE.FindStringSubmatch(text); m != nil {
		return now.AddDate(0, 0, -count(m[1])), true
	}
	if yesterdayRE.MatchString(text) {
		return now.AddDate(0, 0, -1), true
	}
	if m := hoursAgoRE.FindStringSubmatch(text); m != nil {
		n := count(m[1])
		if strings.HasPrefix(strings.ToLower(m[2]), "m") {
			return now.Add(-time.Duration(n) * time.Minute), true
		}
		return now.Add(-time.Duration(n) * time.Hour), true
	}
	if t, ok := parseMonthDay(text, now); ok {
		return t, true
	}
	return now, false
}

func count(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return 1
}

// parseMonthDay handles "Mar 4", "March 4, 2025" and "3/4/2025".
// A date without a year that would land in the future belongs to last year.
func parseMonthDay(text string, now time.Time) (time.Time, bool) {
	if m := monthDayRE.FindStringSubmatch(text); m != nil {
		month := months[strings.ToLower(m[1])[:3]]
		day, _ := strconv.Atoi(m[2])
		if day < 1 || day > 31 {
			return time.Time{}, false
		}
		year := now.Year()
		explicitYear := m[3] != ""
		if explicitYear {
			year, _ = strconv.Atoi(m[3])
		}
		t := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
		if !explicitYear && t.After(now) {
			t = t.AddDate(-1, 0, 0)
		}
		return t, true
	}
	if m := slashDateRE.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return time.Time{}, false
		}
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location()), true
	}
	return time.Time{}, false
}

// ParseDuration reads the first duration in text as seconds: "1:02:03", "12:34", "1 hr 5 min", "45 min".
// Times of day such as "10:30 AM" are ignored. Returns 0 when nothing matches.
func ParseDuration(text string) int {
	for _, m := range clockDurationRE.FindAllStringSubmatch(text, -1) {
		if m[4] != "" {
			continue
		}
		hours, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.Atoi(m[2])
		seconds, _ := strconv.Atoi(m[3])
		if seconds > 59 || (m[1] != "" && minutes > 59) {
			continue
		}
		return hours*3600 + minutes*60 + seconds
	}
	for _, idx := range wordDurationRE.FindAllStringSubmatchIndex(text, -1) {
		if agoSuffixRE.MatchString(text[idx[1]:]) {
			continue
		}
		hours := 0
		if idx[2] >= 0 {
			hours, _ = strconv.Atoi(text[idx[2]:idx[3]])
		}
		minutes, _ := strconv.Atoi(text[idx[4]:idx[5]])
		return hours*3600 + minutes*60
	}
	return 0
}
