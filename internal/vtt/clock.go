package vtt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// UnknownTimestamp sorts segments whose label cannot be parsed ahead of everything else
const UnknownTimestamp = -1.0

var clockRE = regexp.MustCompile(`^(?:(\d{1,2}):)?(\d{1,2}):(\d{2})(?:[.,](\d{1,3}))?$`)

// ParseClock parses "M:SS", "MM:SS", "H:MM:SS" and "HH:MM:SS.mmm" labels into seconds.
func ParseClock(label string) (float64, bool) {
	m := clockRE.FindStringSubmatch(strings.TrimSpace(label))
	if m == nil {
		return UnknownTimestamp, false
	}

	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	if seconds > 59 || (m[1] != "" && minutes > 59) {
		return UnknownTimestamp, false
	}

	total := float64(hours*3600 + minutes*60 + seconds)
	if m[4] != "" {
		frac := m[4] + strings.Repeat("0", 3-len(m[4]))
		ms, _ := strconv.Atoi(frac)
		total += float64(ms) / 1000
	}
	return total, true
}

// FormatClock renders seconds the way the host application labels caption rows:
// "M:SS" below an hour, "H:MM:SS" above.
func FormatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	s := int(seconds)
	h, m, sec := s/3600, (s%3600)/60, s%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
