// Package vtt parses WebVTT caption tracks into speaker-attributed segments.
package vtt

import (
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"meetsync/internal/models"
)

var (
	cueTimingRE = regexp.MustCompile(`^\s*((?:\d{1,2}:)?\d{1,2}:\d{2}[.,]\d{1,3})\s+-->\s+((?:\d{1,2}:)?\d{1,2}:\d{2}[.,]\d{1,3})`)
	voiceTagRE  = regexp.MustCompile(`^<v(?:\.[^\s>]*)?\s+([^>]+)>`)
	anyTagRE    = regexp.MustCompile(`</?[^>]+>`)
	speakerRE   = regexp.MustCompile(`^([^:<>\n]{1,60}?):\s+(.+)$`)
	spaceRE     = regexp.MustCompile(`\s+`)
)

// Parse turns raw caption-track text into ordered segments. It never fails:
// header, NOTE, STYLE and REGION blocks are skipped, cue identifiers are ignored,
// and a cue without text is dropped.
func Parse(raw string) []models.Segment {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimPrefix(text, "\ufeff")

	var segments []models.Segment
	for _, block := range strings.Split(text, "\n\n") {
		if seg, ok := parseCue(block); ok {
			segments = append(segments, seg)
		}
	}

	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].TimestampSeconds < segments[j].TimestampSeconds
	})
	return segments
}

func parseCue(block string) (models.Segment, bool) {
	lines := strings.Split(strings.Trim(block, "\n"), "\n")

	timing := -1
	for i, line := range lines {
		if cueTimingRE.MatchString(line) {
			timing = i
			break
		}
		// a cue identifier may precede the timing line; anything else means a non-cue block
		if i > 0 {
			return models.Segment{}, false
		}
	}
	if timing < 0 {
		return models.Segment{}, false
	}

	start, ok := ParseClock(cueTimingRE.FindStringSubmatch(lines[timing])[1])
	if !ok {
		return models.Segment{}, false
	}

	payload := strings.TrimSpace(strings.Join(lines[timing+1:], " "))
	if payload == "" {
		return models.Segment{}, false
	}

	speaker, body := SplitSpeaker(payload)
	if body == "" {
		return models.Segment{}, false
	}

	return models.Segment{
		Timestamp:        FormatClock(start),
		TimestampSeconds: start,
		Speaker:          speaker,
		Text:             body,
	}, true
}

// SplitSpeaker separates a "<v Name>" voice tag or a "Name: " prefix from the cue text
func SplitSpeaker(payload string) (string, string) {
	speaker := ""
	if m := voiceTagRE.FindStringSubmatch(payload); m != nil {
		speaker = strings.TrimSpace(m[1])
		payload = payload[len(m[0]):]
	}

	body := anyTagRE.ReplaceAllString(payload, "")
	body = html.UnescapeString(body)
	body = strings.TrimSpace(spaceRE.ReplaceAllString(body, " "))

	if speaker == "" {
		if m := speakerRE.FindStringSubmatch(body); m != nil && hasLetter(m[1]) {
			speaker = strings.TrimSpace(m[1])
			body = strings.TrimSpace(m[2])
		}
	}
	return speaker, body
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// Speakers returns the distinct speakers in first-appearance order
func Speakers(segments []models.Segment) []string {
	seen := make(map[string]bool)
	speakers := []string{}
	for _, s := range segments {
		if s.Speaker == "" || seen[s.Speaker] {
			continue
		}
		seen[s.Speaker] = true
		speakers = append(speakers, s.Speaker)
	}
	return speakers
}

// Render joins segments into the plain transcript text returned to callers
func Render(segments []models.Segment) string {
	var sb strings.Builder
	for i, s := range segments {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(s.Timestamp)
		sb.WriteByte(' ')
		if s.Speaker != "" {
			sb.WriteString(s.Speaker)
			sb.WriteString(": ")
		}
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// ToResult wraps parsed segments in a transcript result.
func ToResult(segments []models.Segment) models.TranscriptResult {
	return models.TranscriptResult{
		Transcript:   Render(segments),
		SegmentCount: len(segments),
		Speakers:     Speakers(segments),
		Method:       models.MethodVTT,
		Segments:     segments,
	}
}
