package extractor

import (
	"regexp"
	"sort"
	"strings"

	"meetsync/internal/models"
	"meetsync/internal/vtt"
)

// Row is one caption row as rendered on the page
type Row struct {
	Timestamp string `json:"timestamp"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
}

var leadingClockRE = regexp.MustCompile(`^(\d{1,2}:\d{2}(?::\d{2})?)\s*(.*)$`)

// Collector accumulates rows across scroll passes.
// Rows are keyed by their timestamp label and the first row seen for a label wins.
type Collector struct {
	order []string
	rows  map[string]Row
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{rows: make(map[string]Row)}
}

// Add records rows not seen before and returns how many were new
func (c *Collector) Add(rows []Row) int {
	added := 0
	for _, row := range rows {
		row = normalizeRow(row)
		if row.Text == "" {
			continue
		}
		key := row.Timestamp
		if key == "" {
			key = "text:" + row.Text
		}
		if _, seen := c.rows[key]; seen {
			continue
		}
		c.rows[key] = row
		c.order = append(c.order, key)
		added++
	}
	return added
}

// Len returns the number of distinct rows
func (c *Collector) Len() int {
	return len(c.order)
}

// Segments returns the rows sorted by timestamp. Unparseable labels sort first.
func (c *Collector) Segments() []models.Segment {
	segments := make([]models.Segment, 0, len(c.order))
	for _, key := range c.order {
		row := c.rows[key]
		seconds, ok := vtt.ParseClock(row.Timestamp)
		if !ok {
			seconds = vtt.UnknownTimestamp
		}

		speaker, text := row.Speaker, row.Text
		if speaker == "" {
			speaker, text = vtt.SplitSpeaker(text)
		}
		if text == "" {
			continue
		}
		segments = append(segments, models.Segment{
			Timestamp:        row.Timestamp,
			TimestampSeconds: seconds,
			Speaker:          speaker,
			Text:             text,
		})
	}

	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].TimestampSeconds < segments[j].TimestampSeconds
	})
	return segments
}

// normalizeRow pulls a leading clock out of the text when the row had no timestamp element,
// and drops the label from the text when the text element was the whole row
func normalizeRow(row Row) Row {
	row.Timestamp = strings.TrimSpace(row.Timestamp)
	row.Speaker = strings.TrimSpace(row.Speaker)
	row.Text = strings.TrimSpace(row.Text)

	if row.Timestamp == "" {
		if m := leadingClockRE.FindStringSubmatch(row.Text); m != nil {
			row.Timestamp = m[1]
			row.Text = strings.TrimSpace(m[2])
		}
	} else {
		row.Text = strings.TrimSpace(strings.TrimPrefix(row.Text, row.Timestamp))
	}
	if row.Speaker != "" {
		row.Text = strings.TrimSpace(strings.TrimPrefix(row.Text, row.Speaker))
		row.Text = strings.TrimSpace(strings.TrimPrefix(row.Text, ":"))
	}
	return row
}
