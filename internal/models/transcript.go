package models

// ExtractionMethod records how a transcript was obtained
type ExtractionMethod string

const (
	MethodVirtualScroll ExtractionMethod = "virtual_scroll"
	MethodStatic        ExtractionMethod = "static"
	MethodVTT           ExtractionMethod = "vtt"
)

// Segment is one speaker-attributed caption line
type Segment struct {
	Timestamp        string  `json:"timestamp"`
	TimestampSeconds float64 `json:"timestampSeconds"`
	Speaker          string  `json:"speaker,omitempty"`
	Text             string  `json:"text"`
}

// TranscriptResult is the output of both the in-page extractor and the caption-track parser
type TranscriptResult struct {
	Transcript   string           `json:"transcript"`
	SegmentCount int              `json:"segmentCount"`
	Speakers     []string         `json:"speakers"`
	Method       ExtractionMethod `json:"method"`
	Segments     []Segment        `json:"segments,omitempty"`
}
