package models

import "time"

// Clip is one recorded clip from the clips library page.
// Reconstructed on every listing call, never persisted.
type Clip struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	CreatedAt       time.Time `json:"createdAt"`
	DurationSeconds int       `json:"durationSeconds"`
	ShareURL        string    `json:"shareUrl"`
	ThumbnailURL    string    `json:"thumbnailUrl,omitempty"`
}

// Meeting is one cloud-recorded meeting with a transcript
type Meeting struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Host            string    `json:"host,omitempty"`
	Date            string    `json:"date,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	DurationSeconds int       `json:"durationSeconds"`
	ShareURL        string    `json:"shareUrl,omitempty"`
	TranscriptURL   string    `json:"transcriptUrl,omitempty"`
}

// ExecutionRecord describes one sync run. Written once, never mutated.
type ExecutionRecord struct {
	ID                   string    `json:"id" bson:"id"`
	StartedAt            time.Time `json:"startedAt" bson:"startedAt"`
	CompletedAt          time.Time `json:"completedAt" bson:"completedAt"`
	DurationMs           int64     `json:"durationMs" bson:"durationMs"`
	Success              bool      `json:"success" bson:"success"`
	ClipsCount           int       `json:"clipsCount" bson:"clipsCount"`
	MeetingsCount        int       `json:"meetingsCount" bson:"meetingsCount"`
	TranscriptsExtracted int       `json:"transcriptsExtracted" bson:"transcriptsExtracted"`
	Error                string    `json:"error,omitempty" bson:"error,omitempty"`
}

// SyncResult is the aggregate payload returned by a sync run
type SyncResult struct {
	Clips       []Clip                      `json:"clips"`
	Meetings    []Meeting                   `json:"meetings"`
	Transcripts map[string]TranscriptResult `json:"transcripts,omitempty"`
	Execution   ExecutionRecord             `json:"execution"`
}
