package services

import (
	"testing"
	"time"

	"meetsync/internal/models"
)

func TestSummarizeExecutions_Empty(t *testing.T) {
	summary := SummarizeExecutions(nil)
	if summary.TotalRuns != 0 || summary.SuccessRate != 0 || summary.LastRunAt != nil {
		t.Errorf("Unexpected summary for empty log: %+v", summary)
	}
}

func TestSummarizeExecutions(t *testing.T) {
	day1 := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	// Newest first, as stored
	records := []models.ExecutionRecord{
		{ID: "e3", StartedAt: day2.Add(time.Hour), DurationMs: 3000, Success: false, Error: "listing clips: session expired"},
		{ID: "e2", StartedAt: day2, DurationMs: 2000, Success: true, ClipsCount: 2, MeetingsCount: 1, TranscriptsExtracted: 2},
		{ID: "e1", StartedAt: day1, DurationMs: 1000, Success: true, ClipsCount: 1},
	}

	summary := SummarizeExecutions(records)

	if summary.TotalRuns != 3 || summary.Successful != 2 || summary.Failed != 1 {
		t.Errorf("Unexpected run counts: %+v", summary)
	}
	if summary.SuccessRate < 0.66 || summary.SuccessRate > 0.67 {
		t.Errorf("Expected success rate 2/3, got %v", summary.SuccessRate)
	}
	if summary.TotalClips != 3 || summary.TotalMeetings != 1 || summary.TotalTranscripts != 2 {
		t.Errorf("Unexpected totals: %+v", summary)
	}
	if summary.AverageDurationMs != 2000 {
		t.Errorf("Expected average 2000ms, got %d", summary.AverageDurationMs)
	}
	if !summary.LastRunAt.Equal(day2.Add(time.Hour)) {
		t.Errorf("Unexpected last run: %v", summary.LastRunAt)
	}
	if !summary.LastSuccessAt.Equal(day2) {
		t.Errorf("Unexpected last success: %v", summary.LastSuccessAt)
	}
	if summary.LastError != "listing clips: session expired" {
		t.Errorf("Unexpected last error: %q", summary.LastError)
	}

	if len(summary.Daily) != 2 {
		t.Fatalf("Expected 2 days, got %d", len(summary.Daily))
	}
	if summary.Daily[0].Date != "2026-04-02" || summary.Daily[0].Runs != 2 || summary.Daily[0].Successful != 1 {
		t.Errorf("Unexpected newest day: %+v", summary.Daily[0])
	}
	if summary.Daily[1].Date != "2026-04-01" || summary.Daily[1].Clips != 1 {
		t.Errorf("Unexpected oldest day: %+v", summary.Daily[1])
	}
}
