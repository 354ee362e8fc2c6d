package services

import (
	"sort"
	"time"

	"meetsync/internal/models"
)

// recentExecutions is how many records the dashboard shows
const recentExecutions = 10

// ExecutionSummary aggregates a user's execution log
type ExecutionSummary struct {
	TotalRuns         int             `json:"totalRuns"`
	Successful        int             `json:"successful"`
	Failed            int             `json:"failed"`
	SuccessRate       float64         `json:"successRate"` // 0..1
	TotalClips        int             `json:"totalClips"`
	TotalMeetings     int             `json:"totalMeetings"`
	TotalTranscripts  int             `json:"totalTranscripts"`
	AverageDurationMs int64           `json:"averageDurationMs"`
	LastRunAt         *time.Time      `json:"lastRunAt,omitempty"`
	LastSuccessAt     *time.Time      `json:"lastSuccessAt,omitempty"`
	LastError         string          `json:"lastError,omitempty"`
	Daily             []DailyActivity `json:"daily,omitempty"`
}

// DailyActivity is one UTC day of sync runs
type DailyActivity struct {
	Date       string `json:"date"` // YYYY-MM-DD
	Runs       int    `json:"runs"`
	Successful int    `json:"successful"`
	Clips      int    `json:"clips"`
	Meetings   int    `json:"meetings"`
}

// DashboardData is the payload of /dashboard-data
type DashboardData struct {
	Session models.SessionHealth     `json:"session"`
	Summary ExecutionSummary         `json:"summary"`
	Recent  []models.ExecutionRecord `json:"recentExecutions"`
}

// AnalyticsData is the payload of /analytics
type AnalyticsData struct {
	Summary    ExecutionSummary         `json:"summary"`
	Executions []models.ExecutionRecord `json:"executions"`
}

// SummarizeExecutions folds a newest-first execution log into totals and a per-day breakdown
func SummarizeExecutions(records []models.ExecutionRecord) ExecutionSummary {
	summary := ExecutionSummary{TotalRuns: len(records)}
	if len(records) == 0 {
		return summary
	}

	days := make(map[string]*DailyActivity)
	var totalDuration int64
	for i, rec := range records {
		totalDuration += rec.DurationMs
		summary.TotalClips += rec.ClipsCount
		summary.TotalMeetings += rec.MeetingsCount
		summary.TotalTranscripts += rec.TranscriptsExtracted

		if i == 0 {
			started := rec.StartedAt
			summary.LastRunAt = &started
		}
		if rec.Success {
			summary.Successful++
			if summary.LastSuccessAt == nil {
				started := rec.StartedAt
				summary.LastSuccessAt = &started
			}
		} else {
			summary.Failed++
			if summary.LastError == "" {
				summary.LastError = rec.Error
			}
		}

		key := rec.StartedAt.UTC().Format("2006-01-02")
		day, ok := days[key]
		if !ok {
			day = &DailyActivity{Date: key}
			days[key] = day
		}
		day.Runs++
		day.Clips += rec.ClipsCount
		day.Meetings += rec.MeetingsCount
		if rec.Success {
			day.Successful++
		}
	}

	summary.SuccessRate = float64(summary.Successful) / float64(summary.TotalRuns)
	summary.AverageDurationMs = totalDuration / int64(summary.TotalRuns)

	summary.Daily = make([]DailyActivity, 0, len(days))
	for _, day := range days {
		summary.Daily = append(summary.Daily, *day)
	}
	sort.Slice(summary.Daily, func(i, j int) bool {
		return summary.Daily[i].Date > summary.Daily[j].Date
	})
	return summary
}
