package dto

import (
	"time"

	"github.com/chatops-kit/triage-service/internal/service"
	"github.com/chatops-kit/triage-service/internal/stats"
)

// DailyCountsResponse is one per-day activity bucket.
type DailyCountsResponse struct {
	Day    string `json:"day"`
	Opened int    `json:"opened"`
	Closed int    `json:"closed"`
	Active int    `json:"active"`
}

// DurationStatsResponse reports duration aggregates in seconds. Aggregates
// are null when no samples fell inside the range.
type DurationStatsResponse struct {
	Count          int      `json:"count"`
	AverageSeconds *float64 `json:"average_seconds"`
	P50Seconds     *float64 `json:"p50_seconds"`
	P90Seconds     *float64 `json:"p90_seconds"`
}

// RatingSummaryResponse aggregates rating values.
type RatingSummaryResponse struct {
	Count   int      `json:"count"`
	Average *float64 `json:"average"`
}

// WeeklyRatingsResponse is one per-ISO-week rating bucket.
type WeeklyRatingsResponse struct {
	Week    string   `json:"week"`
	Count   int      `json:"count"`
	Average *float64 `json:"average"`
}

// EscalationSummaryResponse counts escalation activity.
type EscalationSummaryResponse struct {
	Opened   int            `json:"opened"`
	Resolved int            `json:"resolved"`
	ByTeam   map[string]int `json:"by_team"`
}

// StatsResponse is the full metrics report for a date range.
type StatsResponse struct {
	From            time.Time                 `json:"from"`
	To              time.Time                 `json:"to"`
	Daily           []DailyCountsResponse     `json:"daily"`
	ByStatus        map[string]int            `json:"by_status"`
	ByImpact        map[string]int            `json:"by_impact"`
	ByTag           map[string]int            `json:"by_tag"`
	ResponseTimes   DurationStatsResponse     `json:"response_times"`
	ResolutionTimes DurationStatsResponse     `json:"resolution_times"`
	Escalations     EscalationSummaryResponse `json:"escalations"`
	Ratings         RatingSummaryResponse     `json:"ratings"`
	WeeklyRatings   []WeeklyRatingsResponse   `json:"weekly_ratings"`
}

// StatsFromOverview converts a computed overview for responses.
func StatsFromOverview(overview *service.Overview) StatsResponse {
	daily := make([]DailyCountsResponse, 0, len(overview.Daily))
	for _, d := range overview.Daily {
		daily = append(daily, DailyCountsResponse{Day: d.Day, Opened: d.Opened, Closed: d.Closed, Active: d.Active})
	}

	byStatus := make(map[string]int, len(overview.ByStatus))
	for status, count := range overview.ByStatus {
		byStatus[string(status)] = count
	}

	weekly := make([]WeeklyRatingsResponse, 0, len(overview.WeeklyRatings))
	for _, w := range overview.WeeklyRatings {
		weekly = append(weekly, WeeklyRatingsResponse{Week: w.Week, Count: w.Count, Average: w.Average})
	}

	return StatsResponse{
		From:            overview.Range.From,
		To:              overview.Range.To,
		Daily:           daily,
		ByStatus:        byStatus,
		ByImpact:        overview.ByImpact,
		ByTag:           overview.ByTag,
		ResponseTimes:   durationStatsResponse(overview.ResponseTimes),
		ResolutionTimes: durationStatsResponse(overview.ResolutionTimes),
		Escalations: EscalationSummaryResponse{
			Opened:   overview.Escalations.Opened,
			Resolved: overview.Escalations.Resolved,
			ByTeam:   overview.Escalations.ByTeam,
		},
		Ratings: RatingSummaryResponse{
			Count:   overview.Ratings.Count,
			Average: overview.Ratings.Average,
		},
		WeeklyRatings: weekly,
	}
}

func durationStatsResponse(s stats.DurationStats) DurationStatsResponse {
	return DurationStatsResponse{
		Count:          s.Count,
		AverageSeconds: durationSeconds(s.Average),
		P50Seconds:     durationSeconds(s.P50),
		P90Seconds:     durationSeconds(s.P90),
	}
}

func durationSeconds(d *time.Duration) *float64 {
	if d == nil {
		return nil
	}
	secs := d.Seconds()
	return &secs
}
