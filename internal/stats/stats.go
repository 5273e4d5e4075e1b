// Package stats derives operational metrics from ticket, escalation and
// rating snapshots plus the status ledger. Every function is pure: given
// identical inputs it returns identical results and never mutates what it
// reads. Empty inputs yield zero counts and nil aggregates, never NaN.
package stats

import (
	"fmt"
	"sort"
	"time"

	"github.com/chatops-kit/triage-service/internal/domain"
)

// DateRange is an inclusive [From, To] window with timezone-aware bucketing.
type DateRange struct {
	From time.Time
	To   time.Time
	Loc  *time.Location
}

// NewDateRange normalizes a range: a nil location falls back to UTC and the
// bounds are widened to whole days in that location.
func NewDateRange(from, to time.Time, loc *time.Location) DateRange {
	if loc == nil {
		loc = time.UTC
	}
	from = from.In(loc)
	to = to.In(loc)
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	end := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), loc)
	return DateRange{From: start, To: end, Loc: loc}
}

// Contains reports whether t falls inside the inclusive range.
func (r DateRange) Contains(t time.Time) bool {
	t = t.In(r.Loc)
	return !t.Before(r.From) && !t.After(r.To)
}

func (r DateRange) dayKey(t time.Time) string {
	return t.In(r.Loc).Format("2006-01-02")
}

func (r DateRange) weekKey(t time.Time) string {
	year, week := t.In(r.Loc).ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// TicketSnapshot couples a ticket with the timestamp of its originating
// query, which response-time metrics are measured from.
type TicketSnapshot struct {
	Ticket  domain.Ticket
	QueryAt time.Time
}

// DailyCounts is the per-day activity bucket.
type DailyCounts struct {
	Day    string
	Opened int
	Closed int
	Active int
}

// CountsByDay buckets ticket activity per calendar day inside the range.
// A ticket counts as opened on the day of its first OPENED entry, closed on
// the day of each CLOSED entry, and active on every day between first open
// and final close (or the range end while it remains open).
func CountsByDay(snapshots []TicketSnapshot, r DateRange) []DailyCounts {
	buckets := make(map[string]*DailyCounts)
	bucket := func(day string) *DailyCounts {
		b, ok := buckets[day]
		if !ok {
			b = &DailyCounts{Day: day}
			buckets[day] = b
		}
		return b
	}

	for _, snap := range snapshots {
		log := snap.Ticket.StatusLog
		if opened, ok := log.FirstOpenedAt(); ok && r.Contains(opened) {
			bucket(r.dayKey(opened)).Opened++
		}
		for _, entry := range log {
			if entry.Status == domain.TicketStatusClosed && r.Contains(entry.At) {
				bucket(r.dayKey(entry.At)).Closed++
			}
		}
		markActiveDays(snap.Ticket, r, func(day string) {
			bucket(day).Active++
		})
	}

	out := make([]DailyCounts, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

func markActiveDays(ticket domain.Ticket, r DateRange, mark func(day string)) {
	opened, ok := ticket.StatusLog.FirstOpenedAt()
	if !ok {
		return
	}
	end := r.To
	if ticket.Status == domain.TicketStatusClosed {
		closed, _ := ticket.StatusLog.LastClosedAt()
		if closed.Before(end) {
			end = closed.In(r.Loc)
		}
	}
	day := opened.In(r.Loc)
	if day.Before(r.From) {
		day = r.From
	}
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, r.Loc)
	for !day.After(end) {
		if r.Contains(day) {
			mark(r.dayKey(day))
		}
		day = day.AddDate(0, 0, 1)
	}
}

// CountsByStatus breaks range-created tickets down by current status.
func CountsByStatus(snapshots []TicketSnapshot, r DateRange) map[domain.TicketStatus]int {
	out := make(map[domain.TicketStatus]int)
	for _, snap := range snapshots {
		if !r.Contains(snap.Ticket.CreatedAt) {
			continue
		}
		out[snap.Ticket.Status]++
	}
	return out
}

// CountsByImpact breaks range-created tickets down by impact. Tickets
// without an impact are keyed under the empty string.
func CountsByImpact(snapshots []TicketSnapshot, r DateRange) map[string]int {
	out := make(map[string]int)
	for _, snap := range snapshots {
		if !r.Contains(snap.Ticket.CreatedAt) {
			continue
		}
		key := ""
		if snap.Ticket.Impact != nil {
			key = *snap.Ticket.Impact
		}
		out[key]++
	}
	return out
}

// CountsByTag breaks range-created tickets down by tag. A ticket with
// several tags contributes to each of them.
func CountsByTag(snapshots []TicketSnapshot, r DateRange) map[string]int {
	out := make(map[string]int)
	for _, snap := range snapshots {
		if !r.Contains(snap.Ticket.CreatedAt) {
			continue
		}
		for _, tag := range snap.Ticket.Tags {
			out[tag]++
		}
	}
	return out
}

// DurationStats aggregates a set of durations. All aggregate fields are nil
// when Count is 0.
type DurationStats struct {
	Count   int
	Average *time.Duration
	P50     *time.Duration
	P90     *time.Duration
}

// ResponseTimeStats aggregates the delay from query post to first triage for
// tickets whose first ledger entry falls inside the range.
func ResponseTimeStats(snapshots []TicketSnapshot, r DateRange) DurationStats {
	var durations []time.Duration
	for _, snap := range snapshots {
		log := snap.Ticket.StatusLog
		if len(log) == 0 || !r.Contains(log[0].At) {
			continue
		}
		if d, ok := log.ResponseTime(snap.QueryAt); ok {
			durations = append(durations, d)
		}
	}
	return aggregateDurations(durations)
}

// ResolutionTimeStats aggregates first-open to final-close spans for tickets
// whose closing entry falls inside the range. Reopen cycles count toward the
// span; only currently-closed tickets contribute.
func ResolutionTimeStats(snapshots []TicketSnapshot, r DateRange) DurationStats {
	var durations []time.Duration
	for _, snap := range snapshots {
		log := snap.Ticket.StatusLog
		closed, ok := log.LastClosedAt()
		if !ok || !r.Contains(closed) {
			continue
		}
		if d, ok := log.ResolutionTime(); ok {
			durations = append(durations, d)
		}
	}
	return aggregateDurations(durations)
}

func aggregateDurations(durations []time.Duration) DurationStats {
	out := DurationStats{Count: len(durations)}
	if len(durations) == 0 {
		return out
	}
	sorted := append([]time.Duration(nil), durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	avg := sum / time.Duration(len(sorted))
	p50 := percentile(sorted, 0.5)
	p90 := percentile(sorted, 0.9)
	out.Average = &avg
	out.P50 = &p50
	out.P90 = &p90
	return out
}

// percentile uses the nearest-rank method over an ascending-sorted slice.
func percentile(sorted []time.Duration, q float64) time.Duration {
	rank := int(float64(len(sorted)) * q)
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

// RatingSummary aggregates rating values. Average is nil when Count is 0.
type RatingSummary struct {
	Count   int
	Average *float64
}

// SummarizeRatings averages the ratings captured inside the range.
func SummarizeRatings(ratings []domain.Rating, r DateRange) RatingSummary {
	var values []int
	for _, rating := range ratings {
		if r.Contains(rating.CreatedAt) {
			values = append(values, rating.Value)
		}
	}
	out := RatingSummary{Count: len(values)}
	if len(values) == 0 {
		return out
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	avg := float64(sum) / float64(len(values))
	out.Average = &avg
	return out
}

// WeeklyRatings is a per-ISO-week rating bucket.
type WeeklyRatings struct {
	Week    string
	Count   int
	Average *float64
}

// RatingsByWeek buckets ratings into ISO weeks inside the range.
func RatingsByWeek(ratings []domain.Rating, r DateRange) []WeeklyRatings {
	sums := make(map[string]int)
	counts := make(map[string]int)
	for _, rating := range ratings {
		if !r.Contains(rating.CreatedAt) {
			continue
		}
		key := r.weekKey(rating.CreatedAt)
		sums[key] += rating.Value
		counts[key]++
	}

	out := make([]WeeklyRatings, 0, len(counts))
	for week, count := range counts {
		avg := float64(sums[week]) / float64(count)
		out = append(out, WeeklyRatings{Week: week, Count: count, Average: &avg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Week < out[j].Week })
	return out
}

// EscalationSummary counts escalations opened and resolved inside the range.
type EscalationSummary struct {
	Opened   int
	Resolved int
	ByTeam   map[string]int
}

// SummarizeEscalations counts escalation activity inside the range.
func SummarizeEscalations(escalations []domain.Escalation, r DateRange) EscalationSummary {
	out := EscalationSummary{ByTeam: make(map[string]int)}
	for _, escalation := range escalations {
		if r.Contains(escalation.OpenedAt) {
			out.Opened++
			out.ByTeam[escalation.Team]++
		}
		if escalation.ResolvedAt != nil && r.Contains(*escalation.ResolvedAt) {
			out.Resolved++
		}
	}
	return out
}
