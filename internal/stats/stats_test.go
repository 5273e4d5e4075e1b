package stats

import (
	"testing"
	"time"

	"github.com/chatops-kit/triage-service/internal/domain"
)

func day(d int, hour int) time.Time {
	return time.Date(2026, time.March, d, hour, 0, 0, 0, time.UTC)
}

func rangeMarch(from, to int) DateRange {
	return NewDateRange(day(from, 0), day(to, 0), time.UTC)
}

func snapshot(queryAt time.Time, entries ...domain.StatusLogEntry) TicketSnapshot {
	log := domain.StatusLog(entries)
	ticket := domain.Ticket{
		Status:    log.Current(),
		StatusLog: log,
		CreatedAt: queryAt,
	}
	return TicketSnapshot{Ticket: ticket, QueryAt: queryAt}
}

func TestNewDateRange_WidensToWholeDays(t *testing.T) {
	r := NewDateRange(day(10, 15), day(12, 3), time.UTC)
	if !r.Contains(day(10, 0)) {
		t.Fatal("range start not widened to midnight")
	}
	if !r.Contains(day(12, 23)) {
		t.Fatal("range end not widened to end of day")
	}
	if r.Contains(day(13, 0)) {
		t.Fatal("range must be inclusive of the last day only")
	}
}

func TestCountsByDay(t *testing.T) {
	r := rangeMarch(1, 5)
	snaps := []TicketSnapshot{
		snapshot(day(1, 9),
			domain.StatusLogEntry{Status: domain.TicketStatusOpened, At: day(1, 10)},
			domain.StatusLogEntry{Status: domain.TicketStatusClosed, At: day(3, 10)},
		),
		snapshot(day(2, 9),
			domain.StatusLogEntry{Status: domain.TicketStatusOpened, At: day(2, 10)},
		),
	}

	daily := CountsByDay(snaps, r)
	byDay := make(map[string]DailyCounts, len(daily))
	for _, d := range daily {
		byDay[d.Day] = d
	}

	if got := byDay["2026-03-01"]; got.Opened != 1 || got.Active != 1 {
		t.Fatalf("day 1: %+v", got)
	}
	if got := byDay["2026-03-02"]; got.Opened != 1 || got.Active != 2 {
		t.Fatalf("day 2: %+v", got)
	}
	if got := byDay["2026-03-03"]; got.Closed != 1 || got.Active != 2 {
		t.Fatalf("day 3: %+v", got)
	}
	// Only the still-open ticket stays active after the close.
	if got := byDay["2026-03-05"]; got.Active != 1 {
		t.Fatalf("day 5: %+v", got)
	}
}

func TestResponseTimeStats(t *testing.T) {
	r := rangeMarch(1, 5)
	snaps := []TicketSnapshot{
		snapshot(day(1, 10), domain.StatusLogEntry{Status: domain.TicketStatusOpened, At: day(1, 11)}),
		snapshot(day(2, 10), domain.StatusLogEntry{Status: domain.TicketStatusOpened, At: day(2, 13)}),
		// Outside the range: must be ignored.
		snapshot(day(20, 10), domain.StatusLogEntry{Status: domain.TicketStatusOpened, At: day(20, 11)}),
	}

	got := ResponseTimeStats(snaps, r)
	if got.Count != 2 {
		t.Fatalf("count = %d; want 2", got.Count)
	}
	if got.Average == nil || *got.Average != 2*time.Hour {
		t.Fatalf("average = %v; want 2h", got.Average)
	}
}

func TestResolutionTimeStats_SpansReopens(t *testing.T) {
	r := rangeMarch(1, 10)
	snaps := []TicketSnapshot{
		snapshot(day(1, 9),
			domain.StatusLogEntry{Status: domain.TicketStatusOpened, At: day(1, 10)},
			domain.StatusLogEntry{Status: domain.TicketStatusClosed, At: day(2, 10)},
			domain.StatusLogEntry{Status: domain.TicketStatusOpened, At: day(3, 10)},
			domain.StatusLogEntry{Status: domain.TicketStatusClosed, At: day(4, 10)},
		),
		// Still open: contributes nothing.
		snapshot(day(1, 9), domain.StatusLogEntry{Status: domain.TicketStatusOpened, At: day(1, 10)}),
	}

	got := ResolutionTimeStats(snaps, r)
	if got.Count != 1 {
		t.Fatalf("count = %d; want 1", got.Count)
	}
	if got.Average == nil || *got.Average != 72*time.Hour {
		t.Fatalf("average = %v; want 72h (first open to last close)", got.Average)
	}
}

func TestDurationStats_EmptyIsNilNotZero(t *testing.T) {
	r := rangeMarch(1, 5)
	got := ResponseTimeStats(nil, r)
	if got.Count != 0 {
		t.Fatalf("count = %d", got.Count)
	}
	if got.Average != nil || got.P50 != nil || got.P90 != nil {
		t.Fatalf("empty stats must have nil aggregates: %+v", got)
	}
}

func TestSummarizeRatings_EmptyHasNilAverage(t *testing.T) {
	r := rangeMarch(1, 5)
	got := SummarizeRatings(nil, r)
	if got.Count != 0 || got.Average != nil {
		t.Fatalf("empty summary: %+v", got)
	}
}

func TestSummarizeRatings(t *testing.T) {
	r := rangeMarch(1, 5)
	ratings := []domain.Rating{
		{Value: 5, CreatedAt: day(1, 12)},
		{Value: 3, CreatedAt: day(2, 12)},
		{Value: 1, CreatedAt: day(20, 12)}, // outside range
	}
	got := SummarizeRatings(ratings, r)
	if got.Count != 2 {
		t.Fatalf("count = %d; want 2", got.Count)
	}
	if got.Average == nil || *got.Average != 4.0 {
		t.Fatalf("average = %v; want 4.0", got.Average)
	}
}

func TestRatingsByWeek_ISOWeekBuckets(t *testing.T) {
	// 2026-03-01 is a Sunday (ISO week 9); 2026-03-02 starts week 10.
	r := rangeMarch(1, 15)
	ratings := []domain.Rating{
		{Value: 4, CreatedAt: day(1, 12)},
		{Value: 2, CreatedAt: day(3, 12)},
		{Value: 4, CreatedAt: day(5, 12)},
		{Value: 5, CreatedAt: day(10, 12)},
	}
	got := RatingsByWeek(ratings, r)
	if len(got) != 3 {
		t.Fatalf("weeks = %d; want 3", len(got))
	}
	if got[0].Week != "2026-W09" || got[0].Count != 1 {
		t.Fatalf("first bucket: %+v", got[0])
	}
	if got[1].Week != "2026-W10" || got[1].Count != 2 || *got[1].Average != 3.0 {
		t.Fatalf("second bucket: %+v", got[1])
	}
	if got[2].Week != "2026-W11" || got[2].Count != 1 {
		t.Fatalf("third bucket: %+v", got[2])
	}
}

func TestSummarizeEscalations(t *testing.T) {
	r := rangeMarch(1, 5)
	resolvedAt := day(3, 12)
	outside := day(20, 12)
	escalations := []domain.Escalation{
		{Team: "platform", OpenedAt: day(1, 12), ResolvedAt: &resolvedAt},
		{Team: "platform", OpenedAt: day(2, 12)},
		{Team: "frontend", OpenedAt: day(2, 14)},
		// Opened before the range but resolved inside it.
		{Team: "backend", OpenedAt: day(20, 12).AddDate(0, -1, 0), ResolvedAt: &resolvedAt},
		{Team: "backend", OpenedAt: outside},
	}

	got := SummarizeEscalations(escalations, r)
	if got.Opened != 3 {
		t.Fatalf("opened = %d; want 3", got.Opened)
	}
	if got.Resolved != 2 {
		t.Fatalf("resolved = %d; want 2", got.Resolved)
	}
	if got.ByTeam["platform"] != 2 || got.ByTeam["frontend"] != 1 {
		t.Fatalf("byTeam = %v", got.ByTeam)
	}
}

func TestCountsByImpactAndTag(t *testing.T) {
	r := rangeMarch(1, 5)
	high := "high"
	snaps := []TicketSnapshot{
		{Ticket: domain.Ticket{CreatedAt: day(1, 12), Impact: &high, Tags: []string{"bug", "incident"}}},
		{Ticket: domain.Ticket{CreatedAt: day(2, 12), Tags: []string{"bug"}}},
	}

	byImpact := CountsByImpact(snaps, r)
	if byImpact["high"] != 1 || byImpact[""] != 1 {
		t.Fatalf("byImpact = %v", byImpact)
	}
	byTag := CountsByTag(snaps, r)
	if byTag["bug"] != 2 || byTag["incident"] != 1 {
		t.Fatalf("byTag = %v", byTag)
	}
}
