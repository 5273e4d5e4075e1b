package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/chatops-kit/triage-service/internal/domain"
	"github.com/chatops-kit/triage-service/internal/repository"
	"github.com/chatops-kit/triage-service/internal/stats"
	apperrors "github.com/chatops-kit/triage-service/pkg/util"
)

// snapshotPageSize bounds how many tickets a stats query loads per page.
const snapshotPageSize = 500

// StatsService assembles entity snapshots and delegates the arithmetic to the
// pure functions in the stats package.
type StatsService struct {
	queries     repository.QueryRepository
	tickets     repository.TicketRepository
	escalations repository.EscalationRepository
	ratings     repository.RatingRepository
	location    *time.Location
	logger      *zap.Logger
}

// StatsDependencies bundles collaborators for the stats service.
type StatsDependencies struct {
	QueryRepo      repository.QueryRepository
	TicketRepo     repository.TicketRepository
	EscalationRepo repository.EscalationRepository
	RatingRepo     repository.RatingRepository
	Location       *time.Location
	Logger         *zap.Logger
}

// NewStatsService constructs the service.
func NewStatsService(deps StatsDependencies) *StatsService {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &StatsService{
		queries:     deps.QueryRepo,
		tickets:     deps.TicketRepo,
		escalations: deps.EscalationRepo,
		ratings:     deps.RatingRepo,
		location:    loc,
		logger:      deps.Logger,
	}
}

// Overview is the full metrics report for a date range.
type Overview struct {
	Range           stats.DateRange
	Daily           []stats.DailyCounts
	ByStatus        map[domain.TicketStatus]int
	ByImpact        map[string]int
	ByTag           map[string]int
	ResponseTimes   stats.DurationStats
	ResolutionTimes stats.DurationStats
	Escalations     stats.EscalationSummary
	Ratings         stats.RatingSummary
	WeeklyRatings   []stats.WeeklyRatings
}

// Report computes the overview for the inclusive [from, to] range.
func (s *StatsService) Report(ctx context.Context, from, to time.Time) (*Overview, error) {
	if to.Before(from) {
		return nil, apperrors.NewValidationError("range end before start", map[string]any{
			"from": from, "to": to,
		})
	}
	r := stats.NewDateRange(from, to, s.location)

	snapshots, err := s.loadSnapshots(ctx)
	if err != nil {
		return nil, err
	}

	escalations, err := s.loadEscalations(ctx, r)
	if err != nil {
		return nil, err
	}

	ratings, err := s.ratings.ListInRange(ctx, r.From, r.To)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	return &Overview{
		Range:           r,
		Daily:           stats.CountsByDay(snapshots, r),
		ByStatus:        stats.CountsByStatus(snapshots, r),
		ByImpact:        stats.CountsByImpact(snapshots, r),
		ByTag:           stats.CountsByTag(snapshots, r),
		ResponseTimes:   stats.ResponseTimeStats(snapshots, r),
		ResolutionTimes: stats.ResolutionTimeStats(snapshots, r),
		Escalations:     stats.SummarizeEscalations(escalations, r),
		Ratings:         stats.SummarizeRatings(ratings, r),
		WeeklyRatings:   stats.RatingsByWeek(ratings, r),
	}, nil
}

// loadEscalations pages through escalations opened up to the range end. The
// opening may sit long before the range while the resolution falls inside it,
// so only the upper bound is filtered here; SummarizeEscalations gates both
// timestamps against the range.
func (s *StatsService) loadEscalations(ctx context.Context, r stats.DateRange) ([]domain.Escalation, error) {
	var escalations []domain.Escalation
	for offset := 0; ; offset += snapshotPageSize {
		page, err := s.escalations.ListWithFilter(ctx, repository.EscalationFilter{
			OpenedTo: &r.To,
			Limit:    snapshotPageSize,
			Offset:   offset,
		})
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		escalations = append(escalations, page...)
		if len(page) < snapshotPageSize {
			return escalations, nil
		}
	}
}

// loadSnapshots pages through all tickets and resolves each query timestamp.
// Tickets created before the range still matter: a close inside the range can
// belong to a ticket opened long before it.
func (s *StatsService) loadSnapshots(ctx context.Context) ([]stats.TicketSnapshot, error) {
	var snapshots []stats.TicketSnapshot
	for offset := 0; ; offset += snapshotPageSize {
		page, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
			Limit:  snapshotPageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		for _, ticket := range page {
			queryAt := ticket.CreatedAt
			query, err := s.queries.GetByRef(ctx, ticket.ChannelID, ticket.MessageTS)
			if err == nil {
				queryAt = query.CreatedAt
			} else if !errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.MapError(err)
			}
			snapshots = append(snapshots, stats.TicketSnapshot{Ticket: ticket, QueryAt: queryAt})
		}
		if len(page) < snapshotPageSize {
			return snapshots, nil
		}
	}
}
